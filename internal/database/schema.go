package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"plume/internal/config"
	"plume/internal/middleware"

	"gorm.io/gorm"
)

const (
	SchemaModeSQL  = "sql"
	SchemaModeAuto = "auto"
)

// SchemaStatus describes what ApplySchema would do for the current configuration.
type SchemaStatus struct {
	Mode              string
	Environment       string
	AppliedVersions   []int
	PendingMigrations []Migration
}

// SchemaMode resolves DB_SCHEMA_MODE. SQL migrations are written for Postgres,
// so sqlite always uses AutoMigrate; Postgres defaults to SQL migrations in
// production and AutoMigrate elsewhere.
func SchemaMode(cfg *config.Config) (string, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode))
	if driverName(cfg) == "sqlite" {
		if mode == SchemaModeSQL {
			return "", fmt.Errorf("DB_SCHEMA_MODE=sql is not supported with the sqlite driver")
		}
		return SchemaModeAuto, nil
	}

	switch mode {
	case "":
		if cfg.IsProduction() {
			return SchemaModeSQL, nil
		}
		return SchemaModeAuto, nil
	case SchemaModeSQL, SchemaModeAuto:
		return mode, nil
	default:
		return "", fmt.Errorf("unsupported DB_SCHEMA_MODE %q", mode)
	}
}

// AutoMigrate creates or updates every persistent table from the GORM models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(PersistentModels()...)
}

// ApplySchema brings the schema up to date using the configured mode.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	mode, err := SchemaMode(cfg)
	if err != nil {
		return err
	}

	switch mode {
	case SchemaModeSQL:
		if err := RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
	case SchemaModeAuto:
		if cfg.IsProduction() {
			middleware.Logger.Warn("Running GORM AutoMigrate in production; review schema diffs before deploying")
		}
		middleware.Logger.Info("Running GORM AutoMigrate", slog.String("env", cfg.Env))
		if err := AutoMigrate(db.WithContext(ctx)); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}

	return nil
}

// GetSchemaStatus reports applied and pending SQL migrations.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	mode, err := SchemaMode(cfg)
	if err != nil {
		return nil, err
	}

	status := &SchemaStatus{
		Mode:        mode,
		Environment: cfg.Env,
	}
	if mode != SchemaModeSQL {
		return status, nil
	}

	store := NewMigrationStore(db)
	applied, err := store.GetAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	status.AppliedVersions = applied

	appliedSet := make(map[int]bool, len(applied))
	for _, version := range applied {
		appliedSet[version] = true
	}
	for _, m := range GetMigrations() {
		if !appliedSet[m.Version] {
			status.PendingMigrations = append(status.PendingMigrations, m)
		}
	}

	return status, nil
}
