// Package bootstrap connects the runtime dependencies shared by the commands.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"plume/internal/cache"
	"plume/internal/config"
	"plume/internal/database"
	"plume/internal/middleware"
	"plume/internal/models"
	"plume/internal/repository"
	"plume/internal/service"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SkipRootAdmin disables the development root admin bootstrap.
	SkipRootAdmin bool
}

// InitRuntime connects to the database and, when enabled, Redis. A nil Redis
// client means the blacklist and caches run without it.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	var rdb *redis.Client
	if cfg.UseRedis {
		rdb = cache.InitRedis(cfg.RedisURL)
	}

	if !opts.SkipRootAdmin {
		if err := ensureDevRootAdmin(ctx, cfg, db); err != nil {
			return nil, nil, fmt.Errorf("failed to bootstrap development root admin: %w", err)
		}
	}

	return db, rdb, nil
}

// NewUserService builds the account management service used by the
// commands.
func NewUserService(cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*service.UserService, error) {
	hasher, err := service.NewPasswordHasher(cfg.PasswordHashIterations)
	if err != nil {
		return nil, err
	}
	return service.NewUserService(
		repository.NewUserRepository(db),
		repository.NewResetTokenRepository(db),
		repository.NewTokenBlacklist(db, rdb),
		hasher,
	), nil
}

func ensureDevRootAdmin(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") || !cfg.DevBootstrapRoot {
		return nil
	}

	username := strings.TrimSpace(cfg.DevRootUsername)
	if username == "" {
		username = "root"
	}
	email := strings.TrimSpace(strings.ToLower(cfg.DevRootEmail))
	if email == "" {
		email = "root@localhost"
	}
	if cfg.DevRootPassword == "" {
		return fmt.Errorf("DEV_ROOT_PASSWORD must be set when DEV_BOOTSTRAP_ROOT is enabled")
	}

	users, err := NewUserService(cfg, db, nil)
	if err != nil {
		return err
	}

	_, err = users.SetRoles(ctx, username, true, true)
	var appErr *models.AppError
	switch {
	case err == nil:
	case errors.As(err, &appErr) && appErr.Code == models.CodeNotFound:
		if _, err := users.CreateSuperuser(ctx, service.RegisterInput{
			Username: username,
			Email:    email,
			Password: cfg.DevRootPassword,
		}); err != nil {
			return err
		}
	default:
		return err
	}

	middleware.Logger.Info("development root admin ensured", slog.String("username", username))
	return nil
}
