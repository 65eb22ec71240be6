package repository

import (
	"context"
	"fmt"
	"time"

	"plume/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TokenBlacklist records rotated and revoked JWT ids.
type TokenBlacklist interface {
	// Claim blacklists jti until expiresAt. It reports false when the jti was
	// already blacklisted; of any number of concurrent claims exactly one wins.
	Claim(ctx context.Context, jti string, userID uint, tokenType string, expiresAt time.Time) (bool, error)
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
	// DeleteExpired purges entries whose token can no longer verify anyway.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// NewTokenBlacklist uses Redis when rdb is set and the database otherwise.
func NewTokenBlacklist(db *gorm.DB, rdb *redis.Client) TokenBlacklist {
	if rdb != nil {
		return &redisBlacklist{rdb: rdb}
	}
	return &dbBlacklist{db: db}
}

type dbBlacklist struct {
	db *gorm.DB
}

func (b *dbBlacklist) Claim(ctx context.Context, jti string, userID uint, tokenType string, expiresAt time.Time) (bool, error) {
	row := models.BlacklistedToken{
		JTI:       jti,
		UserID:    userID,
		TokenType: tokenType,
		ExpiresAt: expiresAt,
	}
	res := b.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "jti"}}, DoNothing: true}).
		Create(&row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (b *dbBlacklist) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	var count int64
	if err := b.db.WithContext(ctx).Model(&models.BlacklistedToken{}).Where("jti = ?", jti).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (b *dbBlacklist) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := b.db.WithContext(ctx).Where("expires_at < ?", now).Delete(&models.BlacklistedToken{})
	return res.RowsAffected, res.Error
}

type redisBlacklist struct {
	rdb *redis.Client
}

func blacklistKey(jti string) string {
	return fmt.Sprintf("jwt:blacklist:%s", jti)
}

func (b *redisBlacklist) Claim(ctx context.Context, jti string, userID uint, _ string, expiresAt time.Time) (bool, error) {
	ttl := time.Until(expiresAt)
	if ttl < time.Second {
		ttl = time.Second
	}
	return b.rdb.SetNX(ctx, blacklistKey(jti), userID, ttl).Result()
}

func (b *redisBlacklist) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	n, err := b.rdb.Exists(ctx, blacklistKey(jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteExpired is a no-op; Redis expires entries itself.
func (b *redisBlacklist) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}
