package repository

import (
	"context"
	"errors"
	"time"

	"plume/internal/models"

	"gorm.io/gorm"
)

// ResetTokenRepository stores password reset tokens.
type ResetTokenRepository interface {
	Create(ctx context.Context, token *models.PasswordResetToken) error
	GetByToken(ctx context.Context, token string) (*models.PasswordResetToken, error)
	Delete(ctx context.Context, id uint) error
	// Consume sets the user's password hash and deletes the token in one
	// transaction. It fails with NotFound if the token was already used.
	Consume(ctx context.Context, token *models.PasswordResetToken, passwordHash string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type resetTokenRepository struct {
	db *gorm.DB
}

// NewResetTokenRepository returns a gorm-backed ResetTokenRepository.
func NewResetTokenRepository(db *gorm.DB) ResetTokenRepository {
	return &resetTokenRepository{db: db}
}

func (r *resetTokenRepository) Create(ctx context.Context, token *models.PasswordResetToken) error {
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *resetTokenRepository) GetByToken(ctx context.Context, token string) (*models.PasswordResetToken, error) {
	var t models.PasswordResetToken
	if err := r.db.WithContext(ctx).Preload("User").Where("token = ?", token).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("PasswordResetToken", "")
		}
		return nil, models.NewInternalError(err)
	}
	return &t, nil
}

func (r *resetTokenRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.PasswordResetToken{}, id).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *resetTokenRepository) Consume(ctx context.Context, token *models.PasswordResetToken, passwordHash string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.PasswordResetToken{}, token.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("PasswordResetToken", token.ID)
		}
		return tx.Model(&models.User{}).Where("id = ?", token.UserID).Update("password", passwordHash).Error
	})
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return models.NewInternalError(err)
}

func (r *resetTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at < ?", now).Delete(&models.PasswordResetToken{})
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}
