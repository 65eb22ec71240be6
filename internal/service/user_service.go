package service

import (
	"context"
	"log/slog"
	"time"

	"plume/internal/middleware"
	"plume/internal/models"
	"plume/internal/repository"
	"plume/internal/validation"
)

// UserService holds account administration used by the admin CLI and the
// development bootstrap.
type UserService struct {
	users     repository.UserRepository
	resets    repository.ResetTokenRepository
	blacklist repository.TokenBlacklist
	hasher    *PasswordHasher
	now       func() time.Time
}

// FlushResult counts rows removed by FlushExpired.
type FlushResult struct {
	BlacklistedTokens int64
	ResetTokens       int64
}

func NewUserService(
	users repository.UserRepository,
	resets repository.ResetTokenRepository,
	blacklist repository.TokenBlacklist,
	hasher *PasswordHasher,
) *UserService {
	return &UserService{
		users:     users,
		resets:    resets,
		blacklist: blacklist,
		hasher:    hasher,
		now:       time.Now,
	}
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

// CreateSuperuser registers an active staff superuser.
func (s *UserService) CreateSuperuser(ctx context.Context, in RegisterInput) (*models.User, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	user := &models.User{
		Username:    in.Username,
		Email:       in.Email,
		Password:    hash,
		IsActive:    true,
		IsStaff:     true,
		IsSuperuser: true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	middleware.Logger.InfoContext(ctx, "superuser created", slog.String("username", user.Username))
	return user, nil
}

// SetRoles grants or withdraws staff and superuser rights by username.
func (s *UserService) SetRoles(ctx context.Context, username string, staff, superuser bool) (*models.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewNotFoundError("User", username)
	}
	if err := s.users.SetRoles(ctx, user.ID, staff, superuser); err != nil {
		return nil, err
	}
	middleware.Logger.InfoContext(ctx, "user roles changed",
		slog.String("username", username),
		slog.Bool("staff", staff || superuser),
		slog.Bool("superuser", superuser),
	)
	return s.users.GetByID(ctx, user.ID)
}

// ListAdmins returns staff accounts.
func (s *UserService) ListAdmins(ctx context.Context) ([]models.User, error) {
	return s.users.ListStaff(ctx)
}

// FlushExpired purges blacklist rows and reset tokens past their expiry.
func (s *UserService) FlushExpired(ctx context.Context) (FlushResult, error) {
	now := s.now()
	var res FlushResult
	var err error
	if res.BlacklistedTokens, err = s.blacklist.DeleteExpired(ctx, now); err != nil {
		return res, err
	}
	if res.ResetTokens, err = s.resets.DeleteExpired(ctx, now); err != nil {
		return res, err
	}
	return res, nil
}
