package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"plume/internal/middleware"
	"plume/internal/models"
	"plume/internal/observability"
	"plume/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenIssuer   = "plume-api"
	tokenAudience = "plume-client"
)

var (
	// ErrInvalidToken covers malformed, expired, foreign, mistyped and
	// blacklisted tokens.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrUserNotFound is returned when a valid token names a missing or
	// inactive user.
	ErrUserNotFound = errors.New("token user not found")
)

// Claims is the JWT payload of access and refresh tokens.
type Claims struct {
	Username string `json:"username"`
	Type     string `json:"typ"`
	jwt.RegisteredClaims
}

// UserID returns the subject as a user id.
func (c *Claims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

// TokenPair is the result of a login or rotation.
type TokenPair struct {
	Access           string
	Refresh          string
	RefreshExpiresAt time.Time
}

// TokenService issues, verifies, rotates and revokes JWTs.
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	users      repository.UserRepository
	blacklist  repository.TokenBlacklist
	now        func() time.Time
}

// NewTokenService creates a TokenService signing with secret.
func NewTokenService(secret string, accessTTL, refreshTTL time.Duration, users repository.UserRepository, blacklist repository.TokenBlacklist) *TokenService {
	return &TokenService{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		users:      users,
		blacklist:  blacklist,
		now:        time.Now,
	}
}

// RefreshTTL is the lifetime of refresh tokens and of the cookie holding them.
func (s *TokenService) RefreshTTL() time.Duration {
	return s.refreshTTL
}

// Issue creates a fresh access and refresh token for user.
func (s *TokenService) Issue(user *models.User) (TokenPair, error) {
	now := s.now()
	access, _, err := s.sign(user, models.TokenTypeAccess, now, s.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := s.sign(user, models.TokenTypeRefresh, now, s.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh, RefreshExpiresAt: refreshExp}, nil
}

func (s *TokenService) sign(user *models.User, typ string, now time.Time, ttl time.Duration) (string, time.Time, error) {
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("JWT secret not configured")
	}
	exp := now.Add(ttl)
	claims := Claims{
		Username: user.Username,
		Type:     typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{tokenAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// parse checks signature, registered claims and type, but not the blacklist.
func (s *TokenService) parse(raw, typ string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Type != typ {
		return nil, fmt.Errorf("%w: expected %s token, got %q", ErrInvalidToken, typ, claims.Type)
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("%w: missing jti", ErrInvalidToken)
	}
	if _, err := claims.UserID(); err != nil {
		return nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return claims, nil
}

// Verify parses raw as a token of type typ and rejects blacklisted ids.
func (s *TokenService) Verify(ctx context.Context, raw, typ string) (*Claims, error) {
	claims, err := s.parse(raw, typ)
	if err != nil {
		return nil, err
	}
	listed, err := s.blacklist.IsBlacklisted(ctx, claims.ID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if listed {
		return nil, fmt.Errorf("%w: blacklisted", ErrInvalidToken)
	}
	return claims, nil
}

// VerifyAccess verifies an access token.
func (s *TokenService) VerifyAccess(ctx context.Context, raw string) (*Claims, error) {
	return s.Verify(ctx, raw, models.TokenTypeAccess)
}

// VerifyRefresh verifies a refresh token.
func (s *TokenService) VerifyRefresh(ctx context.Context, raw string) (*Claims, error) {
	return s.Verify(ctx, raw, models.TokenTypeRefresh)
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// blacklisted; of concurrent exchanges of one token at most one succeeds.
func (s *TokenService) Refresh(ctx context.Context, raw string) (TokenPair, *models.User, error) {
	claims, err := s.VerifyRefresh(ctx, raw)
	if err != nil {
		observability.RecordAuthEvent("refresh", "invalid")
		return TokenPair{}, nil, err
	}

	user, err := s.activeUser(ctx, claims)
	if err != nil {
		observability.RecordAuthEvent("refresh", "user_not_found")
		return TokenPair{}, nil, err
	}

	claimed, err := s.blacklist.Claim(ctx, claims.ID, user.ID, models.TokenTypeRefresh, claims.ExpiresAt.Time)
	if err != nil {
		return TokenPair{}, nil, models.NewInternalError(err)
	}
	if !claimed {
		middleware.Logger.WarnContext(ctx, "refresh token reuse rejected", slog.Uint64("user_id", uint64(user.ID)))
		observability.RecordAuthEvent("refresh", "reused")
		return TokenPair{}, nil, fmt.Errorf("%w: already rotated", ErrInvalidToken)
	}

	pair, err := s.Issue(user)
	if err != nil {
		return TokenPair{}, nil, models.NewInternalError(err)
	}
	observability.RecordAuthEvent("refresh", "success")
	return pair, user, nil
}

// Revoke blacklists a refresh token. Revoking an already revoked token
// succeeds.
func (s *TokenService) Revoke(ctx context.Context, raw string) error {
	return s.revoke(ctx, raw, models.TokenTypeRefresh)
}

// RevokeAccess blacklists an access token until it expires.
func (s *TokenService) RevokeAccess(ctx context.Context, raw string) error {
	return s.revoke(ctx, raw, models.TokenTypeAccess)
}

func (s *TokenService) revoke(ctx context.Context, raw, typ string) error {
	claims, err := s.parse(raw, typ)
	if err != nil {
		return err
	}
	userID, _ := claims.UserID()
	if _, err := s.blacklist.Claim(ctx, claims.ID, userID, typ, claims.ExpiresAt.Time); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (s *TokenService) activeUser(ctx context.Context, claims *Claims) (*models.User, error) {
	id, err := claims.UserID()
	if err != nil {
		return nil, ErrUserNotFound
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Code == models.CodeNotFound {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if !user.CanAuthenticate() {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// UserFromRefreshToken resolves the active user holding a refresh token.
func (s *TokenService) UserFromRefreshToken(ctx context.Context, raw string) (*models.User, error) {
	claims, err := s.VerifyRefresh(ctx, raw)
	if err != nil {
		return nil, err
	}
	return s.activeUser(ctx, claims)
}

// UserFromAccessToken resolves the active user holding an access token.
func (s *TokenService) UserFromAccessToken(ctx context.Context, raw string) (*models.User, error) {
	claims, err := s.VerifyAccess(ctx, raw)
	if err != nil {
		return nil, err
	}
	return s.activeUser(ctx, claims)
}

var _ middleware.IdentityResolver = (*TokenService)(nil)
