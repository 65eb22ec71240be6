package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"plume/internal/mail"
	"plume/internal/models"
	"plume/internal/repository"
	"plume/internal/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "test-secret-with-enough-entropy-0123456789"

// Low work factor keeps the suite fast; the format is unchanged.
const testIterations = 1000

func newTestHasher(t *testing.T) *PasswordHasher {
	t.Helper()
	h, err := NewPasswordHasher(testIterations)
	require.NoError(t, err)
	return h
}

func newTestTokenService(db *gorm.DB, blacklist repository.TokenBlacklist) *TokenService {
	if blacklist == nil {
		blacklist = repository.NewTokenBlacklist(db, nil)
	}
	return NewTokenService(testSecret, 15*time.Minute, 7*24*time.Hour, repository.NewUserRepository(db), blacklist)
}

// recordingMailer keeps sent messages and fails when err is set.
type recordingMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) messages() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mail.Message(nil), m.sent...)
}

type authFixture struct {
	db     *gorm.DB
	auth   *AuthService
	tokens *TokenService
	hasher *PasswordHasher
	mailer *recordingMailer
}

func newAuthFixture(t *testing.T, opts AuthOptions) *authFixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	hasher := newTestHasher(t)
	tokens := newTestTokenService(db, nil)
	mailer := &recordingMailer{}
	if opts.FrontendURL == "" {
		opts.FrontendURL = "http://localhost:3000"
	}
	auth := NewAuthService(
		repository.NewUserRepository(db),
		repository.NewResetTokenRepository(db),
		tokens,
		hasher,
		mailer,
		opts,
	)
	return &authFixture{db: db, auth: auth, tokens: tokens, hasher: hasher, mailer: mailer}
}

func newPostService(db *gorm.DB) *PostService {
	return NewPostService(
		repository.NewPostRepository(db),
		repository.NewTagRepository(db, nil),
		repository.NewReactionRepository(db),
		repository.NewUserRepository(db),
	)
}

// requireAppError asserts err is an *AppError with code and returns it.
func requireAppError(t *testing.T, err error, code string) *models.AppError {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected *models.AppError, got %T: %v", err, err)
	require.Equal(t, code, appErr.Code, appErr.Message)
	return appErr
}
