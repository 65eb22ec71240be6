package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log/slog"
	"time"

	"plume/internal/mail"
	"plume/internal/middleware"
	"plume/internal/models"
	"plume/internal/observability"
	"plume/internal/repository"
	"plume/internal/validation"
)

// ResetTokenTTL is how long an emailed reset link stays usable.
const ResetTokenTTL = time.Hour

// User-facing messages of the credential endpoints.
const (
	MsgInvalidCredentials = "Nom d'utilisateur ou mot de passe incorrect"
	MsgEmailNotFound      = "Email non trouvé"
	MsgResetTokenInvalid  = "Token invalide"
	MsgResetTokenExpired  = "Token expiré"
)

// RegisterInput is the registration payload.
type RegisterInput struct {
	Username string `json:"username" validate:"required,alphanumunicode,max=150"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginInput is the login payload.
type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ResetConfirmInput is the new password submitted with a reset token.
type ResetConfirmInput struct {
	Password string `json:"password" validate:"required,min=8"`
}

// AuthOptions tunes AuthService behavior from configuration.
type AuthOptions struct {
	FrontendURL string
	// ConcealUnknownEmail makes reset requests for unknown addresses succeed
	// silently instead of returning NotFound.
	ConcealUnknownEmail bool
}

// AuthService implements registration, login and password reset.
type AuthService struct {
	users  repository.UserRepository
	resets repository.ResetTokenRepository
	tokens *TokenService
	hasher *PasswordHasher
	mailer mail.Mailer
	opts   AuthOptions
	now    func() time.Time
}

func NewAuthService(
	users repository.UserRepository,
	resets repository.ResetTokenRepository,
	tokens *TokenService,
	hasher *PasswordHasher,
	mailer mail.Mailer,
	opts AuthOptions,
) *AuthService {
	return &AuthService{
		users:  users,
		resets: resets,
		tokens: tokens,
		hasher: hasher,
		mailer: mailer,
		opts:   opts,
		now:    time.Now,
	}
}

// registrationConflicts reports every unique field of in that is already
// taken, keyed by field name.
func (s *AuthService) registrationConflicts(ctx context.Context, in RegisterInput) (map[string]string, error) {
	conflicts := map[string]string{}
	byUsername, err := s.users.GetByUsername(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if byUsername != nil {
		conflicts["username"] = repository.MsgUsernameTaken
	}
	byEmail, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if byEmail != nil {
		conflicts["email"] = repository.MsgEmailTaken
	}
	return conflicts, nil
}

// Register creates an account and signs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, TokenPair, error) {
	if err := validation.Struct(in); err != nil {
		observability.RecordAuthEvent("register", "invalid")
		return nil, TokenPair{}, err
	}

	conflicts, err := s.registrationConflicts(ctx, in)
	if err != nil {
		return nil, TokenPair{}, err
	}
	if len(conflicts) > 0 {
		observability.RecordAuthEvent("register", "duplicate")
		msg := conflicts["username"]
		if msg == "" {
			msg = conflicts["email"]
		}
		return nil, TokenPair{}, &models.AppError{Code: models.CodeValidation, Message: msg, Fields: conflicts}
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, TokenPair{}, models.NewInternalError(err)
	}
	user := &models.User{
		Username: in.Username,
		Email:    in.Email,
		Password: hash,
		IsActive: true,
	}
	// A concurrent registration can still trip the unique indexes.
	if err := s.users.Create(ctx, user); err != nil {
		observability.RecordAuthEvent("register", "duplicate")
		return nil, TokenPair{}, err
	}

	pair, err := s.tokens.Issue(user)
	if err != nil {
		return nil, TokenPair{}, models.NewInternalError(err)
	}
	middleware.Logger.InfoContext(ctx, "user registered", slog.Uint64("user_id", uint64(user.ID)))
	observability.RecordAuthEvent("register", "success")
	return user, pair, nil
}

// Authenticate checks credentials. Unknown users, wrong passwords and
// inactive accounts produce the same error.
func (s *AuthService) Authenticate(ctx context.Context, in LoginInput) (*models.User, TokenPair, error) {
	if err := validation.Struct(in); err != nil {
		return nil, TokenPair{}, err
	}

	user, err := s.users.GetByUsername(ctx, in.Username)
	if err != nil {
		return nil, TokenPair{}, err
	}

	reason := ""
	switch {
	case user == nil:
		s.hasher.DummyCheck(in.Password)
		reason = "unknown_user"
	case !s.hasher.Check(in.Password, user.Password):
		reason = "wrong_password"
	case !user.CanAuthenticate():
		reason = "inactive"
	}
	if reason != "" {
		middleware.Logger.WarnContext(ctx, "login failed", slog.String("reason", reason))
		observability.RecordAuthEvent("login", reason)
		return nil, TokenPair{}, models.NewUnauthorizedError(MsgInvalidCredentials)
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID, s.now()); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to record last login", slog.String("error", err.Error()))
	}

	pair, err := s.tokens.Issue(user)
	if err != nil {
		return nil, TokenPair{}, models.NewInternalError(err)
	}
	observability.RecordAuthEvent("login", "success")
	return user, pair, nil
}

// RequestPasswordReset emails a single-use reset link to the account owning
// email.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	if err := validation.Var("email", email, "required,email"); err != nil {
		return err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		middleware.Logger.WarnContext(ctx, "password reset requested for unknown email")
		observability.RecordAuthEvent("password_reset", "unknown_email")
		if s.opts.ConcealUnknownEmail {
			return nil
		}
		return &models.AppError{Code: models.CodeNotFound, Message: MsgEmailNotFound}
	}

	raw, err := newResetToken()
	if err != nil {
		return models.NewInternalError(err)
	}
	now := s.now()
	token := &models.PasswordResetToken{
		UserID:    user.ID,
		Token:     raw,
		CreatedAt: now,
		ExpiresAt: now.Add(ResetTokenTTL),
	}
	if err := s.resets.Create(ctx, token); err != nil {
		return err
	}

	msg, err := mail.PasswordResetMessage(user.Email, user.Username, mail.ResetLink(s.opts.FrontendURL, raw))
	if err == nil {
		err = s.mailer.Send(ctx, msg)
	}
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "password reset email failed", slog.String("error", err.Error()))
		if delErr := s.resets.Delete(ctx, token.ID); delErr != nil {
			middleware.Logger.ErrorContext(ctx, "failed to discard unsent reset token", slog.String("error", delErr.Error()))
		}
		observability.RecordAuthEvent("password_reset", "mail_failed")
		return models.NewInternalError(err)
	}

	observability.RecordAuthEvent("password_reset", "sent")
	return nil
}

// ConfirmPasswordReset sets a new password using a reset token, which is
// consumed.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, raw string, in ResetConfirmInput) error {
	if err := validation.Struct(in); err != nil {
		return err
	}

	token, err := s.resets.GetByToken(ctx, raw)
	if err != nil {
		if isNotFound(err) {
			return models.NewValidationError(MsgResetTokenInvalid)
		}
		return err
	}
	if !token.IsValid(s.now()) {
		return models.NewValidationError(MsgResetTokenExpired)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return models.NewInternalError(err)
	}
	if err := s.resets.Consume(ctx, token, hash); err != nil {
		if isNotFound(err) {
			return models.NewValidationError(MsgResetTokenInvalid)
		}
		return err
	}

	middleware.Logger.InfoContext(ctx, "password reset completed", slog.Uint64("user_id", uint64(token.UserID)))
	observability.RecordAuthEvent("password_reset", "confirmed")
	return nil
}

func newResetToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func isNotFound(err error) bool {
	var appErr *models.AppError
	return errors.As(err, &appErr) && appErr.Code == models.CodeNotFound
}
