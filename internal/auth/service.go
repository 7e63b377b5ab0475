package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/veilwork/authd/internal/apperror"
	"github.com/veilwork/authd/internal/otp"
)

// TokenIssuer is the session-token contract the service depends on.
// Satisfied by *token.Issuer.
type TokenIssuer interface {
	Issue(email string) (string, error)
}

// OTPManager is the one-time-code contract the service depends on.
// Satisfied by *otp.Manager.
type OTPManager interface {
	Request(ctx context.Context, account string, purpose otp.Purpose) (string, error)
	Consume(ctx context.Context, account string, purpose otp.Purpose, code string) error
}

// Sender delivers one-time codes. Satisfied by mailer implementations.
type Sender interface {
	SendResetCode(ctx context.Context, to, code string) error
	SendVerifyCode(ctx context.Context, to, code string) error
}

// Service defines the business logic contract for authentication.
// Handlers call these methods -- they never touch the repository directly.
type Service interface {
	Login(ctx context.Context, email, password string) (token string, user *User, err error)
	Register(ctx context.Context, input RegisterInput) (*User, error)
	Profile(ctx context.Context, email string) (*User, error)

	SendResetOTP(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email, code, newPassword string) error
	SendVerifyOTP(ctx context.Context, email string) error
	VerifyEmail(ctx context.Context, email, code string) error
}

// service implements Service with argon2id hashing, JWT session tokens, and
// Redis-backed one-time codes.
type service struct {
	repo   UserRepository
	tokens TokenIssuer
	otps   OTPManager
	mail   Sender
}

// NewService creates a new auth service with the given collaborators.
func NewService(repo UserRepository, tokens TokenIssuer, otps OTPManager, mail Sender) Service {
	return &service{
		repo:   repo,
		tokens: tokens,
		otps:   otps,
		mail:   mail,
	}
}

// Login authenticates an account by email and password and issues a signed
// session token. Unknown emails and wrong passwords are indistinguishable to
// the caller; disabled accounts are rejected even with correct credentials.
func (s *service) Login(ctx context.Context, email, password string) (string, *User, error) {
	email = normalizeEmail(email)

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		// Don't reveal whether the email exists -- same error as a wrong
		// password.
		if isNotFound(err) {
			return "", nil, apperror.NewInvalidCredentials()
		}
		return "", nil, apperror.NewAuthenticationFailed(fmt.Errorf("finding user: %w", err))
	}

	if !verifyPassword(password, user.PasswordHash) {
		return "", nil, apperror.NewInvalidCredentials()
	}

	// Disabled accounts never receive a token, correct password or not.
	if !user.Enabled {
		return "", nil, apperror.NewAccountDisabled()
	}

	tok, err := s.tokens.Issue(user.Email)
	if err != nil {
		return "", nil, apperror.NewAuthenticationFailed(fmt.Errorf("issuing token: %w", err))
	}

	// Update the last login timestamp (fire-and-forget, non-critical).
	if err := s.repo.UpdateLastLogin(ctx, user.ID); err != nil {
		slog.Warn("failed to update last login",
			slog.String("user_id", user.ID),
			slog.Any("error", err),
		)
	}

	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return tok, user, nil
}

// Register creates a new account. It validates uniqueness, hashes the
// password with argon2id, generates a UUID, and persists the user.
func (s *service) Register(ctx context.Context, input RegisterInput) (*User, error) {
	email := normalizeEmail(input.Email)

	// Check if email is already taken before doing expensive hashing.
	exists, err := s.repo.EmailExists(ctx, email)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("checking email: %w", err))
	}
	if exists {
		return nil, apperror.NewConflict("an account with this email already exists")
	}

	hash, err := hashPassword(input.Password)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("hashing password: %w", err))
	}

	user := &User{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  strings.TrimSpace(input.DisplayName),
		PasswordHash: hash,
		Enabled:      true,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("creating user: %w", err))
	}

	slog.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return user, nil
}

// Profile returns the account for the given (already authenticated) email.
func (s *service) Profile(ctx context.Context, email string) (*User, error) {
	return s.repo.FindByEmail(ctx, normalizeEmail(email))
}

// SendResetOTP requests a password-reset code and delivers it. Unknown
// emails are a silent success so the endpoint can't be used to probe which
// accounts exist.
func (s *service) SendResetOTP(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			slog.Debug("reset otp requested for unknown email", slog.String("email", email))
			return nil
		}
		return apperror.NewInternal(fmt.Errorf("finding user: %w", err))
	}

	code, err := s.otps.Request(ctx, user.Email, otp.PurposeReset)
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("requesting reset otp: %w", err))
	}

	if err := s.mail.SendResetCode(ctx, user.Email, code); err != nil {
		return apperror.NewInternal(fmt.Errorf("delivering reset otp: %w", err))
	}

	return nil
}

// ResetPassword consumes a reset code and, on success, replaces the
// account's password hash. The code is gone after this call whether or not
// the subsequent update succeeds -- codes are strictly single-use.
func (s *service) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	email = normalizeEmail(email)

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("finding user: %w", err))
	}

	if err := s.otps.Consume(ctx, user.Email, otp.PurposeReset, code); err != nil {
		return apperror.NewInternal(fmt.Errorf("validating reset otp: %w", err))
	}

	hash, err := hashPassword(newPassword)
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("hashing password: %w", err))
	}

	if err := s.repo.UpdatePassword(ctx, user.ID, hash); err != nil {
		return apperror.NewInternal(fmt.Errorf("updating password: %w", err))
	}

	slog.Info("password reset", slog.String("user_id", user.ID))

	return nil
}

// SendVerifyOTP requests an email-verification code for the authenticated
// account and delivers it.
func (s *service) SendVerifyOTP(ctx context.Context, email string) error {
	user, err := s.repo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("finding user: %w", err))
	}

	code, err := s.otps.Request(ctx, user.Email, otp.PurposeVerifyEmail)
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("requesting verify otp: %w", err))
	}

	if err := s.mail.SendVerifyCode(ctx, user.Email, code); err != nil {
		return apperror.NewInternal(fmt.Errorf("delivering verify otp: %w", err))
	}

	return nil
}

// VerifyEmail consumes a verification code and marks the account's email as
// verified.
func (s *service) VerifyEmail(ctx context.Context, email, code string) error {
	user, err := s.repo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("finding user: %w", err))
	}

	if err := s.otps.Consume(ctx, user.Email, otp.PurposeVerifyEmail, code); err != nil {
		return apperror.NewInternal(fmt.Errorf("validating verify otp: %w", err))
	}

	if err := s.repo.MarkEmailVerified(ctx, user.ID); err != nil {
		return apperror.NewInternal(fmt.Errorf("marking email verified: %w", err))
	}

	slog.Info("email verified", slog.String("user_id", user.ID))

	return nil
}

// --- Helpers ---

// normalizeEmail lowercases and trims an email so lookups and OTP keys are
// case-insensitive.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// isNotFound reports whether err is a 404 AppError.
func isNotFound(err error) bool {
	var appErr *apperror.AppError
	return errors.As(err, &appErr) && appErr.Code == 404
}
