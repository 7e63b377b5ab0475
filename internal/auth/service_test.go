package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/veilwork/authd/internal/apperror"
	"github.com/veilwork/authd/internal/otp"
)

// --- Mock Repository ---

// mockUserRepo implements UserRepository for testing.
type mockUserRepo struct {
	createFn            func(ctx context.Context, user *User) error
	findByEmailFn       func(ctx context.Context, email string) (*User, error)
	emailExistsFn       func(ctx context.Context, email string) (bool, error)
	updateLastLoginFn   func(ctx context.Context, id string) error
	updatePasswordFn    func(ctx context.Context, id, passwordHash string) error
	markEmailVerifiedFn func(ctx context.Context, id string) error
}

func (m *mockUserRepo) Create(ctx context.Context, user *User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, apperror.NewNotFound("user not found")
}

func (m *mockUserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	if m.emailExistsFn != nil {
		return m.emailExistsFn(ctx, email)
	}
	return false, nil
}

func (m *mockUserRepo) UpdateLastLogin(ctx context.Context, id string) error {
	if m.updateLastLoginFn != nil {
		return m.updateLastLoginFn(ctx, id)
	}
	return nil
}

func (m *mockUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if m.updatePasswordFn != nil {
		return m.updatePasswordFn(ctx, id, passwordHash)
	}
	return nil
}

func (m *mockUserRepo) MarkEmailVerified(ctx context.Context, id string) error {
	if m.markEmailVerifiedFn != nil {
		return m.markEmailVerifiedFn(ctx, id)
	}
	return nil
}

// --- Mock Collaborators ---

// stubIssuer implements TokenIssuer with a canned token.
type stubIssuer struct {
	token string
	err   error
}

func (s *stubIssuer) Issue(string) (string, error) {
	return s.token, s.err
}

// mockOTP implements OTPManager.
type mockOTP struct {
	requestFn func(ctx context.Context, account string, purpose otp.Purpose) (string, error)
	consumeFn func(ctx context.Context, account string, purpose otp.Purpose, code string) error
}

func (m *mockOTP) Request(ctx context.Context, account string, purpose otp.Purpose) (string, error) {
	if m.requestFn != nil {
		return m.requestFn(ctx, account, purpose)
	}
	return "123456", nil
}

func (m *mockOTP) Consume(ctx context.Context, account string, purpose otp.Purpose, code string) error {
	if m.consumeFn != nil {
		return m.consumeFn(ctx, account, purpose, code)
	}
	return nil
}

// recordingSender implements Sender and captures delivered codes.
type recordingSender struct {
	resetTo, resetCode   string
	verifyTo, verifyCode string
	err                  error
}

func (r *recordingSender) SendResetCode(_ context.Context, to, code string) error {
	r.resetTo, r.resetCode = to, code
	return r.err
}

func (r *recordingSender) SendVerifyCode(_ context.Context, to, code string) error {
	r.verifyTo, r.verifyCode = to, code
	return r.err
}

// --- Fixtures ---

// testUser builds an enabled user with the given password hashed the same
// way the service hashes it.
func testUser(t *testing.T, email, password string) *User {
	t.Helper()
	hash, err := hashPassword(password)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	return &User{
		ID:           "user-1",
		Email:        email,
		DisplayName:  "Test User",
		PasswordHash: hash,
		Enabled:      true,
	}
}

// appErrType extracts the AppError type string, or "" for other errors.
func appErrType(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// --- Login ---

func TestLogin_Success(t *testing.T) {
	user := testUser(t, "alice@example.com", "correct horse")
	repo := &mockUserRepo{
		findByEmailFn: func(_ context.Context, email string) (*User, error) {
			if email != "alice@example.com" {
				t.Errorf("lookup email = %q, want normalized lowercase", email)
			}
			return user, nil
		},
	}

	svc := NewService(repo, &stubIssuer{token: "signed-token"}, &mockOTP{}, &recordingSender{})

	tok, got, err := svc.Login(context.Background(), "Alice@Example.COM", "correct horse")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if tok != "signed-token" {
		t.Errorf("token = %q, want %q", tok, "signed-token")
	}
	if got.Email != "alice@example.com" {
		t.Errorf("user email = %q", got.Email)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	user := testUser(t, "alice@example.com", "correct horse")
	repo := &mockUserRepo{
		findByEmailFn: func(context.Context, string) (*User, error) { return user, nil },
	}

	svc := NewService(repo, &stubIssuer{token: "signed-token"}, &mockOTP{}, &recordingSender{})

	_, _, err := svc.Login(context.Background(), "alice@example.com", "wrong")
	if appErrType(err) != "invalid_credentials" {
		t.Fatalf("err = %v, want invalid_credentials", err)
	}
}

func TestLogin_UnknownEmailIndistinguishable(t *testing.T) {
	user := testUser(t, "alice@example.com", "correct horse")
	repo := &mockUserRepo{
		findByEmailFn: func(_ context.Context, email string) (*User, error) {
			if email == "alice@example.com" {
				return user, nil
			}
			return nil, apperror.NewNotFound("user not found")
		},
	}

	svc := NewService(repo, &stubIssuer{token: "t"}, &mockOTP{}, &recordingSender{})

	_, _, errUnknown := svc.Login(context.Background(), "nobody@example.com", "whatever")
	_, _, errWrong := svc.Login(context.Background(), "alice@example.com", "wrong")

	// Unknown email and wrong password must be the same error, message
	// included, so clients can't probe which accounts exist.
	if errUnknown == nil || errWrong == nil {
		t.Fatal("expected errors for both cases")
	}
	if errUnknown.Error() != errWrong.Error() {
		t.Errorf("unknown-email error %q differs from wrong-password error %q",
			errUnknown.Error(), errWrong.Error())
	}
}

func TestLogin_DisabledAccount(t *testing.T) {
	user := testUser(t, "alice@example.com", "correct horse")
	user.Enabled = false
	repo := &mockUserRepo{
		findByEmailFn: func(context.Context, string) (*User, error) { return user, nil },
	}

	svc := NewService(repo, &stubIssuer{token: "t"}, &mockOTP{}, &recordingSender{})

	// Correct password, disabled account: no token, disabled-specific error.
	_, _, err := svc.Login(context.Background(), "alice@example.com", "correct horse")
	if appErrType(err) != "account_disabled" {
		t.Fatalf("err = %v, want account_disabled", err)
	}
}

func TestLogin_RepositoryFailure(t *testing.T) {
	repo := &mockUserRepo{
		findByEmailFn: func(context.Context, string) (*User, error) {
			return nil, errors.New("connection refused")
		},
	}

	svc := NewService(repo, &stubIssuer{token: "t"}, &mockOTP{}, &recordingSender{})

	_, _, err := svc.Login(context.Background(), "alice@example.com", "pw")
	if appErrType(err) != "authentication_failed" {
		t.Fatalf("err = %v, want authentication_failed", err)
	}
}

// --- Register ---

func TestRegister_Success(t *testing.T) {
	var created *User
	repo := &mockUserRepo{
		createFn: func(_ context.Context, user *User) error {
			created = user
			return nil
		},
	}

	svc := NewService(repo, &stubIssuer{token: "t"}, &mockOTP{}, &recordingSender{})

	user, err := svc.Register(context.Background(), RegisterInput{
		Email:       "Bob@Example.com",
		DisplayName: "  Bob  ",
		Password:    "hunter2hunter2",
	})
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if created == nil {
		t.Fatal("repository Create was not called")
	}
	if user.Email != "bob@example.com" {
		t.Errorf("email = %q, want normalized", user.Email)
	}
	if user.DisplayName != "Bob" {
		t.Errorf("display name = %q, want trimmed", user.DisplayName)
	}
	if user.ID == "" {
		t.Error("expected generated user ID")
	}
	if !user.Enabled {
		t.Error("new accounts should be enabled")
	}
	if user.EmailVerified {
		t.Error("new accounts should start unverified")
	}
	if !verifyPassword("hunter2hunter2", user.PasswordHash) {
		t.Error("stored hash does not verify the password")
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	repo := &mockUserRepo{
		emailExistsFn: func(context.Context, string) (bool, error) { return true, nil },
	}

	svc := NewService(repo, &stubIssuer{token: "t"}, &mockOTP{}, &recordingSender{})

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:       "bob@example.com",
		DisplayName: "Bob",
		Password:    "hunter2hunter2",
	})
	if appErrType(err) != "conflict" {
		t.Fatalf("err = %v, want conflict", err)
	}
}

// --- Password Reset ---

func TestSendResetOTP_DeliversCode(t *testing.T) {
	user := testUser(t, "alice@example.com", "pw")
	repo := &mockUserRepo{
		findByEmailFn: func(context.Context, string) (*User, error) { return user, nil },
	}
	otps := &mockOTP{
		requestFn: func(_ context.Context, account string, purpose otp.Purpose) (string, error) {
			if purpose != otp.PurposeReset {
				t.Errorf("purpose = %q, want reset", purpose)
			}
			return "424242", nil
		},
	}
	sender := &recordingSender{}

	svc := NewService(repo, &stubIssuer{token: "t"}, otps, sender)

	if err := svc.SendResetOTP(context.Background(), "alice@example.com"); err != nil {
		t.Fatalf("SendResetOTP error: %v", err)
	}
	if sender.resetTo != "alice@example.com" || sender.resetCode != "424242" {
		t.Errorf("delivered (%q, %q), want the requested code to the account", sender.resetTo, sender.resetCode)
	}
}

func TestSendResetOTP_UnknownEmailSilentSuccess(t *testing.T) {
	requested := false
	otps := &mockOTP{
		requestFn: func(context.Context, string, otp.Purpose) (string, error) {
			requested = true
			return "111111", nil
		},
	}
	sender := &recordingSender{}

	svc := NewService(&mockUserRepo{}, &stubIssuer{token: "t"}, otps, sender)

	// Unknown email: 200-equivalent silent success, no code issued or sent.
	if err := svc.SendResetOTP(context.Background(), "nobody@example.com"); err != nil {
		t.Fatalf("SendResetOTP error: %v", err)
	}
	if requested {
		t.Error("OTP was requested for an unknown account")
	}
	if sender.resetCode != "" {
		t.Error("a code was delivered for an unknown account")
	}
}

func TestResetPassword_Success(t *testing.T) {
	user := testUser(t, "alice@example.com", "old password")
	var newHash string
	repo := &mockUserRepo{
		findByEmailFn: func(context.Context, string) (*User, error) { return user, nil },
		updatePasswordFn: func(_ context.Context, id, hash string) error {
			if id != user.ID {
				t.Errorf("updated user %q, want %q", id, user.ID)
			}
			newHash = hash
			return nil
		},
	}

	svc := NewService(repo, &stubIssuer{token: "t"}, &mockOTP{}, &recordingSender{})

	if err := svc.ResetPassword(context.Background(), "alice@example.com", "123456", "new password"); err != nil {
		t.Fatalf("ResetPassword error: %v", err)
	}
	if !verifyPassword("new password", newHash) {
		t.Error("stored hash does not verify the new password")
	}
}

func TestResetPassword_BadCode(t *testing.T) {
	user := testUser(t, "alice@example.com", "old password")
	updated := false
	repo := &mockUserRepo{
		findByEmailFn: func(context.Context, string) (*User, error) { return user, nil },
		updatePasswordFn: func(context.Context, string, string) error {
			updated = true
			return nil
		},
	}
	otps := &mockOTP{
		consumeFn: func(context.Context, string, otp.Purpose, string) error {
			return otp.ErrMismatch
		},
	}

	svc := NewService(repo, &stubIssuer{token: "t"}, otps, &recordingSender{})

	err := svc.ResetPassword(context.Background(), "alice@example.com", "000000", "new password")
	if appErrType(err) != "internal_error" {
		t.Fatalf("err = %v, want internal_error", err)
	}
	if updated {
		t.Error("password was updated despite a bad code")
	}
}

// --- Email Verification ---

func TestVerifyEmail_Success(t *testing.T) {
	user := testUser(t, "alice@example.com", "pw")
	verified := false
	repo := &mockUserRepo{
		findByEmailFn: func(context.Context, string) (*User, error) { return user, nil },
		markEmailVerifiedFn: func(_ context.Context, id string) error {
			if id != user.ID {
				t.Errorf("verified user %q, want %q", id, user.ID)
			}
			verified = true
			return nil
		},
	}
	otps := &mockOTP{
		consumeFn: func(_ context.Context, account string, purpose otp.Purpose, code string) error {
			if purpose != otp.PurposeVerifyEmail {
				t.Errorf("purpose = %q, want verify-email", purpose)
			}
			if code != "654321" {
				t.Errorf("code = %q", code)
			}
			return nil
		},
	}

	svc := NewService(repo, &stubIssuer{token: "t"}, otps, &recordingSender{})

	if err := svc.VerifyEmail(context.Background(), "alice@example.com", "654321"); err != nil {
		t.Fatalf("VerifyEmail error: %v", err)
	}
	if !verified {
		t.Error("account was not marked verified")
	}
}

func TestVerifyEmail_BadCode(t *testing.T) {
	user := testUser(t, "alice@example.com", "pw")
	verified := false
	repo := &mockUserRepo{
		findByEmailFn: func(context.Context, string) (*User, error) { return user, nil },
		markEmailVerifiedFn: func(context.Context, string) error {
			verified = true
			return nil
		},
	}
	otps := &mockOTP{
		consumeFn: func(context.Context, string, otp.Purpose, string) error {
			return otp.ErrNotFound
		},
	}

	svc := NewService(repo, &stubIssuer{token: "t"}, otps, &recordingSender{})

	err := svc.VerifyEmail(context.Background(), "alice@example.com", "999999")
	if appErrType(err) != "internal_error" {
		t.Fatalf("err = %v, want internal_error", err)
	}
	if verified {
		t.Error("account was verified despite a bad code")
	}
}

func TestSendVerifyOTP_DeliversCode(t *testing.T) {
	user := testUser(t, "alice@example.com", "pw")
	repo := &mockUserRepo{
		findByEmailFn: func(context.Context, string) (*User, error) { return user, nil },
	}
	otps := &mockOTP{
		requestFn: func(_ context.Context, account string, purpose otp.Purpose) (string, error) {
			if purpose != otp.PurposeVerifyEmail {
				t.Errorf("purpose = %q, want verify-email", purpose)
			}
			return "777777", nil
		},
	}
	sender := &recordingSender{}

	svc := NewService(repo, &stubIssuer{token: "t"}, otps, sender)

	if err := svc.SendVerifyOTP(context.Background(), "alice@example.com"); err != nil {
		t.Fatalf("SendVerifyOTP error: %v", err)
	}
	if sender.verifyTo != "alice@example.com" || sender.verifyCode != "777777" {
		t.Errorf("delivered (%q, %q)", sender.verifyTo, sender.verifyCode)
	}
}
