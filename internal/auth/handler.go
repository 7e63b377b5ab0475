package auth

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/veilwork/authd/internal/apperror"
)

// CookieName is the HTTP cookie carrying the session token.
const CookieName = "jwt"

// cookieMaxAge is the session cookie lifetime in seconds (1 day), matching
// the token TTL.
var cookieMaxAge = int((24 * time.Hour).Seconds())

// Handler handles HTTP requests for authentication. Handlers are thin: they
// bind the request, call the service, and render the response. No business
// logic lives here.
type Handler struct {
	service Service
	tokens  TokenVerifier

	// secureCookies adds the Secure attribute to the session cookie.
	// Disabled in development so plain-HTTP localhost keeps working.
	secureCookies bool
}

// NewHandler creates a new auth handler with the given service and verifier.
func NewHandler(service Service, tokens TokenVerifier, secureCookies bool) *Handler {
	return &Handler{
		service:       service,
		tokens:        tokens,
		secureCookies: secureCookies,
	}
}

// Login processes POST /login. On success the token is returned in the body
// and as the "jwt" cookie.
func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}
	if req.Email == "" || req.Password == "" {
		return apperror.NewInvalidCredentials()
	}

	tok, user, err := h.service.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	h.setSessionCookie(c, tok)

	return c.JSON(http.StatusOK, LoginResponse{
		Email: user.Email,
		Token: tok,
	})
}

// Logout clears the session cookie (POST /logout). Tokens are stateless, so
// there is nothing to revoke server-side.
func (h *Handler) Logout(c echo.Context) error {
	h.clearSessionCookie(c)
	return c.NoContent(http.StatusNoContent)
}

// IsAuthenticated reports whether the caller presented a valid session
// token (GET /is-authenticated). Always 200 with a boolean body -- this
// endpoint has no error paths.
func (h *Handler) IsAuthenticated(c echo.Context) error {
	tok := extractToken(c)
	if tok == "" {
		return c.JSON(http.StatusOK, false)
	}

	_, err := h.tokens.Verify(tok)
	return c.JSON(http.StatusOK, err == nil)
}

// Profile returns the authenticated account (GET /profile).
func (h *Handler) Profile(c echo.Context) error {
	user, err := h.service.Profile(c.Request().Context(), CurrentEmail(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// Register processes POST /register.
func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}
	if msg := validateRegisterRequest(&req); msg != "" {
		return apperror.NewBadRequest(msg)
	}

	user, err := h.service.Register(c.Request().Context(), RegisterInput{
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Password:    req.Password,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, user)
}

// SendResetOTP processes POST /send-reset-otp?email=. Always 200 on any
// valid request so the endpoint can't be used to probe for accounts.
func (h *Handler) SendResetOTP(c echo.Context) error {
	email := c.QueryParam("email")
	if email == "" {
		return apperror.NewMissingField()
	}

	if err := h.service.SendResetOTP(c.Request().Context(), email); err != nil {
		return err
	}

	return c.NoContent(http.StatusOK)
}

// ResetPassword processes POST /reset-password.
func (h *Handler) ResetPassword(c echo.Context) error {
	var req ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}
	if req.Email == "" || req.OTP == "" || req.NewPassword == "" {
		return apperror.NewMissingField()
	}

	if err := h.service.ResetPassword(c.Request().Context(), req.Email, req.OTP, req.NewPassword); err != nil {
		return err
	}

	return c.NoContent(http.StatusOK)
}

// SendVerifyOTP processes POST /send-otp. The target account comes from the
// verified request context, never from the body.
func (h *Handler) SendVerifyOTP(c echo.Context) error {
	if err := h.service.SendVerifyOTP(c.Request().Context(), CurrentEmail(c)); err != nil {
		return err
	}
	return c.NoContent(http.StatusOK)
}

// VerifyEmail processes POST /verify-otp. A missing otp field is a 400
// before the OTP manager is ever consulted.
func (h *Handler) VerifyEmail(c echo.Context) error {
	var req VerifyEmailRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}
	if req.OTP == nil || *req.OTP == "" {
		return apperror.NewMissingField()
	}

	if err := h.service.VerifyEmail(c.Request().Context(), CurrentEmail(c), *req.OTP); err != nil {
		return err
	}

	return c.NoContent(http.StatusOK)
}

// --- Cookie helpers ---

// setSessionCookie sets the session cookie on the response: HttpOnly (JS
// can't read it), Path=/, SameSite=Strict, max-age one day.
func (h *Handler) setSessionCookie(c echo.Context, token string) {
	c.SetCookie(&http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   cookieMaxAge,
	})
}

// clearSessionCookie removes the session cookie by setting MaxAge to -1.
func (h *Handler) clearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

// --- Validation helpers ---

// validateRegisterRequest performs basic server-side validation on the
// registration payload. Returns an error message or empty string.
func validateRegisterRequest(req *RegisterRequest) string {
	if req.Email == "" {
		return "email is required"
	}
	if req.DisplayName == "" {
		return "display name is required"
	}
	if len(req.DisplayName) > 100 {
		return "display name must be at most 100 characters"
	}
	if req.Password == "" {
		return "password is required"
	}
	if len(req.Password) < 8 {
		return "password must be at least 8 characters"
	}
	if len(req.Password) > 128 {
		return "password must be at most 128 characters"
	}
	return ""
}
