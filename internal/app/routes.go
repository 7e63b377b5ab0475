package app

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/veilwork/authd/internal/auth"
	"github.com/veilwork/authd/internal/mailer"
	"github.com/veilwork/authd/internal/otp"
	"github.com/veilwork/authd/internal/token"
)

// RegisterRoutes wires the auth components together and registers all
// application routes. This is the single place where dependencies are
// assembled: repository over the DB pool, OTP manager over Redis, token
// issuer over the configured secret, and the mail sender for OTP delivery.
func (a *App) RegisterRoutes() {
	e := a.Echo

	// Health check endpoint for Docker health monitoring.
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	issuer := token.NewIssuer([]byte(a.Config.Auth.JWTSecret), a.Config.Auth.TokenTTL)
	otps := otp.NewManager(a.Redis, a.Config.Auth.OTPTTL)
	mail := mailer.New(a.Config.SMTP)

	repo := auth.NewUserRepository(a.DB)
	service := auth.NewService(repo, issuer, otps, mail)
	handler := auth.NewHandler(service, issuer, !a.Config.IsDevelopment())

	auth.RegisterRoutes(e, handler, issuer)
}
