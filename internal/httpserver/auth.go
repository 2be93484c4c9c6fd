package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"complaintdesk/internal/auth"
	"complaintdesk/internal/logging"
	"complaintdesk/internal/verify"
)

type AuthHTTP struct {
	Auth   *auth.Service
	Verify *verify.Service
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req struct {
		Email    string `json:"email" form:"email"`
		Password string `json:"password" form:"password"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	session, err := h.Auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, session)
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()

	tok := bearerToken(c)
	if tok == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing or invalid Authorization header")
	}

	grant, err := h.Auth.Refresh(ctx, tok)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, grant)
}

func (h *AuthHTTP) RegisterUser(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req struct {
		Username string `json:"username" form:"username"`
		Email    string `json:"email" form:"email"`
		Password string `json:"password" form:"password"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("register_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username, email and password are required")
	}

	user, err := h.Verify.Register(ctx, req.Username, req.Email, req.Password)
	if err != nil {
		// The user may already be persisted when only delivery failed.
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "OTP sent to your email",
		"user":    user,
	})
}

func (h *AuthHTTP) Logout(c echo.Context) error {
	ctx := c.Request().Context()

	tok := bearerToken(c)
	if tok == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing or invalid Authorization header")
	}

	if err := h.Auth.Logout(ctx, tok); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHTTP) LogoutAll(c echo.Context) error {
	ctx := c.Request().Context()
	user := CurrentUser(c)

	if err := h.Auth.LogoutAll(ctx, user.ID, "User logged out from all devices"); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHTTP) ForgotPassword(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		Email string `json:"email" form:"email"`
	}
	if err := c.Bind(&req); err != nil || req.Email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email is required")
	}

	if err := h.Verify.RequestPasswordReset(ctx, req.Email); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusAccepted, echo.Map{"message": "Reset link sent to your email"})
}

func (h *AuthHTTP) ResetPassword(c echo.Context) error {
	ctx := c.Request().Context()

	tok := bearerToken(c)
	if tok == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing or invalid Authorization header")
	}

	var req struct {
		Password string `json:"password" form:"password"`
	}
	if err := c.Bind(&req); err != nil || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "password is required")
	}

	if err := h.Verify.ConfirmPasswordReset(ctx, tok, req.Password); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusAccepted, echo.Map{"message": "Password updated successfully"})
}

func (h *AuthHTTP) SendEmailVerification(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		Email string `json:"email" form:"email"`
	}
	if err := c.Bind(&req); err != nil || req.Email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email is required")
	}

	if err := h.Verify.RequestEmailOtp(ctx, req.Email); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "OTP sent to your email"})
}

func (h *AuthHTTP) VerifyEmail(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		Email string `json:"email" form:"email"`
		Otp   string `json:"otp" form:"otp"`
	}
	if err := c.Bind(&req); err != nil || req.Email == "" || req.Otp == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and otp are required")
	}

	if err := h.Verify.ConfirmEmailOtp(ctx, req.Email, req.Otp); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusAccepted, echo.Map{"message": "Email verified"})
}

func (h *AuthHTTP) ChangePassword(c echo.Context) error {
	ctx := c.Request().Context()
	user := CurrentUser(c)

	var req struct {
		OldPassword string `json:"old_password" form:"old_password"`
		NewPassword string `json:"new_password" form:"new_password"`
	}
	if err := c.Bind(&req); err != nil || req.OldPassword == "" || req.NewPassword == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "old_password and new_password are required")
	}

	if err := h.Verify.ChangePassword(ctx, user, req.OldPassword, req.NewPassword); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Password updated successfully"})
}

func (h *AuthHTTP) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, CurrentUser(c))
}
