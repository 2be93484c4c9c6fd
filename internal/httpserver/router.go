package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"complaintdesk/internal/auth"
	"complaintdesk/internal/complaint"
	"complaintdesk/internal/verify"
)

type Deps struct {
	Auth       *auth.Service
	Verify     *verify.Service
	Complaints *complaint.Service
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	authHTTP := &AuthHTTP{Auth: d.Auth, Verify: d.Verify}
	complaintHTTP := &ComplaintHTTP{Svc: d.Complaints}
	adminHTTP := &AdminHTTP{Auth: d.Auth, Complaints: d.Complaints}

	mw := &AuthMiddleware{Auth: d.Auth}

	api := e.Group("/api")

	a := api.Group("/auth")
	a.POST("/token", authHTTP.Login)
	a.POST("/token/refresh", authHTTP.Refresh)
	a.POST("/register", authHTTP.RegisterUser)
	a.POST("/logout", authHTTP.Logout)
	a.POST("/forgot-password", authHTTP.ForgotPassword)
	a.POST("/reset-password", authHTTP.ResetPassword)
	a.POST("/send-email-verification", authHTTP.SendEmailVerification)
	a.POST("/verify-email", authHTTP.VerifyEmail)

	authed := a.Group("", mw.RequireAuth)
	authed.POST("/logout/all", authHTTP.LogoutAll)
	authed.POST("/change-password", authHTTP.ChangePassword)
	authed.GET("/me", authHTTP.Me)

	co := api.Group("/complaints", mw.RequireAuth)
	co.POST("", complaintHTTP.Create)
	co.GET("", complaintHTTP.List)
	co.GET("/search", complaintHTTP.Search)
	co.GET("/count/:status", complaintHTTP.CountByStatus)
	co.GET("/:id", complaintHTTP.Get)
	co.GET("/:id/feedback", complaintHTTP.Feedback)
	co.POST("/:id/feedback", complaintHTTP.Reply)

	admin := api.Group("/admin", mw.RequireAuth, mw.RequireSuperuser)
	admin.GET("/complaints", adminHTTP.ListComplaints)
	admin.PATCH("/complaints/:id/status", adminHTTP.UpdateComplaintStatus)
	admin.POST("/tokens/purge", adminHTTP.PurgeRevokedTokens)
	admin.POST("/users/:id/logout", adminHTTP.LogoutUserEverywhere)
}

// paginate mirrors the usual page/size query contract: 1-based page, size
// capped at 100.
func paginate(page, size int) (offset, limit int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 10
	}
	return (page - 1) * size, size
}
