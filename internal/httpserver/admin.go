package httpserver

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"complaintdesk/internal/auth"
	"complaintdesk/internal/complaint"
	"complaintdesk/internal/logging"
)

type AdminHTTP struct {
	Auth       *auth.Service
	Complaints *complaint.Service
}

func (h *AdminHTTP) ListComplaints(c echo.Context) error {
	ctx := c.Request().Context()

	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("size"))
	offset, limit := paginate(page, size)
	status := c.QueryParam("status")

	items, total, err := h.Complaints.ListAll(ctx, status, offset, limit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"total": total, "complaints": items})
}

func (h *AdminHTTP) UpdateComplaintStatus(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid complaint id")
	}

	var req struct {
		Status string `json:"status" form:"status"`
	}
	if err := c.Bind(&req); err != nil || req.Status == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "status is required")
	}

	updated, err := h.Complaints.UpdateStatus(ctx, id, req.Status)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *AdminHTTP) PurgeRevokedTokens(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin_purge_tokens")

	n, err := h.Auth.PurgeRevoked(ctx)
	if err != nil {
		return httpError(err)
	}

	l.Info("revoked_tokens_purged", "count", n)
	return c.JSON(http.StatusOK, echo.Map{"purged": n})
}

func (h *AdminHTTP) LogoutUserEverywhere(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}

	if err := h.Auth.LogoutAll(ctx, id, "Revoked by administrator"); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
