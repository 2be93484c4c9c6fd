package httpserver

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"complaintdesk/internal/complaint"
)

type ComplaintHTTP struct {
	Svc *complaint.Service
}

func (h *ComplaintHTTP) Create(c echo.Context) error {
	ctx := c.Request().Context()
	user := CurrentUser(c)

	var req struct {
		Type           string `json:"type" form:"type"`
		Description    string `json:"description" form:"description"`
		SupportingDocs string `json:"supporting_docs" form:"supporting_docs"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Type == "" || req.Description == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "type and description are required")
	}

	created, err := h.Svc.Create(ctx, user.ID, req.Type, req.Description, req.SupportingDocs)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *ComplaintHTTP) Get(c echo.Context) error {
	ctx := c.Request().Context()
	user := CurrentUser(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid complaint id")
	}

	found, err := h.Svc.Get(ctx, user, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, found)
}

func (h *ComplaintHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	user := CurrentUser(c)

	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("size"))
	offset, limit := paginate(page, size)
	status := c.QueryParam("status")

	items, total, err := h.Svc.ListByUser(ctx, user.ID, status, offset, limit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"total": total, "complaints": items})
}

func (h *ComplaintHTTP) CountByStatus(c echo.Context) error {
	ctx := c.Request().Context()
	user := CurrentUser(c)

	status := c.Param("status")
	n, err := h.Svc.CountByStatus(ctx, user.ID, status)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": status, "count": n})
}

func (h *ComplaintHTTP) Search(c echo.Context) error {
	ctx := c.Request().Context()

	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q is required")
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("size"))
	from, limit := paginate(page, size)

	total, items, err := h.Svc.Search(ctx, q, from, limit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"total": total, "complaints": items})
}

func (h *ComplaintHTTP) Reply(c echo.Context) error {
	ctx := c.Request().Context()
	user := CurrentUser(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid complaint id")
	}

	var req struct {
		Message string `json:"message" form:"message"`
	}
	if err := c.Bind(&req); err != nil || req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}

	fb, err := h.Svc.Reply(ctx, user, id, req.Message)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, fb)
}

func (h *ComplaintHTTP) Feedback(c echo.Context) error {
	ctx := c.Request().Context()
	user := CurrentUser(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid complaint id")
	}

	items, err := h.Svc.Feedback(ctx, user, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}
