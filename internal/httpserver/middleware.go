package httpserver

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"complaintdesk/internal/auth"
	"complaintdesk/internal/models"
)

const userContextKey = "current_user"

type AuthMiddleware struct {
	Auth *auth.Service
}

func bearerToken(c echo.Context) string {
	header := strings.TrimSpace(c.Request().Header.Get(echo.HeaderAuthorization))
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		tok := bearerToken(c)
		if tok == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing or invalid Authorization header")
		}

		user, err := m.Auth.ResolvePrincipal(c.Request().Context(), tok)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}

		c.Set(userContextKey, user)
		return next(c)
	}
}

func (m *AuthMiddleware) RequireSuperuser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user := CurrentUser(c)
		if user == nil || !user.IsSuperuser {
			return echo.NewHTTPError(http.StatusForbidden, "superuser required")
		}
		return next(c)
	}
}

func CurrentUser(c echo.Context) *models.User {
	if u, ok := c.Get(userContextKey).(*models.User); ok {
		return u
	}
	return nil
}
