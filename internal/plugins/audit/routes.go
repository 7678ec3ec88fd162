package audit

import (
	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/briefly/internal/plugins/auth"
)

// RegisterRoutes sets up audit routes. History is brief-scoped and owner
// only; requireOwner is supplied by the briefs plugin so this package does
// not depend on it.
func RegisterRoutes(e *echo.Echo, h *Handler, authSvc auth.AuthService, requireOwner echo.MiddlewareFunc) {
	g := e.Group("/api/v1/briefs/:id", auth.RequireAuth(authSvc))

	g.GET("/history", h.BriefHistory, requireOwner)
}
