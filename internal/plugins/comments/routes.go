package comments

import (
	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/briefly/internal/plugins/auth"
)

// RegisterRoutes sets up comment routes nested under a brief. Access to the
// brief is checked by the service.
func RegisterRoutes(e *echo.Echo, h *Handler, authSvc auth.AuthService) {
	g := e.Group("/api/v1/briefs/:id/comments", auth.RequireAuth(authSvc))

	g.GET("", h.List)
	g.POST("", h.Create)
	g.DELETE("/:cid", h.Delete)
}
