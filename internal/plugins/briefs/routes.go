package briefs

import (
	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/briefly/internal/plugins/auth"
)

// RegisterRoutes sets up all brief routes under /api/v1/briefs. Every route
// requires a session; per-brief access is enforced by the services so
// callers without access get 404.
func RegisterRoutes(e *echo.Echo, h *Handler, authSvc auth.AuthService) {
	g := e.Group("/api/v1/briefs", auth.RequireAuth(authSvc))

	g.GET("", h.ListOwned)
	g.POST("", h.Create, auth.RequireRole(auth.RoleCreator))
	g.GET("/shared", h.ListShared)
	g.GET("/quota", h.Quota, auth.RequireRole(auth.RoleCreator))

	g.GET("/:id", h.Get)
	g.PATCH("/:id", h.Update)
	g.DELETE("/:id", h.Delete)

	g.GET("/:id/recipients", h.ListRecipients)
	g.POST("/:id/recipients", h.Share)
	g.DELETE("/:id/recipients/:rid", h.Revoke)

	g.POST("/:id/decision", h.Decide)
}
