package auth

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes sets up all auth-related routes under /api/v1/auth.
// Register and login are public and wrapped in the given rate limiters to
// slow down brute-force and credential stuffing attacks.
func RegisterRoutes(e *echo.Echo, h *Handler, service AuthService, registerLimit, loginLimit echo.MiddlewareFunc) {
	g := e.Group("/api/v1/auth")

	g.POST("/register", h.Register, registerLimit)
	g.POST("/login", h.Login, loginLimit)
	g.POST("/logout", h.Logout)

	g.GET("/me", h.Me, RequireAuth(service))
}
