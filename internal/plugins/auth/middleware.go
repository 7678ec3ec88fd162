package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/briefly/internal/apperror"
)

// Context keys for storing session data in Echo context. Other plugins
// use the exported getter functions below to access the authenticated
// user's information.
const (
	contextKeySession = "auth_session"
	contextKeyUserID  = "auth_user_id"
)

// RequireAuth returns middleware that validates the session token (cookie or
// Bearer header) and injects session data into the request context.
// Unauthenticated requests get a 401.
func RequireAuth(service AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := getSessionToken(c)
			if token == "" {
				return apperror.NewUnauthorized("authentication required")
			}

			session, err := service.ValidateSession(c.Request().Context(), token)
			if err != nil {
				if apperror.SafeCode(err) == http.StatusUnauthorized {
					clearSessionCookie(c)
				}
				return err
			}

			SetSession(c, session)

			return next(c)
		}
	}
}

// RequireRole returns middleware that only lets accounts with the given role
// through. Must run after RequireAuth.
func RequireRole(role Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			session := GetSession(c)
			if session == nil {
				return apperror.NewMissingContext()
			}
			if session.Role != role {
				return apperror.NewForbidden("only " + string(role) + " accounts can do this")
			}
			return next(c)
		}
	}
}

// --- Exported getters for other plugins ---

// SetSession stores an authenticated session on the Echo context.
func SetSession(c echo.Context, session *Session) {
	c.Set(contextKeySession, session)
	c.Set(contextKeyUserID, session.UserID)
}

// GetSession retrieves the authenticated session from the Echo context.
// Returns nil if the request is not authenticated (middleware not applied).
func GetSession(c echo.Context) *Session {
	session, ok := c.Get(contextKeySession).(*Session)
	if !ok {
		return nil
	}
	return session
}

// GetUserID retrieves the authenticated user's ID from the Echo context.
// Returns empty string if the request is not authenticated.
func GetUserID(c echo.Context) string {
	id, ok := c.Get(contextKeyUserID).(string)
	if !ok {
		return ""
	}
	return id
}

// getSessionToken reads the session token from the Authorization header,
// falling back to the session cookie.
func getSessionToken(c echo.Context) string {
	if h := c.Request().Header.Get(echo.HeaderAuthorization); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	cookie, err := c.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}
	return cookie.Value
}
