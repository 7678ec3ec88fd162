package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/briefly/internal/apperror"
)

// sessionCookieName is the HTTP cookie used to store the session token.
const sessionCookieName = "briefly_session"

// Handler handles HTTP requests for authentication (register, login,
// logout, me). Handlers are thin: they bind the request, call the service,
// and write the response. No business logic lives here.
type Handler struct {
	service   AuthService
	cookieTTL int
}

// NewHandler creates a new auth handler with the given service.
// cookieTTLSeconds should match the session TTL.
func NewHandler(service AuthService, cookieTTLSeconds int) *Handler {
	return &Handler{service: service, cookieTTL: cookieTTLSeconds}
}

// Register creates an account and logs it in (POST /api/v1/auth/register).
func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	ctx := c.Request().Context()
	if _, err := h.service.Register(ctx, RegisterInput{
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Password:    req.Password,
		Role:        Role(req.Role),
	}); err != nil {
		return err
	}

	// Auto-login after successful registration.
	token, user, err := h.service.Login(ctx, LoginInput{Email: req.Email, Password: req.Password})
	if err != nil {
		return err
	}

	h.setSessionCookie(c, token)
	return c.JSON(http.StatusCreated, AuthResponse{Token: token, User: user})
}

// Login authenticates and issues a session (POST /api/v1/auth/login).
func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	token, user, err := h.service.Login(c.Request().Context(), LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}

	h.setSessionCookie(c, token)
	return c.JSON(http.StatusOK, AuthResponse{Token: token, User: user})
}

// Logout destroys the session and clears the cookie (POST /api/v1/auth/logout).
func (h *Handler) Logout(c echo.Context) error {
	if token := getSessionToken(c); token != "" {
		// Ignore errors -- the cookie is cleared regardless.
		_ = h.service.DestroySession(c.Request().Context(), token)
	}

	clearSessionCookie(c)
	return c.NoContent(http.StatusNoContent)
}

// Me returns the authenticated account (GET /api/v1/auth/me).
func (h *Handler) Me(c echo.Context) error {
	userID := GetUserID(c)
	if userID == "" {
		return apperror.NewMissingContext()
	}

	user, err := h.service.GetUser(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// --- Cookie helpers ---

// setSessionCookie sets the session cookie on the response. The cookie is
// HttpOnly, Secure behind TLS, and SameSite=Strict since the API has no
// cross-site form flows.
func (h *Handler) setSessionCookie(c echo.Context, token string) {
	req := c.Request()
	c.SetCookie(&http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   req.TLS != nil || req.Header.Get("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteStrictMode,
		MaxAge:   h.cookieTTL,
	})
}

// clearSessionCookie removes the session cookie by setting MaxAge to -1.
func clearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
}
