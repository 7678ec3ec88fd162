// Package app is the application bootstrap and dependency injection root.
// It holds the shared infrastructure (DB pool, Redis client, Echo instance)
// and wires the plugins together.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/keyxmakerx/briefly/internal/apperror"
	"github.com/keyxmakerx/briefly/internal/config"
	"github.com/keyxmakerx/briefly/internal/middleware"
	"github.com/keyxmakerx/briefly/internal/plugins/audit"
	"github.com/keyxmakerx/briefly/internal/plugins/briefs"
	"github.com/keyxmakerx/briefly/internal/templates/pages"
)

// maxBodySize caps request bodies. The largest legitimate body is a brief
// with rich-text content.
const maxBodySize = "2M"

// App holds all shared dependencies and the Echo HTTP server instance.
// Created once at startup in main.go.
type App struct {
	Config *config.Config
	DB     *sql.DB
	Redis  *redis.Client
	Echo   *echo.Echo

	// Kept so Shutdown can drain background audit writes and share
	// notifications. notifier is nil when notifications are disabled.
	audit    audit.AuditService
	notifier *briefs.MailNotifier
}

// New creates an App and configures the Echo server with global middleware
// and error handling. Routes are added by RegisterRoutes.
func New(cfg *config.Config, db *sql.DB, rdb *redis.Client) *App {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	middleware.TrustedProxies(e, cfg.TrustedProxies)

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
		Echo:   e,
	}

	app.setupMiddleware()
	e.HTTPErrorHandler = app.errorHandler

	return app
}

// setupMiddleware registers global middleware. The request ID comes first so
// every later log line can carry it; recovery sits inside the logger so
// panics are logged with their final status.
func (a *App) setupMiddleware() {
	a.Echo.Use(echomw.RequestID())
	a.Echo.Use(middleware.RequestLogger())
	a.Echo.Use(middleware.Recovery())
	a.Echo.Use(echomw.BodyLimit(maxBodySize))
	a.Echo.Use(middleware.SecurityHeaders())
	a.Echo.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:   a.Config.CORSOrigins,
		AllowCredentials: true,
	}))
}

// errorResponse is the JSON error body for API requests.
type errorResponse struct {
	Error   string                `json:"error"`
	Message string                `json:"message"`
	Fields  []apperror.FieldError `json:"fields,omitempty"`
}

// errorHandler maps domain errors to HTTP responses: JSON for API paths and
// the HTML error page for everything else.
func (a *App) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	body := errorResponse{
		Error:   apperror.TypeInternal,
		Message: defaultErrorMessage(code),
	}

	var appErr *apperror.AppError
	var echoErr *echo.HTTPError
	switch {
	case errors.As(err, &appErr):
		code = appErr.Code
		body = errorResponse{Error: appErr.Type, Message: appErr.Message, Fields: appErr.Fields}

		if appErr.Internal != nil {
			slog.Error("internal error",
				slog.String("type", appErr.Type),
				slog.String("message", appErr.Message),
				slog.Any("internal", appErr.Internal),
				slog.String("path", c.Request().URL.Path),
				slog.String("request_id", middleware.RequestID(c)),
			)
		}
	case errors.As(err, &echoErr):
		code = echoErr.Code
		body = errorResponse{Error: echoErrorType(code), Message: defaultErrorMessage(code)}
		if msg, ok := echoErr.Message.(string); ok && msg != "" {
			body.Message = msg
		}
	default:
		slog.Error("unhandled error",
			slog.Any("error", err),
			slog.String("path", c.Request().URL.Path),
			slog.String("request_id", middleware.RequestID(c)),
		)
	}

	var writeErr error
	switch {
	case c.Request().Method == http.MethodHead:
		writeErr = c.NoContent(code)
	case middleware.IsAPI(c):
		writeErr = c.JSON(code, body)
	default:
		writeErr = middleware.Render(c, code, pages.ErrorPage(code, body.Message))
	}
	if writeErr != nil {
		slog.Warn("failed to write error response", slog.Any("error", writeErr))
	}
}

// echoErrorType maps router-level HTTP errors onto the machine types clients
// already switch on.
func echoErrorType(code int) string {
	switch code {
	case http.StatusNotFound:
		return apperror.TypeNotFound
	case http.StatusUnauthorized:
		return apperror.TypeUnauthorized
	case http.StatusForbidden:
		return apperror.TypeForbidden
	case http.StatusTooManyRequests:
		return apperror.TypeRateLimited
	case http.StatusInternalServerError:
		return apperror.TypeInternal
	default:
		return apperror.TypeBadRequest
	}
}

// defaultErrorMessage returns a user-friendly message for common HTTP status
// codes when no specific message was provided by the error.
func defaultErrorMessage(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "The request was invalid or cannot be processed."
	case http.StatusUnauthorized:
		return "You need to log in to access this resource."
	case http.StatusForbidden:
		return "You don't have permission to access this resource."
	case http.StatusNotFound:
		return "The page you're looking for doesn't exist."
	case http.StatusMethodNotAllowed:
		return "This action is not allowed."
	case http.StatusRequestEntityTooLarge:
		return "The request body is too large."
	case http.StatusTooManyRequests:
		return "You're making too many requests. Please slow down."
	case http.StatusServiceUnavailable:
		return "The service is temporarily unavailable. Please try again later."
	default:
		return "An unexpected error occurred."
	}
}

// Start begins listening for HTTP requests on the configured port. It
// returns http.ErrServerClosed after Shutdown.
func (a *App) Start() error {
	addr := fmt.Sprintf(":%d", a.Config.Port)
	slog.Info("starting Briefly server",
		slog.String("addr", addr),
		slog.String("env", a.Config.Env),
	)
	return a.Echo.Start(addr)
}

// Shutdown stops accepting requests, drains in-flight ones, then waits for
// pending share notifications and audit writes.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.Echo.Shutdown(ctx)
	if a.notifier != nil {
		err = errors.Join(err, a.notifier.Wait(ctx))
	}
	if a.audit != nil {
		err = errors.Join(err, a.audit.Wait(ctx))
	}
	return err
}
