package app

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/keyxmakerx/briefly/internal/database"
	"github.com/keyxmakerx/briefly/internal/middleware"
	"github.com/keyxmakerx/briefly/internal/plugins/audit"
	"github.com/keyxmakerx/briefly/internal/plugins/auth"
	"github.com/keyxmakerx/briefly/internal/plugins/briefs"
	"github.com/keyxmakerx/briefly/internal/plugins/comments"
	"github.com/keyxmakerx/briefly/internal/plugins/smtp"
	"github.com/keyxmakerx/briefly/internal/templates/layouts"
)

// healthTimeout bounds each dependency ping in /healthz.
const healthTimeout = 2 * time.Second

// authRateWindow is the window for the register and login rate limits.
const authRateWindow = time.Minute

// RegisterRoutes wires every plugin and registers its routes. This is the
// single place where repositories, services and handlers are constructed.
func (a *App) RegisterRoutes() {
	e := a.Echo
	cfg := a.Config

	middleware.LayoutInjector = injectLayout

	tx := database.NewTxManager(a.DB)
	userRepo := auth.NewUserRepository(a.DB)

	// Audit recorder is shared by every plugin that changes state.
	auditService := audit.NewAuditService(audit.NewAuditRepository(a.DB))
	a.audit = auditService

	briefRepo := briefs.NewBriefRepository(a.DB)
	recipientRepo := briefs.NewRecipientRepository(a.DB)
	access := briefs.NewAccessResolver(briefRepo, recipientRepo)

	commentService := comments.NewCommentService(access, comments.NewCommentRepository(a.DB), tx, auditService)
	engine := briefs.NewStatusEngine(access, briefRepo, commentService, tx, auditService)

	var notifier briefs.ShareNotifier
	if cfg.Briefs.NotifyOnShare {
		mailer := briefs.NewMailNotifier(smtp.NewSMTPService(cfg.SMTP), cfg.BaseURL)
		a.notifier = mailer
		notifier = mailer
	}

	directory := briefs.NewRecipientDirectory(briefs.DirectoryDeps{
		Access:        access,
		Recipients:    recipientRepo,
		Briefs:        briefRepo,
		Users:         briefs.NewUserFinderAdapter(userRepo),
		Engine:        engine,
		Tx:            tx,
		Audit:         auditService,
		Notifier:      notifier,
		MaxRecipients: cfg.Briefs.MaxRecipients,
	})
	briefService := briefs.NewBriefService(access, briefRepo, tx, auditService, cfg.Briefs)

	// Registration binds pending shares to the new account.
	authService := auth.NewAuthService(userRepo, a.Redis, cfg.Auth.SessionTTL, directory)

	// --- Public ---

	e.GET("/healthz", healthHandler(map[string]func(context.Context) error{
		"mariadb": a.DB.PingContext,
		"redis": func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		},
	}))

	// --- Plugin routes ---

	auth.RegisterRoutes(e,
		auth.NewHandler(authService, int(cfg.Auth.SessionTTL.Seconds())),
		authService,
		middleware.RateLimit(a.Redis, "register", cfg.Auth.RegisterRateLimit, authRateWindow),
		middleware.RateLimit(a.Redis, "login", cfg.Auth.LoginRateLimit, authRateWindow),
	)
	briefs.RegisterRoutes(e, briefs.NewHandler(briefService, directory, engine), authService)
	comments.RegisterRoutes(e, comments.NewHandler(commentService), authService)
	audit.RegisterRoutes(e, audit.NewHandler(auditService), authService, briefs.RequireBriefOwner(access))
}

// injectLayout copies the request ID and signed-in user into the render
// context of templ pages.
func injectLayout(c echo.Context, ctx context.Context) context.Context {
	ctx = layouts.SetRequestID(ctx, middleware.RequestID(c))
	if session := auth.GetSession(c); session != nil {
		ctx = layouts.SetUserName(ctx, session.Name)
	}
	return ctx
}

// healthResponse is the /healthz body.
type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// healthHandler pings every dependency concurrently and answers 200 when all
// respond, 503 otherwise.
func healthHandler(checks map[string]func(context.Context) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
		defer cancel()

		var mu sync.Mutex
		resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(checks))}

		var g errgroup.Group
		for name, ping := range checks {
			name, ping := name, ping
			g.Go(func() error {
				err := ping(ctx)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					resp.Checks[name] = "unavailable"
					return err
				}
				resp.Checks[name] = "ok"
				return nil
			})
		}

		code := http.StatusOK
		if err := g.Wait(); err != nil {
			resp.Status = "unavailable"
			code = http.StatusServiceUnavailable
		}
		return c.JSON(code, resp)
	}
}
