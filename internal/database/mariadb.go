// Package database provides connection setup for MariaDB and Redis, the
// migration runner, and the transaction manager used by repositories.
// Connections are created once at startup and shared across the
// application via dependency injection.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	// MariaDB driver -- imported for side effect of registering the driver.
	_ "github.com/go-sql-driver/mysql"

	"github.com/keyxmakerx/briefly/internal/config"
)

// connectAttempts is how many times startup pings are retried.
const connectAttempts = 10

// NewMariaDB creates a MariaDB connection pool configured with the settings
// from the provided config. It pings the database (with backoff, since the
// database container may still be starting) before returning.
func NewMariaDB(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening mariadb connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := pingWithRetry(ctx, "mariadb", db.PingContext); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// pingWithRetry calls ping until it succeeds, the attempts run out, or ctx
// is cancelled. Backoff doubles from one second up to thirty.
func pingWithRetry(ctx context.Context, name string, ping func(context.Context) error) error {
	backoff := time.Second
	var pingErr error

	for attempt := 1; attempt <= connectAttempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		pingErr = ping(pingCtx)
		cancel()

		if pingErr == nil {
			return nil
		}
		if attempt == connectAttempts {
			break
		}

		slog.Warn(name+" not ready, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", connectAttempts),
			slog.Duration("backoff", backoff),
			slog.Any("error", pingErr),
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("pinging %s: %w", name, ctx.Err())
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, 30*time.Second)
	}

	return fmt.Errorf("pinging %s after %d attempts: %w", name, connectAttempts, pingErr)
}
