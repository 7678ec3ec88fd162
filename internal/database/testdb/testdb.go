// Package testdb starts a shared MariaDB container for integration tests and
// applies the project's migrations to it. Tests that use it are skipped under
// `go test -short`.
package testdb

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/keyxmakerx/briefly/internal/config"
	"github.com/keyxmakerx/briefly/internal/database"
)

var (
	once      sync.Once
	sharedCfg config.DatabaseConfig
	initErr   error
)

// Setup starts the MariaDB container once per test binary, applies
// migrations, and returns a fresh pool with every table emptied.
func Setup(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping MariaDB integration test in -short mode")
	}

	once.Do(func() {
		sharedCfg, initErr = startContainerAndMigrate()
	})
	if initErr != nil {
		t.Fatalf("testdb: failed to set up MariaDB: %v", initErr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.NewMariaDB(ctx, sharedCfg)
	if err != nil {
		t.Fatalf("testdb: connecting: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	truncateAll(t, db)
	return db
}

func startContainerAndMigrate() (config.DatabaseConfig, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 180*time.Second)
	defer cancel()

	req := testcontainers.ContainerRequest{
		Image:        "mariadb:11",
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MARIADB_ROOT_PASSWORD": "root",
			"MARIADB_DATABASE":      "briefly_test",
			"MARIADB_USER":          "briefly",
			"MARIADB_PASSWORD":      "briefly",
		},
		WaitingFor: wait.ForLog("ready for connections").
			WithOccurrence(2).
			WithStartupTimeout(120 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return config.DatabaseConfig{}, fmt.Errorf("start container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return config.DatabaseConfig{}, fmt.Errorf("get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "3306")
	if err != nil {
		return config.DatabaseConfig{}, fmt.Errorf("get mapped port: %w", err)
	}

	cfg := config.DatabaseConfig{
		Host:            fmt.Sprintf("%s:%s", host, port.Port()),
		User:            "briefly",
		Password:        "briefly",
		Name:            "briefly_test",
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
	}

	db, err := database.NewMariaDB(ctx, cfg)
	if err != nil {
		return config.DatabaseConfig{}, err
	}
	defer db.Close()

	if err := database.RunMigrations(db, migrationsPath()); err != nil {
		return config.DatabaseConfig{}, err
	}
	return cfg, nil
}

// migrationsPath resolves db/migrations relative to this source file.
func migrationsPath() string {
	_, thisFile, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "db", "migrations")
}

// truncateAll empties every application table, children first.
func truncateAll(t *testing.T, db *sql.DB) {
	t.Helper()
	for _, table := range []string{"audit_log", "comments", "brief_recipients", "briefs", "users"} {
		if _, err := db.Exec("DELETE FROM " + table); err != nil {
			t.Fatalf("testdb: clearing %s: %v", table, err)
		}
	}
}

// InsertUser creates a bare user row and returns its id.
func InsertUser(t *testing.T, db *sql.DB, id, email, role string) string {
	t.Helper()
	_, err := db.Exec(
		`INSERT INTO users (id, email, display_name, password_hash, role, created_at)
		 VALUES (?, ?, ?, 'x', ?, ?)`,
		id, email, email, role, time.Now().UTC(),
	)
	if err != nil {
		t.Fatalf("testdb: inserting user %s: %v", email, err)
	}
	return id
}
