// Package config handles loading application configuration. All config is
// centralized here so no other package reads env vars directly. Values come
// from an optional YAML file and environment variables, with sensible
// defaults for development.
package config

import (
	"net"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Config holds all application configuration. Populated at startup and
// passed to other packages via dependency injection.
type Config struct {
	// Env is the runtime environment: "development" or "production".
	Env string `yaml:"env" env:"ENV" env-default:"development"`

	// Port is the HTTP listen port.
	Port int `yaml:"port" env:"PORT" env-default:"8080"`

	// BaseURL is the public-facing URL used for links in notification emails.
	BaseURL string `yaml:"base_url" env:"BASE_URL" env-default:"http://localhost:8080"`

	// MigrationsPath is the directory holding golang-migrate SQL files.
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"db/migrations"`

	// CORSOrigins lists browser origins allowed to call the API with
	// credentials. Empty means same-origin only.
	CORSOrigins []string `yaml:"cors_origins" env:"CORS_ORIGINS" env-separator:","`

	// TrustedProxies lists CIDRs whose X-Forwarded-For / X-Real-IP headers
	// are believed when resolving the client IP.
	TrustedProxies []string `yaml:"trusted_proxies" env:"TRUSTED_PROXIES" env-separator:"," env-default:"127.0.0.0/8,10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,fd00::/8"`

	// ShutdownTimeout bounds how long in-flight requests get to drain.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"10s"`

	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Briefs   BriefsConfig   `yaml:"briefs"`
	SMTP     SMTPConfig     `yaml:"smtp"`
}

// LogConfig controls slog output.
type LogConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

// DatabaseConfig holds MariaDB connection parameters. Individual fields
// (Host, User, Password, Name) are read from separate env vars so
// container orchestrators can manage each independently. If DATABASE_URL
// is set, it takes precedence over the individual fields.
type DatabaseConfig struct {
	// Host is the MariaDB address in host:port format. If no port is
	// specified, 3306 is appended automatically.
	Host     string `yaml:"host"     env:"DB_HOST"     env-default:"localhost:3306"`
	User     string `yaml:"user"     env:"DB_USER"     env-default:"briefly"`
	Password string `yaml:"password" env:"DB_PASSWORD" env-default:"briefly"`
	Name     string `yaml:"name"     env:"DB_NAME"     env-default:"briefly"`

	// URL bypasses the individual fields when set.
	URL string `yaml:"url" env:"DATABASE_URL"`

	MaxOpenConns    int           `yaml:"max_open_conns"    env:"DB_MAX_OPEN_CONNS"    env-default:"25"`
	MaxIdleConns    int           `yaml:"max_idle_conns"    env:"DB_MAX_IDLE_CONNS"    env-default:"5"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME" env-default:"5m"`
}

// DSN returns the go-sql-driver/mysql connection string. If DATABASE_URL was
// set, it is returned as-is. Otherwise the DSN is built from the individual
// fields using the driver's Config.FormatDSN() to safely handle special
// characters in passwords.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	cfg := mysql.NewConfig()
	cfg.User = d.User
	cfg.Passwd = d.Password
	cfg.Net = "tcp"
	cfg.Addr = ensurePort(d.Host, "3306")
	cfg.DBName = d.Name
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	// RowsAffected reports matched rows, not changed rows.
	cfg.ClientFoundRows = true
	return cfg.FormatDSN()
}

// ensurePort appends the default port if the host string doesn't include one.
// Allows DB_HOST=mydb (gets :3306) or DB_HOST=mydb:3307 (as-is).
func ensurePort(host, defaultPort string) string {
	_, _, err := net.SplitHostPort(host)
	if err != nil {
		return net.JoinHostPort(host, defaultPort)
	}
	return host
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	// URL is the Redis connection URL (e.g., "redis://localhost:6379").
	URL string `yaml:"url" env:"REDIS_URL" env-default:"redis://localhost:6379"`
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	// SecretKey seeds cookie signing. Must be 32+ characters in production.
	SecretKey string `yaml:"secret_key" env:"SECRET_KEY"`

	// SessionTTL is how long sessions last before expiring.
	SessionTTL time.Duration `yaml:"session_ttl" env:"SESSION_TTL" env-default:"720h"`

	// LoginRateLimit is the number of login attempts allowed per IP per minute.
	LoginRateLimit int `yaml:"login_rate_limit" env:"LOGIN_RATE_LIMIT" env-default:"10"`

	// RegisterRateLimit is the number of registrations allowed per IP per minute.
	RegisterRateLimit int `yaml:"register_rate_limit" env:"REGISTER_RATE_LIMIT" env-default:"5"`
}

// BriefsConfig holds per-user and per-brief quotas.
type BriefsConfig struct {
	// MaxPerOwner is the number of briefs a creator may own at once.
	MaxPerOwner int `yaml:"max_per_owner" env:"BRIEFS_MAX_PER_OWNER" env-default:"20"`

	// WarnAt is the owned-brief count at which clients show a quota warning.
	WarnAt int `yaml:"warn_at" env:"BRIEFS_WARN_AT" env-default:"18"`

	// MaxRecipients is the number of recipients a single brief may have.
	MaxRecipients int `yaml:"max_recipients" env:"BRIEFS_MAX_RECIPIENTS" env-default:"10"`

	// NotifyOnShare sends an email to new recipients when SMTP is configured.
	NotifyOnShare bool `yaml:"notify_on_share" env:"BRIEFS_NOTIFY_ON_SHARE" env-default:"true"`
}

// SMTPConfig holds outbound mail settings. Mail is disabled when Host is empty.
type SMTPConfig struct {
	Host        string `yaml:"host"         env:"SMTP_HOST"`
	Port        int    `yaml:"port"         env:"SMTP_PORT"         env-default:"587"`
	Username    string `yaml:"username"     env:"SMTP_USERNAME"`
	Password    string `yaml:"password"     env:"SMTP_PASSWORD"`
	FromAddress string `yaml:"from_address" env:"SMTP_FROM_ADDRESS" env-default:"noreply@localhost"`
	FromName    string `yaml:"from_name"    env:"SMTP_FROM_NAME"    env-default:"Briefly"`

	// Encryption is "starttls", "ssl", or "none".
	Encryption string `yaml:"encryption" env:"SMTP_ENCRYPTION" env-default:"starttls"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Env)
	return env == "development" || env == "dev"
}

// IsProduction returns true for "production" and common variants.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Env)
	return env == "production" || env == "prod"
}
