package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// devSecretKey lets local development work without a .env file.
const devSecretKey = "dev-secret-key-do-not-use-in-production!!"

// Load reads configuration from an optional YAML file and environment
// variables. Priority: ENV > YAML > defaults (via env-default tags).
// The YAML file path comes from CONFIG_PATH; when it is unset, only ENV and
// defaults are used.
func Load() (*Config, error) {
	var cfg Config

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	return &cfg, nil
}

// Validate checks business rules on the loaded configuration and fills
// development-only defaults.
func (c *Config) Validate() error {
	if c.IsProduction() {
		if c.Auth.SecretKey == "" {
			return fmt.Errorf("SECRET_KEY is required in production")
		}
		if len(c.Auth.SecretKey) < 32 {
			return fmt.Errorf("SECRET_KEY must be at least 32 characters in production")
		}
	}
	if c.Auth.SecretKey == "" {
		c.Auth.SecretKey = devSecretKey
	}

	if c.Briefs.MaxPerOwner < 1 {
		return fmt.Errorf("briefs.max_per_owner must be > 0 (got %d)", c.Briefs.MaxPerOwner)
	}
	if c.Briefs.WarnAt < 1 || c.Briefs.WarnAt > c.Briefs.MaxPerOwner {
		return fmt.Errorf("briefs.warn_at must be between 1 and %d (got %d)", c.Briefs.MaxPerOwner, c.Briefs.WarnAt)
	}
	if c.Briefs.MaxRecipients < 1 {
		return fmt.Errorf("briefs.max_recipients must be > 0 (got %d)", c.Briefs.MaxRecipients)
	}

	switch c.SMTP.Encryption {
	case "starttls", "ssl", "none":
	default:
		return fmt.Errorf("smtp.encryption must be starttls, ssl or none (got %q)", c.SMTP.Encryption)
	}

	return nil
}
