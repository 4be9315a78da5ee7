package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

type Config struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisURL    string `env:"REDIS_URL,required"`

	// Session cookies carry a session id signed with this secret (HMAC-SHA256).
	CookieSecret string `env:"COOKIE_SECRET,required"`

	GitHubClientID     string `env:"GITHUB_CLIENT_ID,required"`
	GitHubClientSecret string `env:"GITHUB_CLIENT_SECRET,required"`
	OAuthRedirectBase  string `env:"OAUTH_REDIRECT_BASE" envDefault:"http://localhost:8080"`
	PostLoginRedirect  string `env:"POST_LOGIN_REDIRECT" envDefault:"/todos"`

	SessionTTLSeconds int `env:"SESSION_TTL_SECONDS" envDefault:"86400"`
	PendingTTLSeconds int `env:"PENDING_TTL_SECONDS" envDefault:"600"`

	BlobEndpoint  string `env:"BLOB_ENDPOINT,required"`
	BlobAccessKey string `env:"BLOB_ACCESS_KEY,required"`
	BlobSecretKey string `env:"BLOB_SECRET_KEY,required"`
	BlobBucket    string `env:"BLOB_BUCKET" envDefault:"todo-attachments"`
	BlobUseSSL    bool   `env:"BLOB_USE_SSL" envDefault:"false"`

	AIBaseURL string `env:"AI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	AIAPIKey  string `env:"AI_API_KEY"`
	AIModel   string `env:"AI_MODEL" envDefault:"gpt-4o-mini"`

	// Target identity for the one-time backfill of ownerless todo rows.
	// The migrate endpoint responds 503 until both are set.
	LegacyOwnerID    int64  `env:"LEGACY_OWNER_ID"`
	LegacyOwnerLogin string `env:"LEGACY_OWNER_LOGIN"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSeconds) * time.Second
}

func (c *Config) PendingTTL() time.Duration {
	return time.Duration(c.PendingTTLSeconds) * time.Second
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// MigrationConfigured reports whether the legacy backfill target is set.
func (c *Config) MigrationConfigured() bool {
	return c.LegacyOwnerID != 0 && c.LegacyOwnerLogin != ""
}

func (c *Config) Validate(isProduction bool) error {
	if isProduction {
		if err := validateSecret("COOKIE_SECRET", c.CookieSecret); err != nil {
			return err
		}
		if c.AIAPIKey == "" {
			log.Warn().Msg("AI_API_KEY is empty in production: AI endpoints will report the service as unavailable")
		}
		if !c.BlobUseSSL {
			log.Warn().Msg("BLOB_USE_SSL is false in production: attachment traffic is unencrypted")
		}
	}

	if !c.MigrationConfigured() {
		log.Warn().Msg("LEGACY_OWNER_ID / LEGACY_OWNER_LOGIN not set: /api/todos/migrate is disabled")
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
