package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds everything the process reads from the environment. Components
// never touch os.Getenv themselves; the entry point loads this once and hands
// the pieces down.
type Config struct {
	Port string `env:"PORT" envDefault:"3000"`

	DatabaseURL string `env:"DATABASE_URL"`
	DBHost      string `env:"DB_HOST" envDefault:"localhost"`
	DBUser      string `env:"DB_USER" envDefault:"postgres"`
	DBPassword  string `env:"DB_PASSWORD"`
	DBName      string `env:"DB_NAME" envDefault:"stockledger"`
	DBPort      string `env:"DB_PORT" envDefault:"5432"`

	JWTSecret string `env:"JWT_SECRET" envDefault:"change-me-in-production"`

	UploadDir string `env:"UPLOAD_DIR" envDefault:"uploads"`

	// Trailing window used by replace_window sales syncs when the batch does
	// not carry its own. Deployment cadences varied wildly, so there is no
	// baked-in value beyond this default.
	SalesSyncWindow time.Duration `env:"SALES_SYNC_WINDOW" envDefault:"24h"`

	// Optional webhook POSTed after a successful batch. Empty disables it.
	SyncWebhookURL string `env:"SYNC_WEBHOOK_URL"`
}

// Load reads .env (if present) and parses the environment into a Config.
func Load() (*Config, error) {
	// Missing .env is fine; real environments set variables directly.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// DSN returns the Postgres connection string, preferring DATABASE_URL.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort,
	)
}
