package infra

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL"`
	PGHost      string `env:"PGHOST" envDefault:"localhost"`
	PGPort      int    `env:"PGPORT" envDefault:"5432"`
	PGUser      string `env:"PGUSER" envDefault:"oddsmith"`
	PGPassword  string `env:"PGPASSWORD" envDefault:"oddsmith"`
	PGDatabase  string `env:"PGDATABASE" envDefault:"oddsmith"`

	// Connection pool sizing
	PGPoolMaxConns int `env:"PG_POOL_MAX_CONNS" envDefault:"20"`
	PGPoolMinConns int `env:"PG_POOL_MIN_CONNS" envDefault:"2"`

	// Odds / scores provider
	OddsAPIKey     string `env:"ODDS_API_KEY"`
	OddsAPIBaseURL string `env:"ODDS_API_BASE_URL" envDefault:"https://api.the-odds-api.com"`

	// Outbound messaging channel
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string `env:"TELEGRAM_CHAT_ID"`

	// Kafka publish queue
	KafkaBrokers string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaEnabled bool   `env:"KAFKA_ENABLED" envDefault:"false"`

	// HTTP server
	APIPort            int    `env:"API_PORT" envDefault:"3200"`
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`

	// Admin auth
	JWTSecret      string `env:"JWT_SECRET" envDefault:"change-me-in-production"`
	JWTAdminExpiry string `env:"JWT_ADMIN_EXPIRY" envDefault:"8h"`

	// Engine tuning
	DefaultIterations    int `env:"SIM_DEFAULT_ITERATIONS" envDefault:"25000"`
	OddsPollSeconds      int `env:"ODDS_POLL_SECONDS" envDefault:"60"`
	SettlementSweepMins  int `env:"SETTLEMENT_SWEEP_MINUTES" envDefault:"15"`
	SimWallClockSeconds  int `env:"SIM_WALL_CLOCK_SECONDS" envDefault:"30"`
	PublishWindowMinutes int `env:"PUBLISH_WINDOW_MINUTES" envDefault:"180"`

	// Dev
	AllowInsecureDefaults bool `env:"ALLOW_INSECURE_DEFAULTS" envDefault:"false"`
}

// LoadConfig parses environment variables into a Config struct.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks for configuration that must not run in production.
// Set ALLOW_INSECURE_DEFAULTS=true to bypass (local dev only).
func (c *Config) Validate() error {
	if c.AllowInsecureDefaults {
		return nil
	}
	if c.JWTSecret == "change-me-in-production" {
		return fmt.Errorf("JWT_SECRET is set to the insecure default; set a strong secret or set ALLOW_INSECURE_DEFAULTS=true for local dev")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET is too short (%d chars); minimum 32 characters required", len(c.JWTSecret))
	}
	if c.OddsAPIKey == "" {
		return fmt.Errorf("ODDS_API_KEY is required")
	}
	return nil
}

// DSN returns the PostgreSQL connection string, preferring DATABASE_URL if set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}
