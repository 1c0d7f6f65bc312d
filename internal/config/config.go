package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Development bool
	// API configuration
	APIPort int
	// Telegram configuration
	TelegramBotToken string
	// Market data configuration
	DexScreenerBaseURL string
	ChainID            string
	// Alert engine configuration
	PollInterval         time.Duration
	MinVolumeUSD         float64
	MinLiquidityUSD      float64
	PriceChangeThreshold float64
	NewPairMaxAge        time.Duration
	AlertCooldown        time.Duration
	VolumeSpikeRatio     float64
	MaxAlertsPerToken    int
	// Portal configuration
	PortalInviteExpiry  time.Duration
	PortalMaxUses       int
	PortalSweepInterval time.Duration
	// Storage configuration. SQLite at DatabasePath is the default;
	// setting POSTGRES_HOST selects Postgres instead.
	DatabasePath     string
	PostgresUser     string
	PostgresPassword string
	PostgresHost     string
	PostgresPort     int
	PostgresDB       string
}

// UsePostgres reports whether the Postgres backend is selected.
func (c *Config) UsePostgres() bool {
	return c.PostgresHost != ""
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Development:        getEnvAsBool("DEVELOPMENT", false),
		APIPort:            getEnvAsInt("API_PORT", 8080),
		TelegramBotToken:   getEnv("TELEGRAM_BOT_TOKEN", ""),
		DexScreenerBaseURL: getEnv("DEXSCREENER_BASE_URL", "https://api.dexscreener.com"),
		ChainID:            getEnv("CHAIN_ID", "megaeth"),

		PollInterval:         time.Duration(getEnvAsInt("POLL_INTERVAL", 30)) * time.Second,
		MinVolumeUSD:         getEnvAsFloat("MIN_VOLUME_USD", 1000),
		MinLiquidityUSD:      getEnvAsFloat("MIN_LIQUIDITY_USD", 500),
		PriceChangeThreshold: getEnvAsFloat("PRICE_CHANGE_THRESHOLD", 10.0),
		NewPairMaxAge:        time.Duration(getEnvAsInt("NEW_PAIR_AGE_MINUTES", 60)) * time.Minute,
		AlertCooldown:        time.Duration(getEnvAsInt("ALERT_COOLDOWN_MINUTES", 60)) * time.Minute,
		VolumeSpikeRatio:     getEnvAsFloat("VOLUME_SPIKE_RATIO", 2.0),
		MaxAlertsPerToken:    getEnvAsInt("MAX_ALERTS_PER_TOKEN", 1),

		PortalInviteExpiry:  time.Duration(getEnvAsInt("PORTAL_INVITE_EXPIRY_MINUTES", 5)) * time.Minute,
		PortalMaxUses:       getEnvAsInt("PORTAL_MAX_USES", 1),
		PortalSweepInterval: time.Duration(getEnvAsInt("PORTAL_SWEEP_INTERVAL", 60)) * time.Second,

		DatabasePath:     getEnv("DATABASE_PATH", "vigil.db"),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "password"),
		PostgresHost:     getEnv("POSTGRES_HOST", ""),
		PostgresPort:     getEnvAsInt("POSTGRES_PORT", 5432),
		PostgresDB:       getEnv("POSTGRES_DB", "vigil"),
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are properly set
func (c *Config) Validate() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	if c.ChainID == "" {
		return fmt.Errorf("CHAIN_ID is required")
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}

	if c.MinVolumeUSD < 0 || c.MinLiquidityUSD < 0 {
		return fmt.Errorf("volume and liquidity thresholds must not be negative")
	}

	if c.PriceChangeThreshold <= 0 {
		return fmt.Errorf("PRICE_CHANGE_THRESHOLD must be positive")
	}

	if c.VolumeSpikeRatio <= 1 {
		return fmt.Errorf("VOLUME_SPIKE_RATIO must be greater than 1")
	}

	if c.MaxAlertsPerToken < 1 {
		return fmt.Errorf("MAX_ALERTS_PER_TOKEN must be at least 1")
	}

	if c.PortalMaxUses < 1 {
		return fmt.Errorf("PORTAL_MAX_USES must be at least 1")
	}

	if c.PortalInviteExpiry <= 0 || c.PortalSweepInterval <= 0 {
		return fmt.Errorf("portal expiry and sweep intervals must be positive")
	}

	if !c.UsePostgres() && c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required when Postgres is not configured")
	}

	if c.UsePostgres() && c.PostgresDB == "" {
		return fmt.Errorf("POSTGRES_DB is required")
	}

	return nil
}

// Helper functions to read environment variables
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsFloat(name string, defaultValue float64) float64 {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsBool(name string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseBool(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}
