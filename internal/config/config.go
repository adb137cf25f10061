package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	Port int

	// Strava application credentials and webhook shared secret
	StravaClientID     string
	StravaClientSecret string
	StravaVerifyToken  string

	// Public base URL Strava redirects back to (no trailing slash)
	URLBase string

	DiscordToken     string
	DiscordAppID     string
	DiscordChannelID string

	// Path of the JSON file holding linked account credentials
	AccountsFile string

	// How long a minted link token stays consumable
	LinkTokenTTL time.Duration

	// Optional TLS material; both must be set to enable HTTPS
	HTTPSCert string
	HTTPSKey  string

	LogLevel    string
	LogFormat   string
	Environment string
}

// Load loads the configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists, but don't fail if it doesn't (could be real env vars)
	_ = godotenv.Load()

	cfg := &Config{
		StravaClientID:     os.Getenv("STRAVA_CLIENT_ID"),
		StravaClientSecret: os.Getenv("STRAVA_CLIENT_SECRET"),
		StravaVerifyToken:  os.Getenv("STRAVA_VERIFY_TOKEN"),
		URLBase:            os.Getenv("URL_BASE"),
		DiscordToken:       os.Getenv("DISCORD_TOKEN"),
		DiscordAppID:       os.Getenv("DISCORD_APP_ID"),
		DiscordChannelID:   os.Getenv("DISCORD_CHANNEL_ID"),
		AccountsFile:       getEnv("ACCOUNTS_FILE", "accounts.json"),
		HTTPSCert:          os.Getenv("HTTPS_CERT"),
		HTTPSKey:           os.Getenv("HTTPS_KEY"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "text"),
		Environment:        getEnv("ENVIRONMENT", "dev"),
	}

	portStr := getEnv("PORT", "8080")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT value: %w", err)
	}
	cfg.Port = port

	ttlStr := getEnv("LINK_TOKEN_TTL", "10m")
	ttl, err := time.ParseDuration(ttlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid LINK_TOKEN_TTL value: %w", err)
	}
	cfg.LinkTokenTTL = ttl

	if err := ValidateEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// TLSEnabled reports whether the webhook server should serve HTTPS.
func (c *Config) TLSEnabled() bool {
	return c.HTTPSCert != "" && c.HTTPSKey != ""
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
