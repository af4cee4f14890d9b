package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string

	// Wallboard websocket
	WSReadTimeout  time.Duration
	WSWriteTimeout time.Duration
	PingPeriod     time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64

	// Switch
	AsteriskBin     string
	AsteriskTimeout time.Duration
	ConfigDir       string

	// Definitions and history
	DatabaseURL     string
	DefinitionsFile string
	SLAWindowDays   int
	WrapUpCatalog   string

	// Cross-instance locking; empty means in-process only
	RedisAddr string
	LockTTL   time.Duration

	// Auth
	AuthDisabled bool
	JWKSURL      string
	JWTSecret    string
	JWTIssuer    string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Port:            getEnv("PORT", "8080"),
		AllowedOrigins:  strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:5173"), ","),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		AsteriskBin:     getEnv("ASTERISK_BIN", "asterisk"),
		ConfigDir:       getEnv("CONFIG_DIR", "/etc/asterisk/callctl"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		DefinitionsFile: getEnv("DEFINITIONS_FILE", "definitions.yaml"),
		WrapUpCatalog:   getEnv("WRAPUP_CATALOG", ""),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		JWKSURL:         getEnv("JWKS_URL", ""),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		JWTIssuer:       getEnv("JWT_ISSUER", ""),
	}

	// Parse WebSocket timeouts
	wsReadTimeout, err := strconv.Atoi(getEnv("WS_READ_TIMEOUT", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid WS_READ_TIMEOUT: %w", err)
	}
	config.WSReadTimeout = time.Duration(wsReadTimeout) * time.Second

	wsWriteTimeout, err := strconv.Atoi(getEnv("WS_WRITE_TIMEOUT", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid WS_WRITE_TIMEOUT: %w", err)
	}
	config.WSWriteTimeout = time.Duration(wsWriteTimeout) * time.Second

	config.AsteriskTimeout, err = time.ParseDuration(getEnv("ASTERISK_TIMEOUT", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid ASTERISK_TIMEOUT: %w", err)
	}

	config.LockTTL, err = time.ParseDuration(getEnv("LOCK_TTL", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOCK_TTL: %w", err)
	}

	config.SLAWindowDays, err = strconv.Atoi(getEnv("SLA_WINDOW_DAYS", "7"))
	if err != nil {
		return nil, fmt.Errorf("invalid SLA_WINDOW_DAYS: %w", err)
	}
	if config.SLAWindowDays < 1 {
		return nil, fmt.Errorf("invalid SLA_WINDOW_DAYS: must be at least 1")
	}

	config.AuthDisabled, err = strconv.ParseBool(getEnv("AUTH_DISABLED", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid AUTH_DISABLED: %w", err)
	}

	// Calculate WebSocket constants
	config.PongWait = config.WSReadTimeout
	config.PingPeriod = (config.PongWait * 9) / 10 // Must be less than pongWait
	config.WriteWait = config.WSWriteTimeout
	config.MaxMessageSize = 512

	// Trim spaces from allowed origins
	for i, origin := range config.AllowedOrigins {
		config.AllowedOrigins[i] = strings.TrimSpace(origin)
	}

	return config, nil
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
