package lib

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/nbd-wtf/go-nostr"
)

// Config contains runtime configuration loaded from environment variables.
type Config struct {
	DatabaseURL        string
	DBMaxConns         int
	HTTPAddr           string
	LogLevel           string
	JWTSecret          string
	SystemPubKey       string
	SystemPrivKey      string
	RateLimitBurst     int
	RateLimitPerMinute int
	AnnouncementTZ     *time.Location
}

// LoadDotEnv merges KEY=value pairs from the given files into the process
// environment. Missing files are ignored; variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

func LoadConfig() (Config, error) {
	cfg := Config{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		DBMaxConns:         getIntOrDefault("DB_MAX_CONNS", 20),
		HTTPAddr:           getOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           getOrDefault("LOG_LEVEL", "INFO"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		SystemPubKey:       strings.ToLower(strings.TrimSpace(os.Getenv("SYSTEM_PUBKEY"))),
		SystemPrivKey:      strings.ToLower(strings.TrimSpace(os.Getenv("SYSTEM_PRIVKEY"))),
		RateLimitBurst:     getIntOrDefault("RATE_LIMIT_BURST", 10),
		RateLimitPerMinute: getIntOrDefault("RATE_LIMIT_PER_MIN", 30),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.DBMaxConns < 2 {
		return Config{}, fmt.Errorf("DB_MAX_CONNS must be >= 2")
	}
	if len(cfg.JWTSecret) < 16 {
		return Config{}, fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}
	if cfg.SystemPrivKey == "" {
		return Config{}, fmt.Errorf("SYSTEM_PRIVKEY is required")
	}

	derivedPubKey, err := nostr.GetPublicKey(cfg.SystemPrivKey)
	if err != nil {
		return Config{}, fmt.Errorf("SYSTEM_PRIVKEY is invalid: %w", err)
	}
	derivedPubKey = strings.ToLower(strings.TrimSpace(derivedPubKey))
	if cfg.SystemPubKey == "" {
		cfg.SystemPubKey = derivedPubKey
	}
	if !strings.EqualFold(cfg.SystemPubKey, derivedPubKey) {
		return Config{}, fmt.Errorf("SYSTEM_PUBKEY does not match SYSTEM_PRIVKEY")
	}
	if cfg.RateLimitBurst <= 0 {
		return Config{}, fmt.Errorf("RATE_LIMIT_BURST must be > 0")
	}
	if cfg.RateLimitPerMinute <= 0 {
		return Config{}, fmt.Errorf("RATE_LIMIT_PER_MIN must be > 0")
	}

	loc, err := time.LoadLocation(getOrDefault("ANNOUNCEMENT_TZ", "UTC"))
	if err != nil {
		return Config{}, fmt.Errorf("ANNOUNCEMENT_TZ is invalid: %w", err)
	}
	cfg.AnnouncementTZ = loc

	return cfg, nil
}

func getOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getIntOrDefault(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
