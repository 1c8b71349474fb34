package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string
	GRPCAddr string // health service; empty disables it

	Env string // "dev" | "prod"

	// Storage
	Store    string // "memory" | "sqlite" | "bolt"
	DBPath   string // e.g. "./data/turnstile.db"
	BoltPath string // e.g. "./data/turnstile.bolt"

	// Timezone names the campus zone that defines "today".
	Timezone string

	APIKey         string
	AllowedOrigins []string

	// LogClearSchedule is a cron expression for the bulk log clear;
	// empty disables it.
	LogClearSchedule string

	DecideMaxAttempts int
}

// Load reads an optional .env file (path from TURNSTILE_ENV_FILE, default
// ".env") and then the environment.  A missing file is not an error.
func Load() (Config, error) {
	path := getenvDefault("TURNSTILE_ENV_FILE", ".env")
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", path, err)
	}
	return FromEnv(), nil
}

func FromEnv() Config {
	env := strings.ToLower(getenvDefault("TURNSTILE_ENV", "dev"))
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as dev
		env = "dev"
	}

	backend := strings.ToLower(getenvDefault("TURNSTILE_STORE", "sqlite"))
	switch backend {
	case "memory", "sqlite", "bolt":
	default:
		backend = "sqlite"
	}

	return Config{
		HTTPAddr: getenvDefault("TURNSTILE_HTTP_ADDR", ":8080"),
		GRPCAddr: os.Getenv("TURNSTILE_GRPC_ADDR"),
		Env:      env,

		Store:    backend,
		DBPath:   getenvDefault("TURNSTILE_DB_PATH", "./data/turnstile.db"),
		BoltPath: getenvDefault("TURNSTILE_BOLT_PATH", "./data/turnstile.bolt"),

		Timezone: getenvDefault("TURNSTILE_TIMEZONE", "America/Mexico_City"),

		APIKey:         strings.TrimSpace(os.Getenv("TURNSTILE_API_KEY")),
		AllowedOrigins: splitCSV(os.Getenv("TURNSTILE_ALLOWED_ORIGINS")),

		LogClearSchedule: strings.TrimSpace(os.Getenv("TURNSTILE_LOG_CLEAR_SCHEDULE")),

		DecideMaxAttempts: getenvInt("TURNSTILE_DECIDE_MAX_ATTEMPTS", 3),
	}
}

// Location resolves Timezone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func splitCSV(v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
