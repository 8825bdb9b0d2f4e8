// internal/config/config.go
//
// Process configuration read from the environment (after godotenv has
// loaded .env in main).
//
// Variables (defaults in parentheses):
//   PORT (5175)                    LOG_LEVEL (info)
//   DB_PATH (./data/app.db)        PUZZLES_FILE (embedded catalogue)
//   JWT_SECRET (dev secret)        JWT_EXPIRES_DAYS (14)
//   COOKIE_NAME (codesiege_token)  CLIENT_ORIGIN (http://localhost:5173)
//   NODE_ENV                       STARTING_EXP (100)
//   VERIFIER_URL (http://localhost:3001/api)
//   VERIFIER_SECRET (JWT_SECRET)   VERIFIER_TIMEOUT (20s)
//   DEFAULT_LANGUAGE (Python)      PUZZLE_TIME_LIMIT (600s)
//   SETTLE_DELAY (1.5s)            DAILY_SALT (local_dev_salt)
//
// Durations accept Go syntax ("90s", "1m30s") or a bare number of seconds.

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const devSecret = "dev_secret_change_me"

type Config struct {
	Port     string
	LogLevel string
	DBPath   string

	JWTSecret      string
	JWTExpiresDays int
	CookieName     string
	ClientOrigin   string
	Production     bool
	StartingExp    int64

	VerifierURL     string
	VerifierSecret  string
	VerifierTimeout time.Duration

	DefaultLanguage string
	TimeLimit       time.Duration
	SettleDelay     time.Duration
	DailySalt       string
	PuzzlesFile     string
}

// FromEnv reads the configuration. Malformed numbers are an error rather
// than a silent fallback.
func FromEnv() (Config, error) {
	c := Config{
		Port:            getEnv("PORT", "5175"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		DBPath:          getEnv("DB_PATH", "./data/app.db"),
		JWTSecret:       getEnv("JWT_SECRET", devSecret),
		CookieName:      getEnv("COOKIE_NAME", "codesiege_token"),
		ClientOrigin:    getEnv("CLIENT_ORIGIN", "http://localhost:5173"),
		Production:      os.Getenv("NODE_ENV") == "production",
		VerifierURL:     getEnv("VERIFIER_URL", "http://localhost:3001/api"),
		DefaultLanguage: getEnv("DEFAULT_LANGUAGE", "Python"),
		DailySalt:       getEnv("DAILY_SALT", "local_dev_salt"),
		PuzzlesFile:     os.Getenv("PUZZLES_FILE"),
	}
	c.VerifierSecret = getEnv("VERIFIER_SECRET", c.JWTSecret)

	var err error
	if c.JWTExpiresDays, err = intEnv("JWT_EXPIRES_DAYS", 14); err != nil {
		return c, err
	}
	exp, err := intEnv("STARTING_EXP", 100)
	if err != nil {
		return c, err
	}
	c.StartingExp = int64(exp)
	if c.VerifierTimeout, err = durationEnv("VERIFIER_TIMEOUT", 20*time.Second); err != nil {
		return c, err
	}
	if c.TimeLimit, err = durationEnv("PUZZLE_TIME_LIMIT", 600*time.Second); err != nil {
		return c, err
	}
	if c.SettleDelay, err = durationEnv("SETTLE_DELAY", 1500*time.Millisecond); err != nil {
		return c, err
	}
	if c.StartingExp < 0 {
		return c, fmt.Errorf("STARTING_EXP must not be negative")
	}
	return c, nil
}

// DevSecret reports whether the JWT secret was left at its default.
func (c Config) DevSecret() bool { return c.JWTSecret == devSecret }

// Addr is the listen address.
func (c Config) Addr() string { return ":" + c.Port }

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func intEnv(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", k, err)
	}
	return n, nil
}

func durationEnv(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", k, err)
	}
	return d, nil
}
