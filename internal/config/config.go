// Package config reads settings from the environment, after loading a
// .env file when one exists.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const (
	DefaultFallbackPath = "keyrotation-fallback.db"
	DefaultListenAddr   = ":9002"
	DefaultSyncSchedule = "@every 30s"
)

type Config struct {
	DBURL        string
	FallbackPath string
	ListenAddr   string
	SyncSchedule string
	LogLevel     zerolog.Level
	// Seed fixes the random source when HasSeed is set.
	Seed    uint64
	HasSeed bool
}

// LoadEnv loads the given .env files, or ./.env when none are named. A
// missing file is not an error.
func LoadEnv(files ...string) error {
	err := godotenv.Load(files...)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// FromEnv builds a Config from environment variables. DB_URL is required.
func FromEnv() (Config, error) {
	c := Config{
		DBURL:        os.Getenv("DB_URL"),
		FallbackPath: getenv("FALLBACK_PATH", DefaultFallbackPath),
		ListenAddr:   getenv("LISTEN_ADDR", DefaultListenAddr),
		SyncSchedule: getenv("SYNC_SCHEDULE", DefaultSyncSchedule),
	}
	if c.DBURL == "" {
		return Config{}, errors.New("DB_URL environment variable is not set")
	}

	level, err := zerolog.ParseLevel(getenv("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	c.LogLevel = level

	if raw := os.Getenv("SEED"); raw != "" {
		c.Seed, err = strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("SEED must be an unsigned integer: %w", err)
		}
		c.HasSeed = true
	}
	return c, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
