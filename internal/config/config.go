// Package config loads process configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// MaxAPIKeys is the number of GEMINI_API_KEY_<n> slots read from the
// environment.
const MaxAPIKeys = 5

// Config holds all runtime configuration for the gateway.
type Config struct {
	Port string

	// APIKeys is the ordered upstream key pool. Empty slots are skipped;
	// the pool may legitimately be empty (chat then reports unavailable).
	APIKeys []string

	// Persona overrides. Empty means the built-in default applies.
	MusePrompt string
	SagePrompt string
	MuseModel  string
	SageModel  string

	// UpstreamBaseURL overrides the Gemini endpoint. Used by tests and
	// self-hosted proxies; empty means the SDK default.
	UpstreamBaseURL string

	DataFile    string
	StaticDir   string
	CORSOrigins []string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Load reads the configuration from the environment.
func Load() *Config {
	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		MusePrompt:      os.Getenv("MUSE_PROMPT"),
		SagePrompt:      os.Getenv("SAGE_PROMPT"),
		MuseModel:       os.Getenv("MUSE_MODEL"),
		SageModel:       os.Getenv("SAGE_MODEL"),
		UpstreamBaseURL: os.Getenv("UPSTREAM_BASE_URL"),
		DataFile:        getEnv("DATA_FILE", "data/parley.json"),
		StaticDir:       getEnv("STATIC_DIR", "public"),
		CORSOrigins:     splitList(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 2*time.Minute),
		IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
	}

	for i := 1; i <= MaxAPIKeys; i++ {
		if key := strings.TrimSpace(os.Getenv(fmt.Sprintf("GEMINI_API_KEY_%d", i))); key != "" {
			cfg.APIKeys = append(cfg.APIKeys, key)
		}
	}

	return cfg
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
