package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds application configuration.
type Config struct {
	Port          int    `toml:"port"`
	DBPath        string `toml:"db_path"`
	BaseURL       string `toml:"base_url"`
	ClientTimeout int    `toml:"client_timeout_seconds"`
	Engine        Engine `toml:"engine"`
}

// Engine holds the self-throttle delay tiers, in milliseconds. The slow
// tier applies up to speed 50, the fast tier above it.
type Engine struct {
	BatchDelayMs     int `toml:"batch_delay_ms"`
	FastBatchDelayMs int `toml:"fast_batch_delay_ms"`
	PageDelayMs      int `toml:"page_delay_ms"`
	FastPageDelayMs  int `toml:"fast_page_delay_ms"`
}

// DefaultDBPath returns the default database path using XDG_CACHE_HOME.
func DefaultDBPath() string {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home, _ := os.UserHomeDir()
		cacheDir = filepath.Join(home, ".cache")
	}
	return filepath.Join(cacheDir, "instasweep", "jobs.db")
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:          8080,
		DBPath:        DefaultDBPath(),
		BaseURL:       "https://www.instagram.com",
		ClientTimeout: 30,
		Engine: Engine{
			BatchDelayMs:     1000,
			FastBatchDelayMs: 200,
			PageDelayMs:      2000,
			FastPageDelayMs:  500,
		},
	}
}

// Load builds the configuration from defaults, an optional TOML file, flags
// and environment overrides, in that order of precedence (lowest first).
func Load() (*Config, error) {
	cfg := Default()

	var file string
	flag.StringVar(&file, "config", "", "TOML config file path")
	port := flag.Int("port", 0, "HTTP server port (overrides config file)")
	db := flag.String("db", "", "SQLite database path (overrides config file)")
	flag.Parse()

	if file != "" {
		if err := LoadFile(file, cfg); err != nil {
			return nil, err
		}
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *db != "" {
		cfg.DBPath = *db
	}

	applyEnv(cfg)
	return cfg, nil
}

// LoadFile merges a TOML file into cfg.
func LoadFile(path string, cfg *Config) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if port := os.Getenv("INSTASWEEP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if db := os.Getenv("INSTASWEEP_DB"); db != "" {
		cfg.DBPath = db
	}
	if base := os.Getenv("INSTASWEEP_BASE_URL"); base != "" {
		cfg.BaseURL = base
	}
}

// Timeout returns the HTTP client timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.ClientTimeout) * time.Second
}
