// Package config loads server configuration from an optional YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds everything the server needs at startup.
type Config struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"server"`

	Storage struct {
		// Backend selects postgres, file or memory.
		Backend     string `yaml:"backend"`
		DatabaseURL string `yaml:"database_url"`
		FilePath    string `yaml:"file_path"`
	} `yaml:"storage"`

	Auth struct {
		// BotSecret is the shared HMAC secret for the bot channel.
		BotSecret string `yaml:"bot_secret"`
		// DiscordPublicKey is the hex Ed25519 key for interaction webhooks.
		DiscordPublicKey string `yaml:"discord_public_key"`
		// JWTSecret signs browser session tokens.
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	// Dev exposes internal error messages in responses.
	Dev bool `yaml:"dev"`
}

// Load reads the YAML file at path (skipped when empty or missing) and then
// applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 8080
	cfg.Storage.Backend = "memory"
	cfg.Storage.FilePath = "data/taskhive.json"
	cfg.Logging.Level = "info"

	if path != "" {
		raw, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(raw, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	switch cfg.Storage.Backend {
	case "postgres", "file", "memory":
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
	if cfg.Storage.Backend == "postgres" && cfg.Storage.DatabaseURL == "" {
		return nil, fmt.Errorf("postgres backend requires DATABASE_URL")
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Server.Port)
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Storage.DatabaseURL = v
		cfg.Storage.Backend = "postgres"
	}
	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("STORAGE_FILE"); v != "" {
		cfg.Storage.FilePath = v
	}
	if v := os.Getenv("BOT_SIGNING_SECRET"); v != "" {
		cfg.Auth.BotSecret = v
	}
	if v := os.Getenv("DISCORD_PUBLIC_KEY"); v != "" {
		cfg.Auth.DiscordPublicKey = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("DEV_MODE"); v == "1" || strings.EqualFold(v, "true") {
		cfg.Dev = true
	}
}
