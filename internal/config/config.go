// Package config loads settings from flag defaults, an optional YAML file,
// RETENTION_* environment variables and explicitly set flags, in that
// order of increasing precedence.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix is stripped from environment variables before they become keys.
// RETENTION_REVIEW__MAX_ATTEMPTS maps to review.max-attempts.
const EnvPrefix = "RETENTION_"

// Config is the application configuration.
type Config struct {
	DB       string    `koanf:"db" validate:"required"`
	Addr     string    `koanf:"addr" validate:"required,hostname_port"`
	ReposDir string    `koanf:"repos-dir" validate:"required"`
	Log      LogConfig `koanf:"log"`
	Review   Review    `koanf:"review"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

// Review tunes the review flow.
type Review struct {
	MaxAttempts int `koanf:"max-attempts" validate:"min=1,max=100"`
	DueLimit    int `koanf:"due-limit" validate:"min=1,max=1000"`
}

// RegisterFlags defines every configuration flag with its default on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to a YAML configuration file")
	fs.String("db", "retention.db", "Path to the SQLite database file")
	fs.String("addr", "localhost:8080", "Address for the HTTP server to listen on")
	fs.String("repos-dir", "repos", "Directory git sources are cloned into")
	fs.String("log.level", "info", "Log level: debug, info, warn or error")
	fs.String("log.format", "text", "Log format: text or json")
	fs.Int("review.max-attempts", 3, "Attempts before a conflicting review is given up")
	fs.Int("review.due-limit", 50, "Default number of cards returned by due queries")
}

// Load builds a Config from the flags registered by RegisterFlags.
func Load(fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path, _ := fs.GetString("config"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	// Unchanged flags only fill keys nothing above has set.
	if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey turns RETENTION_LOG__LEVEL into log.level and RETENTION_REPOS_DIR
// into repos-dir.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	s = strings.ReplaceAll(s, "__", ".")
	return strings.ReplaceAll(s, "_", "-")
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Logger builds the slog logger described by c.Log.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	var level slog.Level
	// Validate guarantees a known level name.
	_ = level.UnmarshalText([]byte(c.Log.Level))

	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
