package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// KnownVoices lists the prebuilt voice names the live provider documents.
// Used by [Validate] to warn about likely typos.
var KnownVoices = []string{"Aoede", "Charon", "Fenrir", "Kore", "Puck", "Zephyr"}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Provider
	if cfg.Provider.APIKey == "" {
		errs = append(errs, errors.New("provider.api_key is required"))
	}
	if cfg.Provider.Voice != "" && !slices.Contains(KnownVoices, cfg.Provider.Voice) {
		slog.Warn("unknown voice name — may be a typo or a newly released voice",
			"voice", cfg.Provider.Voice,
			"known", KnownVoices,
		)
	}

	// Session
	if cfg.Session.TranscriptLines < 0 {
		errs = append(errs, fmt.Errorf("session.transcript_lines %d must not be negative", cfg.Session.TranscriptLines))
	}
	if cfg.Session.ConnectRetries < 0 {
		errs = append(errs, fmt.Errorf("session.connect_retries %d must not be negative", cfg.Session.ConnectRetries))
	}
	if cfg.Session.IdleTimeout < 0 {
		errs = append(errs, fmt.Errorf("session.idle_timeout must not be negative"))
	}
	if cfg.Session.ConnectBackoff < 0 {
		errs = append(errs, fmt.Errorf("session.connect_backoff must not be negative"))
	}

	// Storage availability
	if cfg.Storage.PostgresDSN == "" {
		slog.Warn("storage.postgres_dsn is empty; transcripts will not be persisted across restarts")
	}

	return errors.Join(errs...)
}
