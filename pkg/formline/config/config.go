package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/cognicore/formline/pkg/formline/decode"
	"github.com/cognicore/formline/pkg/formline/internalerr"
	"github.com/cognicore/formline/pkg/formline/reconcile"
)

// Config is the formline configuration file
type Config struct {
	Decoder   DecoderConfig   `yaml:"decoder" toml:"decoder"`
	Reconcile ReconcileConfig `yaml:"reconcile" toml:"reconcile"`
	Pipeline  PipelineConfig  `yaml:"pipeline" toml:"pipeline"`
	Log       LogConfig       `yaml:"log" toml:"log"`
}

// DecoderConfig holds the document-format literals
type DecoderConfig struct {
	TitleMarker        string `yaml:"title_marker" toml:"title_marker"`
	TitleLength        int    `yaml:"title_length" toml:"title_length"`
	ContinuationMarker string `yaml:"continuation_marker" toml:"continuation_marker"`
	DefaultCountry     string `yaml:"default_country" toml:"default_country"`
}

// ReconcileConfig tunes the race engine
type ReconcileConfig struct {
	RatingTolerance float64 `yaml:"rating_tolerance" toml:"rating_tolerance"`
	StatsEvery      int     `yaml:"stats_every" toml:"stats_every"`
}

// PipelineConfig controls ingestion
type PipelineConfig struct {
	Workers int    `yaml:"workers" toml:"workers"`
	DB      string `yaml:"db" toml:"db"`
}

// LogConfig selects the log handler
type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Default returns the built-in configuration
func Default() Config {
	d := decode.DefaultConfig()
	r := reconcile.DefaultConfig()
	return Config{
		Decoder: DecoderConfig{
			TitleMarker:        d.TitleMarker,
			TitleLength:        d.TitleLength,
			ContinuationMarker: d.ContinuationMarker,
			DefaultCountry:     d.DefaultCountry,
		},
		Reconcile: ReconcileConfig{
			RatingTolerance: r.RatingTolerance,
			StatsEvery:      r.StatsEvery,
		},
		Pipeline: PipelineConfig{Workers: 4, DB: "formline.db"},
		Log:      LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads a YAML or TOML (by .toml extension) config over the defaults.
// An empty path or a missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return Config{}, fmt.Errorf("decode %s: %w: %v", path, internalerr.ErrInvalidConfig, err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode %s: %w: %v", path, internalerr.ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise fail late
func (c Config) Validate() error {
	switch {
	case c.Decoder.TitleMarker == "":
		return fmt.Errorf("decoder.title_marker is empty: %w", internalerr.ErrInvalidConfig)
	case c.Decoder.TitleLength < 0:
		return fmt.Errorf("decoder.title_length %d: %w", c.Decoder.TitleLength, internalerr.ErrInvalidConfig)
	case c.Reconcile.RatingTolerance <= 0:
		return fmt.Errorf("reconcile.rating_tolerance %v: %w", c.Reconcile.RatingTolerance, internalerr.ErrInvalidConfig)
	case c.Pipeline.Workers <= 0:
		return fmt.Errorf("pipeline.workers %d: %w", c.Pipeline.Workers, internalerr.ErrInvalidConfig)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format %q: %w", c.Log.Format, internalerr.ErrInvalidConfig)
	}
	return nil
}

// DecodeConfig converts the decoder section
func (c Config) DecodeConfig() decode.Config {
	return decode.Config{
		TitleMarker:        c.Decoder.TitleMarker,
		TitleLength:        c.Decoder.TitleLength,
		ContinuationMarker: c.Decoder.ContinuationMarker,
		DefaultCountry:     c.Decoder.DefaultCountry,
	}
}

// EngineConfig converts the reconcile section
func (c Config) EngineConfig() reconcile.Config {
	return reconcile.Config{
		RatingTolerance: c.Reconcile.RatingTolerance,
		StatsEvery:      c.Reconcile.StatsEvery,
	}
}

// NewLogger builds the configured slog handler writing to w
func (c LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level %q: %w", s, internalerr.ErrInvalidConfig)
	}
	return l, nil
}
