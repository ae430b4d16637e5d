// Package config provides configuration types and defaults for structds.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/zjrosen/structds/internal/flags"
	"github.com/zjrosen/structds/internal/log"
)

// Config holds all configuration options for structds.
type Config struct {
	Storage      StorageConfig       `mapstructure:"storage"`
	Handlers     HandlersConfig      `mapstructure:"handlers"`
	TypeDefaults []TypeDefaultConfig `mapstructure:"type_defaults"`
	Tracing      TracingConfig       `mapstructure:"tracing"`
	Log          LogConfig           `mapstructure:"log"`
	Watch        WatchConfig         `mapstructure:"watch"`
	Flags        map[string]bool     `mapstructure:"flags"`
}

// StorageConfig configures the bundled byte stores.
type StorageConfig struct {
	// LocalRoot is where relative paths and generated file:// URIs live.
	LocalRoot string `mapstructure:"local_root"`
	// MemoryTTL expires mem:// objects; 0 keeps them for the process lifetime.
	MemoryTTL time.Duration `mapstructure:"memory_ttl"`
}

// HandlersConfig enables and tunes the bundled handlers.
type HandlersConfig struct {
	Parquet   bool   `mapstructure:"parquet"`
	CSV       bool   `mapstructure:"csv"`
	SQLite    bool   `mapstructure:"sqlite"`
	ChunkRows int    `mapstructure:"chunk_rows"`
	SQLiteDir string `mapstructure:"sqlite_dir"`
}

// TypeDefaultConfig pins the default protocol and format of a dataframe type.
type TypeDefaultConfig struct {
	Type     string `mapstructure:"type" yaml:"type"`
	Protocol string `mapstructure:"protocol" yaml:"protocol"`
	Format   string `mapstructure:"format" yaml:"format"`
}

// TracingConfig holds dispatch tracing configuration.
type TracingConfig struct {
	// Enabled controls whether tracing is active.
	// Default: false
	Enabled bool `mapstructure:"enabled"`

	// Exporter selects the trace export backend.
	// Options: "none", "file", "stdout", "otlp"
	// Default: "file"
	Exporter string `mapstructure:"exporter"`

	// FilePath is the output file for "file" exporter.
	// Default: ~/.config/structds/traces/traces.jsonl
	FilePath string `mapstructure:"file_path"`

	// OTLPEndpoint is the collector endpoint for "otlp" exporter.
	// Default: "localhost:4317"
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`

	// SampleRate controls trace sampling (0.0 to 1.0).
	// Default: 1.0
	SampleRate float64 `mapstructure:"sample_rate"`
}

// LogConfig configures the debug log.
type LogConfig struct {
	// Path enables file logging when set.
	Path  string `mapstructure:"path"`
	Level string `mapstructure:"level"`
}

// WatchConfig configures dataset:watch.
type WatchConfig struct {
	Inbox    string        `mapstructure:"inbox"`
	Debounce time.Duration `mapstructure:"debounce"`
	// Protocol and Format override the type defaults for watched files.
	Protocol string `mapstructure:"protocol"`
	Format   string `mapstructure:"format"`
}

// DefaultTracesFilePath returns ~/.config/structds/traces/traces.jsonl or "" if
// the home directory is unavailable.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "structds", "traces", "traces.jsonl")
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Storage: StorageConfig{
			LocalRoot: ".structds/data",
			MemoryTTL: 0,
		},
		Handlers: HandlersConfig{
			Parquet:   true,
			CSV:       true,
			SQLite:    true,
			ChunkRows: 1024,
			SQLiteDir: ".structds",
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "file",
			FilePath:     "", // Derived from config dir at runtime
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
		Log: LogConfig{
			Level: "info",
		},
		Watch: WatchConfig{
			Inbox:    ".structds/inbox",
			Debounce: 200 * time.Millisecond,
		},
	}
}

// Validate runs every section validator.
func Validate(cfg Config) error {
	if err := ValidateStorage(cfg.Storage); err != nil {
		return err
	}
	if err := ValidateHandlers(cfg.Handlers); err != nil {
		return err
	}
	if err := ValidateTypeDefaults(cfg.TypeDefaults); err != nil {
		return err
	}
	if err := ValidateTracing(cfg.Tracing); err != nil {
		return err
	}
	if err := ValidateLog(cfg.Log); err != nil {
		return err
	}
	if err := ValidateWatch(cfg.Watch); err != nil {
		return err
	}
	return ValidateFlags(cfg.Flags)
}

// ValidateStorage checks storage configuration for errors.
func ValidateStorage(s StorageConfig) error {
	if s.MemoryTTL < 0 {
		return fmt.Errorf("storage.memory_ttl must not be negative, got %v", s.MemoryTTL)
	}
	return nil
}

// ValidateHandlers checks handler configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateHandlers(h HandlersConfig) error {
	if h.ChunkRows < 0 {
		return fmt.Errorf("handlers.chunk_rows must not be negative, got %d", h.ChunkRows)
	}
	return nil
}

// ValidateTypeDefaults checks pinned defaults for errors.
func ValidateTypeDefaults(defs []TypeDefaultConfig) error {
	seen := make(map[string]bool, len(defs))
	for i, d := range defs {
		if strings.TrimSpace(d.Type) == "" {
			return fmt.Errorf("type_defaults %d: type is required", i)
		}
		if d.Protocol == "" {
			return fmt.Errorf("type_defaults %d (%s): protocol is required", i, d.Type)
		}
		if strings.Contains(d.Protocol, "://") {
			return fmt.Errorf("type_defaults %d (%s): protocol must be a bare scheme like \"file\", got %q", i, d.Type, d.Protocol)
		}
		if seen[d.Type] {
			return fmt.Errorf("type_defaults %d: duplicate entry for %s", i, d.Type)
		}
		seen[d.Type] = true
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(tracing TracingConfig) error {
	if tracing.SampleRate < 0.0 || tracing.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tracing.SampleRate)
	}

	if tracing.Exporter != "" {
		switch tracing.Exporter {
		case "none", "file", "stdout", "otlp":
			// Valid
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tracing.Exporter)
		}
	}

	// Only validate path requirements when tracing is enabled
	if tracing.Enabled && tracing.Exporter == "otlp" && tracing.OTLPEndpoint == "" {
		return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
	}
	return nil
}

// ValidateLog checks log configuration for errors.
func ValidateLog(l LogConfig) error {
	if l.Level == "" {
		return nil
	}
	if _, ok := log.ParseLevel(l.Level); !ok {
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", l.Level)
	}
	return nil
}

// ValidateWatch checks watch configuration for errors.
func ValidateWatch(w WatchConfig) error {
	if w.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative, got %v", w.Debounce)
	}
	return nil
}

// ValidateFlags rejects unknown feature flags.
func ValidateFlags(f map[string]bool) error {
	known := flags.Known()
	for name := range f {
		if !slices.Contains(known, name) {
			return fmt.Errorf("flags: unknown flag %q (known: %s)", name, strings.Join(known, ", "))
		}
	}
	return nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# structds configuration

# Byte stores used by the parquet and csv handlers
storage:
  local_root: .structds/data   # file:// objects and relative paths live here
  # memory_ttl: 10m            # Expire mem:// objects (default: never)

# Bundled *frame.Frame handlers
handlers:
  parquet: true
  csv: true
  sqlite: true
  chunk_rows: 1024             # Parquet row group size and streaming chunk size
  sqlite_dir: .structds        # Database for generated sqlite:// URIs

# Pinned defaults, applied after handler registration.
# Written by 'structds handlers:default'.
# type_defaults:
#   - type: "*frame.Frame"
#     protocol: file
#     format: csv

# Dispatch tracing
# tracing:
#   enabled: false                 # Enable/disable tracing (default: false)
#   exporter: file                 # Export backend: none, file, stdout, otlp (default: file)
#   file_path: ~/.config/structds/traces/traces.jsonl
#   otlp_endpoint: localhost:4317  # OTLP collector endpoint (for otlp exporter)
#   sample_rate: 1.0               # Trace sampling rate 0.0-1.0 (default: 1.0)

# Debug log
log:
  # path: .structds/debug.log
  level: info

# dataset:watch inbox
watch:
  inbox: .structds/inbox
  debounce: 200ms

# Feature flags
# flags:
#   strict-uri-scheme: false   # Reject URIs without a scheme:// prefix
#   dispatch-events: false     # Print a line per dispatch
#   stream-decode: false       # Decoders return chunk streams
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
