package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/structds/internal/config"
	"github.com/zjrosen/structds/internal/flags"
	"github.com/zjrosen/structds/internal/log"
	"github.com/zjrosen/structds/internal/presentation"
)

const defaultConfigPath = ".structds/config.yaml"

var (
	version = "dev"
	cfgFile string
	cfg     config.Config

	verbose bool
	jsonOut bool
	noColor bool

	// current is built in PersistentPreRunE and closed in PersistentPostRunE.
	current    *app
	logCleanup func()
)

var rootCmd = &cobra.Command{
	Use:   "structds",
	Short: "Encode and decode structured datasets through a handler registry",
	Long: `structds converts in-memory frames to storage-referencing literals and back.

Handlers are registered per (dataframe type, protocol, format). The protocol is
inferred from the dataset URI scheme and the format comes from the dataset or
the type's default.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
		return teardown(cmd.Context())
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: .structds/config.yaml or ~/.config/structds/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"mirror debug log entries to stderr")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false,
		"write JSON instead of tables")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false,
		"disable colored output")
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("storage.local_root", defaults.Storage.LocalRoot)
	viper.SetDefault("storage.memory_ttl", defaults.Storage.MemoryTTL)
	viper.SetDefault("handlers.parquet", defaults.Handlers.Parquet)
	viper.SetDefault("handlers.csv", defaults.Handlers.CSV)
	viper.SetDefault("handlers.sqlite", defaults.Handlers.SQLite)
	viper.SetDefault("handlers.chunk_rows", defaults.Handlers.ChunkRows)
	viper.SetDefault("handlers.sqlite_dir", defaults.Handlers.SQLiteDir)
	viper.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
	viper.SetDefault("log.level", defaults.Log.Level)
	viper.SetDefault("watch.inbox", defaults.Watch.Inbox)
	viper.SetDefault("watch.debounce", defaults.Watch.Debounce)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .structds/config.yaml (current directory)
		// 2. ~/.config/structds/config.yaml (user config)
		if _, err := os.Stat(defaultConfigPath); err == nil {
			viper.SetConfigFile(defaultConfigPath)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".config", "structds"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		// No config file found anywhere - create default at .structds/config.yaml
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			if writeErr := config.WriteDefaultConfig(defaultConfigPath); writeErr == nil {
				viper.SetConfigFile(defaultConfigPath)
				_ = viper.ReadInConfig()
			}
			// If write fails, just continue with defaults (no config file)
		}
	}

	_ = viper.Unmarshal(&cfg)
}

// configPath is where handlers:default persists pinned defaults.
func configPath() string {
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	return defaultConfigPath
}

func setup(cmd *cobra.Command, _ []string) error {
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if noColor || os.Getenv("NO_COLOR") != "" {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
	if err := initLogging(cmd.Context(), cmd.ErrOrStderr()); err != nil {
		return err
	}

	stream, _ := cmd.Flags().GetBool("stream")
	a, err := newApp(cfg, appOptions{stream: stream})
	if err != nil {
		return err
	}
	current = a
	if a.flags.Enabled(flags.FlagDispatchEvents) {
		a.mirrorEvents(cmd.Context(), presentation.NewFormatter(cmd.ErrOrStderr(), jsonOut))
	}
	return nil
}

func teardown(ctx context.Context) error {
	if current == nil {
		return nil
	}
	err := current.Close(ctx)
	current = nil
	log.Reset()
	if logCleanup != nil {
		logCleanup()
		logCleanup = nil
	}
	return err
}

// initLogging installs the file logger when configured and, with --verbose,
// mirrors every entry to stderr.
func initLogging(ctx context.Context, stderr io.Writer) error {
	if cfg.Log.Path == "" && !verbose {
		return nil
	}
	if cfg.Log.Path != "" {
		cleanup, err := log.Init(cfg.Log.Path)
		if err != nil {
			return fmt.Errorf("initializing logging: %w", err)
		}
		logCleanup = cleanup
	} else {
		log.InitWriter(nil)
	}

	level, _ := log.ParseLevel(cfg.Log.Level)
	if verbose {
		level = log.LevelDebug
	}
	log.SetMinLevel(level)

	if verbose {
		if ctx == nil {
			ctx = context.Background()
		}
		entries := log.Subscribe(ctx)
		go func() {
			for ev := range entries {
				_, _ = io.WriteString(stderr, ev.Payload)
			}
		}()
	}
	return nil
}

func formatter(cmd *cobra.Command) *presentation.Formatter {
	return presentation.NewFormatter(cmd.OutOrStdout(), jsonOut)
}

// Execute runs the root command
func Execute() error {
	err := rootCmd.Execute()
	if err != nil && jsonOut {
		_ = presentation.NewFormatter(os.Stderr, true).FormatError(presentation.FromError(err))
	}
	return err
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
