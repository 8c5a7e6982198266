package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/facegate/internal/config"
	"github.com/kozaktomas/facegate/internal/database"
	"github.com/kozaktomas/facegate/internal/database/postgres"
	"github.com/kozaktomas/facegate/internal/database/textstore"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "facegate",
	Short: "Face recognition door opener",
	Long: `Facegate watches a camera, matches every detected face against the enrolled
templates and unlocks the door for authorized people, at most once per cooldown.

Face detection and embedding run in external services; facegate only prepares the
crops, keeps the template database and decides when to unlock.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (environment variables still override it)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

// loadConfig reads and validates the configuration for a command.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger on stderr.
func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// openDatabase loads the template database from PostgreSQL when a URL is set and
// from the text file otherwise.
func openDatabase(ctx context.Context, cfg *config.Config) (*database.Database, error) {
	dim := cfg.Recognition.EmbeddingDim

	var store database.Store
	if cfg.Database.URL != "" {
		pg, err := postgres.Open(ctx, &cfg.Database, dim)
		if err != nil {
			return nil, &database.LoadError{Source: "postgres", Err: err}
		}
		store = pg
	} else {
		store = textstore.New(cfg.Database.Path, dim)
	}

	db, err := database.Open(ctx, store, dim)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return db, nil
}
