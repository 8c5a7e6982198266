package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/facegate/internal/actuator"
	"github.com/kozaktomas/facegate/internal/config"
	"github.com/kozaktomas/facegate/internal/database"
	"github.com/kozaktomas/facegate/internal/facematch"
	"github.com/kozaktomas/facegate/internal/gate"
	"github.com/kozaktomas/facegate/internal/inference"
	"github.com/kozaktomas/facegate/internal/recognition"
	"github.com/kozaktomas/facegate/internal/source"
	"github.com/kozaktomas/facegate/internal/web"
	"github.com/kozaktomas/facegate/internal/web/handlers"
)

var recognizeCmd = &cobra.Command{
	Use:   "recognize",
	Short: "Watch the camera and unlock for authorized faces",
	Long: `Load the template database, read frames from the configured source and
unlock the door when an authorized label is recognized.

The source is an HTTP snapshot URL (SOURCE_URL) or a directory of frames to
replay (SOURCE_DIR). Runs until interrupted, or until a replayed directory ends.`,
	Args: cobra.NoArgs,
	RunE: runRecognize,
}

func init() {
	rootCmd.AddCommand(recognizeCmd)

	recognizeCmd.Flags().String("listen", "", "Address for the status API, e.g. :8080 (overrides WEB_LISTEN)")
	recognizeCmd.Flags().Bool("dry-run", false, "Log unlocks instead of calling the actuator")
	recognizeCmd.Flags().String("source-dir", "", "Replay frames from this directory instead of the camera")
	recognizeCmd.Flags().Float64("threshold", 0, "Maximum match distance (overrides FACEGATE_THRESHOLD)")
	recognizeCmd.Flags().Int("workers", 0, "Regions embedded in parallel (overrides FACEGATE_WORKERS)")
	recognizeCmd.Flags().StringSlice("authorized", nil, "Labels allowed to unlock (overrides FACEGATE_AUTHORIZED_LABELS)")
}

// applyRecognizeFlags lets command-line flags override the loaded configuration.
func applyRecognizeFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	overrideFlag(cmd, "source-dir", flags.GetString, &cfg.Source.Dir)
	overrideFlag(cmd, "listen", flags.GetString, &cfg.Web.Listen)
	overrideFlag(cmd, "threshold", flags.GetFloat64, &cfg.Recognition.Threshold)
	overrideFlag(cmd, "workers", flags.GetInt, &cfg.Recognition.Workers)
	overrideFlag(cmd, "authorized", flags.GetStringSlice, &cfg.Gate.AuthorizedLabels)
	return cfg.Validate()
}

func newMatcher(cfg *config.Config, db *database.Database) (database.Matcher, error) {
	if cfg.Recognition.Index != config.IndexHNSW {
		return db, nil
	}
	idx, err := database.NewHNSWIndex(db.Records(), db.Dim())
	if err != nil {
		return nil, fmt.Errorf("building HNSW index: %w", err)
	}
	return idx, nil
}

func newActuator(cfg *config.Config, dryRun bool, logger *slog.Logger) (gate.Actuator, error) {
	if dryRun || cfg.Actuator.DryRun {
		logger.Warn("dry run: the door will not be unlocked")
		return actuator.NewDryRun(logger), nil
	}
	a, err := actuator.New(cfg.Actuator)
	if err != nil {
		return nil, fmt.Errorf("actuator: %w", err)
	}
	return a, nil
}

func runRecognize(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyRecognizeFlags(cmd, cfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	logger := newLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("templates loaded", "store", db.StoreName(), "templates", db.Len(), "labels", len(db.Labels()), "dim", db.Dim())
	if db.Len() == 0 {
		logger.Warn("template database is empty, every face will be unknown")
	}

	matcher, err := newMatcher(cfg, db)
	if err != nil {
		return err
	}

	act, err := newActuator(cfg, mustGetBool(cmd, "dry-run"), logger)
	if err != nil {
		return err
	}
	if len(cfg.Gate.AuthorizedLabels) == 0 {
		logger.Warn("no authorized labels configured, the door will never unlock")
	}
	g := gate.New(act, cfg.Gate.Cooldown, cfg.Gate.AuthorizedLabels, gate.WithLogger(logger))

	order, err := facematch.ParseChannelOrder(cfg.Recognition.ChannelOrder)
	if err != nil {
		return err
	}
	classifier := recognition.NewClassifier(matcher, cfg.Recognition.Threshold)
	pipeline := recognition.NewPipeline(
		inference.NewEmbedder(cfg.Embedder.URL, cfg.Embedder.Timeout),
		classifier,
		g,
		recognition.WithWorkers(cfg.Recognition.Workers),
		recognition.WithChannelOrder(order),
		recognition.WithDim(db.Dim()),
	)

	src, err := source.Open(ctx, cfg.Source)
	if err != nil {
		return err
	}
	defer src.Close()

	runner := recognition.NewRunner(src,
		inference.NewDetector(cfg.Detector.URL, cfg.Detector.Timeout),
		pipeline,
		recognition.WithFrameBuffer(cfg.Recognition.FrameBuffer),
		recognition.WithRunnerLogger(logger),
	)

	if cfg.Web.Listen != "" {
		server := web.NewServer(cfg.Web.Listen, handlers.NewStatusHandler(db, g, runner, classifier.Threshold()), logger)
		go func() {
			if err := server.Start(); err != nil {
				logger.Error("status server stopped", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Error("error during shutdown", "error", err)
			}
		}()
	}

	logger.Info("recognizer running",
		"threshold", cfg.Recognition.Threshold,
		"cooldown", cfg.Gate.Cooldown,
		"authorized", len(cfg.Gate.AuthorizedLabels),
		"index", cfg.Recognition.Index,
	)

	err = runner.Run(ctx)
	stats := runner.Stats()
	logger.Info("recognizer stopped",
		"frames_processed", stats.FramesProcessed,
		"frames_dropped", stats.FramesDropped,
		"unlocks", g.Stats().Fired,
	)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
