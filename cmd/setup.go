package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-verify/internal/classifier"
	"github.com/kozaktomas/face-verify/internal/config"
	"github.com/kozaktomas/face-verify/internal/database"
	"github.com/kozaktomas/face-verify/internal/database/postgres"
	"github.com/kozaktomas/face-verify/internal/experiment"
	"github.com/kozaktomas/face-verify/internal/facenet"
	"github.com/kozaktomas/face-verify/internal/features"
	"github.com/kozaktomas/face-verify/internal/inference"
	"github.com/kozaktomas/face-verify/internal/pairs"
	"github.com/kozaktomas/face-verify/internal/train"
)

// addDataFlags registers the flags shared by every command that reads the pair table.
func addDataFlags(cmd *cobra.Command) {
	cmd.Flags().String("pairs", "", "Pair table CSV with file1,file2,label columns (overrides PAIRS_PATH)")
	cmd.Flags().String("images-root", "", "Directory the pair table paths are relative to (overrides IMAGES_ROOT)")
	cmd.Flags().Uint64("seed", 0, "Random seed for splitting and weight init (overrides SEED)")
}

// addModelFlags registers the flags that select the embedding backend.
func addModelFlags(cmd *cobra.Command) {
	cmd.Flags().String("embedding-url", "", "Embedding server URL (overrides EMBEDDING_URL)")
	cmd.Flags().Bool("allow-cpu", false, "Run even when the embedding server reports no accelerator")
	cmd.Flags().Bool("fail-fast", false, "Abort on the first pair that cannot be embedded instead of skipping it")
	cmd.Flags().Bool("no-progress", false, "Disable progress bars")
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// newLogger creates the process logger writing text records to stderr.
func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	level := cfg.Log.Level
	if flag, _ := cmd.Flags().GetString("log-level"); flag != "" {
		level = flag
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(level)}))
	slog.SetDefault(logger)
	return logger
}

// seedFor returns the --seed flag when set, otherwise the configured seed.
func seedFor(cmd *cobra.Command, cfg *config.Config) uint64 {
	if cmd.Flags().Changed("seed") {
		return mustGetUint64(cmd, "seed")
	}
	return cfg.Training.Seed
}

// loadTable reads the pair table named by --pairs or PAIRS_PATH.
func loadTable(cmd *cobra.Command, cfg *config.Config) ([]pairs.Pair, error) {
	path := mustGetString(cmd, "pairs")
	if path == "" {
		path = cfg.Data.PairsPath
	}
	if path == "" {
		return nil, errors.New("pair table is required: use --pairs or set PAIRS_PATH")
	}
	table, err := pairs.LoadCSV(path)
	if err != nil {
		return nil, err
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("pair table %s is empty", path)
	}
	return table, nil
}

func imagesRoot(cmd *cobra.Command, cfg *config.Config) string {
	if root := mustGetString(cmd, "images-root"); root != "" {
		return root
	}
	return cfg.Data.ImagesRoot
}

// checkEmbeddingDim rejects an embedding width the classifier cannot consume.
func checkEmbeddingDim(cfg *config.Config) error {
	if cfg.Embedding.Dim != classifier.InputDim {
		return fmt.Errorf("EMBEDDING_DIM %d does not match classifier input width %d", cfg.Embedding.Dim, classifier.InputDim)
	}
	return nil
}

// newExtractor connects to the embedding server and selects the compute device.
func newExtractor(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) (*features.Extractor, error) {
	if err := checkEmbeddingDim(cfg); err != nil {
		return nil, err
	}
	url := mustGetString(cmd, "embedding-url")
	if url == "" {
		url = cfg.Embedding.URL
	}
	client := facenet.NewClient(url)

	ic, err := inference.NewContext(ctx, client, client, inference.Options{
		Seed:               seedFor(cmd, cfg),
		RequireAccelerator: cfg.Embedding.RequireAccelerator && !mustGetBool(cmd, "allow-cpu"),
		Logger:             logger,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("embedding backend ready", "device", ic.Device)

	e := features.NewExtractor(ic, imagesRoot(cmd, cfg))
	e.Dim = cfg.Embedding.Dim
	e.BlurRadius = cfg.Data.BlurRadius
	return e, nil
}

// baseRunConfig builds the run defaults from the environment configuration.
func baseRunConfig(cmd *cobra.Command, cfg *config.Config) experiment.RunConfig {
	rc := experiment.DefaultRunConfig()
	rc.Epochs = cfg.Training.Epochs
	rc.LearningRate = cfg.Training.LearningRate
	rc.AdaptiveLearningRate = cfg.Training.AdaptiveLearningRate
	rc.Patience = cfg.Training.PlateauPatience
	rc.Factor = cfg.Training.PlateauFactor
	rc.Seed = seedFor(cmd, cfg)
	rc.BlurRadius = cfg.Data.BlurRadius
	rc.FailFast = mustGetBool(cmd, "fail-fast")
	rc.Policy = train.PolicyFixed
	return rc
}

func newProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionClearOnFinish(),
	)
}

// newRunner creates an experiment runner with progress bars unless disabled.
func newRunner(cmd *cobra.Command, e *features.Extractor, base experiment.RunConfig, logger *slog.Logger) *experiment.Runner {
	r := experiment.NewRunner(e, base)
	r.Logger = logger
	if !mustGetBool(cmd, "no-progress") {
		r.NewProgress = func(total int, description string) features.Progress {
			return newProgressBar(total, description)
		}
	}
	return r
}

// initRunStore connects to PostgreSQL, applies migrations and registers the
// run repository.
func initRunStore(ctx context.Context, cfg *config.Config) error {
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}
	if err := postgres.Initialize(ctx, &cfg.Database); err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	return nil
}

// openRunStore initializes the store and returns the registered run writer.
func openRunStore(ctx context.Context, cfg *config.Config) (database.RunWriter, error) {
	if err := initRunStore(ctx, cfg); err != nil {
		return nil, err
	}
	return database.GetRunWriter(ctx)
}

// closeRunStore closes the global pool if the store was initialized.
func closeRunStore() {
	if !database.IsInitialized() {
		return
	}
	if pool := postgres.GetGlobalPool(); pool != nil {
		pool.Close()
	}
}
