package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"batchscore/internal/config"
	"batchscore/internal/logging"
	"batchscore/internal/pipeline"
	"batchscore/internal/telemetry"
)

// Bootstrap configures logging and metrics and compiles the pipeline.
// Nothing is read from the models directory or the dataset until Run.
func Bootstrap(ctx context.Context, cfg config.Config, opts ...pipeline.Option) (*Engine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 1. logging: env first, config keys win
	lo := logging.FromEnv()
	if cfg.Log.Level != "" {
		lo.Level = cfg.Log.Level
	}
	lo.JSON = lo.JSON || cfg.Log.JSON
	logging.Configure(lo)

	runID := uuid.NewString()
	log := logging.Run(runID)

	// 2. metrics
	m := telemetry.New()
	m.Expose(cfg.Metrics.Port)

	// 3. pipeline runner
	base := []pipeline.Option{pipeline.WithMetrics(m), pipeline.WithLogger(log)}
	runner, err := pipeline.Compile(cfg, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	log.Info("engine ready",
		"dataset", cfg.Paths.Dataset, "models_dir", cfg.Paths.ModelsDir,
		"sinks", strings.Join(cfg.Sinks, ","))

	return &Engine{
		cfg:     cfg,
		runID:   runID,
		runner:  runner,
		metrics: m,
		log:     log,
	}, nil
}
