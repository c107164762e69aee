package engine

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"

	"batchscore/internal/config"
	"batchscore/internal/contract"
	"batchscore/internal/pipeline"
	"batchscore/internal/telemetry"
)

type Engine struct {
	cfg     config.Config
	runID   string
	runner  *pipeline.Runner
	metrics *telemetry.Metrics
	log     *slog.Logger
}

// Summary is what a successful run reports back to the caller.
type Summary struct {
	RunID  string
	Rows   int
	Model  string // file name of the model that scored the rows
	Output string // empty when no file sink is configured
	Layout contract.Layout
}

func (s Summary) String() string {
	out := s.Output
	if out == "" {
		out = "predictions"
	} else {
		out = filepath.Base(out)
	}
	return fmt.Sprintf("%s written (%d lines). Model: %s", out, s.Rows, s.Model)
}

// Run scores the dataset once. Sinks are closed and metrics flushed on
// every path.
func (e *Engine) Run(ctx context.Context) (Summary, error) {
	res, err := e.runner.Run(ctx)
	e.metrics.RunFinished(err)

	if cerr := e.runner.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("close sinks: %w", cerr)
	}
	if werr := e.metrics.WriteTextfile(e.cfg.Metrics.Textfile); werr != nil {
		e.log.Warn("metrics textfile not written", "path", e.cfg.Metrics.Textfile, "err", werr)
	}
	if err != nil {
		e.log.Error("run failed", "err", err)
		return Summary{RunID: e.runID}, err
	}

	s := Summary{
		RunID:  e.runID,
		Rows:   res.Rows,
		Model:  res.Model,
		Layout: res.Layout,
	}
	if slices.Contains(e.cfg.Sinks, "file") {
		s.Output = e.cfg.Paths.Output
	}
	e.log.Info("run finished", "rows", s.Rows, "model", res.ModelPath, "layout", s.Layout.String())
	return s, nil
}
