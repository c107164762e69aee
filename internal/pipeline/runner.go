package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"batchscore/internal/artifact"
	"batchscore/internal/contract"
	"batchscore/internal/features"
	"batchscore/internal/logging"
	"batchscore/internal/telemetry"
	"batchscore/sink"
	"batchscore/source/csvfile"
)

// Classifier scores a feature matrix, one class index per row.
type Classifier interface {
	ID() string
	OutputDim() int
	Predict(x *features.Matrix) ([]int, error)
}

// ModelLoader opens the classifier found at path.
type ModelLoader func(path string) (Classifier, error)

// Result describes one finished run.
type Result struct {
	Rows        int
	ModelPath   string
	Model       string
	Layout      contract.Layout
	Predictions []int
}

type Runner struct {
	dataset         string
	resolver        *artifact.Resolver
	loadModel       ModelLoader
	enforceNClasses bool

	sinks   []sink.Adapter
	metrics *telemetry.Metrics
	log     *slog.Logger
}

func NewRunner(dataset string, resolver *artifact.Resolver, load ModelLoader) *Runner {
	return &Runner{
		dataset:   dataset,
		resolver:  resolver,
		loadModel: load,
		metrics:   telemetry.New(),
		log:       logging.L(),
	}
}

func (r *Runner) AddSink(s sink.Adapter) { r.sinks = append(r.sinks, s) }

// Run executes every stage in order and hands the predictions to the sinks.
// Nothing is written unless all earlier stages succeed.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	var (
		res   Result
		clf   Classifier
		c     *contract.Contract
		ds    *csvfile.Dataset
		x     *features.Matrix
		preds []int
	)
	if len(r.sinks) == 0 {
		return res, errors.New("runner: no sinks configured")
	}

	stages := []struct {
		name string
		fn   func() error
	}{
		{"dataset", func() error {
			info, err := os.Stat(r.dataset)
			if err != nil || info.IsDir() {
				return &contract.NotFoundError{What: "dataset", Searched: []string{r.dataset}}
			}
			return nil
		}},
		{"model", func() error {
			path, err := r.resolver.LocateModel()
			if err != nil {
				return err
			}
			if clf, err = r.loadModel(path); err != nil {
				return err
			}
			res.ModelPath, res.Model = path, filepath.Base(path)
			r.log.Info("model loaded", "path", path, "id", clf.ID(), "classes", clf.OutputDim())
			return nil
		}},
		{"contract", func() error {
			var err error
			if c, err = r.resolver.Resolve(); err != nil {
				return err
			}
			res.Layout = c.Layout
			r.log.Info("preprocessing contract resolved",
				"layout", c.Layout.String(), "files", c.Files,
				"columns", len(c.FeatureColumns), "clipping", c.Clipping())
			return nil
		}},
		{"read", func() error {
			var err error
			if ds, err = csvfile.Open(r.dataset); err != nil {
				return err
			}
			r.log.Info("dataset read", "path", r.dataset, "rows", ds.Len(), "columns", len(ds.Header()))
			return nil
		}},
		{"transform", func() error {
			var err error
			x, err = features.Transform(ds, c)
			return err
		}},
		{"dimension", func() error { return features.CheckDim(x, c) }},
		{"predict", func() error {
			if err := r.checkClasses(c, clf); err != nil {
				return err
			}
			var err error
			if preds, err = clf.Predict(x); err != nil {
				return err
			}
			if len(preds) != x.Rows {
				return fmt.Errorf("classifier returned %d predictions for %d rows", len(preds), x.Rows)
			}
			r.metrics.Scored(preds)
			return nil
		}},
		{"write", func() error {
			for _, s := range r.writeOrder() {
				if err := s.Write(preds); err != nil {
					return err
				}
			}
			return nil
		}},
	}

	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("%s: %w", st.name, err)
		}
		start := time.Now()
		r.log.Debug("stage start", "stage", st.name)
		err := st.fn()
		r.metrics.ObserveStage(st.name, start)
		if err != nil {
			return res, fmt.Errorf("%s: %w", st.name, err)
		}
		r.log.Debug("stage done", "stage", st.name, "elapsed", time.Since(start))
	}

	res.Rows = len(preds)
	res.Predictions = preds
	return res, nil
}

// writeOrder puts durable sinks last so a failing sink never leaves a
// committed answers file behind.
func (r *Runner) writeOrder() []sink.Adapter {
	out := make([]sink.Adapter, 0, len(r.sinks))
	var durable []sink.Adapter
	for _, s := range r.sinks {
		if sink.IsDurable(s) {
			durable = append(durable, s)
			continue
		}
		out = append(out, s)
	}
	return append(out, durable...)
}

func (r *Runner) checkClasses(c *contract.Contract, clf Classifier) error {
	if c.NClasses <= 0 || c.NClasses == clf.OutputDim() {
		return nil
	}
	if r.enforceNClasses {
		return fmt.Errorf("%w: n_classes %d vs model output %d",
			contract.ErrDimensionMismatch, c.NClasses, clf.OutputDim())
	}
	r.log.Warn("n_classes disagrees with model output width",
		"n_classes", c.NClasses, "model_output", clf.OutputDim())
	return nil
}

// Close releases every sink and returns the first error.
func (r *Runner) Close() error {
	var first error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
