package pipeline

import (
	"fmt"
	"log/slog"

	"batchscore/internal/artifact"
	"batchscore/internal/config"
	"batchscore/internal/model"
	"batchscore/internal/telemetry"
	"batchscore/sink"
	"batchscore/sink/file"
	"batchscore/sink/stdout"
)

type Option func(*Runner)

func WithMetrics(m *telemetry.Metrics) Option { return func(r *Runner) { r.metrics = m } }

func WithLogger(l *slog.Logger) Option { return func(r *Runner) { r.log = l } }

func WithModelLoader(fn ModelLoader) Option { return func(r *Runner) { r.loadModel = fn } }

// LoadNetwork is the default ModelLoader.
func LoadNetwork(path string) (Classifier, error) {
	n, err := model.Load(path)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// Compile builds a Runner from configuration: artifact resolver, model
// loader and the configured sinks in order.
func Compile(cfg config.Config, opts ...Option) (*Runner, error) {
	res := artifact.New(cfg.Paths.ModelsDir, artifact.Files{
		Prepro:          cfg.Artifacts.Prepro,
		Meta:            cfg.Artifacts.Meta,
		Normalizer:      cfg.Artifacts.Normalizer,
		ModelCandidates: cfg.Artifacts.ModelCandidates,
	})
	r := NewRunner(cfg.Paths.Dataset, res, LoadNetwork)
	r.enforceNClasses = cfg.Model.EnforceNClasses
	for _, o := range opts {
		o(r)
	}

	for _, name := range cfg.Sinks {
		s, err := sink.NewAdapter(name)
		if err != nil {
			return nil, err
		}
		switch name {
		case "file":
			err = s.Configure(file.Config{Path: cfg.Paths.Output})
		case "stdout":
			err = s.Configure(stdout.Config{PrintCounter: cfg.Stdout.PrintCounter})
		default:
			err = fmt.Errorf("no config block for sink %q", name)
		}
		if err != nil {
			return nil, err
		}
		r.AddSink(s)
	}
	return r, nil
}
