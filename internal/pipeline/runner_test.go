package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"batchscore/internal/config"
	"batchscore/internal/contract"
	"batchscore/internal/features"
	"batchscore/internal/model"
	"batchscore/internal/telemetry"
)

/*──────── fixtures ───────*/

const agePrepro = `{
  "num_cols": ["age", "income"],
  "means": {"age": 30, "income": 50000},
  "stds": {"age": 10, "income": 20000},
  "clip_bounds": {"age": [0, 35]},
  "input_dim": 2,
  "n_classes": 2
}`

// identity picks the larger of the two standardized features.
func identity(name string) *model.Network {
	return &model.Network{Name: name, InputDim: 2, Layers: []model.Layer{{
		Units: 2, Activation: "linear",
		Weights: [][]float64{{1, 0}, {0, 1}},
		Bias:    []float64{0, 0},
	}}}
}

// swapped inverts identity's answers.
func swapped(name string) *model.Network {
	n := identity(name)
	n.Layers[0].Weights = [][]float64{{0, 1}, {1, 0}}
	return n
}

type workspace struct {
	dir string
	cfg config.Config
}

func newWorkspace(t *testing.T, csv string, prepro string) *workspace {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "data"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "models"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data", "quiz.csv"), []byte(csv), 0o644))
	if prepro != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "models", "prepro.json"), []byte(prepro), 0o644))
	}

	cfg := config.Default()
	cfg.Paths.Dataset = filepath.Join(dir, "data", "quiz.csv")
	cfg.Paths.ModelsDir = filepath.Join(dir, "models")
	cfg.Paths.Output = filepath.Join(dir, "answers.txt")
	return &workspace{dir: dir, cfg: cfg}
}

func (w *workspace) saveModel(t *testing.T, name string, n *model.Network) {
	t.Helper()
	require.NoError(t, n.Save(filepath.Join(w.dir, "models", name)))
}

func (w *workspace) run(t *testing.T, ctx context.Context, opts ...Option) (Result, error) {
	t.Helper()
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	r, err := Compile(w.cfg, opts...)
	require.NoError(t, err)
	defer r.Close()
	return r.Run(ctx)
}

func (w *workspace) answers(t *testing.T) (string, bool) {
	t.Helper()
	raw, err := os.ReadFile(w.cfg.Paths.Output)
	if errors.Is(err, os.ErrNotExist) {
		return "", false
	}
	require.NoError(t, err)
	return string(raw), true
}

/*──────── fake classifier ───────*/

// echo predicts the (rounded) first feature of every row.
type echo struct{ classes int }

func (e echo) ID() string     { return "echo" }
func (e echo) OutputDim() int { return e.classes }
func (e echo) Predict(x *features.Matrix) ([]int, error) {
	out := make([]int, x.Rows)
	for i := range out {
		out[i] = int(x.At(i, 0) + 0.5)
	}
	return out, nil
}

func echoLoader(classes int) ModelLoader {
	return func(string) (Classifier, error) { return echo{classes: classes}, nil }
}

/*──────── tests ───────*/

func TestRunner_PreservesRowOrder(t *testing.T) {
	w := newWorkspace(t, "note,id\nc,3\na,1\nb,2\nz,0\nq,7\n", `{
  "num_cols": ["id"], "means": {"id": 0}, "stds": {"id": 1},
  "input_dim": 1, "n_classes": 8
}`)
	w.saveModel(t, "mlp_best.json", identity("unused"))

	res, err := w.run(t, context.Background(), WithModelLoader(echoLoader(8)))
	require.NoError(t, err)
	assert.Equal(t, 5, res.Rows)
	assert.Equal(t, []int{3, 1, 2, 0, 7}, res.Predictions)

	got, ok := w.answers(t)
	require.True(t, ok)
	assert.Equal(t, "3\n1\n2\n0\n7\n", got)
}

func TestCompile_EndToEndWithNetwork(t *testing.T) {
	// age 40 clips to 35 -> 0.5, income 70000 -> 1.0
	w := newWorkspace(t, "income,region,age\n70000,north,40\n30000,south,50\n50000,east,10\n", agePrepro)
	w.saveModel(t, "mlp_best.json", identity("best"))
	w.saveModel(t, "mlp_final.json", swapped("final"))

	m := telemetry.New()
	res, err := w.run(t, context.Background(), WithMetrics(m))
	require.NoError(t, err)

	assert.Equal(t, 3, res.Rows)
	assert.Equal(t, "mlp_best.json", res.Model)
	assert.Equal(t, contract.LayoutPrepro, res.Layout)

	got, ok := w.answers(t)
	require.True(t, ok)
	assert.Equal(t, "1\n0\n1\n", got)

	expected := `
# HELP batchscore_rows_scored_total Dataset rows that received a prediction.
# TYPE batchscore_rows_scored_total counter
batchscore_rows_scored_total 3
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "batchscore_rows_scored_total"))
}

func TestCompile_FallsBackToFinalModel(t *testing.T) {
	w := newWorkspace(t, "income,region,age\n70000,north,40\n", agePrepro)
	w.saveModel(t, "mlp_final.json", swapped("final"))

	res, err := w.run(t, context.Background())
	require.NoError(t, err)
	assert.Equal(t, "mlp_final.json", res.Model)

	got, _ := w.answers(t)
	assert.Equal(t, "0\n", got)
}

func TestRunner_FailuresLeaveNoOutput(t *testing.T) {
	cases := map[string]struct {
		csv    string
		prepro string
		model  bool
		setup  func(w *workspace)
		want   error
	}{
		"missing income column": {
			csv: "age,region\n40,north\n", prepro: agePrepro, model: true,
			want: contract.ErrColumnAlignment,
		},
		"no artifacts": {
			csv: "age,income\n40,1\n", model: true,
			want: contract.ErrArtifactNotFound,
		},
		"no model": {
			csv: "age,income\n40,1\n", prepro: agePrepro,
			want: contract.ErrArtifactNotFound,
		},
		"missing dataset": {
			csv: "age,income\n40,1\n", prepro: agePrepro, model: true,
			setup: func(w *workspace) { w.cfg.Paths.Dataset = filepath.Join(w.dir, "data", "nope.csv") },
			want:  contract.ErrArtifactNotFound,
		},
		"input_dim disagrees with columns": {
			csv: "age,income\n40,1\n", model: true,
			prepro: `{"num_cols": ["age", "income"], "means": {"age": 0, "income": 0},
			          "stds": {"age": 1, "income": 1}, "input_dim": 3, "n_classes": 2}`,
			want: contract.ErrDimensionMismatch,
		},
		"strict n_classes": {
			csv: "age,income\n40,1\n", model: true,
			prepro: `{"num_cols": ["age", "income"], "means": {"age": 0, "income": 0},
			          "stds": {"age": 1, "income": 1}, "input_dim": 2, "n_classes": 5}`,
			setup: func(w *workspace) { w.cfg.Model.EnforceNClasses = true },
			want:  contract.ErrDimensionMismatch,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			w := newWorkspace(t, tc.csv, tc.prepro)
			if tc.model {
				w.saveModel(t, "mlp_best.json", identity("best"))
			}
			if tc.setup != nil {
				tc.setup(w)
			}
			_, err := w.run(t, context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)

			_, ok := w.answers(t)
			assert.False(t, ok, "answers file written on failure")
		})
	}
}

func TestRunner_LenientNClasses(t *testing.T) {
	w := newWorkspace(t, "age,income\n40,1\n", `{"num_cols": ["age", "income"],
	  "means": {"age": 0, "income": 0}, "stds": {"age": 1, "income": 1},
	  "input_dim": 2, "n_classes": 5}`)
	w.saveModel(t, "mlp_best.json", identity("best"))

	res, err := w.run(t, context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rows)
}

func TestRunner_CancelledContext(t *testing.T) {
	w := newWorkspace(t, "income,region,age\n70000,north,40\n", agePrepro)
	w.saveModel(t, "mlp_best.json", identity("best"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := w.run(t, ctx)
	assert.ErrorIs(t, err, context.Canceled)
	_, ok := w.answers(t)
	assert.False(t, ok)
}

// brokenSink records writes and fails every one of them.
type brokenSink struct{ writes int }

func (b *brokenSink) Configure(any) error { return nil }
func (b *brokenSink) Write([]int) error {
	b.writes++
	return errors.New("pipe closed")
}
func (b *brokenSink) Close() error { return nil }

func TestRunner_FailingSinkLeavesNoAnswersFile(t *testing.T) {
	w := newWorkspace(t, "income,region,age\n70000,north,40\n", agePrepro)
	w.saveModel(t, "mlp_best.json", identity("best"))
	w.cfg.Sinks = []string{"file"}

	r, err := Compile(w.cfg, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	bs := &brokenSink{}
	r.AddSink(bs) // registered after the file sink
	defer r.Close()

	_, err = r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write: pipe closed")
	assert.Equal(t, 1, bs.writes)

	_, ok := w.answers(t)
	assert.False(t, ok, "answers file committed although a sink failed")
}

func TestCompile_UnknownSink(t *testing.T) {
	cfg := config.Default()
	cfg.Sinks = []string{"kafka"}
	_, err := Compile(cfg)
	assert.Error(t, err)
}
