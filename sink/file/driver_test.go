package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"batchscore/sink"
)

func newSink(t *testing.T, path string) sink.Adapter {
	t.Helper()
	s, err := sink.NewAdapter("file")
	require.NoError(t, err)
	require.NoError(t, s.Configure(Config{Path: path}))
	return s
}

func TestFileSink_WritesOneLabelPerLine(t *testing.T) {
	p := filepath.Join(t.TempDir(), "answers.txt")
	s := newSink(t, p)
	require.NoError(t, s.Write([]int{2, 0, 1, 10}))
	require.NoError(t, s.Close())

	got, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "2\n0\n1\n10\n", string(got))
}

func TestFileSink_EmptyVector(t *testing.T) {
	p := filepath.Join(t.TempDir(), "answers.txt")
	require.NoError(t, newSink(t, p).Write(nil))
	got, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFileSink_ReplacesExistingFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "answers.txt")
	require.NoError(t, os.WriteFile(p, []byte("stale\nstale\nstale\n"), 0o644))

	require.NoError(t, newSink(t, p).Write([]int{1}))
	got, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "1\n", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestFileSink_RejectsNegativeWithoutTouchingTarget(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "answers.txt")
	err := newSink(t, p).Write([]int{1, -1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
	_, statErr := os.Stat(p)
	assert.True(t, os.IsNotExist(statErr))
}

func TestFileSink_WritesOnce(t *testing.T) {
	s := newSink(t, filepath.Join(t.TempDir(), "answers.txt"))
	require.NoError(t, s.Write([]int{0}))
	assert.Error(t, s.Write([]int{0}))
}

func TestFileSink_IsDurable(t *testing.T) {
	s := newSink(t, filepath.Join(t.TempDir(), "answers.txt"))
	assert.True(t, sink.IsDurable(s))
}

func TestFileSink_Configure(t *testing.T) {
	s, err := sink.NewAdapter("file")
	require.NoError(t, err)
	assert.Error(t, s.Configure(Config{}))
	assert.Error(t, s.Configure("answers.txt"))

	_, err = sink.NewAdapter("kafka")
	assert.ErrorContains(t, err, `unknown sink "kafka"`)
}
