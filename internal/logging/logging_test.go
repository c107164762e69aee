package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, parseLevel(in), "level %q", in)
	}
}

func TestConfigure_JSONCarriesRunID(t *testing.T) {
	var buf bytes.Buffer
	Configure(Options{Level: "debug", JSON: true, Output: &buf})
	t.Cleanup(func() { Configure(Options{}) })

	Run("abc").Debug("stage done", "stage", "transform")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "abc", rec["run_id"])
	assert.Equal(t, "transform", rec["stage"])
	assert.Equal(t, "stage done", rec["msg"])
}

func TestInitFromEnv(t *testing.T) {
	t.Setenv("BATCHSCORE_LOG_LEVEL", "debug")
	t.Setenv("BATCHSCORE_LOG_JSON", "false")
	t.Cleanup(func() { Configure(Options{}) })

	InitFromEnv()
	assert.True(t, L().Enabled(context.Background(), slog.LevelDebug))

	t.Setenv("BATCHSCORE_LOG_LEVEL", "error")
	InitFromEnv()
	assert.False(t, L().Enabled(context.Background(), slog.LevelWarn))
}

func TestFromEnv(t *testing.T) {
	t.Setenv("BATCHSCORE_LOG_LEVEL", "warn")
	t.Setenv("BATCHSCORE_LOG_JSON", "true")
	opts := FromEnv()
	assert.Equal(t, "warn", opts.Level)
	assert.True(t, opts.JSON)

	t.Setenv("BATCHSCORE_LOG_JSON", "nope")
	assert.False(t, FromEnv().JSON)
}
