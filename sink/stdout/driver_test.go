package stdout

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"batchscore/sink"
)

func TestStdoutSink(t *testing.T) {
	var buf bytes.Buffer
	s, err := sink.NewAdapter("stdout")
	require.NoError(t, err)
	require.NoError(t, s.Configure(Config{Out: &buf}))
	require.NoError(t, s.Write([]int{3, 1}))
	assert.Equal(t, "3\n1\n", buf.String())

	buf.Reset()
	require.NoError(t, s.Configure(Config{Out: &buf, PrintCounter: true}))
	require.NoError(t, s.Write([]int{3, 1}))
	assert.Equal(t, "[row 000001] 3\n[row 000002] 1\n", buf.String())
	assert.NoError(t, s.Close())

	assert.Error(t, s.Configure(42))
	assert.False(t, sink.IsDurable(s))
}
