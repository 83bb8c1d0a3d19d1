package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/nhle/todosync/internal/model"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestWriterFallsBackWithoutFile(t *testing.T) {
	var buf bytes.Buffer
	assert.Same(t, &buf, Writer(model.LogConfig{}, &buf))
}

func TestWriterRotatesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "todosync.log")

	w := Writer(model.LogConfig{File: path}, nil)
	lj, ok := w.(*lumberjack.Logger)
	require.True(t, ok)
	defer lj.Close()

	_, err := w.Write([]byte("hello\n"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))
}
