package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerFormats(t *testing.T) {
	c := Default()

	var buf bytes.Buffer
	slog.New(c.Handler(&buf)).Info("hello", "k", "v")
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec), "auto on a non-terminal is JSON")
	assert.Equal(t, "hello", rec["msg"])

	buf.Reset()
	c.Log.Format = FormatText
	slog.New(c.Handler(&buf)).Info("hello", "k", "v")
	assert.True(t, strings.Contains(buf.String(), "msg=hello"), buf.String())
}

func TestHandlerAutoOnRegularFile(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "log"))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, FormatJSON, Default().format(f))
}

func TestHandlerLevel(t *testing.T) {
	c := Default()
	var buf bytes.Buffer
	slog.New(c.Handler(&buf)).Debug("hidden")
	assert.Empty(t, buf.String())

	c.Trace.Loader = true
	c.normalize()
	slog.New(c.Handler(&buf)).Debug("shown")
	assert.Contains(t, buf.String(), "shown")
}
