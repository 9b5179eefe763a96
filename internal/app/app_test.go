package app

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWiresTextLogger(t *testing.T) {
	t.Parallel()

	cfg, err := NewConfig(validConfig())
	require.NoError(t, err)

	out := &bytes.Buffer{}
	a := New(out, cfg)
	a.logger.Info("hello from the pipeline")

	assert.Contains(t, out.String(), "hello from the pipeline")
	assert.NotContains(t, out.String(), `"msg"`, "default format should be plain text, not JSON")
}

func TestNewWiresJSONLogger(t *testing.T) {
	t.Parallel()

	in := validConfig()
	in.LogFormat = "json"
	cfg, err := NewConfig(in)
	require.NoError(t, err)

	out := &bytes.Buffer{}
	a := New(out, cfg)
	a.logger.Info("hello", "cycles", 7)

	var record map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &record))
	assert.Equal(t, "hello", record["msg"])
	assert.Equal(t, float64(7), record["cycles"])
}

func TestNewHonorsLogLevel(t *testing.T) {
	t.Parallel()

	in := validConfig()
	in.LogLevel = "error"
	cfg, err := NewConfig(in)
	require.NoError(t, err)

	out := &bytes.Buffer{}
	a := New(out, cfg)
	a.logger.Info("suppressed")
	a.logger.Error("reported")

	assert.NotContains(t, out.String(), "suppressed")
	assert.Contains(t, out.String(), "reported")
}
