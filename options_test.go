package devicemgr

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultOptionsValid(t *testing.T) {
	opts := DefaultOptions()
	require.NoError(t, opts.Validate())
	assert.Equal(t, 2*time.Second, opts.Polling.Devices)
	assert.Equal(t, TransportWebSocket, opts.Transport)
}

func TestLoadOptionsFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devicemgr.yaml")
	doc := `transport: http
api_url: http://backend:8000
polling:
  devices: 5s
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	t.Setenv("DEPTHAI_POLL_INTERVAL", "3s")
	t.Setenv("DEPTHAI_AUTH", "Bearer x")
	opts, err := LoadOptions(path)
	require.NoError(t, err)
	assert.Equal(t, TransportHTTP, opts.Transport)
	assert.Equal(t, "http://backend:8000", opts.APIURL)
	assert.Equal(t, 3*time.Second, opts.Polling.Devices)
	assert.Equal(t, 16*time.Millisecond, opts.Polling.Tick, "unset keys keep defaults")
	assert.Equal(t, "debug", opts.Logging.Level)
	v, err := opts.Auth.AuthorizationValue()
	require.NoError(t, err)
	assert.Equal(t, "Bearer x", v)
}

func TestLoadOptionsErrors(t *testing.T) {
	_, err := LoadOptions(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	t.Setenv("DEPTHAI_TRANSPORT", "carrier-pigeon")
	_, err = LoadOptions("")
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"bad ws scheme", func(o *Options) { o.BackendURL = "http://localhost:9001" }},
		{"missing host", func(o *Options) { o.BackendURL = "ws://" }},
		{"bad api url", func(o *Options) { o.Transport = TransportHTTP; o.APIURL = "ws://x" }},
		{"zero poll", func(o *Options) { o.Polling.Devices = 0 }},
		{"zero tick", func(o *Options) { o.Polling.Tick = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.mutate(&opts)
			assert.ErrorIs(t, opts.Validate(), ErrInvalidConfig)
		})
	}
}

func TestNewLogger(t *testing.T) {
	l, err := NewLogger(LogConfig{Level: "warn"})
	require.NoError(t, err)
	assert.Equal(t, "warn", l.GetLevel().String())

	l, err = NewLogger(LogConfig{Level: "warn", Debug: true})
	require.NoError(t, err)
	assert.Equal(t, "debug", l.GetLevel().String())

	_, err = NewLogger(LogConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestDurationOr(t *testing.T) {
	assert.Equal(t, time.Second, DurationOr(0, time.Second))
	assert.Equal(t, time.Second, DurationOr(-time.Second, time.Second))
	assert.Equal(t, 2*time.Second, DurationOr(2*time.Second, time.Second))
}
