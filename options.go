package devicemgr

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// AuthStrategy acquires an authorization header value (e.g., "Basic ..." or "Bearer ...").
type AuthStrategy interface {
	AuthorizationValue() (string, error)
}

// StaticAuth implements AuthStrategy using a pre-specified token value.
type StaticAuth struct{ Value string }

func (s StaticAuth) AuthorizationValue() (string, error) { return s.Value, nil }

// TransportKind selects the backend protocol iteration.
type TransportKind string

const (
	TransportWebSocket TransportKind = "websocket"
	TransportHTTP      TransportKind = "http"
)

// Options configures a device session.
type Options struct {
	BackendURL string        `yaml:"backend_url"` // websocket endpoint, e.g. ws://localhost:9001
	APIURL     string        `yaml:"api_url"`     // REST endpoint for the polling transport
	Transport  TransportKind `yaml:"transport"`

	Auth AuthStrategy `yaml:"-"`

	Polling        PollingConfig   `yaml:"polling"`
	Reconnect      ReconnectConfig `yaml:"reconnect"`
	RequestTimeout time.Duration   `yaml:"request_timeout"`

	Logging LogConfig `yaml:"logging"`
}

type PollingConfig struct {
	Devices time.Duration `yaml:"devices"` // catalog refresh while no device is selected
	Tick    time.Duration `yaml:"tick"`    // session update cadence
}

type ReconnectConfig struct {
	Interval         time.Duration `yaml:"interval"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
}

// DefaultOptions gives baseline sensible defaults for a local backend.
func DefaultOptions() Options {
	return Options{
		BackendURL: "ws://localhost:9001",
		APIURL:     "http://localhost:8000",
		Transport:  TransportWebSocket,
		Polling: PollingConfig{
			Devices: 2 * time.Second,
			Tick:    16 * time.Millisecond,
		},
		Reconnect: ReconnectConfig{
			Interval:         time.Second,
			HandshakeTimeout: 10 * time.Second,
		},
		RequestTimeout: 10 * time.Second,
		Logging:        LogConfig{Level: "info", Output: "stderr"},
	}
}

// LoadOptions reads a YAML file over DefaultOptions and applies DEPTHAI_*
// environment overrides. An empty path skips the file.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return opts, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &opts); err != nil {
			return opts, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	opts.applyEnv()
	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}

func (o *Options) applyEnv() {
	if v := os.Getenv("DEPTHAI_BACKEND_URL"); v != "" {
		o.BackendURL = v
	}
	if v := os.Getenv("DEPTHAI_API_URL"); v != "" {
		o.APIURL = v
	}
	if v := os.Getenv("DEPTHAI_TRANSPORT"); v != "" {
		o.Transport = TransportKind(v)
	}
	if v := os.Getenv("DEPTHAI_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			o.Polling.Devices = d
		}
	}
	if v := os.Getenv("DEPTHAI_AUTH"); v != "" {
		o.Auth = StaticAuth{Value: v}
	}
	if v := os.Getenv("DEPTHAI_LOG_LEVEL"); v != "" {
		o.Logging.Level = v
	}
}

// Validate checks the options a session cannot run without.
func (o Options) Validate() error {
	switch o.Transport {
	case TransportWebSocket:
		if err := checkURL(o.BackendURL, "ws", "wss"); err != nil {
			return fmt.Errorf("%w: backend_url: %v", ErrInvalidConfig, err)
		}
	case TransportHTTP:
		if err := checkURL(o.APIURL, "http", "https"); err != nil {
			return fmt.Errorf("%w: api_url: %v", ErrInvalidConfig, err)
		}
	default:
		return fmt.Errorf("%w: unknown transport %q", ErrInvalidConfig, o.Transport)
	}
	if o.Polling.Devices <= 0 {
		return fmt.Errorf("%w: polling.devices must be positive", ErrInvalidConfig)
	}
	if o.Polling.Tick <= 0 {
		return fmt.Errorf("%w: polling.tick must be positive", ErrInvalidConfig)
	}
	return nil
}

func checkURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, s := range schemes {
		if u.Scheme == s {
			if u.Host == "" {
				return fmt.Errorf("missing host in %q", raw)
			}
			return nil
		}
	}
	return fmt.Errorf("scheme %q not one of %v", u.Scheme, schemes)
}

// DurationOr returns d when v is unset.
func DurationOr(v time.Duration, d time.Duration) time.Duration {
	if v <= 0 {
		return d
	}
	return v
}
