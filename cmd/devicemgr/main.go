package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	dm "github.com/luxonis/depthai-viewer/devicemgr"
	"github.com/luxonis/depthai-viewer/devicemgr/runtime"
	"github.com/luxonis/depthai-viewer/devicemgr/session"
)

// devicemgr: headless device session. It connects to a DepthAI backend,
// selects a device and keeps the session reconciled until interrupted.
func main() {
	if err := run(); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		transport  string
		backendURL string
		device     int64
		persist    string
		logLevel   string
	)
	flagSet := pflag.NewFlagSet("devicemgr", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "YAML options file")
	flagSet.StringVar(&transport, "transport", "", "websocket or http (overrides config)")
	flagSet.StringVar(&backendURL, "backend", "", "backend URL for the chosen transport (overrides config)")
	flagSet.Int64Var(&device, "device", int64(dm.NoDevice), "device id to select; -1 picks the first one reported")
	flagSet.StringVar(&persist, "persist", "", "file holding the device config between runs")
	flagSet.StringVar(&logLevel, "log-level", "", "log level (overrides config)")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return err
	}

	opts, err := dm.LoadOptions(configPath)
	if err != nil {
		return err
	}
	if transport != "" {
		opts.Transport = dm.TransportKind(transport)
	}
	if backendURL != "" {
		if opts.Transport == dm.TransportHTTP {
			opts.APIURL = backendURL
		} else {
			opts.BackendURL = backendURL
		}
	}
	if logLevel != "" {
		opts.Logging.Level = logLevel
	}
	if err := opts.Validate(); err != nil {
		return err
	}

	logger, err := dm.NewLogger(opts.Logging)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	t, err := newTransport(ctx, opts, &logger)
	if err != nil {
		return err
	}

	sessOpts := session.Options{
		PollInterval:   opts.Polling.Devices,
		RequestTimeout: opts.RequestTimeout,
		Logger:         &logger,
	}
	if persist != "" {
		p, err := session.LoadPersisted(persist)
		switch {
		case err == nil:
			sessOpts.Restore = p
		case errors.Is(err, os.ErrNotExist):
		default:
			logger.Warn().Err(err).Str("path", persist).Msg("ignoring persisted state")
		}
	}

	state := session.New(t, sessOpts)
	logger.Info().Str("transport", string(opts.Transport)).Msg("device session started")

	ticker := time.NewTicker(opts.Polling.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutdown signal received")
			state.Shutdown()
			if persist != "" {
				if err := state.Persisted().Save(persist); err != nil {
					logger.Error().Err(err).Str("path", persist).Msg("save persisted state")
				}
			}
			return nil
		case <-ticker.C:
			state.Update()
			autoSelect(state, dm.DeviceID(device))
		}
	}
}

func newTransport(ctx context.Context, opts dm.Options, logger *zerolog.Logger) (session.Transport, error) {
	switch opts.Transport {
	case dm.TransportHTTP:
		return runtime.NewPollTransport(runtime.PollOptions{
			BaseURL:        opts.APIURL,
			Auth:           opts.Auth,
			RequestTimeout: opts.RequestTimeout,
			Logger:         logger,
		})
	default:
		t := runtime.NewWebSocketTransport(runtime.WebSocketOptions{
			URL:               opts.BackendURL,
			Auth:              opts.Auth,
			ReconnectInterval: opts.Reconnect.Interval,
			HandshakeTimeout:  opts.Reconnect.HandshakeTimeout,
			Logger:            logger,
		})
		t.Start(ctx)
		return t, nil
	}
}

// autoSelect picks want, or the first reported device, once the catalog is known.
func autoSelect(state *session.State, want dm.DeviceID) {
	if state.SelectedDevice() != dm.NoDevice || !state.DevicesKnown() {
		return
	}
	devices := state.GetDevices()
	if len(devices) == 0 {
		return
	}
	if want == dm.NoDevice {
		want = devices[0]
	}
	if state.HasDevice(want) {
		state.SetDevice(want)
	}
}
