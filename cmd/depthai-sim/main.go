package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	dm "github.com/luxonis/depthai-viewer/devicemgr"
	api "github.com/luxonis/depthai-viewer/devicemgr/internal/http"
	"github.com/luxonis/depthai-viewer/devicemgr/internal/server"
)

// depthai-sim: in-memory DepthAI backend serving both the websocket and the
// REST API, for running devicemgr without hardware.
func main() {
	var (
		addr     string
		devices  []int64
		echoSeq  bool
		logLevel string
	)
	flagSet := pflag.NewFlagSet("depthai-sim", pflag.ExitOnError)
	flagSet.StringVar(&addr, "listen", ":9001", "listen address")
	flagSet.Int64SliceVar(&devices, "devices", []int64{1}, "simulated device ids")
	flagSet.BoolVar(&echoSeq, "echo-seq", true, "echo pipeline push counters")
	flagSet.StringVar(&logLevel, "log-level", "info", "log level")
	_ = flagSet.Parse(os.Args[1:])

	logger, err := dm.NewLogger(dm.LogConfig{Level: logLevel})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	ids := make([]dm.DeviceID, 0, len(devices))
	for _, d := range devices {
		ids = append(ids, dm.DeviceID(d))
	}
	backend := api.NewBackend(ids, &logger)
	backend.EchoSeq = echoSeq

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	_, bound, errCh, err := server.StartSimulator(ctx, server.SimulatorConfig{
		ListenAddr: addr,
		Backend:    backend,
		Logger:     &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start simulator")
	}
	logger.Info().Str("addr", bound).Interface("devices", ids).Msg("simulator running (ws /ws, REST /devices)")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received; stopping simulator")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("simulator stopped")
		}
	}
}
