package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	dm "github.com/luxonis/depthai-viewer/devicemgr"
	api "github.com/luxonis/depthai-viewer/devicemgr/internal/http"
)

// SimulatorConfig configures the simulated backend HTTP server.
type SimulatorConfig struct {
	ListenAddr  string          // address to bind (e.g. :9001)
	Backend     *api.Backend    // required
	Logger      *zerolog.Logger // optional
	ReadTimeout time.Duration   // optional
	IdleTimeout time.Duration   // optional
}

var ErrNilBackend = errors.New("simulator: backend is nil")

// NewHandler routes the websocket API at / and /ws plus the REST API used by
// the polling transport.
func NewHandler(b *api.Backend) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /devices", api.DevicesHandler(b))
	mux.HandleFunc("POST /devices/{id}", api.SelectDeviceHandler(b))
	mux.HandleFunc("POST /pipeline", api.PipelineHandler(b))
	mux.HandleFunc("PUT /subscriptions", api.SubscriptionsHandler(b))
	mux.HandleFunc("/ws", api.WebSocketHandler(b))
	mux.HandleFunc("/{$}", api.WebSocketHandler(b))
	return mux
}

// StartSimulator binds cfg.ListenAddr and serves NewHandler(cfg.Backend).
// It returns the server, the bound address, and a channel that receives a
// terminal error (if any). The server stops when ctx is canceled.
func StartSimulator(ctx context.Context, cfg SimulatorConfig) (*http.Server, string, <-chan error, error) {
	if cfg.Backend == nil {
		return nil, "", nil, ErrNilBackend
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":9001"
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "simulator").Logger()
	}

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return nil, "", nil, err
	}

	// no write timeout: websocket connections are long lived
	srv := &http.Server{
		Handler:     NewHandler(cfg.Backend),
		ReadTimeout: dm.DurationOr(cfg.ReadTimeout, 10*time.Second),
		IdleTimeout: dm.DurationOr(cfg.IdleTimeout, 60*time.Second),
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Info().Str("addr", ln.Addr().String()).Msg("simulated backend listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Shutdown watcher
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		// hijacked websocket connections are not tracked by Shutdown
		cfg.Backend.DropClients()
	}()

	return srv, ln.Addr().String(), errCh, nil
}
