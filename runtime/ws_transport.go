package runtime

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	dm "github.com/luxonis/depthai-viewer/devicemgr"
	"github.com/luxonis/depthai-viewer/devicemgr/wire"
)

// WebSocketTransport keeps a duplex channel to the backend's websocket API.
// A background loop dials, reads every text frame into an unbounded inbound
// queue and drains outbound messages; when the connection drops it redials
// after the reconnect interval. Connection failures are logged, never
// returned: a caller only notices missing replies.
type WebSocketTransport struct {
	url    string
	auth   dm.AuthStrategy
	dialer *websocket.Dialer
	retry  time.Duration
	logger zerolog.Logger

	connMu sync.Mutex
	conn   *websocket.Conn

	connected atomic.Bool
	closed    atomic.Bool

	inbound  *Queue[[]byte]
	outbound *Queue[[]byte]

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once
}

// WebSocketOptions configures a WebSocketTransport.
type WebSocketOptions struct {
	URL               string
	Auth              dm.AuthStrategy
	ReconnectInterval time.Duration // default 1s
	HandshakeTimeout  time.Duration // default 10s
	Logger            *zerolog.Logger
}

func NewWebSocketTransport(o WebSocketOptions) *WebSocketTransport {
	logger := zerolog.Nop()
	if o.Logger != nil {
		logger = dm.WithComponent(*o.Logger, "ws-transport")
	}
	return &WebSocketTransport{
		url:      o.URL,
		auth:     o.Auth,
		dialer:   &websocket.Dialer{HandshakeTimeout: dm.DurationOr(o.HandshakeTimeout, 10*time.Second)},
		retry:    dm.DurationOr(o.ReconnectInterval, time.Second),
		logger:   logger,
		inbound:  NewQueue[[]byte](),
		outbound: NewQueue[[]byte](),
	}
}

// Start launches the connect/read/write loop. It returns immediately; the
// loop stops when ctx is canceled or Shutdown is called.
func (t *WebSocketTransport) Start(ctx context.Context) {
	t.startOnce.Do(func() {
		if t.closed.Load() {
			return
		}
		ctx, cancel := context.WithCancel(ctx)
		t.cancel = cancel
		t.wg.Add(1)
		go t.run(ctx)
	})
}

func (t *WebSocketTransport) run(ctx context.Context) {
	defer t.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := t.dial(ctx)
		if err != nil {
			t.logger.Warn().Err(err).Str("url", t.url).Msg("websocket connect failed")
		} else {
			t.serve(ctx, conn)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(t.retry):
		}
	}
}

func (t *WebSocketTransport) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if t.auth != nil {
		if v, e := t.auth.AuthorizationValue(); e == nil && v != "" {
			header.Set("Authorization", v)
		}
	}
	conn, _, err := t.dialer.DialContext(ctx, t.url, header)
	return conn, err
}

// serve owns conn until it fails or ctx ends.
func (t *WebSocketTransport) serve(ctx context.Context, conn *websocket.Conn) {
	t.connMu.Lock()
	t.conn = conn
	t.connMu.Unlock()
	t.connected.Store(true)
	t.logger.Info().Str("url", t.url).Msg("websocket opened")

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		t.writeLoop(conn, stop)
	}()
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
		case <-stop:
		}
		_ = conn.Close()
	}()

	t.readLoop(conn)

	t.connected.Store(false)
	close(stop)
	wg.Wait()
	t.connMu.Lock()
	t.conn = nil
	t.connMu.Unlock()
	// anything still queued was meant for the dead connection
	t.outbound.Clear()
	t.logger.Info().Str("url", t.url).Msg("websocket closed")
}

func (t *WebSocketTransport) readLoop(conn *websocket.Conn) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if !t.closed.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.logger.Warn().Err(err).Msg("websocket read error")
			}
			return
		}
		if msgType != websocket.TextMessage {
			t.logger.Debug().Int("type", msgType).Msg("ignoring non-text frame")
			continue
		}
		t.inbound.Push(data)
	}
}

func (t *WebSocketTransport) writeLoop(conn *websocket.Conn, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-t.outbound.Ready():
		}
		for {
			payload, ok := t.outbound.TryPop()
			if !ok {
				break
			}
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				t.logger.Warn().Err(err).Msg("websocket write failed")
				_ = conn.Close()
				return
			}
		}
	}
}

// Send queues payload for the writer. It is dropped when the socket is not
// open or the transport was shut down.
func (t *WebSocketTransport) Send(payload []byte) {
	if t.closed.Load() {
		return
	}
	if !t.connected.Load() {
		t.logger.Debug().Int("bytes", len(payload)).Msg("not connected, dropping message")
		return
	}
	t.outbound.Push(payload)
}

// Receive returns the oldest inbound message, decoded.
func (t *WebSocketTransport) Receive() (wire.Event, bool) {
	if t.closed.Load() {
		return wire.Event{}, false
	}
	raw, ok := t.inbound.TryPop()
	if !ok {
		return wire.Event{}, false
	}
	ev := wire.Decode(raw)
	if ev.Kind == wire.KindError {
		t.logger.Debug().Str("message", ev.Error.Message).Msg("received error event")
	}
	return ev, true
}

func (t *WebSocketTransport) Connected() bool { return t.connected.Load() }

// Shutdown closes the socket and stops the background loop. Safe to call
// more than once.
func (t *WebSocketTransport) Shutdown() {
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		t.connected.Store(false)
		t.connMu.Lock()
		if t.conn != nil {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		}
		t.connMu.Unlock()
		if t.cancel != nil {
			t.cancel()
		}
		t.wg.Wait()
		t.inbound.Clear()
		t.outbound.Clear()
	})
}
