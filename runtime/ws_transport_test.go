package runtime

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dm "github.com/luxonis/depthai-viewer/devicemgr"
	api "github.com/luxonis/depthai-viewer/devicemgr/internal/http"
	"github.com/luxonis/depthai-viewer/devicemgr/internal/server"
	"github.com/luxonis/depthai-viewer/devicemgr/wire"
)

type receiver interface {
	Receive() (wire.Event, bool)
}

func nextEvent(t *testing.T, r receiver) wire.Event {
	t.Helper()
	var ev wire.Event
	require.Eventually(t, func() bool {
		var ok bool
		ev, ok = r.Receive()
		return ok
	}, 2*time.Second, 5*time.Millisecond)
	return ev
}

func mustEncode(t *testing.T) func([]byte, error) []byte {
	return func(raw []byte, err error) []byte {
		require.NoError(t, err)
		return raw
	}
}

func startWS(t *testing.T, b *api.Backend) *WebSocketTransport {
	t.Helper()
	srv := httptest.NewServer(server.NewHandler(b))
	t.Cleanup(srv.Close)
	t.Cleanup(b.DropClients)

	tr := NewWebSocketTransport(WebSocketOptions{
		URL:               "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
		ReconnectInterval: 20 * time.Millisecond,
	})
	t.Cleanup(tr.Shutdown)
	tr.Start(context.Background())
	require.Eventually(t, tr.Connected, 2*time.Second, 5*time.Millisecond)
	return tr
}

func TestWebSocketRoundTrip(t *testing.T) {
	b := api.NewBackend([]dm.DeviceID{7, 11}, nil)
	tr := startWS(t, b)
	enc := mustEncode(t)

	tr.Send(enc(wire.EncodeDevices()))
	ev := nextEvent(t, tr)
	assert.Equal(t, wire.KindDevices, ev.Kind)
	assert.Equal(t, []dm.DeviceID{7, 11}, ev.Devices)

	tr.Send(enc(wire.EncodeDevice(7)))
	ev = nextEvent(t, tr)
	assert.Equal(t, wire.KindDevice, ev.Kind)
	assert.Equal(t, dm.DeviceID(7), ev.Device.ID)

	tr.Send(enc(wire.EncodePipeline(dm.DefaultDeviceConfig().Normalize(), 1)))
	ev = nextEvent(t, tr)
	assert.Equal(t, wire.KindPipeline, ev.Kind)
	assert.True(t, ev.Pipeline.DepthEnabled)
}

func TestWebSocketUnsolicitedError(t *testing.T) {
	b := api.NewBackend([]dm.DeviceID{7}, nil)
	tr := startWS(t, b)
	_, err := b.SelectDevice(7)
	require.NoError(t, err)

	b.SetDevices(nil)
	ev := nextEvent(t, tr)
	assert.Equal(t, wire.KindError, ev.Kind)
	assert.Equal(t, dm.ActionFullReset, ev.Error.Action)
}

func TestWebSocketReconnects(t *testing.T) {
	b := api.NewBackend([]dm.DeviceID{7}, nil)
	tr := startWS(t, b)
	require.Eventually(t, func() bool { return b.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)

	b.DropClients()
	require.Eventually(t, func() bool {
		if !tr.Connected() {
			return false
		}
		tr.Send(mustEncode(t)(wire.EncodeDevices()))
		_, ok := tr.Receive()
		return ok
	}, 3*time.Second, 20*time.Millisecond)
}

func TestWebSocketShutdown(t *testing.T) {
	b := api.NewBackend([]dm.DeviceID{7}, nil)
	tr := startWS(t, b)

	tr.Shutdown()
	tr.Shutdown()
	assert.False(t, tr.Connected())

	sent := b.CountReceived(wire.KindDevices)
	tr.Send(mustEncode(t)(wire.EncodeDevices()))
	_, ok := tr.Receive()
	assert.False(t, ok)
	assert.Equal(t, sent, b.CountReceived(wire.KindDevices))
}

func TestWebSocketSendWhileDisconnectedDrops(t *testing.T) {
	tr := NewWebSocketTransport(WebSocketOptions{URL: "ws://127.0.0.1:1/ws"})
	defer tr.Shutdown()
	assert.False(t, tr.Connected())
	tr.Send([]byte(`{"type":"Devices","data":{}}`))
	assert.Zero(t, tr.outbound.Len())
}
