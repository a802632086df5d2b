package runtime

import (
	"net/http"
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

func startPoll(t *testing.T, h http.Handler) (*PollTransport, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	tr, err := NewPollTransport(PollOptions{BaseURL: srv.URL + "/", RequestTimeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(tr.Shutdown)
	return tr, srv
}

func TestNewPollTransportRequiresURL(t *testing.T) {
	_, err := NewPollTransport(PollOptions{})
	assert.Error(t, err)
}

func TestPollRoundTrip(t *testing.T) {
	b := api.NewBackend([]dm.DeviceID{7, 11}, nil)
	b.EchoSeq = true
	tr, _ := startPoll(t, server.NewHandler(b))
	enc := mustEncode(t)
	assert.False(t, tr.Connected())

	tr.Send(enc(wire.EncodeDevices()))
	ev := nextEvent(t, tr)
	assert.Equal(t, wire.KindDevices, ev.Kind)
	assert.Equal(t, []dm.DeviceID{7, 11}, ev.Devices)
	assert.True(t, tr.Connected())

	tr.Send(enc(wire.EncodeDevice(7)))
	ev = nextEvent(t, tr)
	assert.Equal(t, wire.KindDevice, ev.Kind)
	assert.Equal(t, dm.DeviceID(7), b.Selected())

	tr.Send(enc(wire.EncodePipeline(dm.DefaultDeviceConfig().Normalize(), 4)))
	ev = nextEvent(t, tr)
	assert.Equal(t, wire.KindPipeline, ev.Kind)
	assert.Equal(t, uint64(4), ev.Seq)

	tr.Send(enc(wire.EncodeSubscriptions(dm.NewChannelSet(dm.ColorImage, dm.DepthImage))))
	ev = nextEvent(t, tr)
	assert.Equal(t, wire.KindSubscriptions, ev.Kind)
	assert.True(t, ev.Subscriptions.Equal(dm.NewChannelSet(dm.ColorImage, dm.DepthImage)))

	assert.Empty(t, tr.InFlight())
}

func TestPollBackendErrorBecomesEvent(t *testing.T) {
	b := api.NewBackend([]dm.DeviceID{7}, nil)
	tr, _ := startPoll(t, server.NewHandler(b))

	tr.Send(mustEncode(t)(wire.EncodeDevice(42)))
	ev := nextEvent(t, tr)
	assert.Equal(t, wire.KindError, ev.Kind)
	assert.Equal(t, dm.ActionFullReset, ev.Error.Action)
	assert.Contains(t, ev.Error.Message, "not found")
	assert.True(t, tr.Connected())
}

func TestPollMalformedReply(t *testing.T) {
	tr, _ := startPoll(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`"not-an-object"`))
	}))
	tr.Send(mustEncode(t)(wire.EncodePipeline(dm.DefaultDeviceConfig(), 1)))
	ev := nextEvent(t, tr)
	assert.Equal(t, wire.KindError, ev.Kind)
	assert.Equal(t, dm.ActionNone, ev.Error.Action)
}

func TestPollNetworkFailureOnlyLogs(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	tr, err := NewPollTransport(PollOptions{BaseURL: url, RequestTimeout: time.Second})
	require.NoError(t, err)
	defer tr.Shutdown()

	tr.Send(mustEncode(t)(wire.EncodeDevices()))
	require.Eventually(t, func() bool { return len(tr.InFlight()) == 0 }, 2*time.Second, 5*time.Millisecond)
	_, ok := tr.Receive()
	assert.False(t, ok)
	assert.False(t, tr.Connected())
}

func TestPollInFlightAndShutdown(t *testing.T) {
	release := make(chan struct{})
	ids := make(chan string, 1)
	tr, _ := startPoll(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids <- r.Header.Get(HeaderRequestID)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer close(release)

	tr.Send(mustEncode(t)(wire.EncodeDevices()))
	inflight := tr.InFlight()
	require.Len(t, inflight, 1)
	assert.Equal(t, wire.KindDevices, inflight[0].Kind)
	var gotID string
	select {
	case gotID = <-ids:
	case <-time.After(2 * time.Second):
		t.Fatal("request never reached the server")
	}
	assert.Equal(t, inflight[0].ID, gotID)
	assert.Equal(t, 4, strings.Count(gotID, "-"), "request id is a uuid")
	assert.Len(t, tr.InFlight(), 1)

	tr.Shutdown()
	assert.Empty(t, tr.InFlight())
	_, ok := tr.Receive()
	assert.False(t, ok)
}

func TestPollDeviceListDecodedLeniently(t *testing.T) {
	tr, _ := startPoll(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`["7",11,null,"x"]`))
	}))
	tr.Send(mustEncode(t)(wire.EncodeDevices()))
	ev := nextEvent(t, tr)
	assert.Equal(t, wire.KindDevices, ev.Kind)
	assert.Equal(t, []dm.DeviceID{7, 11}, ev.Devices)
}

func TestPollEmptyRepliesBecomeErrors(t *testing.T) {
	tr, _ := startPoll(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	enc := mustEncode(t)

	tr.Send(enc(wire.EncodeDevice(7)))
	ev := nextEvent(t, tr)
	assert.Equal(t, wire.KindError, ev.Kind)

	tr.Send(enc(wire.EncodePipeline(dm.DefaultDeviceConfig(), 1)))
	ev = nextEvent(t, tr)
	assert.Equal(t, wire.KindError, ev.Kind)
}
