package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	dm "github.com/luxonis/depthai-viewer/devicemgr"
	"github.com/luxonis/depthai-viewer/devicemgr/wire"
)

// Header names shared with the backend REST API.
const (
	HeaderRequestID    = "X-Request-ID"
	HeaderPipelineSeq  = "X-Pipeline-Seq"
	defaultPollTimeout = 10 * time.Second
)

// PollTransport speaks the request/response iteration of the backend API.
// Each outbound envelope becomes one HTTP call made on its own goroutine;
// replies are converted into inbound events and queued in arrival order.
//
//	Devices       -> GET  /devices
//	Device        -> POST /devices/{id}
//	Pipeline      -> POST /pipeline
//	Subscriptions -> PUT  /subscriptions
type PollTransport struct {
	api     *apiClient
	timeout time.Duration
	logger  zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	inbound *Queue[wire.Event]

	pendingMu sync.Mutex
	pending   map[string]Request

	connected atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
}

// Request correlates an in-flight HTTP call with the command that caused it.
type Request struct {
	ID          string
	Kind        wire.Kind
	SubmittedAt time.Time
}

// PollOptions configures a PollTransport.
type PollOptions struct {
	BaseURL        string
	Auth           dm.AuthStrategy
	Client         *http.Client
	RequestTimeout time.Duration
	Logger         *zerolog.Logger
}

func NewPollTransport(o PollOptions) (*PollTransport, error) {
	if o.BaseURL == "" {
		return nil, errors.New("BaseURL required")
	}
	c := o.Client
	if c == nil {
		c = &http.Client{}
	}
	logger := zerolog.Nop()
	if o.Logger != nil {
		logger = dm.WithComponent(*o.Logger, "poll-transport")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &PollTransport{
		api:     &apiClient{BaseURL: trimRightSlash(o.BaseURL), Auth: o.Auth, HTTP: c},
		timeout: dm.DurationOr(o.RequestTimeout, defaultPollTimeout),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		inbound: NewQueue[wire.Event](),
		pending: make(map[string]Request),
	}, nil
}

// Send issues the HTTP call for payload in the background.
func (t *PollTransport) Send(payload []byte) {
	if t.closed.Load() {
		return
	}
	cmd, err := wire.DecodeCommand(payload)
	if err != nil {
		t.logger.Warn().Err(err).Msg("dropping unencodable command")
		return
	}
	req := Request{ID: uuid.NewString(), Kind: cmd.Kind, SubmittedAt: time.Now()}
	t.pendingMu.Lock()
	t.pending[req.ID] = req
	t.pendingMu.Unlock()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer t.resolve(req.ID)
		t.do(req, cmd)
	}()
}

func (t *PollTransport) resolve(id string) {
	t.pendingMu.Lock()
	delete(t.pending, id)
	t.pendingMu.Unlock()
}

func (t *PollTransport) do(req Request, cmd wire.Command) {
	ctx, cancel := context.WithTimeout(t.ctx, t.timeout)
	defer cancel()
	header := http.Header{}
	header.Set(HeaderRequestID, req.ID)

	var (
		ev  wire.Event
		err error
	)
	switch cmd.Kind {
	case wire.KindDevices:
		var raw json.RawMessage
		_, err = t.api.doJSON(ctx, http.MethodGet, "/devices", header, nil, &raw)
		if err == nil {
			var ids []dm.DeviceID
			ids, err = wire.DecodeDeviceIDs(raw)
			ev = wire.Event{Kind: wire.KindDevices, Devices: ids}
		}
	case wire.KindDevice:
		var raw json.RawMessage
		path := "/devices/" + strconv.FormatInt(int64(cmd.Device.ID), 10)
		_, err = t.api.doJSON(ctx, http.MethodPost, path, header, nil, &raw)
		if err == nil {
			var d dm.Device
			d, err = wire.DecodeDevice(raw)
			ev = wire.Event{Kind: wire.KindDevice, Device: d}
		}
	case wire.KindPipeline:
		if cmd.Seq > 0 {
			header.Set(HeaderPipelineSeq, strconv.FormatUint(cmd.Seq, 10))
		}
		var raw json.RawMessage
		var respHeader http.Header
		respHeader, err = t.api.doJSON(ctx, http.MethodPost, "/pipeline", header, cmd.Pipeline, &raw)
		if err == nil {
			var cfg dm.DeviceConfig
			cfg, err = wire.DecodePipeline(raw)
			ev = wire.Event{Kind: wire.KindPipeline, Pipeline: cfg}
			ev.Seq, _ = strconv.ParseUint(respHeader.Get(HeaderPipelineSeq), 10, 64)
		}
	case wire.KindSubscriptions:
		var tags []string
		_, err = t.api.doJSON(ctx, http.MethodPut, "/subscriptions", header, cmd.Subscriptions, &tags)
		set := dm.NewChannelSet()
		for _, tag := range tags {
			if c := dm.ChannelID(tag); c.Known() {
				set.Add(c)
			}
		}
		ev = wire.Event{Kind: wire.KindSubscriptions, Subscriptions: set}
	default:
		return
	}

	if t.closed.Load() {
		return
	}
	var apiErr *APIError
	switch {
	case err == nil:
		t.connected.Store(true)
		t.inbound.Push(ev)
	case errors.As(err, &apiErr):
		t.connected.Store(true)
		t.inbound.Push(wire.Event{Kind: wire.KindError, Error: dm.BackendError{Action: apiErr.Action, Message: apiErr.Detail}})
	case errors.Is(err, dm.ErrMalformedPayload):
		t.connected.Store(true)
		t.inbound.Push(wire.ErrorEvent(fmt.Sprintf("%s: %v", cmd.Kind, err)))
	default:
		if !errors.Is(err, context.Canceled) {
			t.connected.Store(false)
		}
		t.logger.Warn().Err(err).Str("request_id", req.ID).Str("kind", string(cmd.Kind)).Msg("backend request failed")
	}
}

func (t *PollTransport) Receive() (wire.Event, bool) {
	if t.closed.Load() {
		return wire.Event{}, false
	}
	return t.inbound.TryPop()
}

// Connected reports whether the last round trip reached the backend.
func (t *PollTransport) Connected() bool { return t.connected.Load() }

// InFlight lists unanswered requests, oldest first.
func (t *PollTransport) InFlight() []Request {
	t.pendingMu.Lock()
	out := make([]Request, 0, len(t.pending))
	for _, r := range t.pending {
		out = append(out, r)
	}
	t.pendingMu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out
}

// Shutdown cancels in-flight calls and waits for their goroutines.
func (t *PollTransport) Shutdown() {
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		t.connected.Store(false)
		t.cancel()
		t.wg.Wait()
		t.inbound.Clear()
	})
}
