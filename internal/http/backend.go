package httpapi

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	dm "github.com/luxonis/depthai-viewer/devicemgr"
	"github.com/luxonis/depthai-viewer/devicemgr/wire"
)

// Backend is an in-memory stand-in for the DepthAI backend: a device list,
// the selected device, the running pipeline and the active subscriptions.
// Both the websocket and REST handlers drive it.
type Backend struct {
	mu            sync.Mutex
	devices       []dm.DeviceID
	selected      dm.DeviceID
	pipeline      *dm.DeviceConfig
	subscriptions dm.ChannelSet
	received      []wire.Command
	clients       map[chan []byte]func()

	// EchoSeq makes Pipeline replies carry the push counter.
	EchoSeq bool

	logger zerolog.Logger
}

func NewBackend(devices []dm.DeviceID, logger *zerolog.Logger) *Backend {
	l := zerolog.Nop()
	if logger != nil {
		l = dm.WithComponent(*logger, "backend-sim")
	}
	return &Backend{
		devices:       append([]dm.DeviceID(nil), devices...),
		selected:      dm.NoDevice,
		subscriptions: dm.NewChannelSet(),
		clients:       make(map[chan []byte]func()),
		logger:        l,
	}
}

func (b *Backend) Devices() []dm.DeviceID {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]dm.DeviceID{}, b.devices...)
}

// SetDevices replaces the attached device list. A selected device that
// disappears is dropped and connected clients get a FullReset error.
func (b *Backend) SetDevices(ids []dm.DeviceID) {
	b.mu.Lock()
	b.devices = append([]dm.DeviceID(nil), ids...)
	lost := b.selected != dm.NoDevice && !containsID(b.devices, b.selected)
	if lost {
		b.selected = dm.NoDevice
		b.pipeline = nil
	}
	b.mu.Unlock()
	if lost {
		raw, err := wire.EncodeErrorEvent(dm.BackendError{Action: dm.ActionFullReset, Message: "device disconnected"})
		if err == nil {
			b.Broadcast(raw)
		}
	}
}

func (b *Backend) Selected() dm.DeviceID {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.selected
}

func (b *Backend) Pipeline() (dm.DeviceConfig, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pipeline == nil {
		return dm.DeviceConfig{}, false
	}
	return b.pipeline.Clone(), true
}

func (b *Backend) Subscriptions() dm.ChannelSet {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subscriptions.Clone()
}

// Received returns every command seen so far, oldest first.
func (b *Backend) Received() []wire.Command {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]wire.Command(nil), b.received...)
}

// CountReceived counts commands of kind k.
func (b *Backend) CountReceived(k wire.Kind) int {
	n := 0
	for _, c := range b.Received() {
		if c.Kind == k {
			n++
		}
	}
	return n
}

func (b *Backend) record(cmd wire.Command) {
	b.mu.Lock()
	b.received = append(b.received, cmd)
	b.mu.Unlock()
}

// SelectDevice attaches id. NoDevice detaches whatever is selected.
func (b *Backend) SelectDevice(id dm.DeviceID) (dm.Device, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if id == dm.NoDevice {
		b.selected = dm.NoDevice
		b.pipeline = nil
		return dm.Device{ID: dm.NoDevice}, nil
	}
	if !containsID(b.devices, id) {
		return dm.Device{}, fmt.Errorf("%w: %d", dm.ErrDeviceNotFound, id)
	}
	if b.selected != id {
		b.pipeline = nil
	}
	b.selected = id
	return dm.Device{ID: id}, nil
}

// ApplyPipeline starts cfg on the selected device.
func (b *Backend) ApplyPipeline(cfg dm.DeviceConfig) (dm.DeviceConfig, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.selected == dm.NoDevice {
		return dm.DeviceConfig{}, dm.ErrNoDevice
	}
	if cfg.LeftCamera.BoardSocket != dm.SocketLeft || cfg.RightCamera.BoardSocket != dm.SocketRight {
		return dm.DeviceConfig{}, fmt.Errorf("%w: mono cameras must use LEFT/RIGHT sockets", dm.ErrInvalidConfig)
	}
	applied := cfg.Clone()
	applied.DepthEnabled = applied.Depth != nil
	b.pipeline = &applied
	return applied.Clone(), nil
}

// SetSubscriptions activates the requested channels and returns the active set.
func (b *Backend) SetSubscriptions(channels []dm.ChannelID) []dm.ChannelID {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscriptions = dm.NewChannelSet(channels...)
	return b.subscriptions.Sorted()
}

// Reply executes cmd and returns the messages a websocket client receives.
func (b *Backend) Reply(cmd wire.Command) [][]byte {
	b.record(cmd)
	var (
		raw []byte
		err error
	)
	switch cmd.Kind {
	case wire.KindDevices:
		raw, err = wire.EncodeDevicesEvent(b.Devices())
	case wire.KindDevice:
		d, selErr := b.SelectDevice(cmd.Device.ID)
		if selErr != nil {
			raw, err = wire.EncodeErrorEvent(dm.BackendError{Action: dm.ActionFullReset, Message: selErr.Error()})
		} else {
			raw, err = wire.EncodeDeviceEvent(d)
		}
	case wire.KindPipeline:
		applied, pipeErr := b.ApplyPipeline(cmd.Pipeline)
		if pipeErr != nil {
			raw, err = wire.EncodeErrorEvent(dm.BackendError{Action: dm.ActionFullReset, Message: pipeErr.Error()})
		} else {
			var seq uint64
			if b.EchoSeq {
				seq = cmd.Seq
			}
			raw, err = wire.EncodePipelineEvent(applied, seq)
		}
	case wire.KindSubscriptions:
		raw, err = wire.EncodeSubscriptionsEvent(b.SetSubscriptions(cmd.Subscriptions))
	default:
		return nil
	}
	if err != nil {
		b.logger.Error().Err(err).Str("kind", string(cmd.Kind)).Msg("encode reply")
		return nil
	}
	return [][]byte{raw}
}

func (b *Backend) attach(closeFn func()) chan []byte {
	ch := make(chan []byte, 64)
	b.mu.Lock()
	b.clients[ch] = closeFn
	b.mu.Unlock()
	return ch
}

// DropClients closes every websocket connection, as a backend restart would.
func (b *Backend) DropClients() {
	b.mu.Lock()
	closers := make([]func(), 0, len(b.clients))
	for _, fn := range b.clients {
		closers = append(closers, fn)
	}
	b.mu.Unlock()
	for _, fn := range closers {
		fn()
	}
}

// Clients counts the connected websocket clients.
func (b *Backend) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

func (b *Backend) detach(ch chan []byte) {
	b.mu.Lock()
	delete(b.clients, ch)
	b.mu.Unlock()
}

// Broadcast pushes an unsolicited message to every websocket client.
func (b *Backend) Broadcast(raw []byte) {
	b.mu.Lock()
	clients := make([]chan []byte, 0, len(b.clients))
	for ch := range b.clients {
		clients = append(clients, ch)
	}
	b.mu.Unlock()
	for _, ch := range clients {
		select {
		case ch <- raw:
		default: /* drop if slow */
		}
	}
}

// statusFor maps backend failures onto REST status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, dm.ErrDeviceNotFound):
		return 404
	case errors.Is(err, dm.ErrNoDevice), errors.Is(err, dm.ErrInvalidConfig):
		return 409
	default:
		return 500
	}
}

func containsID(ids []dm.DeviceID, id dm.DeviceID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
