// Package session keeps the client-side view of a DepthAI device session:
// which device is selected, which pipeline configuration is running, which
// data channels stream, and which devices exist.
//
// State is owned by one goroutine (the UI tick). Mutators only send
// commands; authoritative changes arrive as backend events and are applied
// by Update, one event per call.
package session

import (
	"time"

	"github.com/rs/zerolog"

	dm "github.com/luxonis/depthai-viewer/devicemgr"
	"github.com/luxonis/depthai-viewer/devicemgr/wire"
)

// Options configures a State.
type Options struct {
	PollInterval   time.Duration // catalog refresh; default 2s
	RequestTimeout time.Duration // unanswered commands are logged after this; default 10s

	EntityChannels EntityChannels // default DefaultEntityChannels()

	// InitialSubscriptions seeds the subscription set. nil means every
	// stream channel so a newly selected device gets resubscribed.
	InitialSubscriptions []dm.ChannelID

	Restore *PersistedState

	Now    func() time.Time
	Logger *zerolog.Logger
}

// State is the aggregate root of a device session.
type State struct {
	transport Transport

	catalog       Catalog
	selected      dm.DeviceID
	requested     dm.DeviceID // last selection asked for; equals selected when idle
	config        ConfigSession
	subscriptions dm.ChannelSet
	aiModels      []dm.AIModel

	reconciler *Reconciler
	tracker    *Tracker

	pollInterval   time.Duration
	requestTimeout time.Duration
	lastPoll       time.Time
	now            func() time.Time

	logger   zerolog.Logger
	shutdown bool
}

// New builds a session over t. The State owns t from now on.
func New(t Transport, opts Options) *State {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = dm.WithComponent(*opts.Logger, "session")
	}
	initial := opts.InitialSubscriptions
	if initial == nil {
		initial = dm.StreamChannels()
	}
	s := &State{
		transport:      t,
		selected:       dm.NoDevice,
		requested:      dm.NoDevice,
		config:         ConfigSession{Config: dm.DefaultDeviceConfig()},
		subscriptions:  dm.NewChannelSet(initial...),
		aiModels:       dm.DefaultAIModels(),
		reconciler:     NewReconciler(opts.EntityChannels),
		tracker:        NewTracker(),
		pollInterval:   dm.DurationOr(opts.PollInterval, 2*time.Second),
		requestTimeout: dm.DurationOr(opts.RequestTimeout, 10*time.Second),
		now:            now,
		logger:         logger,
	}
	if p := opts.Restore; p != nil {
		s.config.Config = p.DeviceConfig.Clone()
		if len(p.NeuralNetworks) > 0 {
			s.aiModels = append([]dm.AIModel(nil), p.NeuralNetworks...)
		}
	}
	s.lastPoll = now()
	return s
}

// Update applies at most one backend event and runs the catalog poll.
// Call it once per UI tick.
func (s *State) Update() {
	if s.shutdown {
		return
	}
	if ev, ok := s.transport.Receive(); ok {
		s.dispatch(ev)
	}

	now := s.now()
	if now.Sub(s.lastPoll) >= s.pollInterval {
		if s.selected == dm.NoDevice {
			s.send(wire.KindDevices, wire.EncodeDevices)
		}
		s.lastPoll = now
	}

	for _, r := range s.tracker.Expire(now, s.requestTimeout) {
		s.logger.Warn().
			Str("request_id", r.ID.String()).
			Str("kind", string(r.Kind)).
			Dur("age", now.Sub(r.SubmittedAt)).
			Msg("no reply from backend")
		if r.Kind == wire.KindDevice {
			s.requested = s.selected
		}
	}
}

func (s *State) dispatch(ev wire.Event) {
	switch ev.Kind {
	case wire.KindSubscriptions:
		s.tracker.Resolve(wire.KindSubscriptions)
		s.subscriptions = ev.Subscriptions.Clone()
		s.logger.Debug().Interface("subscriptions", s.subscriptions.Sorted()).Msg("subscriptions confirmed")

	case wire.KindDevices:
		s.tracker.Resolve(wire.KindDevices)
		s.catalog.Replace(ev.Devices)
		s.logger.Debug().Int("count", len(ev.Devices)).Msg("device list updated")

	case wire.KindDevice:
		s.tracker.Resolve(wire.KindDevice)
		s.selected = ev.Device.ID
		s.requested = s.selected
		if s.selected == dm.NoDevice {
			s.config.UpdateInProgress = false
			s.logger.Info().Msg("device deselected")
			return
		}
		s.logger.Info().Int64("device", int64(s.selected)).Msg("device selected")
		// a fresh device has no assumed state
		subs := s.subscriptions.Clone()
		s.send(wire.KindSubscriptions, func() ([]byte, error) { return wire.EncodeSubscriptions(subs) })
		s.pushConfig()

	case wire.KindPipeline:
		s.tracker.Resolve(wire.KindPipeline)
		if s.config.stale(ev.Seq) {
			s.logger.Debug().Uint64("seq", ev.Seq).Uint64("latest", s.config.Seq()).Msg("ignoring stale pipeline echo")
			return
		}
		prev := s.config.Config
		next := ev.Pipeline.Clone()
		next.DepthEnabled = next.Depth != nil
		s.config.Config = next
		s.config.UpdateInProgress = false
		s.logger.Info().Bool("depth", next.DepthEnabled).Msg("pipeline started")
		s.SetSubscriptions(s.reconciler.AfterPipeline(prev, next, s.subscriptions))

	case wire.KindError:
		s.tracker.Resolve(wire.KindPipeline, wire.KindDevice)
		s.logger.Error().Str("action", string(ev.Error.Action)).Msg(ev.Error.Message)
		s.config.UpdateInProgress = false
		s.requested = s.selected
		if ev.Error.Action == dm.ActionFullReset {
			s.SetDevice(dm.NoDevice)
		}

	default:
		s.logger.Debug().Str("kind", string(ev.Kind)).Msg("ignoring event")
	}
}

// send encodes and transmits one command, tracking it for a reply. It
// reports whether the command went to a connected transport; otherwise the
// transport drops it and the caller has to send again.
func (s *State) send(kind wire.Kind, encode func() ([]byte, error)) bool {
	payload, err := encode()
	if err != nil {
		s.logger.Error().Err(err).Str("kind", string(kind)).Msg("encode command")
		return false
	}
	connected := s.transport.Connected()
	if connected {
		s.tracker.Track(kind, s.now())
	}
	s.transport.Send(payload)
	return connected
}

func (s *State) pushConfig() {
	s.config.Config = s.config.Config.Normalize()
	cfg, seq := s.config.Config.Clone(), s.config.nextSeq()
	s.config.UpdateInProgress = true
	s.send(wire.KindPipeline, func() ([]byte, error) { return wire.EncodePipeline(cfg, seq) })
}

// GetDevices returns the last known device list. It does not contact the
// backend; the list refreshes through the poll in Update.
func (s *State) GetDevices() []dm.DeviceID {
	return s.catalog.Devices()
}

// DevicesKnown reports whether any device list has been received.
func (s *State) DevicesKnown() bool { return s.catalog.Known() }

// SetDevice asks the backend to select id. The selection only changes when
// the backend confirms it.
func (s *State) SetDevice(id dm.DeviceID) {
	if s.shutdown || s.requested == id {
		return
	}
	s.logger.Debug().Int64("device", int64(id)).Msg("selecting device")
	if s.send(wire.KindDevice, func() ([]byte, error) { return wire.EncodeDevice(id) }) {
		s.requested = id
	}
}

// HasDevice reports whether id is in the last reported device list.
func (s *State) HasDevice(id dm.DeviceID) bool { return s.catalog.Contains(id) }

// SetDeviceConfig pushes candidate as the new pipeline. It is ignored while
// disconnected, with no device selected, or when it matches the held
// configuration after normalization.
func (s *State) SetDeviceConfig(candidate dm.DeviceConfig) {
	if s.shutdown || !s.transport.Connected() || s.selected == dm.NoDevice {
		return
	}
	normalized := candidate.Normalize()
	if normalized.Equal(s.config.Config) {
		return
	}
	s.config.Config = normalized
	s.logger.Info().Msg("creating pipeline")
	s.pushConfig()
}

// SetSubscriptions sends desired unless it already matches.
func (s *State) SetSubscriptions(desired dm.ChannelSet) {
	if s.shutdown || desired.Equal(s.subscriptions) {
		return
	}
	next := desired.Clone()
	s.send(wire.KindSubscriptions, func() ([]byte, error) { return wire.EncodeSubscriptions(next) })
	// provisional until the backend echoes the active set
	s.subscriptions = next
}

// SetSubscriptionsFromVisibleViews reconciles subscriptions with what the
// visible views display.
func (s *State) SetSubscriptionsFromVisibleViews(views []View) {
	if s.shutdown {
		return
	}
	s.SetSubscriptions(s.reconciler.Desired(views, s.config.Config, s.subscriptions))
}

func (s *State) SelectedDevice() dm.DeviceID { return s.selected }

func (s *State) Config() dm.DeviceConfig { return s.config.Config.Clone() }

func (s *State) UpdateInProgress() bool { return s.config.UpdateInProgress }

func (s *State) ConfigSession() ConfigSession {
	c := s.config
	c.Config = c.Config.Clone()
	return c
}

func (s *State) Subscriptions() dm.ChannelSet { return s.subscriptions.Clone() }

func (s *State) AIModels() []dm.AIModel { return append([]dm.AIModel(nil), s.aiModels...) }

func (s *State) Connected() bool { return !s.shutdown && s.transport.Connected() }

// Pending lists commands still waiting for a reply.
func (s *State) Pending() []Request { return s.tracker.Pending() }

// Persisted captures what should survive a restart.
func (s *State) Persisted() PersistedState {
	return PersistedState{
		DeviceConfig:   s.config.Config.Clone(),
		NeuralNetworks: s.AIModels(),
	}
}

// Shutdown tears down the transport. Every later call on s is a no-op.
func (s *State) Shutdown() {
	if s.shutdown {
		return
	}
	s.shutdown = true
	s.tracker.Reset()
	s.transport.Shutdown()
}
