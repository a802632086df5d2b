// Package wire encodes and decodes the JSON envelopes exchanged with the
// DepthAI backend. Every envelope is {"type": <kind>, "data": <payload>};
// the kind is decoded first and selects the payload schema.
package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	dm "github.com/luxonis/depthai-viewer/devicemgr"
)

// Kind discriminates envelopes; the string value is the literal "type" field.
type Kind string

const (
	KindSubscriptions Kind = "Subscriptions"
	KindDevices       Kind = "Devices"
	KindDevice        Kind = "Device"
	KindPipeline      Kind = "Pipeline"
	KindError         Kind = "Error"
)

// Event is one decoded inbound message. Only the field matching Kind is set.
type Event struct {
	Kind          Kind
	Subscriptions dm.ChannelSet
	Devices       []dm.DeviceID
	Device        dm.Device
	Pipeline      dm.DeviceConfig
	Error         dm.BackendError
	// Seq echoes the configuration push counter when the backend supports it.
	Seq uint64
}

// ErrorEvent builds an advisory Error event.
func ErrorEvent(message string) Event {
	return Event{Kind: KindError, Error: dm.BackendError{Action: dm.ActionNone, Message: message}}
}

type envelope struct {
	Type Kind            `json:"type"`
	Data json.RawMessage `json:"data"`
	Seq  uint64          `json:"seq,omitempty"`
}

// Decode parses one inbound message. It never fails: unknown kinds and
// malformed payloads come back as an Error event describing the problem.
func Decode(raw []byte) Event {
	ev, err := decode(raw)
	if err != nil {
		return ErrorEvent(err.Error())
	}
	return ev
}

func decode(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Event{}, fmt.Errorf("%w: envelope: %v", dm.ErrMalformedPayload, err)
	}
	ev := Event{Kind: env.Type, Seq: env.Seq}
	switch env.Type {
	case KindSubscriptions:
		var tags []string
		if err := unmarshalData(env, &tags); err != nil {
			return Event{}, err
		}
		ev.Subscriptions = channelsFromTags(tags)
	case KindDevices:
		ids, err := DecodeDeviceIDs(env.Data)
		if err != nil {
			return Event{}, err
		}
		ev.Devices = ids
	case KindDevice:
		d, err := DecodeDevice(env.Data)
		if err != nil {
			return Event{}, err
		}
		ev.Device = d
	case KindPipeline:
		if isNull(env.Data) {
			return ErrorEvent("pipeline not started"), nil
		}
		cfg, err := DecodePipeline(env.Data)
		if err != nil {
			return Event{}, err
		}
		ev.Pipeline = cfg
	case KindError:
		be, err := decodeBackendError(env.Data)
		if err != nil {
			return Event{}, err
		}
		ev.Error = be
	case "":
		return Event{}, fmt.Errorf("%w: missing type", dm.ErrMalformedPayload)
	default:
		return Event{}, fmt.Errorf("%w: %q", dm.ErrUnknownKind, env.Type)
	}
	return ev, nil
}

func unmarshalData(env envelope, out interface{}) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("%w: %s: missing data", dm.ErrMalformedPayload, env.Type)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: %s: %v", dm.ErrMalformedPayload, env.Type, err)
	}
	return nil
}

func isNull(data json.RawMessage) bool {
	return len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}

// channelsFromTags drops tags outside the known channel set.
func channelsFromTags(tags []string) dm.ChannelSet {
	set := dm.NewChannelSet()
	for _, t := range tags {
		if c := dm.ChannelID(t); c.Known() {
			set.Add(c)
		}
	}
	return set
}

// DecodeDevice requires the id field; a zero value is a real device id.
func DecodeDevice(data json.RawMessage) (dm.Device, error) {
	if isNull(data) {
		return dm.Device{}, fmt.Errorf("%w: Device: missing data", dm.ErrMalformedPayload)
	}
	var d struct {
		ID *dm.DeviceID `json:"id"`
	}
	if err := json.Unmarshal(data, &d); err != nil {
		return dm.Device{}, fmt.Errorf("%w: Device: %v", dm.ErrMalformedPayload, err)
	}
	if d.ID == nil {
		return dm.Device{}, fmt.Errorf("%w: Device: missing id", dm.ErrMalformedPayload)
	}
	return dm.Device{ID: *d.ID}, nil
}

// pipelineRequired are the DeviceConfig blocks a pipeline cannot run without.
var pipelineRequired = []string{"color_camera", "left_camera", "right_camera"}

// DecodePipeline requires the camera blocks to be present.
func DecodePipeline(data json.RawMessage) (dm.DeviceConfig, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return dm.DeviceConfig{}, fmt.Errorf("%w: Pipeline: %v", dm.ErrMalformedPayload, err)
	}
	for _, k := range pipelineRequired {
		if v, ok := fields[k]; !ok || isNull(v) {
			return dm.DeviceConfig{}, fmt.Errorf("%w: Pipeline: missing %s", dm.ErrMalformedPayload, k)
		}
	}
	var cfg dm.DeviceConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return dm.DeviceConfig{}, fmt.Errorf("%w: Pipeline: %v", dm.ErrMalformedPayload, err)
	}
	return cfg, nil
}

// DecodeDeviceIDs parses a device list, accepting numbers and numeric
// strings. Other elements are skipped.
func DecodeDeviceIDs(data json.RawMessage) ([]dm.DeviceID, error) {
	var rawAny []interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&rawAny); err != nil {
		return nil, fmt.Errorf("%w: Devices: %v", dm.ErrMalformedPayload, err)
	}
	ids := make([]dm.DeviceID, 0, len(rawAny))
	for _, elem := range rawAny {
		var s string
		switch v := elem.(type) {
		case json.Number:
			s = v.String()
		case string:
			s = v
		default:
			continue
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, dm.DeviceID(n))
	}
	return ids, nil
}

// decodeBackendError accepts {action, message} or a bare message string.
func decodeBackendError(data json.RawMessage) (dm.BackendError, error) {
	var msg string
	if err := json.Unmarshal(data, &msg); err == nil {
		return dm.BackendError{Action: dm.ActionNone, Message: msg}, nil
	}
	var be dm.BackendError
	if err := json.Unmarshal(data, &be); err != nil {
		return be, fmt.Errorf("%w: Error: %v", dm.ErrMalformedPayload, err)
	}
	switch be.Action {
	case dm.ActionNone, dm.ActionFullReset:
	case "":
		be.Action = dm.ActionNone
	default:
		return be, fmt.Errorf("%w: Error: unknown action %q", dm.ErrMalformedPayload, be.Action)
	}
	return be, nil
}

// Command is a decoded outbound message, as seen by the backend.
type Command struct {
	Kind          Kind
	Subscriptions []dm.ChannelID
	Device        dm.Device
	Pipeline      dm.DeviceConfig
	Seq           uint64
}

var errNotCommand = errors.New("not a command kind")

// DecodeCommand parses an envelope produced by the Encode functions.
func DecodeCommand(raw []byte) (Command, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Command{}, fmt.Errorf("%w: envelope: %v", dm.ErrMalformedPayload, err)
	}
	cmd := Command{Kind: env.Type, Seq: env.Seq}
	var body map[string]json.RawMessage
	if !isNull(env.Data) {
		if err := json.Unmarshal(env.Data, &body); err != nil {
			return Command{}, fmt.Errorf("%w: %s: %v", dm.ErrMalformedPayload, env.Type, err)
		}
	}
	inner, ok := body[string(env.Type)]
	switch env.Type {
	case KindDevices:
		return cmd, nil
	case KindSubscriptions:
		var tags []string
		if ok {
			if err := json.Unmarshal(inner, &tags); err != nil {
				return Command{}, fmt.Errorf("%w: Subscriptions: %v", dm.ErrMalformedPayload, err)
			}
		}
		cmd.Subscriptions = channelsFromTags(tags).Sorted()
	case KindDevice:
		d, err := DecodeDevice(inner)
		if err != nil {
			return Command{}, err
		}
		cmd.Device = d
	case KindPipeline:
		if !ok || isNull(inner) {
			return Command{}, fmt.Errorf("%w: Pipeline: missing config", dm.ErrMalformedPayload)
		}
		cfg, err := DecodePipeline(inner)
		if err != nil {
			return Command{}, err
		}
		cmd.Pipeline = cfg
	default:
		return Command{}, fmt.Errorf("%w: %q", errNotCommand, env.Type)
	}
	return cmd, nil
}
