package wire

import (
	"encoding/json"

	dm "github.com/luxonis/depthai-viewer/devicemgr"
)

// Outbound data is keyed by the kind name, e.g.
// {"type":"Device","data":{"Device":{"id":7}}}.
func encode(kind Kind, payload interface{}, seq uint64) ([]byte, error) {
	data := map[string]interface{}{}
	if payload != nil {
		data[string(kind)] = payload
	}
	return json.Marshal(struct {
		Type Kind                   `json:"type"`
		Data map[string]interface{} `json:"data"`
		Seq  uint64                 `json:"seq,omitempty"`
	}{Type: kind, Data: data, Seq: seq})
}

func EncodeSubscriptions(set dm.ChannelSet) ([]byte, error) {
	return encode(KindSubscriptions, set.Sorted(), 0)
}

// EncodeDevices builds the catalog pull request.
func EncodeDevices() ([]byte, error) {
	return encode(KindDevices, nil, 0)
}

func EncodeDevice(id dm.DeviceID) ([]byte, error) {
	return encode(KindDevice, dm.Device{ID: id}, 0)
}

// EncodePipeline pushes cfg; seq is the push counter echoed by backends that
// support it.
func EncodePipeline(cfg dm.DeviceConfig, seq uint64) ([]byte, error) {
	return encode(KindPipeline, cfg, seq)
}

// The Encode*Event helpers build inbound messages as the backend sends them.

func EncodeSubscriptionsEvent(channels []dm.ChannelID) ([]byte, error) {
	if channels == nil {
		channels = []dm.ChannelID{}
	}
	return encodeEvent(KindSubscriptions, channels, 0)
}

func EncodeDevicesEvent(ids []dm.DeviceID) ([]byte, error) {
	if ids == nil {
		ids = []dm.DeviceID{}
	}
	return encodeEvent(KindDevices, ids, 0)
}

func EncodeDeviceEvent(d dm.Device) ([]byte, error) {
	return encodeEvent(KindDevice, d, 0)
}

func EncodePipelineEvent(cfg dm.DeviceConfig, seq uint64) ([]byte, error) {
	return encodeEvent(KindPipeline, cfg, seq)
}

func EncodeErrorEvent(be dm.BackendError) ([]byte, error) {
	return encodeEvent(KindError, be, 0)
}

func encodeEvent(kind Kind, payload interface{}, seq uint64) ([]byte, error) {
	return json.Marshal(struct {
		Type Kind        `json:"type"`
		Data interface{} `json:"data"`
		Seq  uint64      `json:"seq,omitempty"`
	}{Type: kind, Data: payload, Seq: seq})
}
