package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	dm "github.com/luxonis/depthai-viewer/devicemgr"
	"github.com/luxonis/depthai-viewer/devicemgr/wire"
)

// Header names mirror runtime.PollTransport.
const (
	headerRequestID   = "X-Request-ID"
	headerPipelineSeq = "X-Pipeline-Seq"
)

type apiError struct {
	Detail string         `json:"detail"`
	Action dm.ErrorAction `json:"action,omitempty"`
}

// DevicesHandler serves GET /devices.
func DevicesHandler(b *Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.record(wire.Command{Kind: wire.KindDevices})
		writeJSON(w, r, http.StatusOK, b.Devices())
	}
}

// SelectDeviceHandler serves POST /devices/{id}.
func SelectDeviceHandler(b *Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			writeJSON(w, r, http.StatusBadRequest, apiError{Detail: "invalid device id"})
			return
		}
		b.record(wire.Command{Kind: wire.KindDevice, Device: dm.Device{ID: dm.DeviceID(id)}})
		d, err := b.SelectDevice(dm.DeviceID(id))
		if err != nil {
			writeJSON(w, r, statusFor(err), apiError{Detail: err.Error(), Action: dm.ActionFullReset})
			return
		}
		writeJSON(w, r, http.StatusOK, d)
	}
}

// PipelineHandler serves POST /pipeline.
func PipelineHandler(b *Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cfg dm.DeviceConfig
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			writeJSON(w, r, http.StatusBadRequest, apiError{Detail: "invalid pipeline config"})
			return
		}
		seq, _ := strconv.ParseUint(r.Header.Get(headerPipelineSeq), 10, 64)
		b.record(wire.Command{Kind: wire.KindPipeline, Pipeline: cfg, Seq: seq})
		applied, err := b.ApplyPipeline(cfg)
		if err != nil {
			writeJSON(w, r, statusFor(err), apiError{Detail: err.Error(), Action: dm.ActionFullReset})
			return
		}
		if b.EchoSeq && seq > 0 {
			w.Header().Set(headerPipelineSeq, strconv.FormatUint(seq, 10))
		}
		writeJSON(w, r, http.StatusOK, applied)
	}
}

// SubscriptionsHandler serves PUT /subscriptions.
func SubscriptionsHandler(b *Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var tags []string
		if err := json.NewDecoder(r.Body).Decode(&tags); err != nil {
			writeJSON(w, r, http.StatusBadRequest, apiError{Detail: "invalid subscriptions"})
			return
		}
		set := dm.NewChannelSet()
		for _, t := range tags {
			if c := dm.ChannelID(t); c.Known() {
				set.Add(c)
			}
		}
		b.record(wire.Command{Kind: wire.KindSubscriptions, Subscriptions: set.Sorted()})
		writeJSON(w, r, http.StatusOK, b.SetSubscriptions(set.Sorted()))
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if id := r.Header.Get(headerRequestID); id != "" {
		w.Header().Set(headerRequestID, id)
	}
	writeCORS(w)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, X-Pipeline-Seq")
}
