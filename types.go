package devicemgr

import "sort"

// DeviceID identifies a camera known to the backend.
type DeviceID int64

// NoDevice is the selection sentinel meaning "nothing selected".
const NoDevice DeviceID = -1

type Device struct {
	ID DeviceID `json:"id" yaml:"id"`
}

// ChannelID names a category of sensor data the backend can stream.
// The string value is the wire tag.
type ChannelID string

const (
	ColorImage    ChannelID = "ColorImage"
	LeftMono      ChannelID = "LeftMono"
	RightMono     ChannelID = "RightMono"
	DepthImage    ChannelID = "DepthImage"
	PointCloud    ChannelID = "PointCloud"
	PinholeCamera ChannelID = "PinholeCamera"
)

var knownChannels = map[ChannelID]struct{}{
	ColorImage:    {},
	LeftMono:      {},
	RightMono:     {},
	DepthImage:    {},
	PointCloud:    {},
	PinholeCamera: {},
}

// Known reports whether c is one of the closed set of channels.
func (c ChannelID) Known() bool {
	_, ok := knownChannels[c]
	return ok
}

// StreamChannels are the channels a freshly started viewer subscribes to.
func StreamChannels() []ChannelID {
	return []ChannelID{ColorImage, LeftMono, RightMono, DepthImage, PointCloud}
}

// ChannelSet is an unordered set of channels.
type ChannelSet map[ChannelID]struct{}

func NewChannelSet(ids ...ChannelID) ChannelSet {
	s := make(ChannelSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s ChannelSet) Has(id ChannelID) bool {
	_, ok := s[id]
	return ok
}

func (s ChannelSet) Add(id ChannelID) { s[id] = struct{}{} }

// Equal is set equality; order never matters.
func (s ChannelSet) Equal(o ChannelSet) bool {
	if len(s) != len(o) {
		return false
	}
	for id := range s {
		if !o.Has(id) {
			return false
		}
	}
	return true
}

func (s ChannelSet) Clone() ChannelSet {
	c := make(ChannelSet, len(s))
	for id := range s {
		c[id] = struct{}{}
	}
	return c
}

// Sorted returns the members in a stable order for wire payloads and logs.
func (s ChannelSet) Sorted() []ChannelID {
	out := make([]ChannelID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type ColorCameraResolution string

const (
	Resolution1080P ColorCameraResolution = "THE_1080_P"
	Resolution4K    ColorCameraResolution = "THE_4_K"
)

type MonoCameraResolution string

const Resolution400P MonoCameraResolution = "THE_400_P"

type BoardSocket string

const (
	SocketAuto   BoardSocket = "AUTO"
	SocketRGB    BoardSocket = "RGB"
	SocketLeft   BoardSocket = "LEFT"
	SocketRight  BoardSocket = "RIGHT"
	SocketCenter BoardSocket = "CENTER"
	SocketCamA   BoardSocket = "CAM_A"
	SocketCamB   BoardSocket = "CAM_B"
	SocketCamC   BoardSocket = "CAM_C"
	SocketCamD   BoardSocket = "CAM_D"
	SocketCamE   BoardSocket = "CAM_E"
	SocketCamF   BoardSocket = "CAM_F"
	SocketCamG   BoardSocket = "CAM_G"
	SocketCamH   BoardSocket = "CAM_H"
)

type DepthMedianFilter string

const (
	MedianOff DepthMedianFilter = "MEDIAN_OFF"
	Kernel3x3 DepthMedianFilter = "KERNEL_3x3"
	Kernel5x5 DepthMedianFilter = "KERNEL_5x5"
	Kernel7x7 DepthMedianFilter = "KERNEL_7x7"
)

type ColorCameraConfig struct {
	FPS        uint8                 `json:"fps" yaml:"fps"`
	Resolution ColorCameraResolution `json:"resolution" yaml:"resolution"`
}

type MonoCameraConfig struct {
	FPS         uint8                `json:"fps" yaml:"fps"`
	Resolution  MonoCameraResolution `json:"resolution" yaml:"resolution"`
	BoardSocket BoardSocket          `json:"board_socket" yaml:"board_socket"`
}

type PointcloudConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

type DepthConfig struct {
	Median     DepthMedianFilter `json:"median" yaml:"median"`
	Pointcloud PointcloudConfig  `json:"pointcloud" yaml:"pointcloud"`
}

type AIModel struct {
	Path        string `json:"path" yaml:"path"`
	DisplayName string `json:"display_name" yaml:"display_name"`
}

// DeviceConfig is the pipeline configuration pushed to the backend.
// A nil Depth means stereo depth is disabled.
type DeviceConfig struct {
	ColorCamera  ColorCameraConfig `json:"color_camera" yaml:"color_camera"`
	LeftCamera   MonoCameraConfig  `json:"left_camera" yaml:"left_camera"`
	RightCamera  MonoCameraConfig  `json:"right_camera" yaml:"right_camera"`
	DepthEnabled bool              `json:"depth_enabled" yaml:"depth_enabled"`
	Depth        *DepthConfig      `json:"depth" yaml:"depth,omitempty"`
	AIModel      AIModel           `json:"ai_model" yaml:"ai_model"`
}

func DefaultDepthConfig() DepthConfig {
	return DepthConfig{Median: Kernel7x7}
}

func DefaultDeviceConfig() DeviceConfig {
	depth := DefaultDepthConfig()
	return DeviceConfig{
		ColorCamera:  ColorCameraConfig{FPS: 30, Resolution: Resolution1080P},
		LeftCamera:   MonoCameraConfig{FPS: 30, Resolution: Resolution400P, BoardSocket: SocketAuto},
		RightCamera:  MonoCameraConfig{FPS: 30, Resolution: Resolution400P, BoardSocket: SocketAuto},
		DepthEnabled: true,
		Depth:        &depth,
		AIModel:      NoAIModel(),
	}
}

// Clone returns a copy that shares no pointers with c.
func (c DeviceConfig) Clone() DeviceConfig {
	if c.Depth != nil {
		d := *c.Depth
		c.Depth = &d
	}
	return c
}

// Normalize applies the backend's fixed stereo socket assignment and keeps
// DepthEnabled consistent with Depth. The backend rejects pipelines where
// the mono sockets are anything other than LEFT/RIGHT.
func (c DeviceConfig) Normalize() DeviceConfig {
	c = c.Clone()
	c.LeftCamera.BoardSocket = SocketLeft
	c.RightCamera.BoardSocket = SocketRight
	c.DepthEnabled = c.Depth != nil
	return c
}

func (c DeviceConfig) Equal(o DeviceConfig) bool {
	if c.ColorCamera != o.ColorCamera ||
		c.LeftCamera != o.LeftCamera ||
		c.RightCamera != o.RightCamera ||
		c.DepthEnabled != o.DepthEnabled ||
		c.AIModel != o.AIModel {
		return false
	}
	if (c.Depth == nil) != (o.Depth == nil) {
		return false
	}
	return c.Depth == nil || *c.Depth == *o.Depth
}

// PointcloudEnabled reports whether the config produces point clouds.
func (c DeviceConfig) PointcloudEnabled() bool {
	return c.Depth != nil && c.Depth.Pointcloud.Enabled
}

type ErrorAction string

const (
	ActionNone      ErrorAction = "None"
	ActionFullReset ErrorAction = "FullReset"
)

// BackendError is the payload of an inbound Error message.
type BackendError struct {
	Action  ErrorAction `json:"action"`
	Message string      `json:"message"`
}

func NoAIModel() AIModel {
	return AIModel{Path: "", DisplayName: "No model selected"}
}

// DefaultAIModels lists the networks the backend ships with.
func DefaultAIModels() []AIModel {
	return []AIModel{
		NoAIModel(),
		{Path: "yolo-v3-tiny-tf", DisplayName: "Yolo (tiny)"},
		{Path: "mobilenet-ssd", DisplayName: "MobileNet SSD"},
		{Path: "face-detection-retail-0004", DisplayName: "Face Detection"},
		{Path: "age-gender-recognition-retail-0013", DisplayName: "Age gender recognition"},
	}
}
