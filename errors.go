package devicemgr

import "errors"

var (
	ErrNoDevice           = errors.New("no device selected")
	ErrUnknownKind        = errors.New("unknown message kind")
	ErrMalformedPayload   = errors.New("malformed payload")
	ErrDeviceNotFound     = errors.New("device not found")
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrInvalidConfig      = errors.New("invalid config")
)
