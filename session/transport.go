package session

import "github.com/luxonis/depthai-viewer/devicemgr/wire"

// Transport is the duplex channel State talks through. Implementations live
// in the runtime package.
type Transport interface {
	// Send never blocks; the payload may be dropped.
	Send(payload []byte)
	// Receive returns at most one event and never blocks.
	Receive() (wire.Event, bool)
	Connected() bool
	Shutdown()
}
