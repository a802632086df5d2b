package session

import dm "github.com/luxonis/depthai-viewer/devicemgr"

// ConfigSession holds the configuration the client believes is running and
// whether a push is still waiting for its Pipeline echo.
type ConfigSession struct {
	Config           dm.DeviceConfig
	UpdateInProgress bool

	// seq counts pushes; echoes carrying an older value are stale.
	seq uint64
}

func (c *ConfigSession) nextSeq() uint64 {
	c.seq++
	return c.seq
}

// stale reports whether an echo tagged seq predates the latest push.
// Untagged echoes (seq 0) are never stale.
func (c ConfigSession) stale(seq uint64) bool {
	return seq != 0 && seq < c.seq
}

// Seq is the counter of the latest push.
func (c ConfigSession) Seq() uint64 { return c.seq }
