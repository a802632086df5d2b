package session

import dm "github.com/luxonis/depthai-viewer/devicemgr"

// Catalog is the last device list reported by the backend.
type Catalog struct {
	devices []dm.DeviceID
	known   bool
}

func (c *Catalog) Replace(ids []dm.DeviceID) {
	c.devices = append([]dm.DeviceID(nil), ids...)
	c.known = true
}

// Devices returns a copy of the catalog; empty until the first reply.
func (c Catalog) Devices() []dm.DeviceID {
	return append([]dm.DeviceID{}, c.devices...)
}

// Known reports whether the backend has answered at least once.
func (c Catalog) Known() bool { return c.known }

func (c Catalog) Contains(id dm.DeviceID) bool {
	for _, d := range c.devices {
		if d == id {
			return true
		}
	}
	return false
}
