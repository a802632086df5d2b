package devicemgr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChannelSet(t *testing.T) {
	a := NewChannelSet(DepthImage, ColorImage)
	b := NewChannelSet(ColorImage, DepthImage)
	assert.True(t, a.Equal(b))
	assert.Equal(t, []ChannelID{ColorImage, DepthImage}, a.Sorted())

	c := a.Clone()
	c.Add(PointCloud)
	assert.False(t, a.Has(PointCloud))
	assert.False(t, a.Equal(c))

	assert.True(t, PinholeCamera.Known())
	assert.False(t, ChannelID("ImuData").Known())
}

func TestNormalize(t *testing.T) {
	cfg := DefaultDeviceConfig()
	cfg.LeftCamera.BoardSocket = SocketCamC
	cfg.Depth = nil
	n := cfg.Normalize()
	assert.Equal(t, SocketLeft, n.LeftCamera.BoardSocket)
	assert.Equal(t, SocketRight, n.RightCamera.BoardSocket)
	assert.False(t, n.DepthEnabled)
	assert.Equal(t, SocketCamC, cfg.LeftCamera.BoardSocket, "input untouched")
}

func TestDeviceConfigCloneAndEqual(t *testing.T) {
	a := DefaultDeviceConfig()
	b := a.Clone()
	assert.True(t, a.Equal(b))

	b.Depth.Pointcloud.Enabled = true
	assert.False(t, a.Depth.Pointcloud.Enabled, "clone must not share depth")
	assert.False(t, a.Equal(b))
	assert.True(t, b.PointcloudEnabled())

	b.Depth = nil
	assert.False(t, a.Equal(b))
	assert.False(t, b.PointcloudEnabled())
}
