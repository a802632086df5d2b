package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	dm "github.com/luxonis/depthai-viewer/devicemgr"
)

func withPointcloud(enabled bool) dm.DeviceConfig {
	cfg := dm.DefaultDeviceConfig()
	cfg.Depth.Pointcloud.Enabled = enabled
	return cfg
}

func noDepth() dm.DeviceConfig {
	cfg := dm.DefaultDeviceConfig()
	cfg.Depth = nil
	return cfg
}

func TestPossible(t *testing.T) {
	tests := []struct {
		name string
		cfg  dm.DeviceConfig
		want dm.ChannelSet
	}{
		{"no depth", noDepth(), dm.NewChannelSet(dm.ColorImage, dm.LeftMono, dm.RightMono)},
		{"depth", withPointcloud(false), dm.NewChannelSet(dm.ColorImage, dm.LeftMono, dm.RightMono, dm.DepthImage)},
		{"pointcloud", withPointcloud(true), dm.NewChannelSet(dm.StreamChannels()...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Possible(tt.cfg)
			assert.True(t, tt.want.Equal(got), "got %v", got.Sorted())
			assert.False(t, got.Has(dm.PinholeCamera))
		})
	}
}

func TestDesired(t *testing.T) {
	r := NewReconciler(nil)

	tests := []struct {
		name    string
		views   []View
		cfg     dm.DeviceConfig
		current dm.ChannelSet
		want    dm.ChannelSet
	}{
		{
			name:    "visible channel added",
			views:   []View{StaticView{"world/camera/image/rgb": true}},
			cfg:     noDepth(),
			current: dm.NewChannelSet(),
			want:    dm.NewChannelSet(dm.ColorImage),
		},
		{
			name:    "invisible channel dropped",
			views:   []View{StaticView{"Left mono camera": false}},
			cfg:     noDepth(),
			current: dm.NewChannelSet(dm.LeftMono),
			want:    dm.NewChannelSet(),
		},
		{
			name:    "visible in one view wins",
			views:   []View{StaticView{"Left mono camera": false}, StaticView{"Left mono camera": true}},
			cfg:     noDepth(),
			current: dm.NewChannelSet(),
			want:    dm.NewChannelSet(dm.LeftMono),
		},
		{
			name:    "impossible channel never desired",
			views:   []View{StaticView{"right mono camera/depth": true, "world/point_cloud": true}},
			cfg:     noDepth(),
			current: dm.NewChannelSet(dm.DepthImage, dm.PointCloud),
			want:    dm.NewChannelSet(),
		},
		{
			name:    "unreported active channel retained",
			views:   []View{StaticView{"world/camera/image/rgb": true}},
			cfg:     withPointcloud(true),
			current: dm.NewChannelSet(dm.PointCloud, dm.RightMono),
			want:    dm.NewChannelSet(dm.ColorImage, dm.PointCloud, dm.RightMono),
		},
		{
			name:    "unknown paths and nil views ignored",
			views:   []View{nil, StaticView{"world/imu": true}},
			cfg:     noDepth(),
			current: dm.NewChannelSet(),
			want:    dm.NewChannelSet(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Desired(tt.views, tt.cfg, tt.current)
			assert.True(t, tt.want.Equal(got), "got %v", got.Sorted())
		})
	}
}

func TestAfterPipeline(t *testing.T) {
	r := NewReconciler(nil)

	got := r.AfterPipeline(noDepth(), withPointcloud(true), dm.NewChannelSet(dm.ColorImage))
	assert.True(t, dm.NewChannelSet(dm.ColorImage, dm.DepthImage, dm.PointCloud).Equal(got))

	got = r.AfterPipeline(withPointcloud(true), withPointcloud(false), dm.NewChannelSet(dm.DepthImage, dm.PointCloud))
	assert.True(t, dm.NewChannelSet(dm.DepthImage).Equal(got))

	got = r.AfterPipeline(withPointcloud(false), withPointcloud(false), dm.NewChannelSet(dm.LeftMono))
	assert.True(t, dm.NewChannelSet(dm.LeftMono).Equal(got), "unchanged config leaves subscriptions alone")
}

func TestHiddenAndChannelFor(t *testing.T) {
	r := NewReconciler(nil)
	paths := []string{"world/camera/image/rgb", "right mono camera/depth", "world/point_cloud", "other"}

	assert.Equal(t, []string{"right mono camera/depth", "world/point_cloud"}, r.Hidden(paths, noDepth()))
	assert.Equal(t, []string{"world/point_cloud"}, r.Hidden(paths, withPointcloud(false)))
	assert.Empty(t, r.Hidden(paths, withPointcloud(true)))

	c, ok := r.ChannelFor("world/point_cloud")
	assert.True(t, ok)
	assert.Equal(t, dm.PointCloud, c)
	_, ok = r.ChannelFor("other")
	assert.False(t, ok)
}
