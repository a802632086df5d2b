package session

import dm "github.com/luxonis/depthai-viewer/devicemgr"

// EntityChannels maps the entity paths the backend logs to the channel that
// feeds them.
type EntityChannels map[string]dm.ChannelID

func DefaultEntityChannels() EntityChannels {
	return EntityChannels{
		"world/camera/image/rgb":  dm.ColorImage,
		"Left mono camera":        dm.LeftMono,
		"Right mono camera":       dm.RightMono,
		"right mono camera/depth": dm.DepthImage,
		"world/point_cloud":       dm.PointCloud,
	}
}

// View is the projection of a visible space view the reconciler needs:
// entity path -> whether it is shown.
type View interface {
	EntityVisibility() map[string]bool
}

// StaticView is a fixed View.
type StaticView map[string]bool

func (v StaticView) EntityVisibility() map[string]bool { return v }

// Reconciler derives the channel set the UI needs from view visibility and
// the device configuration.
type Reconciler struct {
	entities EntityChannels
}

func NewReconciler(entities EntityChannels) *Reconciler {
	if entities == nil {
		entities = DefaultEntityChannels()
	}
	return &Reconciler{entities: entities}
}

// Possible is the set of channels cfg can produce. PinholeCamera and
// channels outside the closed set are never possible.
func Possible(cfg dm.DeviceConfig) dm.ChannelSet {
	set := dm.NewChannelSet(dm.ColorImage, dm.LeftMono, dm.RightMono)
	if cfg.Depth != nil {
		set.Add(dm.DepthImage)
		if cfg.Depth.Pointcloud.Enabled {
			set.Add(dm.PointCloud)
		}
	}
	return set
}

// depthGated channels exist only while depth is configured.
func depthGated(c dm.ChannelID) bool {
	return c == dm.DepthImage || c == dm.PointCloud
}

// Desired computes the subscriptions for views under cfg. A possible channel
// is wanted when some view shows one of its entities. A channel in current
// that is still possible but that no view reports at all is kept: its
// visibility cannot be known yet, and dropping it would make the
// subscription flap while views are laid out.
func (r *Reconciler) Desired(views []View, cfg dm.DeviceConfig, current dm.ChannelSet) dm.ChannelSet {
	possible := Possible(cfg)
	seen := dm.NewChannelSet()
	visible := dm.NewChannelSet()
	for _, v := range views {
		if v == nil {
			continue
		}
		for path, shown := range v.EntityVisibility() {
			c, ok := r.entities[path]
			if !ok {
				continue
			}
			seen.Add(c)
			if shown {
				visible.Add(c)
			}
		}
	}

	desired := dm.NewChannelSet()
	for c := range visible {
		if possible.Has(c) {
			desired.Add(c)
		}
	}
	for c := range current {
		if possible.Has(c) && !seen.Has(c) {
			desired.Add(c)
		}
	}
	return desired
}

// AfterPipeline adjusts current for a configuration change from prev to
// next: depth channels that are no longer possible are dropped and channels
// that just became possible are added, so enabling depth subscribes to the
// depth image without any view asking for it.
func (r *Reconciler) AfterPipeline(prev, next dm.DeviceConfig, current dm.ChannelSet) dm.ChannelSet {
	before, after := Possible(prev), Possible(next)
	out := dm.NewChannelSet()
	for c := range current {
		if depthGated(c) && !after.Has(c) {
			continue
		}
		out.Add(c)
	}
	for c := range after {
		if !before.Has(c) {
			out.Add(c)
		}
	}
	return out
}

// ChannelFor resolves an entity path.
func (r *Reconciler) ChannelFor(path string) (dm.ChannelID, bool) {
	c, ok := r.entities[path]
	return c, ok
}

// Hidden lists the entity paths whose channel cfg cannot produce, so a
// viewer can drop them from its store.
func (r *Reconciler) Hidden(paths []string, cfg dm.DeviceConfig) []string {
	possible := Possible(cfg)
	var out []string
	for _, p := range paths {
		if c, ok := r.entities[p]; ok && depthGated(c) && !possible.Has(c) {
			out = append(out, p)
		}
	}
	return out
}
