package session

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/luxonis/depthai-viewer/devicemgr/wire"
)

// Request records an outbound command still waiting for its reply.
type Request struct {
	ID          uuid.UUID
	Kind        wire.Kind
	SubmittedAt time.Time
}

// Tracker correlates outbound commands with inbound replies. The backend
// does not echo request ids, so a reply resolves the oldest pending request
// of the same kind.
type Tracker struct {
	pending map[uuid.UUID]Request
}

func NewTracker() *Tracker {
	return &Tracker{pending: make(map[uuid.UUID]Request)}
}

func (t *Tracker) Track(kind wire.Kind, at time.Time) Request {
	r := Request{ID: uuid.New(), Kind: kind, SubmittedAt: at}
	t.pending[r.ID] = r
	return r
}

// Resolve removes the oldest pending request of the given kinds.
func (t *Tracker) Resolve(kinds ...wire.Kind) (Request, bool) {
	var (
		oldest Request
		found  bool
	)
	for _, r := range t.pending {
		if !kindIn(r.Kind, kinds) {
			continue
		}
		if !found || r.SubmittedAt.Before(oldest.SubmittedAt) {
			oldest, found = r, true
		}
	}
	if found {
		delete(t.pending, oldest.ID)
	}
	return oldest, found
}

// Expire removes and returns requests submitted before now-timeout.
func (t *Tracker) Expire(now time.Time, timeout time.Duration) []Request {
	var out []Request
	for id, r := range t.pending {
		if now.Sub(r.SubmittedAt) >= timeout {
			out = append(out, r)
			delete(t.pending, id)
		}
	}
	sortRequests(out)
	return out
}

// Pending lists unanswered requests, oldest first.
func (t *Tracker) Pending() []Request {
	out := make([]Request, 0, len(t.pending))
	for _, r := range t.pending {
		out = append(out, r)
	}
	sortRequests(out)
	return out
}

func (t *Tracker) Reset() {
	t.pending = make(map[uuid.UUID]Request)
}

func sortRequests(rs []Request) {
	sort.Slice(rs, func(i, j int) bool { return rs[i].SubmittedAt.Before(rs[j].SubmittedAt) })
}

func kindIn(k wire.Kind, kinds []wire.Kind) bool {
	for _, c := range kinds {
		if c == k {
			return true
		}
	}
	return false
}
