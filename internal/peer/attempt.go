package peer

import (
	"context"
	"time"

	"github.com/nhle/todosync/internal/model"
)

// Attempt is an in-flight connect or sync attempt. While it runs the local
// status is connecting; Abort restores the status it started from and
// Complete records success. Exactly one of them takes effect.
type Attempt struct {
	r    *Registry
	prev model.SyncStatus
	done bool // guarded by r.mu
}

// BeginAttempt moves the local status to connecting.
func (r *Registry) BeginAttempt() *Attempt {
	r.mu.Lock()
	defer r.mu.Unlock()

	a := &Attempt{r: r, prev: r.status}
	r.status = Transition(r.status, EventAttempt)
	return a
}

// Abort reverts the local status to its pre-attempt value. It is a no-op
// after Complete or a previous Abort, and leaves the status alone if
// something else changed it meanwhile.
func (a *Attempt) Abort() {
	a.r.mu.Lock()
	defer a.r.mu.Unlock()

	if a.done {
		return
	}
	a.done = true
	if a.r.status == model.SyncConnecting {
		a.r.status = a.prev
	}
}

// Complete records a successful sync with peerID at the given time: the
// peer joins the connected set and the node becomes connected. The peer row
// itself is written by the caller together with the merged todos. A failure
// to persist the local node is logged; the next Restore reconciles it from
// the peer rows.
func (a *Attempt) Complete(ctx context.Context, peerID string, at time.Time) {
	a.r.mu.Lock()
	if a.done {
		a.r.mu.Unlock()
		return
	}
	a.done = true
	a.r.lastSync = at
	a.r.peers[peerID] = true
	a.r.status = Transition(a.r.status, EventConnected)
	a.r.mu.Unlock()

	a.r.persistOrWarn(ctx)
}
