package peer

import "github.com/nhle/todosync/internal/model"

// Event drives the local sync status state machine.
type Event int

const (
	// EventAttempt starts a connect or sync attempt.
	EventAttempt Event = iota
	// EventConnected marks a successful connect, self-registration or sync.
	EventConnected
	// EventPeerRemoved removes a peer while others stay connected.
	EventPeerRemoved
	// EventLastPeerRemoved removes the last connected peer.
	EventLastPeerRemoved
)

// Transition returns the status that follows s on e. A failed attempt is
// not an event: the attempt restores the status it started from.
func Transition(s model.SyncStatus, e Event) model.SyncStatus {
	switch e {
	case EventAttempt:
		return model.SyncConnecting
	case EventConnected:
		return model.SyncConnected
	case EventLastPeerRemoved:
		return model.SyncDisconnected
	default:
		return s
	}
}
