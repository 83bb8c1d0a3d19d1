// Package peer tracks the local node identity, the set of connected peers and
// the local sync status.
package peer

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/todosync/internal/apperr"
	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/store"
)

// ConnectRequest describes a connect call. An empty PeerID asks the registry
// to assign a fresh local identity instead of connecting to a peer.
type ConnectRequest struct {
	PeerID     string
	DeviceName string
	DeviceType string
}

// Registry owns the in-memory peer state behind its own mutex. Store I/O
// always happens with the mutex released.
type Registry struct {
	store  store.PeerStore
	logger *slog.Logger
	newID  func() string

	mu       sync.Mutex
	localID  string
	status   model.SyncStatus
	peers    map[string]bool
	lastSync time.Time

	// persistMu orders writes of the local node row.
	persistMu sync.Mutex
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used by the registry.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithIDGenerator overrides how local identities are generated.
func WithIDGenerator(fn func() string) Option {
	return func(r *Registry) { r.newID = fn }
}

// New creates an empty, disconnected Registry backed by ps.
func New(ps store.PeerStore, opts ...Option) *Registry {
	r := &Registry{
		store:  ps,
		logger: slog.Default(),
		newID:  uuid.NewString,
		peers:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Restore loads the local identity and connected peers persisted by an
// earlier process.
func (r *Registry) Restore(ctx context.Context) error {
	id, status, err := r.store.LoadLocalNode(ctx)
	if err != nil {
		return err
	}
	rows, err := r.store.ListPeerConnections(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.localID = id
	r.peers = make(map[string]bool)
	for _, pc := range rows {
		if pc.SyncStatus == model.SyncConnected {
			r.peers[pc.PeerID] = true
		}
		if pc.LastSync != nil && pc.LastSync.After(r.lastSync) {
			r.lastSync = *pc.LastSync
		}
	}

	// Connected peer rows are authoritative. A process that died mid-attempt
	// must not leave the node connecting.
	switch {
	case len(r.peers) > 0:
		status = model.SyncConnected
	case status == model.SyncConnecting:
		status = model.SyncDisconnected
	}
	r.status = status
	return nil
}

// Connect connects to req.PeerID, or assigns a new local identity when
// req.PeerID is empty. It returns the connected or assigned id.
func (r *Registry) Connect(ctx context.Context, req ConnectRequest) (string, error) {
	if req.PeerID == "" {
		return r.selfRegister(ctx)
	}

	r.mu.Lock()
	generated := false
	if r.localID == "" {
		r.localID = r.newID()
		generated = true
	}
	if req.PeerID == r.localID {
		r.mu.Unlock()
		return "", apperr.Invalid("peer_id", "cannot connect to own identity %q", req.PeerID)
	}
	r.mu.Unlock()

	if generated {
		r.logger.Info("assigned local identity", "peer_id", r.LocalID())
	}

	attempt := r.BeginAttempt()
	err := r.store.UpsertPeerConnection(ctx, model.PeerConnection{
		PeerID:     req.PeerID,
		DeviceName: req.DeviceName,
		DeviceType: req.DeviceType,
		SyncStatus: model.SyncConnected,
	})
	if err != nil {
		attempt.Abort()
		return "", err
	}

	r.mu.Lock()
	r.peers[req.PeerID] = true
	r.status = Transition(r.status, EventConnected)
	attempt.done = true
	r.mu.Unlock()

	r.persistOrWarn(ctx)

	r.logger.Info("peer connected", "peer_id", req.PeerID, "device", req.DeviceName)
	return req.PeerID, nil
}

// selfRegister assigns a fresh local identity. No peer joins the connected
// set, so IsConnected stays false until a real peer connects.
func (r *Registry) selfRegister(ctx context.Context) (string, error) {
	r.mu.Lock()
	prevID, prevStatus := r.localID, r.status
	r.localID = r.newID()
	r.status = Transition(r.status, EventConnected)
	id := r.localID
	r.mu.Unlock()

	if err := r.persist(ctx); err != nil {
		r.mu.Lock()
		if r.localID == id {
			r.localID, r.status = prevID, prevStatus
		}
		r.mu.Unlock()
		return "", err
	}

	r.logger.Info("assigned local identity", "peer_id", id)
	return id, nil
}

// Disconnect marks peerID disconnected and removes it from the connected
// set. Removing the last peer disconnects the local node.
func (r *Registry) Disconnect(ctx context.Context, peerID string) error {
	r.mu.Lock()
	known := r.peers[peerID]
	r.mu.Unlock()

	err := r.store.SetPeerStatus(ctx, peerID, model.SyncDisconnected)
	if err != nil && !(known && apperr.IsNotFound(err)) {
		return err
	}

	r.mu.Lock()
	delete(r.peers, peerID)
	if len(r.peers) == 0 {
		r.status = Transition(r.status, EventLastPeerRemoved)
	} else {
		r.status = Transition(r.status, EventPeerRemoved)
	}
	r.mu.Unlock()

	r.logger.Info("peer disconnected", "peer_id", peerID)
	r.persistOrWarn(ctx)
	return nil
}

// IsConnected reports whether the node is connected, has an identity and
// has at least one connected peer.
func (r *Registry) IsConnected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status == model.SyncConnected && r.localID != "" && len(r.peers) > 0
}

// Status returns the local sync status.
func (r *Registry) Status() model.SyncStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// LocalID returns the local identity, or "" if none was assigned.
func (r *Registry) LocalID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.localID
}

// ConnectedPeers returns the connected peer ids in sorted order.
func (r *Registry) ConnectedPeers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.peers))
	for id := range r.peers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LastSync returns the time of the last successful sync, or the zero time.
func (r *Registry) LastSync() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSync
}

// Peers returns every persisted peer row.
func (r *Registry) Peers(ctx context.Context) ([]model.PeerConnection, error) {
	return r.store.ListPeerConnections(ctx)
}

// persistOrWarn persists the local node after a change that has already
// taken effect in the peer rows.
func (r *Registry) persistOrWarn(ctx context.Context) {
	if err := r.persist(ctx); err != nil {
		r.logger.Warn("saving local node failed", "peer_id", r.LocalID(), "error", err)
	}
}

// persist writes the current identity and status. Writes are serialized so
// the row always ends with the newest state.
func (r *Registry) persist(ctx context.Context) error {
	r.persistMu.Lock()
	defer r.persistMu.Unlock()

	r.mu.Lock()
	id, status := r.localID, r.status
	r.mu.Unlock()

	if id == "" {
		return nil
	}
	return r.store.SaveLocalNode(ctx, id, status)
}
