// Package sync runs synchronization rounds between the local store and a
// remote counterpart, on demand or in the background.
package sync

import (
	"context"
	"errors"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/nhle/todosync/internal/apperr"
	"github.com/nhle/todosync/internal/merge"
	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/peer"
)

// Transport exchanges a snapshot with a remote counterpart and returns the
// counterpart's snapshot.
type Transport interface {
	// Peer names the counterpart, e.g. the server base URL.
	Peer() string
	Exchange(ctx context.Context, localID string, snapshot []model.Todo) ([]model.Todo, error)
}

// Snapshotter is the part of the todo store a sync round needs.
type Snapshotter interface {
	Snapshot(ctx context.Context) ([]model.Todo, error)
	ImportMergeFrom(ctx context.Context, peerID string, at time.Time, remote []model.Todo) (merge.Result, error)
}

// Report describes a completed round.
type Report struct {
	Peer     string        `json:"peer"`
	Sent     int           `json:"sent"`
	Received int           `json:"received"`
	Result   merge.Result  `json:"result"`
	At       time.Time     `json:"at"`
	Took     time.Duration `json:"took"`
}

// Coordinator runs one sync round at a time. It holds no lock of the store
// or the registry across the network exchange.
type Coordinator struct {
	store     Snapshotter
	registry  *peer.Registry
	transport Transport
	logger    *slog.Logger
	now       func() time.Time

	mu gosync.Mutex
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithLogger sets the logger used by the coordinator.
func WithLogger(l *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.logger = l }
}

// WithClock overrides the clock used for LastSync.
func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) { c.now = now }
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(s Snapshotter, r *peer.Registry, t Transport, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		store:     s,
		registry:  r,
		transport: t,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunSync exchanges the local snapshot with the transport's counterpart and
// merges the answer. On failure the returned error is a *apperr.StageError
// naming the failed stage. The merged todos and the peer's last sync are
// committed together, so a failed round leaves the local store untouched.
func (c *Coordinator) RunSync(ctx context.Context) (Report, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := c.now()
	report := Report{Peer: c.transport.Peer()}

	snapshot, err := c.store.Snapshot(ctx)
	if err != nil {
		return report, c.fail(apperr.StageSnapshot, err)
	}
	report.Sent = len(snapshot)

	localID := c.registry.LocalID()
	if localID == "" {
		return report, c.fail(apperr.StageIdentity, &apperr.NoIdentityError{})
	}

	attempt := c.registry.BeginAttempt()
	defer attempt.Abort()

	remote, err := c.transport.Exchange(ctx, localID, snapshot)
	if err != nil {
		var te *apperr.TransportError
		if !errors.As(err, &te) {
			err = &apperr.TransportError{Peer: report.Peer, Err: err}
		}
		return report, c.fail(apperr.StageExchange, err)
	}
	report.Received = len(remote)

	at := c.now()
	res, err := c.store.ImportMergeFrom(ctx, report.Peer, at, remote)
	if err != nil {
		return report, c.fail(apperr.StageMerge, err)
	}
	report.Result = res

	attempt.Complete(ctx, report.Peer, at)
	report.At = at
	report.Took = at.Sub(start)

	c.logger.Info("sync complete",
		"peer", report.Peer,
		"sent", report.Sent,
		"received", report.Received,
		"updated", len(res.Updates),
		"inserted", len(res.Inserts),
		"deleted", len(res.Deletes),
		"skipped", res.Skipped,
	)
	return report, nil
}

func (c *Coordinator) fail(stage apperr.Stage, err error) error {
	c.logger.Warn("sync failed", "stage", stage, "peer", c.transport.Peer(), "error", err)
	return &apperr.StageError{Stage: stage, Err: err}
}
