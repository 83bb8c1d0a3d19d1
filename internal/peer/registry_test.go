package peer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/todosync/internal/apperr"
	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/store"
	"github.com/nhle/todosync/tests/testutil"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("self-%d", n)
	}
}

// failingStore fails peer upserts.
type failingStore struct {
	store.PeerStore
}

func (failingStore) UpsertPeerConnection(context.Context, model.PeerConnection) error {
	return apperr.Storage("upserting peer", errors.New("disk full"))
}

// readOnlyNodeStore accepts peer rows but cannot save the local node.
type readOnlyNodeStore struct {
	store.PeerStore
}

func (readOnlyNodeStore) SaveLocalNode(context.Context, string, model.SyncStatus) error {
	return apperr.Storage("saving local node", errors.New("read-only"))
}

func TestTransition(t *testing.T) {
	tests := []struct {
		from model.SyncStatus
		ev   Event
		want model.SyncStatus
	}{
		{model.SyncDisconnected, EventAttempt, model.SyncConnecting},
		{model.SyncDisconnected, EventConnected, model.SyncConnected},
		{model.SyncConnected, EventConnected, model.SyncConnected},
		{model.SyncConnected, EventPeerRemoved, model.SyncConnected},
		{model.SyncConnected, EventLastPeerRemoved, model.SyncDisconnected},
		{model.SyncConnecting, EventConnected, model.SyncConnected},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Transition(tt.from, tt.ev), "%s on %d", tt.from, tt.ev)
	}
}

func TestConnectWithoutPeerIDAssignsIdentityOnly(t *testing.T) {
	r := New(testutil.NewTestStore(t), WithIDGenerator(sequentialIDs()))
	ctx := context.Background()

	id, err := r.Connect(ctx, ConnectRequest{})
	require.NoError(t, err)

	assert.Equal(t, "self-1", id)
	assert.Equal(t, id, r.LocalID())
	assert.Equal(t, model.SyncConnected, r.Status())
	assert.False(t, r.IsConnected())
	assert.Empty(t, r.ConnectedPeers())

	_, err = r.Connect(ctx, ConnectRequest{PeerID: "laptop"})
	require.NoError(t, err)
	assert.True(t, r.IsConnected())
}

func TestConnectAndDisconnectLifecycle(t *testing.T) {
	s := testutil.NewTestStore(t)
	r := New(s, WithIDGenerator(sequentialIDs()))
	ctx := context.Background()

	id, err := r.Connect(ctx, ConnectRequest{PeerID: "laptop", DeviceName: "work", DeviceType: "desktop"})
	require.NoError(t, err)
	assert.Equal(t, "laptop", id)
	assert.Equal(t, "self-1", r.LocalID())
	assert.True(t, r.IsConnected())

	_, err = r.Connect(ctx, ConnectRequest{PeerID: "phone"})
	require.NoError(t, err)
	assert.Equal(t, []string{"laptop", "phone"}, r.ConnectedPeers())

	require.NoError(t, r.Disconnect(ctx, "laptop"))
	assert.Equal(t, model.SyncConnected, r.Status())
	assert.True(t, r.IsConnected())

	require.NoError(t, r.Disconnect(ctx, "phone"))
	assert.Equal(t, model.SyncDisconnected, r.Status())
	assert.False(t, r.IsConnected())

	pc, err := s.GetPeerConnection(ctx, "laptop")
	require.NoError(t, err)
	assert.Equal(t, model.SyncDisconnected, pc.SyncStatus)
	assert.Equal(t, "work", pc.DeviceName)
}

func TestConnectToOwnIdentityIsRejected(t *testing.T) {
	r := New(testutil.NewTestStore(t), WithIDGenerator(sequentialIDs()))
	ctx := context.Background()

	id, err := r.Connect(ctx, ConnectRequest{})
	require.NoError(t, err)

	_, err = r.Connect(ctx, ConnectRequest{PeerID: id})
	assert.True(t, apperr.IsValidation(err))
}

func TestDisconnectUnknownPeer(t *testing.T) {
	r := New(testutil.NewTestStore(t))

	err := r.Disconnect(context.Background(), "ghost")
	assert.True(t, apperr.IsNotFound(err))
}

func TestFailedConnectRevertsStatus(t *testing.T) {
	r := New(failingStore{PeerStore: testutil.NewTestStore(t)})
	ctx := context.Background()

	_, err := r.Connect(ctx, ConnectRequest{PeerID: "laptop"})
	require.Error(t, err)
	assert.True(t, apperr.IsStorage(err))
	assert.Equal(t, model.SyncDisconnected, r.Status())
	assert.Empty(t, r.ConnectedPeers())
}

func TestAttemptAbortRestoresPreviousStatus(t *testing.T) {
	r := New(testutil.NewTestStore(t))
	ctx := context.Background()

	_, err := r.Connect(ctx, ConnectRequest{})
	require.NoError(t, err)

	a := r.BeginAttempt()
	assert.Equal(t, model.SyncConnecting, r.Status())
	a.Abort()
	assert.Equal(t, model.SyncConnected, r.Status())

	a.Abort()
	assert.Equal(t, model.SyncConnected, r.Status())
}

func TestAttemptComplete(t *testing.T) {
	s := testutil.NewTestStore(t)
	r := New(s)
	ctx := context.Background()
	at := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	localID, err := r.Connect(ctx, ConnectRequest{})
	require.NoError(t, err)

	a := r.BeginAttempt()
	a.Complete(ctx, "http://localhost:8080", at)

	assert.True(t, r.IsConnected())
	assert.True(t, at.Equal(r.LastSync()))
	assert.Equal(t, []string{"http://localhost:8080"}, r.ConnectedPeers())

	id, status, err := s.LoadLocalNode(ctx)
	require.NoError(t, err)
	assert.Equal(t, localID, id)
	assert.Equal(t, model.SyncConnected, status)
}

func TestAttemptCompleteAfterAbortIsNoOp(t *testing.T) {
	r := New(testutil.NewTestStore(t))

	a := r.BeginAttempt()
	a.Abort()
	a.Complete(context.Background(), "server", time.Now())

	assert.Equal(t, model.SyncDisconnected, r.Status())
	assert.Empty(t, r.ConnectedPeers())
	assert.True(t, r.LastSync().IsZero())
}

func TestConnectSucceedsWhenLocalNodeCannotBeSaved(t *testing.T) {
	s := testutil.NewTestStore(t)
	r := New(readOnlyNodeStore{PeerStore: s}, WithIDGenerator(sequentialIDs()))
	ctx := context.Background()

	id, err := r.Connect(ctx, ConnectRequest{PeerID: "laptop"})
	require.NoError(t, err)
	assert.Equal(t, "laptop", id)
	assert.Equal(t, model.SyncConnected, r.Status())
	assert.Equal(t, []string{"laptop"}, r.ConnectedPeers())

	pc, err := s.GetPeerConnection(ctx, "laptop")
	require.NoError(t, err)
	assert.Equal(t, model.SyncConnected, pc.SyncStatus)

	restored := New(s)
	require.NoError(t, restored.Restore(ctx))
	assert.Equal(t, model.SyncConnected, restored.Status())
	assert.Equal(t, []string{"laptop"}, restored.ConnectedPeers())
}

func TestRestore(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	first := New(s, WithIDGenerator(sequentialIDs()))
	_, err := first.Connect(ctx, ConnectRequest{PeerID: "laptop"})
	require.NoError(t, err)
	_, err = first.Connect(ctx, ConnectRequest{PeerID: "phone"})
	require.NoError(t, err)
	require.NoError(t, first.Disconnect(ctx, "phone"))

	second := New(s)
	require.NoError(t, second.Restore(ctx))

	assert.Equal(t, "self-1", second.LocalID())
	assert.Equal(t, model.SyncConnected, second.Status())
	assert.Equal(t, []string{"laptop"}, second.ConnectedPeers())
	assert.True(t, second.IsConnected())
}

func TestRestoreClearsStaleConnecting(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveLocalNode(ctx, "self", model.SyncConnecting))

	r := New(s)
	require.NoError(t, r.Restore(ctx))

	assert.Equal(t, model.SyncDisconnected, r.Status())
}
