package app

import (
	"context"
	"time"

	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/peer"
	appsync "github.com/nhle/todosync/internal/sync"
	"github.com/nhle/todosync/internal/transport/httpx"
)

// registrar is implemented by transports that can announce the device.
type registrar interface {
	Register(ctx context.Context, req httpx.RegisterRequest) error
}

// ConnectPeer connects to peerID, or assigns a new local identity when
// peerID is empty, and returns the resulting id.
func (a *App) ConnectPeer(ctx context.Context, peerID, deviceName, deviceType string) (string, error) {
	return a.registry.Connect(ctx, peer.ConnectRequest{
		PeerID:     peerID,
		DeviceName: deviceName,
		DeviceType: deviceType,
	})
}

// DisconnectPeer disconnects peerID.
func (a *App) DisconnectPeer(ctx context.Context, peerID string) error {
	return a.registry.Disconnect(ctx, peerID)
}

// SyncStatus returns the local sync status.
func (a *App) SyncStatus() model.SyncStatus {
	return a.registry.Status()
}

// IsConnected reports whether the node is connected to at least one peer.
func (a *App) IsConnected() bool {
	return a.registry.IsConnected()
}

// LocalID returns the local identity, or "" if none was assigned.
func (a *App) LocalID() string {
	return a.registry.LocalID()
}

// LastSync returns the time of the last successful sync.
func (a *App) LastSync() time.Time {
	return a.registry.LastSync()
}

// Peers returns every known peer row.
func (a *App) Peers(ctx context.Context) ([]model.PeerConnection, error) {
	return a.registry.Peers(ctx)
}

// RunSync runs one synchronization round.
func (a *App) RunSync(ctx context.Context) (appsync.Report, error) {
	return a.coordinator.RunSync(ctx)
}

// Announce registers this device with the sync server when the transport
// supports it. It reports whether an announcement was sent.
func (a *App) Announce(ctx context.Context) (bool, error) {
	r, ok := a.transport.(registrar)
	if !ok {
		return false, nil
	}
	id := a.registry.LocalID()
	if id == "" {
		return false, nil
	}
	err := r.Register(ctx, httpx.RegisterRequest{
		PeerID:     id,
		DeviceName: a.device.Name,
		DeviceType: a.device.Type,
	})
	return err == nil, err
}
