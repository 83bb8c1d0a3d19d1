package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/todosync/internal/apperr"
	"github.com/nhle/todosync/internal/model"
)

const peerColumns = "peer_id, last_sync, device_name, device_type, sync_status"

// UpsertPeerConnection creates or updates a peer row. Empty device fields and
// a nil LastSync keep whatever is already stored.
func (s *SQLiteStore) UpsertPeerConnection(ctx context.Context, pc model.PeerConnection) error {
	if pc.PeerID == "" {
		return apperr.Invalid("peer_id", "must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := upsertPeer(ctx, s.db, pc)
	return apperr.Storage(fmt.Sprintf("upserting peer %s", pc.PeerID), err)
}

func upsertPeer(ctx context.Context, ex sqlx.ExecerContext, pc model.PeerConnection) error {
	var lastSync any
	if pc.LastSync != nil {
		lastSync = pc.LastSync.UTC()
	}

	_, err := ex.ExecContext(ctx, `
		INSERT INTO peer_connections (`+peerColumns+`)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(peer_id) DO UPDATE SET
			last_sync   = COALESCE(excluded.last_sync, peer_connections.last_sync),
			device_name = CASE WHEN excluded.device_name = '' THEN peer_connections.device_name ELSE excluded.device_name END,
			device_type = CASE WHEN excluded.device_type = '' THEN peer_connections.device_type ELSE excluded.device_type END,
			sync_status = excluded.sync_status`,
		pc.PeerID, lastSync, pc.DeviceName, pc.DeviceType, pc.SyncStatus,
	)
	return err
}

// SetPeerStatus updates the status of an existing peer row.
func (s *SQLiteStore) SetPeerStatus(ctx context.Context, peerID string, status model.SyncStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE peer_connections SET sync_status = ? WHERE peer_id = ?", status, peerID)
	if err != nil {
		return apperr.Storage(fmt.Sprintf("updating peer %s", peerID), err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Storage(fmt.Sprintf("updating peer %s", peerID), err)
	}
	if n == 0 {
		return apperr.NotFound("peer", peerID)
	}
	return nil
}

// GetPeerConnection retrieves a single peer row.
func (s *SQLiteStore) GetPeerConnection(ctx context.Context, peerID string) (*model.PeerConnection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pc model.PeerConnection
	err := s.db.GetContext(ctx, &pc,
		"SELECT "+peerColumns+" FROM peer_connections WHERE peer_id = ?", peerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("peer", peerID)
	}
	if err != nil {
		return nil, apperr.Storage(fmt.Sprintf("getting peer %s", peerID), err)
	}
	return &pc, nil
}

// ListPeerConnections returns every known peer ordered by id.
func (s *SQLiteStore) ListPeerConnections(ctx context.Context) ([]model.PeerConnection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	peers := []model.PeerConnection{}
	err := s.db.SelectContext(ctx, &peers,
		"SELECT "+peerColumns+" FROM peer_connections ORDER BY peer_id")
	if err != nil {
		return nil, apperr.Storage("listing peers", err)
	}
	return peers, nil
}

// LoadLocalNode returns the persisted local identity and status. An empty id
// means no identity has been assigned yet.
func (s *SQLiteStore) LoadLocalNode(ctx context.Context) (string, model.SyncStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var row struct {
		PeerID     string           `db:"peer_id"`
		SyncStatus model.SyncStatus `db:"sync_status"`
	}
	err := s.db.GetContext(ctx, &row, "SELECT peer_id, sync_status FROM local_node WHERE id = 1")
	if errors.Is(err, sql.ErrNoRows) {
		return "", model.SyncDisconnected, nil
	}
	if err != nil {
		return "", model.SyncDisconnected, apperr.Storage("loading local node", err)
	}
	return row.PeerID, row.SyncStatus, nil
}

// SaveLocalNode persists the local identity and status.
func (s *SQLiteStore) SaveLocalNode(ctx context.Context, peerID string, status model.SyncStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO local_node (id, peer_id, sync_status) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET peer_id = excluded.peer_id, sync_status = excluded.sync_status`,
		peerID, status,
	)
	return apperr.Storage("saving local node", err)
}
