package model

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// SyncStatus is the connection state of the local node or a peer row.
type SyncStatus int

const (
	SyncDisconnected SyncStatus = iota
	SyncConnecting
	SyncConnected
)

var syncStatusNames = [...]string{
	SyncDisconnected: "disconnected",
	SyncConnecting:   "connecting",
	SyncConnected:    "connected",
}

func (s SyncStatus) String() string {
	if s < 0 || int(s) >= len(syncStatusNames) {
		return fmt.Sprintf("SyncStatus(%d)", int(s))
	}
	return syncStatusNames[s]
}

// ParseSyncStatus converts a stored status name back to a SyncStatus.
func ParseSyncStatus(s string) (SyncStatus, error) {
	for i, name := range syncStatusNames {
		if name == s {
			return SyncStatus(i), nil
		}
	}
	return SyncDisconnected, fmt.Errorf("unknown sync status %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s SyncStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *SyncStatus) UnmarshalText(b []byte) error {
	v, err := ParseSyncStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// PeerConnection is the durable record of a known sync peer.
type PeerConnection struct {
	PeerID     string     `json:"peer_id" db:"peer_id"`
	LastSync   *time.Time `json:"last_sync,omitempty" db:"last_sync"`
	DeviceName string     `json:"device_name" db:"device_name"`
	DeviceType string     `json:"device_type" db:"device_type"`
	SyncStatus SyncStatus `json:"sync_status" db:"sync_status"`
}

// Value implements driver.Valuer; statuses are stored by name.
func (s SyncStatus) Value() (driver.Value, error) {
	return s.String(), nil
}

// Scan implements sql.Scanner.
func (s *SyncStatus) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return s.UnmarshalText([]byte(v))
	case []byte:
		return s.UnmarshalText(v)
	case nil:
		*s = SyncDisconnected
		return nil
	default:
		return fmt.Errorf("scanning sync status: unsupported type %T", src)
	}
}
