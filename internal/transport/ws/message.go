// Package ws exchanges todo snapshots with a sync server over a WebSocket.
package ws

import "github.com/nhle/todosync/internal/model"

// MessageType identifies a WebSocket message.
type MessageType string

const (
	MessageConnect      MessageType = "connect"
	MessageDisconnect   MessageType = "disconnect"
	MessageSync         MessageType = "sync"
	MessageSyncResponse MessageType = "sync_response"
	MessageError        MessageType = "error"
)

// Path is the server endpoint that upgrades to the peer protocol.
const Path = "/peer/ws"

// Message is the envelope of every frame in either direction.
type Message struct {
	Type       MessageType  `json:"type"`
	PeerID     string       `json:"peer_id,omitempty"`
	DeviceName string       `json:"device_name,omitempty"`
	DeviceType string       `json:"device_type,omitempty"`
	Todos      []model.Todo `json:"todos,omitempty"`
	Error      string       `json:"error,omitempty"`
}
