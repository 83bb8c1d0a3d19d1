package server

import (
	"context"
	"errors"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"

	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/transport/ws"
)

// PeerSocket upgrades to the WebSocket peer protocol. A peer sends connect,
// then any number of sync messages, then disconnect.
func (h *Handler) PeerSocket(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.CloseNow()

	ctx := c.Request.Context()
	peerID := PeerIDFromContext(c)

	for {
		var msg ws.Message
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				h.logger.Debug("websocket read failed", "peer", peerID, "error", err)
			}
			return
		}
		if msg.PeerID != "" {
			peerID = msg.PeerID
		}

		reply, done := h.handleMessage(ctx, peerID, msg)
		if reply != nil {
			if err := wsjson.Write(ctx, conn, reply); err != nil {
				return
			}
		}
		if done {
			conn.Close(websocket.StatusNormalClosure, "")
			return
		}
	}
}

// handleMessage returns the reply to msg, if any, and whether the peer
// asked to end the session.
func (h *Handler) handleMessage(ctx context.Context, peerID string, msg ws.Message) (*ws.Message, bool) {
	switch msg.Type {
	case ws.MessageConnect:
		if peerID == "" {
			return errorMessage("connect requires peer_id"), false
		}
		err := h.store.UpsertPeerConnection(ctx, model.PeerConnection{
			PeerID:     peerID,
			DeviceName: msg.DeviceName,
			DeviceType: msg.DeviceType,
			SyncStatus: model.SyncConnected,
		})
		if err != nil {
			return errorMessage(err.Error()), false
		}
		return nil, false

	case ws.MessageSync:
		merged, err := h.exchange(ctx, peerID, msg.Todos)
		if err != nil {
			return errorMessage(err.Error()), false
		}
		if merged == nil {
			merged = []model.Todo{}
		}
		return &ws.Message{Type: ws.MessageSyncResponse, Todos: merged}, false

	case ws.MessageDisconnect:
		if peerID != "" {
			if err := h.store.SetPeerStatus(ctx, peerID, model.SyncDisconnected); err != nil {
				h.logger.Debug("marking peer disconnected", "peer", peerID, "error", err)
			}
		}
		return nil, true

	default:
		return errorMessage("unknown message type " + string(msg.Type)), false
	}
}

func errorMessage(text string) *ws.Message {
	return &ws.Message{Type: ws.MessageError, Error: text}
}
