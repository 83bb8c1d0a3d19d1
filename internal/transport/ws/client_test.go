package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/todosync/internal/apperr"
	"github.com/nhle/todosync/internal/model"
)

// peerServer answers a single exchange with reply, or with an error
// message when errMsg is set.
func peerServer(t *testing.T, reply []model.Todo, errMsg string) (*httptest.Server, chan []Message) {
	t.Helper()
	seen := make(chan []Message, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, Path, r.URL.Path)
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()

		ctx := r.Context()
		var got []Message
		for i := 0; i < 2; i++ {
			var msg Message
			if err := wsjson.Read(ctx, conn, &msg); err != nil {
				return
			}
			got = append(got, msg)
		}
		seen <- got

		if errMsg != "" {
			wsjson.Write(ctx, conn, Message{Type: MessageError, Error: errMsg})
		} else {
			wsjson.Write(ctx, conn, Message{Type: MessageConnect, PeerID: "server"})
			wsjson.Write(ctx, conn, Message{Type: MessageSyncResponse, Todos: reply})
		}

		var bye Message
		wsjson.Read(ctx, conn, &bye)
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func TestURL(t *testing.T) {
	assert.Equal(t, "ws://localhost:8080/peer/ws", NewClient("http://localhost:8080/", "", 0).URL())
	assert.Equal(t, "wss://sync.example.com/peer/ws", NewClient("https://sync.example.com", "", 0).URL())
	assert.Equal(t, "ws://x/peer/ws", NewClient("ws://x", "", 0).URL())
}

func TestExchange(t *testing.T) {
	reply := []model.Todo{{ID: 4, Day: "Thursday", Content: "remote", LastModified: 9}}
	srv, seen := peerServer(t, reply, "")

	c := NewClient(srv.URL, "", 2*time.Second).WithDevice("laptop", "desktop")
	remote, err := c.Exchange(context.Background(), "self-1", []model.Todo{{ID: 1, Day: "Monday", Content: "a"}})
	require.NoError(t, err)
	assert.Equal(t, reply, remote)

	got := <-seen
	require.Len(t, got, 2)
	assert.Equal(t, MessageConnect, got[0].Type)
	assert.Equal(t, "self-1", got[0].PeerID)
	assert.Equal(t, "laptop", got[0].DeviceName)
	assert.Equal(t, MessageSync, got[1].Type)
	assert.Len(t, got[1].Todos, 1)
}

func TestExchangeErrorMessage(t *testing.T) {
	srv, _ := peerServer(t, nil, "no identity")

	_, err := NewClient(srv.URL, "", 2*time.Second).Exchange(context.Background(), "self-1", nil)
	require.Error(t, err)
	assert.True(t, apperr.IsTransport(err))
	assert.Contains(t, err.Error(), "no identity")
}

func TestExchangeDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	_, err := NewClient(srv.URL, "", 2*time.Second).Exchange(context.Background(), "self-1", nil)
	require.Error(t, err)

	var te *apperr.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusNotFound, te.StatusCode)
}
