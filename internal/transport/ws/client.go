package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/nhle/todosync/internal/apperr"
	"github.com/nhle/todosync/internal/model"
)

// Client dials the server for each exchange and speaks the peer protocol:
// connect, sync, then disconnect.
type Client struct {
	baseURL    string
	token      string
	timeout    time.Duration
	deviceName string
	deviceType string
}

// NewClient creates a Client for an http(s) or ws(s) baseURL. A non-positive
// timeout leaves the exchange bounded only by ctx.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		timeout: timeout,
	}
}

// WithDevice sets the device description sent in the connect message.
func (c *Client) WithDevice(name, kind string) *Client {
	c.deviceName = name
	c.deviceType = kind
	return c
}

// Peer returns the server base URL.
func (c *Client) Peer() string {
	return c.baseURL
}

// URL returns the WebSocket endpoint derived from the base URL.
func (c *Client) URL() string {
	u := c.baseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + Path
}

// Exchange sends snapshot in a sync message and returns the todos of the
// server's sync_response.
func (c *Client) Exchange(ctx context.Context, localID string, snapshot []model.Todo) ([]model.Todo, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var opts websocket.DialOptions
	if c.token != "" {
		opts.HTTPHeader = http.Header{"Authorization": []string{"Bearer " + c.token}}
	}

	conn, resp, err := websocket.Dial(ctx, c.URL(), &opts)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		return nil, c.fail(status, fmt.Errorf("dialing: %w", err))
	}
	defer conn.CloseNow()

	hello := Message{
		Type:       MessageConnect,
		PeerID:     localID,
		DeviceName: c.deviceName,
		DeviceType: c.deviceType,
	}
	if err := wsjson.Write(ctx, conn, hello); err != nil {
		return nil, c.fail(0, fmt.Errorf("sending connect: %w", err))
	}

	if snapshot == nil {
		snapshot = []model.Todo{}
	}
	if err := wsjson.Write(ctx, conn, Message{Type: MessageSync, PeerID: localID, Todos: snapshot}); err != nil {
		return nil, c.fail(0, fmt.Errorf("sending sync: %w", err))
	}

	remote, err := c.awaitResponse(ctx, conn)
	if err != nil {
		return nil, err
	}

	_ = wsjson.Write(ctx, conn, Message{Type: MessageDisconnect, PeerID: localID})
	conn.Close(websocket.StatusNormalClosure, "")
	return remote, nil
}

// awaitResponse reads frames until a sync_response or error arrives.
// Other message types are skipped.
func (c *Client) awaitResponse(ctx context.Context, conn *websocket.Conn) ([]model.Todo, error) {
	for {
		var msg Message
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			return nil, c.fail(0, fmt.Errorf("reading response: %w", err))
		}
		switch msg.Type {
		case MessageSyncResponse:
			if msg.Todos == nil {
				return []model.Todo{}, nil
			}
			return msg.Todos, nil
		case MessageError:
			return nil, c.fail(0, errors.New(msg.Error))
		}
	}
}

func (c *Client) fail(status int, err error) error {
	return &apperr.TransportError{Peer: c.baseURL, StatusCode: status, Err: err}
}
