// Package httpx exchanges todo snapshots with a sync server over plain HTTP.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nhle/todosync/internal/apperr"
	"github.com/nhle/todosync/internal/model"
)

// PeerIDHeader carries the caller's local identity.
const PeerIDHeader = "X-Peer-ID"

// SyncPath is the server endpoint that accepts and returns snapshots.
const SyncPath = "/sync"

// RegisterPath is the server endpoint that records a device.
const RegisterPath = "/peer/register"

// RegisterRequest announces a device to the server.
type RegisterRequest struct {
	PeerID     string `json:"peer_id"`
	DeviceName string `json:"device_name,omitempty"`
	DeviceType string `json:"device_type,omitempty"`
}

// ErrorResponse is the JSON body the server sends with non-2xx statuses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Client is a thin HTTP client for the sync server. It never retries;
// retry policy belongs to whoever calls the sync round again.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a Client for baseURL. A zero timeout means no client
// timeout; an empty token sends no Authorization header.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Peer returns the server base URL.
func (c *Client) Peer() string {
	return c.baseURL
}

// Exchange posts snapshot to the server and returns the server's snapshot.
func (c *Client) Exchange(ctx context.Context, localID string, snapshot []model.Todo) ([]model.Todo, error) {
	if snapshot == nil {
		snapshot = []model.Todo{}
	}
	var remote []model.Todo
	if err := c.do(ctx, http.MethodPost, SyncPath, localID, snapshot, &remote); err != nil {
		return nil, err
	}
	return remote, nil
}

// Register records the device with the server.
func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	return c.do(ctx, http.MethodPost, RegisterPath, req.PeerID, req, nil)
}

// Health checks that the server answers.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", "", nil, nil)
}

// do builds the request, sends it and decodes the JSON response. Every
// failure comes back as an *apperr.TransportError.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	peerID string,
	body any,
	result any,
) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return c.fail(0, fmt.Errorf("marshaling request body: %w", err))
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return c.fail(0, fmt.Errorf("creating request: %w", err))
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if peerID != "" {
		req.Header.Set(PeerIDHeader, peerID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.fail(0, fmt.Errorf("executing request %s %s: %w", method, path, err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.fail(resp.StatusCode, fmt.Errorf("reading response body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var serverErr ErrorResponse
		if json.Unmarshal(respBody, &serverErr) == nil && serverErr.Error != "" {
			return c.fail(resp.StatusCode, fmt.Errorf("%s %s: %s", method, path, serverErr.Error))
		}
		return c.fail(resp.StatusCode, fmt.Errorf("unexpected status on %s %s: %s",
			method, path, strings.TrimSpace(string(respBody))))
	}

	if result == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return c.fail(resp.StatusCode, fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

func (c *Client) fail(status int, err error) error {
	return &apperr.TransportError{Peer: c.baseURL, StatusCode: status, Err: err}
}
