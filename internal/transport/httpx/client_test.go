package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/todosync/internal/apperr"
	"github.com/nhle/todosync/internal/model"
)

func TestExchange(t *testing.T) {
	var gotPeer, gotAuth string
	var gotBody []model.Todo

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, SyncPath, r.URL.Path)
		gotPeer = r.Header.Get(PeerIDHeader)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]model.Todo{{ID: 9, Day: "Monday", Content: "server", LastModified: 5}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "s3cret", time.Second)
	remote, err := c.Exchange(context.Background(), "self-1", []model.Todo{{ID: 1, Day: "Monday", Content: "a"}})
	require.NoError(t, err)

	assert.Equal(t, "self-1", gotPeer)
	assert.Equal(t, "Bearer s3cret", gotAuth)
	require.Len(t, gotBody, 1)
	require.Len(t, remote, 1)
	assert.Equal(t, "server", remote[0].Content)
	assert.Equal(t, srv.URL, c.Peer())
}

func TestExchangeSendsEmptyArray(t *testing.T) {
	var raw json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&raw)
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte("[]"))
	}))
	defer srv.Close()

	remote, err := NewClient(srv.URL, "", time.Second).Exchange(context.Background(), "self", nil)
	require.NoError(t, err)
	assert.Empty(t, remote)
	assert.JSONEq(t, "[]", string(raw))
}

func TestExchangeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid todos[0].day: unknown day \"Funday\""}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", time.Second).Exchange(context.Background(), "self", nil)
	require.Error(t, err)

	var te *apperr.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusBadRequest, te.StatusCode)
	assert.Contains(t, err.Error(), "Funday")
}

func TestExchangeUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, "", time.Second).Exchange(context.Background(), "self", nil)
	assert.True(t, apperr.IsTransport(err))
}

func TestExchangeMalformedReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not":"an array"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", time.Second).Exchange(context.Background(), "self", nil)
	assert.True(t, apperr.IsTransport(err))
}

func TestRegister(t *testing.T) {
	var got RegisterRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, RegisterPath, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, "", time.Second).Register(context.Background(), RegisterRequest{
		PeerID: "self", DeviceName: "laptop", DeviceType: "desktop",
	})
	require.NoError(t, err)
	assert.Equal(t, "laptop", got.DeviceName)
}
