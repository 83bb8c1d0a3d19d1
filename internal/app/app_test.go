package app

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/todosync/internal/apperr"
	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/server"
	"github.com/nhle/todosync/internal/transport/httpx"
	"github.com/nhle/todosync/internal/transport/ws"
	"github.com/nhle/todosync/tests/testutil"
)

func testConfig(baseURL, transport string) *model.AppConfig {
	return &model.AppConfig{
		Days:   model.DefaultDays,
		Device: model.DeviceConfig{Name: "test", Type: "desktop"},
		Sync: model.SyncConfig{
			BaseURL:    baseURL,
			Transport:  transport,
			TimeoutSec: 5,
		},
	}
}

func noToken() string { return "" }

func newTestApp(t *testing.T, baseURL, transport string) *App {
	t.Helper()
	a, err := New(context.Background(), testutil.NewTestStore(t), testConfig(baseURL, transport),
		WithTokenSource(noToken))
	require.NoError(t, err)
	return a
}

func TestNewTransportFollowsConfig(t *testing.T) {
	_, isHTTP := NewTransport(testConfig("http://x", model.TransportHTTP), "").(*httpx.Client)
	assert.True(t, isHTTP)

	_, isWS := NewTransport(testConfig("http://x", model.TransportWebSocket), "").(*ws.Client)
	assert.True(t, isWS)
}

func TestTodoCommands(t *testing.T) {
	a := newTestApp(t, "http://unused", model.TransportHTTP)
	ctx := context.Background()

	milk, err := a.AddTodo(ctx, "Monday", "buy milk")
	require.NoError(t, err)
	mom, err := a.AddTodo(ctx, "Monday", "call mom")
	require.NoError(t, err)

	require.NoError(t, a.EditTodo(ctx, milk, "buy oat milk"))

	done, err := a.ToggleDone(ctx, mom)
	require.NoError(t, err)
	assert.True(t, done)

	require.NoError(t, a.ReorderDay(ctx, "Monday", []model.Todo{
		{ID: mom, Content: "call mom", Done: true},
		{ID: milk, Content: "buy oat milk"},
	}))

	todos, err := a.ListTodos(ctx, "Monday")
	require.NoError(t, err)
	require.Len(t, todos, 2)
	assert.Equal(t, "call mom", todos[0].Content)
	assert.True(t, todos[0].Done)
	assert.Equal(t, "buy oat milk", todos[1].Content)

	require.NoError(t, a.MoveTodo(ctx, milk, "Saturday"))
	assert.True(t, apperr.IsNotFound(a.MoveTodo(ctx, 99, "Tuesday")))

	require.NoError(t, a.ArchiveTodo(ctx, mom))
	archived, err := a.ListArchived(ctx)
	require.NoError(t, err)
	require.Len(t, archived, 1)

	require.NoError(t, a.DeleteTodo(ctx, milk))
	require.NoError(t, a.DeleteTodo(ctx, milk))

	assert.Equal(t, model.DefaultDays, a.Days())
}

func TestSnapshotRoundTripThroughJSON(t *testing.T) {
	src := newTestApp(t, "http://unused", model.TransportHTTP)
	dst := newTestApp(t, "http://unused", model.TransportHTTP)
	ctx := context.Background()

	_, err := src.AddTodo(ctx, "Friday", "pay rent")
	require.NoError(t, err)

	data, err := src.ExportSnapshot(ctx)
	require.NoError(t, err)

	res, err := dst.ImportSnapshot(ctx, data)
	require.NoError(t, err)
	assert.Len(t, res.Inserts, 1)

	res, err = dst.ImportSnapshot(ctx, data)
	require.NoError(t, err)
	assert.True(t, res.Empty())

	todos, err := dst.ListTodos(ctx, "Friday")
	require.NoError(t, err)
	require.Len(t, todos, 1)
	assert.Equal(t, "pay rent", todos[0].Content)
}

func TestImportSnapshotRejectsMalformedJSON(t *testing.T) {
	a := newTestApp(t, "http://unused", model.TransportHTTP)

	_, err := a.ImportSnapshot(context.Background(), `{"id":`)
	assert.True(t, apperr.IsValidation(err))
}

func TestPeerCommands(t *testing.T) {
	a := newTestApp(t, "http://unused", model.TransportHTTP)
	ctx := context.Background()

	assert.Equal(t, model.SyncDisconnected, a.SyncStatus())

	self, err := a.ConnectPeer(ctx, "", "", "")
	require.NoError(t, err)
	assert.NotEmpty(t, self)
	assert.Equal(t, self, a.LocalID())
	assert.False(t, a.IsConnected())

	_, err = a.ConnectPeer(ctx, "phone", "pixel", "mobile")
	require.NoError(t, err)
	assert.True(t, a.IsConnected())

	peers, err := a.Peers(ctx)
	require.NoError(t, err)
	require.Len(t, peers, 1)
	assert.Equal(t, "pixel", peers[0].DeviceName)

	require.NoError(t, a.DisconnectPeer(ctx, "phone"))
	assert.Equal(t, model.SyncDisconnected, a.SyncStatus())
}

func TestRunSyncWithoutIdentity(t *testing.T) {
	a := newTestApp(t, "http://unused", model.TransportHTTP)

	_, err := a.RunSync(context.Background())
	assert.True(t, apperr.IsNoIdentity(err))
}

func TestTwoDevicesConvergeThroughServer(t *testing.T) {
	for _, transport := range []string{model.TransportHTTP, model.TransportWebSocket} {
		t.Run(transport, func(t *testing.T) {
			gin.SetMode(gin.TestMode)
			srv := httptest.NewServer(server.NewRouter(model.ServerConfig{},
				server.NewHandler(testutil.NewTestStore(t), nil)))
			t.Cleanup(srv.Close)

			ctx := context.Background()
			laptop := newTestApp(t, srv.URL, transport)
			phone := newTestApp(t, srv.URL, transport)

			for _, a := range []*App{laptop, phone} {
				_, err := a.ConnectPeer(ctx, "", "", "")
				require.NoError(t, err)
			}

			id, err := laptop.AddTodo(ctx, "Wednesday", "dentist")
			require.NoError(t, err)

			_, err = laptop.RunSync(ctx)
			require.NoError(t, err)
			report, err := phone.RunSync(ctx)
			require.NoError(t, err)
			assert.Len(t, report.Result.Inserts, 1)

			todos, err := phone.ListTodos(ctx, "Wednesday")
			require.NoError(t, err)
			require.Len(t, todos, 1)
			assert.Equal(t, id, todos[0].ID)

			require.NoError(t, phone.EditTodo(ctx, id, "dentist at 3pm"))
			_, err = phone.RunSync(ctx)
			require.NoError(t, err)
			_, err = laptop.RunSync(ctx)
			require.NoError(t, err)

			todos, err = laptop.ListTodos(ctx, "Wednesday")
			require.NoError(t, err)
			require.Len(t, todos, 1)
			assert.Equal(t, "dentist at 3pm", todos[0].Content)

			assert.True(t, laptop.IsConnected())
			assert.Equal(t, model.SyncConnected, laptop.SyncStatus())
		})
	}
}

func TestAnnounce(t *testing.T) {
	gin.SetMode(gin.TestMode)
	serverStore := testutil.NewTestStore(t)
	srv := httptest.NewServer(server.NewRouter(model.ServerConfig{}, server.NewHandler(serverStore, nil)))
	t.Cleanup(srv.Close)

	a := newTestApp(t, srv.URL, model.TransportHTTP)
	ctx := context.Background()

	sent, err := a.Announce(ctx)
	require.NoError(t, err)
	assert.False(t, sent)

	id, err := a.ConnectPeer(ctx, "", "", "")
	require.NoError(t, err)

	sent, err = a.Announce(ctx)
	require.NoError(t, err)
	assert.True(t, sent)

	pc, err := serverStore.GetPeerConnection(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "test", pc.DeviceName)
}

func TestOpenCreatesDatabase(t *testing.T) {
	cfg := testConfig("http://unused", model.TransportHTTP)
	cfg.Storage.Path = filepath.Join(t.TempDir(), "nested", "todos.db")

	a, err := Open(context.Background(), cfg, WithTokenSource(noToken))
	require.NoError(t, err)
	defer a.Close()

	_, err = a.AddTodo(context.Background(), "Sunday", "rest")
	require.NoError(t, err)
}
