// Package server is the sync server: it merges snapshots posted by peers
// into its own store and answers with its merged snapshot.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/nhle/todosync/internal/apperr"
	"github.com/nhle/todosync/internal/merge"
	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/store"
	"github.com/nhle/todosync/internal/transport/httpx"
	"github.com/nhle/todosync/internal/transport/ws"
)

// Handler serves the sync endpoints from a store.
type Handler struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewHandler creates a Handler. A nil logger uses slog.Default.
func NewHandler(s store.Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{store: s, logger: logger, now: time.Now}
}

// NewRouter wires the handler into a gin engine.
func NewRouter(cfg model.ServerConfig, h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(h.logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Authorization", "Content-Type", httpx.PeerIDHeader},
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/")
	api.Use(Auth(cfg.Token))
	{
		api.POST(httpx.SyncPath, h.Sync)
		api.POST(httpx.RegisterPath, h.Register)
		api.GET("/peers", h.ListPeers)
		api.GET(ws.Path, h.PeerSocket)
	}
	return r
}

// Sync merges the posted snapshot and answers with the merged snapshot.
func (h *Handler) Sync(c *gin.Context) {
	var remote []model.Todo
	if err := c.ShouldBindJSON(&remote); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json body"})
		return
	}

	merged, err := h.exchange(c.Request.Context(), PeerIDFromContext(c), remote)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, merged)
}

// Register records a device announcing itself.
func (h *Handler) Register(c *gin.Context) {
	var req httpx.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json body"})
		return
	}
	if req.PeerID == "" {
		req.PeerID = PeerIDFromContext(c)
	}

	err := h.store.UpsertPeerConnection(c.Request.Context(), model.PeerConnection{
		PeerID:     req.PeerID,
		DeviceName: req.DeviceName,
		DeviceType: req.DeviceType,
		SyncStatus: model.SyncConnected,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListPeers returns every device the server has seen.
func (h *Handler) ListPeers(c *gin.Context) {
	peers, err := h.store.ListPeerConnections(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, peers)
}

// exchange merges remote into the server store, records the caller and
// returns the server snapshot.
func (h *Handler) exchange(ctx context.Context, peerID string, remote []model.Todo) ([]model.Todo, error) {
	var (
		res merge.Result
		err error
	)
	if peerID != "" {
		res, err = h.store.ImportMergeFrom(ctx, peerID, h.now(), remote)
	} else {
		res, err = h.store.ImportMerge(ctx, remote)
	}
	if err != nil {
		return nil, err
	}

	merged, err := h.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	h.logger.Info("merged snapshot",
		"peer", peerID,
		"received", len(remote),
		"updated", len(res.Updates),
		"inserted", len(res.Inserts),
		"returned", len(merged),
	)
	return merged, nil
}

func (h *Handler) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case apperr.IsValidation(err):
		return http.StatusBadRequest
	case apperr.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
