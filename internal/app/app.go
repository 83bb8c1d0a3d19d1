// Package app is the command surface consumed by user interfaces: todo
// commands, snapshot import and export, peer management and sync.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nhle/todosync/internal/credential"
	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/peer"
	"github.com/nhle/todosync/internal/store"
	appsync "github.com/nhle/todosync/internal/sync"
	"github.com/nhle/todosync/internal/transport/httpx"
	"github.com/nhle/todosync/internal/transport/ws"
)

// App wires the store, the peer registry and the sync coordinator.
type App struct {
	store       store.Store
	registry    *peer.Registry
	coordinator *appsync.Coordinator
	transport   appsync.Transport
	device      model.DeviceConfig
	logger      *slog.Logger
}

// Option configures an App.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	transport appsync.Transport
	token     func() string
	peerOpts  []peer.Option
	syncOpts  []appsync.CoordinatorOption
}

// WithLogger sets the logger shared by all components.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTransport replaces the transport built from configuration.
func WithTransport(t appsync.Transport) Option {
	return func(o *options) { o.transport = t }
}

// WithTokenSource overrides where the sync token comes from. The default
// reads it from the system keyring.
func WithTokenSource(fn func() string) Option {
	return func(o *options) { o.token = fn }
}

// WithPeerOptions passes options to the peer registry.
func WithPeerOptions(opts ...peer.Option) Option {
	return func(o *options) { o.peerOpts = append(o.peerOpts, opts...) }
}

// WithSyncOptions passes options to the sync coordinator.
func WithSyncOptions(opts ...appsync.CoordinatorOption) Option {
	return func(o *options) { o.syncOpts = append(o.syncOpts, opts...) }
}

// Open opens the database configured in cfg and returns a ready App. The
// caller must Close it.
func Open(ctx context.Context, cfg *model.AppConfig, opts ...Option) (*App, error) {
	if dir := filepath.Dir(cfg.Storage.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory %s: %w", dir, err)
		}
	}

	s, err := store.NewSQLiteStore(cfg.Storage.Path,
		store.WithDays(cfg.Days),
		store.WithTombstones(cfg.Sync.Tombstones),
	)
	if err != nil {
		return nil, err
	}

	a, err := New(ctx, s, cfg, opts...)
	if err != nil {
		s.Close()
		return nil, err
	}
	return a, nil
}

// New builds an App on an already opened store and restores the peer state
// persisted in it.
func New(ctx context.Context, s store.Store, cfg *model.AppConfig, opts ...Option) (*App, error) {
	o := options{logger: slog.Default(), token: credential.SyncToken}
	for _, opt := range opts {
		opt(&o)
	}

	t := o.transport
	if t == nil {
		t = NewTransport(cfg, o.token())
	}

	registry := peer.New(s, append([]peer.Option{peer.WithLogger(o.logger)}, o.peerOpts...)...)
	if err := registry.Restore(ctx); err != nil {
		return nil, fmt.Errorf("restoring peer state: %w", err)
	}

	coordinator := appsync.NewCoordinator(s, registry, t,
		append([]appsync.CoordinatorOption{appsync.WithLogger(o.logger)}, o.syncOpts...)...)

	return &App{
		store:       s,
		registry:    registry,
		coordinator: coordinator,
		transport:   t,
		device:      cfg.Device,
		logger:      o.logger,
	}, nil
}

// NewTransport builds the transport selected by cfg.Sync.Transport.
func NewTransport(cfg *model.AppConfig, token string) appsync.Transport {
	if cfg.Sync.Transport == model.TransportWebSocket {
		return ws.NewClient(cfg.Sync.BaseURL, token, cfg.Sync.Timeout()).
			WithDevice(cfg.Device.Name, cfg.Device.Type)
	}
	return httpx.NewClient(cfg.Sync.BaseURL, token, cfg.Sync.Timeout())
}

// Close releases the store.
func (a *App) Close() error {
	return a.store.Close()
}

// Coordinator returns the sync coordinator, for background scheduling.
func (a *App) Coordinator() *appsync.Coordinator {
	return a.coordinator
}

// Registry returns the peer registry.
func (a *App) Registry() *peer.Registry {
	return a.registry
}

// Transport returns the transport used for sync rounds.
func (a *App) Transport() appsync.Transport {
	return a.transport
}
