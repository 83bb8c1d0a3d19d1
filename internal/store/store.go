package store

import (
	"context"
	"time"

	"github.com/nhle/todosync/internal/merge"
	"github.com/nhle/todosync/internal/model"
)

// TodoStore is the only writer of todo records. Every mutation is applied
// alone; readers see the state before or after it, never in between.
type TodoStore interface {
	// CreateTodo appends a new todo to the end of day and returns its id.
	CreateTodo(ctx context.Context, day, content string) (int64, error)

	// ListTodos returns the todos of day ordered by position, then id.
	ListTodos(ctx context.Context, day string) ([]model.Todo, error)

	// GetTodo returns a single todo or a NotFoundError.
	GetTodo(ctx context.Context, id int64) (*model.Todo, error)

	// DeleteTodo removes a todo. Unknown ids are ignored.
	DeleteTodo(ctx context.Context, id int64) error

	// ReplaceOrder discards every todo in day and re-inserts todos in the
	// given order. Todos omitted from the list are lost.
	ReplaceOrder(ctx context.Context, day string, todos []model.Todo) error

	// MoveToDay moves a todo to the end of newDay.
	MoveToDay(ctx context.Context, id int64, newDay string) error

	// UpdateContent replaces the text of a todo.
	UpdateContent(ctx context.Context, id int64, content string) error

	// SetDone sets the completion flag of a todo.
	SetDone(ctx context.Context, id int64, done bool) error

	// ToggleDone flips the completion flag of a todo and returns the new
	// value.
	ToggleDone(ctx context.Context, id int64) (bool, error)

	// ArchiveTodo moves a todo into the archive.
	ArchiveTodo(ctx context.Context, id int64) error

	// ListArchived returns archived todos, newest first.
	ListArchived(ctx context.Context) ([]model.ArchivedTodo, error)

	// ExportAll returns every live todo ordered by id.
	ExportAll(ctx context.Context) ([]model.Todo, error)

	// Snapshot returns ExportAll plus tombstone records when deletion
	// propagation is enabled.
	Snapshot(ctx context.Context) ([]model.Todo, error)

	// ImportMerge merges remote into the local set and applies the result
	// in a single transaction.
	ImportMerge(ctx context.Context, remote []model.Todo) (merge.Result, error)

	// ImportMergeFrom is ImportMerge for a snapshot received from peerID.
	// The peer row is marked connected with LastSync at in the same
	// transaction, so either both are written or neither is.
	ImportMergeFrom(ctx context.Context, peerID string, at time.Time, remote []model.Todo) (merge.Result, error)
}

// PeerStore persists PeerConnection rows.
type PeerStore interface {
	// UpsertPeerConnection creates or updates a peer row. Empty device
	// fields and a nil LastSync keep the stored values.
	UpsertPeerConnection(ctx context.Context, pc model.PeerConnection) error

	// SetPeerStatus updates the status of an existing peer row.
	SetPeerStatus(ctx context.Context, peerID string, status model.SyncStatus) error

	GetPeerConnection(ctx context.Context, peerID string) (*model.PeerConnection, error)
	ListPeerConnections(ctx context.Context) ([]model.PeerConnection, error)

	// LoadLocalNode returns the local identity ("" if unassigned) and the
	// last persisted local status.
	LoadLocalNode(ctx context.Context) (string, model.SyncStatus, error)
	SaveLocalNode(ctx context.Context, peerID string, status model.SyncStatus) error
}

// Store combines todo and peer persistence.
type Store interface {
	TodoStore
	PeerStore
	Close() error
}
