package model

import "time"

// Todo is a task record owned by exactly one day partition.
type Todo struct {
	ID      int64  `json:"id" db:"id"`
	Day     string `json:"day" db:"day"`
	Content string `json:"content" db:"content"`

	// Position ranks the todo within its day. Ties are broken by ID.
	Position int `json:"position" db:"position"`

	// LastModified is the logical modification stamp in Unix milliseconds.
	LastModified int64 `json:"last_modified" db:"last_modified"`

	Done bool `json:"done" db:"done"`

	// Deleted marks a tombstone record inside an exchanged snapshot.
	// It is never stored on a live row.
	Deleted bool `json:"deleted,omitempty" db:"-"`
}

// Modified returns LastModified as a time.Time.
func (t Todo) Modified() time.Time {
	return time.UnixMilli(t.LastModified).UTC()
}

// Tombstone records that a todo id was deleted at DeletedAt (Unix ms).
type Tombstone struct {
	ID        int64 `json:"id" db:"id"`
	DeletedAt int64 `json:"deleted_at" db:"deleted_at"`
}

// AsTodo returns the tombstone in snapshot form.
func (t Tombstone) AsTodo() Todo {
	return Todo{ID: t.ID, LastModified: t.DeletedAt, Deleted: true}
}

// ArchivedTodo is a todo moved out of the active list.
type ArchivedTodo struct {
	ID         int64     `json:"id"`
	TodoID     int64     `json:"todo_id"`
	Day        string    `json:"day"`
	Content    string    `json:"content"`
	ArchivedAt time.Time `json:"archived_at"`
}
