package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/todosync/internal/apperr"
	"github.com/nhle/todosync/internal/merge"
	"github.com/nhle/todosync/internal/model"
)

const todoColumns = "id, day, content, position, last_modified, done"

// CreateTodo inserts a new todo at the end of day.
func (s *SQLiteStore) CreateTodo(ctx context.Context, day, content string) (int64, error) {
	if err := s.validateDay(day); err != nil {
		return 0, err
	}
	if err := validateContent(content); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var id int64
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		pos, err := nextPosition(ctx, tx, day)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO todos (day, content, position, last_modified, done)
			VALUES (?, ?, ?, ?, 0)`,
			day, content, pos, s.stamp(0),
		)
		if err != nil {
			return fmt.Errorf("inserting todo: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, apperr.Storage("creating todo", err)
	}
	return id, nil
}

// ListTodos retrieves the todos of day ordered by position.
func (s *SQLiteStore) ListTodos(ctx context.Context, day string) ([]model.Todo, error) {
	if err := s.validateDay(day); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	todos := []model.Todo{}
	err := s.db.SelectContext(ctx, &todos,
		"SELECT "+todoColumns+" FROM todos WHERE day = ? ORDER BY position, id", day)
	if err != nil {
		return nil, apperr.Storage(fmt.Sprintf("listing todos for %s", day), err)
	}
	return todos, nil
}

// GetTodo retrieves a single todo by ID.
func (s *SQLiteStore) GetTodo(ctx context.Context, id int64) (*model.Todo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	todo, err := getTodo(ctx, s.db, id)
	if err != nil {
		return nil, apperr.Storage(fmt.Sprintf("getting todo %d", id), err)
	}
	return todo, nil
}

// DeleteTodo removes a todo by ID. Deleting an unknown id is not an error.
func (s *SQLiteStore) DeleteTodo(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM todos WHERE id = ?", id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("checking rows affected: %w", err)
		}
		if n > 0 && s.tombstones {
			return putTombstone(ctx, tx, id, s.stamp(0))
		}
		return nil
	})
	return apperr.Storage(fmt.Sprintf("deleting todo %d", id), err)
}

// ReplaceOrder atomically discards the todos of day and re-inserts todos
// with positions 0..n-1 and fresh timestamps. An entry keeps its id only if
// that id belonged to day before the call; every other entry gets a new id.
func (s *SQLiteStore) ReplaceOrder(ctx context.Context, day string, todos []model.Todo) error {
	if err := s.validateDay(day); err != nil {
		return err
	}
	for i, t := range todos {
		if err := validateContent(t.Content); err != nil {
			return apperr.Invalid(fmt.Sprintf("todos[%d].content", i), "must not be empty")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var ids []int64
		if err := tx.SelectContext(ctx, &ids, "SELECT id FROM todos WHERE day = ?", day); err != nil {
			return fmt.Errorf("reading %s: %w", day, err)
		}
		previous := make(map[int64]bool, len(ids))
		for _, id := range ids {
			previous[id] = true
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM todos WHERE day = ?", day); err != nil {
			return fmt.Errorf("clearing %s: %w", day, err)
		}

		kept := make(map[int64]bool, len(todos))
		for i, t := range todos {
			ts := s.stamp(t.LastModified)
			if t.ID != 0 && previous[t.ID] && !kept[t.ID] {
				kept[t.ID] = true
				_, err := tx.ExecContext(ctx,
					"INSERT INTO todos ("+todoColumns+") VALUES (?, ?, ?, ?, ?, ?)",
					t.ID, day, t.Content, i, ts, boolToInt(t.Done),
				)
				if err != nil {
					return fmt.Errorf("reinserting todo %d: %w", t.ID, err)
				}
				continue
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO todos (day, content, position, last_modified, done)
				VALUES (?, ?, ?, ?, ?)`,
				day, t.Content, i, ts, boolToInt(t.Done),
			)
			if err != nil {
				return fmt.Errorf("inserting todo at %d: %w", i, err)
			}
		}

		if !s.tombstones {
			return nil
		}
		for _, id := range ids {
			if kept[id] {
				continue
			}
			if err := putTombstone(ctx, tx, id, s.stamp(0)); err != nil {
				return err
			}
		}
		return nil
	})
	return apperr.Storage(fmt.Sprintf("replacing order of %s", day), err)
}

// MoveToDay moves a todo to the end of newDay.
func (s *SQLiteStore) MoveToDay(ctx context.Context, id int64, newDay string) error {
	if err := s.validateDay(newDay); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		cur, err := getTodo(ctx, tx, id)
		if err != nil {
			return err
		}
		pos, err := nextPosition(ctx, tx, newDay)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE todos SET day = ?, position = ?, last_modified = ? WHERE id = ?",
			newDay, pos, s.stamp(cur.LastModified), id,
		)
		return err
	})
	return apperr.Storage(fmt.Sprintf("moving todo %d", id), err)
}

// UpdateContent replaces the text of a todo.
func (s *SQLiteStore) UpdateContent(ctx context.Context, id int64, content string) error {
	if err := validateContent(content); err != nil {
		return err
	}
	return s.updateTodo(ctx, id, "content = ?", content)
}

// SetDone sets the completion flag of a todo.
func (s *SQLiteStore) SetDone(ctx context.Context, id int64, done bool) error {
	return s.updateTodo(ctx, id, "done = ?", boolToInt(done))
}

// ToggleDone flips the completion flag of a todo in one transaction.
func (s *SQLiteStore) ToggleDone(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var done bool
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		cur, err := getTodo(ctx, tx, id)
		if err != nil {
			return err
		}
		done = !cur.Done
		_, err = tx.ExecContext(ctx,
			"UPDATE todos SET done = ?, last_modified = ? WHERE id = ?",
			boolToInt(done), s.stamp(cur.LastModified), id,
		)
		return err
	})
	if err != nil {
		return false, apperr.Storage(fmt.Sprintf("toggling todo %d", id), err)
	}
	return done, nil
}

// updateTodo applies a single-column update and advances the timestamp.
func (s *SQLiteStore) updateTodo(ctx context.Context, id int64, set string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		cur, err := getTodo(ctx, tx, id)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE todos SET "+set+", last_modified = ? WHERE id = ?",
			value, s.stamp(cur.LastModified), id,
		)
		return err
	})
	return apperr.Storage(fmt.Sprintf("updating todo %d", id), err)
}

// ArchiveTodo copies a todo into archived_todos and removes it from the list.
func (s *SQLiteStore) ArchiveTodo(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		cur, err := getTodo(ctx, tx, id)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO archived_todos (todo_id, day, content, completed_at)
			VALUES (?, ?, ?, ?)`,
			cur.ID, cur.Day, cur.Content, s.now().UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("archiving: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM todos WHERE id = ?", id); err != nil {
			return err
		}
		if s.tombstones {
			return putTombstone(ctx, tx, id, s.stamp(cur.LastModified))
		}
		return nil
	})
	return apperr.Storage(fmt.Sprintf("archiving todo %d", id), err)
}

// archiveLayouts are the completed_at formats found in archived_todos; the
// terminal build wrote SQLite's datetime('now').
var archiveLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05"}

// ListArchived returns archived todos, most recently archived first.
func (s *SQLiteStore) ListArchived(ctx context.Context) ([]model.ArchivedTodo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryxContext(ctx,
		"SELECT id, todo_id, day, content, completed_at FROM archived_todos ORDER BY id DESC")
	if err != nil {
		return nil, apperr.Storage("querying archived todos", err)
	}
	defer rows.Close()

	archived := []model.ArchivedTodo{}
	for rows.Next() {
		var (
			a  model.ArchivedTodo
			at string
		)
		if err := rows.Scan(&a.ID, &a.TodoID, &a.Day, &a.Content, &at); err != nil {
			return nil, apperr.Storage("scanning archived todo", err)
		}
		for _, layout := range archiveLayouts {
			if parsed, err := time.Parse(layout, at); err == nil {
				a.ArchivedAt = parsed.UTC()
				break
			}
		}
		archived = append(archived, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("reading archived todos", err)
	}
	return archived, nil
}

// ExportAll returns every live todo ordered by id.
func (s *SQLiteStore) ExportAll(ctx context.Context) ([]model.Todo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	todos, err := allTodos(ctx, s.db)
	if err != nil {
		return nil, apperr.Storage("exporting todos", err)
	}
	return todos, nil
}

// Snapshot returns the live todos and, when tombstones are enabled, the
// tombstones in snapshot form, ordered by id.
func (s *SQLiteStore) Snapshot(ctx context.Context) ([]model.Todo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	todos, err := allTodos(ctx, s.db)
	if err != nil {
		return nil, apperr.Storage("exporting todos", err)
	}
	if !s.tombstones {
		return todos, nil
	}

	graves, err := allTombstones(ctx, s.db)
	if err != nil {
		return nil, apperr.Storage("exporting tombstones", err)
	}
	for _, g := range graves {
		todos = append(todos, g.AsTodo())
	}
	sort.SliceStable(todos, func(i, j int) bool { return todos[i].ID < todos[j].ID })
	return todos, nil
}

// Tombstones returns recorded tombstones ordered by id.
func (s *SQLiteStore) Tombstones(ctx context.Context) ([]model.Tombstone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	graves, err := allTombstones(ctx, s.db)
	if err != nil {
		return nil, apperr.Storage("reading tombstones", err)
	}
	return graves, nil
}

// ImportMerge merges remote into the local todos under the writer lock and
// applies the resulting write set in one transaction. Invalid records reject
// the whole import before anything is written.
func (s *SQLiteStore) ImportMerge(ctx context.Context, remote []model.Todo) (merge.Result, error) {
	return s.importMerge(ctx, remote, nil)
}

// ImportMergeFrom merges a snapshot received from peerID and records the
// sync on the peer row in the same transaction.
func (s *SQLiteStore) ImportMergeFrom(ctx context.Context, peerID string, at time.Time, remote []model.Todo) (merge.Result, error) {
	if peerID == "" {
		return merge.Result{}, apperr.Invalid("peer_id", "must not be empty")
	}
	at = at.UTC()
	return s.importMerge(ctx, remote, func(tx *sqlx.Tx) error {
		err := upsertPeer(ctx, tx, model.PeerConnection{
			PeerID:     peerID,
			LastSync:   &at,
			SyncStatus: model.SyncConnected,
		})
		if err != nil {
			return fmt.Errorf("recording sync with %s: %w", peerID, err)
		}
		return nil
	})
}

func (s *SQLiteStore) importMerge(ctx context.Context, remote []model.Todo, record func(tx *sqlx.Tx) error) (merge.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validateSnapshot(remote); err != nil {
		return merge.Result{}, err
	}

	var res merge.Result
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		local, err := allTodos(ctx, tx)
		if err != nil {
			return err
		}
		if s.tombstones {
			graves, err := allTombstones(ctx, tx)
			if err != nil {
				return err
			}
			res = merge.MergeWithTombstones(local, remote, graves)
		} else {
			res = merge.Merge(local, remote)
		}
		if err := applyMerge(ctx, tx, res); err != nil {
			return err
		}
		if record != nil {
			return record(tx)
		}
		return nil
	})
	if err != nil {
		return merge.Result{}, apperr.Storage("applying merge", err)
	}

	for _, t := range remote {
		s.observe(t.LastModified)
	}
	return res, nil
}

// applyMerge writes a merge result. The last_modified guards keep the write
// a no-op if the row changed since the merge was computed.
func applyMerge(ctx context.Context, tx *sqlx.Tx, res merge.Result) error {
	for _, t := range res.Updates {
		_, err := tx.ExecContext(ctx, `
			UPDATE todos SET day = ?, content = ?, position = ?, last_modified = ?, done = ?
			WHERE id = ? AND last_modified < ?`,
			t.Day, t.Content, t.Position, t.LastModified, boolToInt(t.Done),
			t.ID, t.LastModified,
		)
		if err != nil {
			return fmt.Errorf("updating todo %d: %w", t.ID, err)
		}
	}

	for _, t := range res.Inserts {
		_, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO todos ("+todoColumns+") VALUES (?, ?, ?, ?, ?, ?)",
			t.ID, t.Day, t.Content, t.Position, t.LastModified, boolToInt(t.Done),
		)
		if err != nil {
			return fmt.Errorf("inserting todo %d: %w", t.ID, err)
		}
		_, err = tx.ExecContext(ctx,
			"DELETE FROM tombstones WHERE id = ? AND deleted_at < ?", t.ID, t.LastModified)
		if err != nil {
			return fmt.Errorf("clearing tombstone %d: %w", t.ID, err)
		}
	}

	for _, g := range res.Deletes {
		_, err := tx.ExecContext(ctx,
			"DELETE FROM todos WHERE id = ? AND last_modified < ?", g.ID, g.DeletedAt)
		if err != nil {
			return fmt.Errorf("deleting todo %d: %w", g.ID, err)
		}
		if err := putTombstone(ctx, tx, g.ID, g.DeletedAt); err != nil {
			return err
		}
	}

	for _, g := range res.Graves {
		if err := putTombstone(ctx, tx, g.ID, g.DeletedAt); err != nil {
			return err
		}
	}

	return nil
}

// withTx runs fn in a transaction, committing only if fn succeeds.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// validateDay rejects unknown partition keys.
func (s *SQLiteStore) validateDay(day string) error {
	if !s.days.Contains(day) {
		return apperr.Invalid("day", "unknown day %q", day)
	}
	return nil
}

// validateSnapshot checks every record of an incoming snapshot. Callers
// must hold mu.
func (s *SQLiteStore) validateSnapshot(todos []model.Todo) error {
	ceiling := max(MaxStamp, s.lastStamp)
	for i, t := range todos {
		field := fmt.Sprintf("todos[%d]", i)
		switch {
		case t.ID <= 0:
			return apperr.Invalid(field+".id", "must be positive, got %d", t.ID)
		case t.LastModified < 0:
			return apperr.Invalid(field+".last_modified", "must not be negative")
		case t.LastModified > ceiling:
			return apperr.Invalid(field+".last_modified", "%d is too far in the future", t.LastModified)
		case t.Deleted:
			continue
		case !s.days.Contains(t.Day):
			return apperr.Invalid(field+".day", "unknown day %q", t.Day)
		case strings.TrimSpace(t.Content) == "":
			return apperr.Invalid(field+".content", "must not be empty")
		}
	}
	return nil
}

func validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return apperr.Invalid("content", "must not be empty")
	}
	return nil
}

// nextPosition returns the position after the last todo of day.
func nextPosition(ctx context.Context, q sqlx.QueryerContext, day string) (int, error) {
	var pos int
	err := sqlx.GetContext(ctx, q, &pos,
		"SELECT COALESCE(MAX(position) + 1, 0) FROM todos WHERE day = ?", day)
	if err != nil {
		return 0, fmt.Errorf("getting next position in %s: %w", day, err)
	}
	return pos, nil
}

// getTodo loads one todo, returning a NotFoundError for unknown ids.
func getTodo(ctx context.Context, q sqlx.QueryerContext, id int64) (*model.Todo, error) {
	var todo model.Todo
	err := sqlx.GetContext(ctx, q, &todo,
		"SELECT "+todoColumns+" FROM todos WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("todo", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting todo %d: %w", id, err)
	}
	return &todo, nil
}

func allTodos(ctx context.Context, q sqlx.QueryerContext) ([]model.Todo, error) {
	todos := []model.Todo{}
	if err := sqlx.SelectContext(ctx, q, &todos,
		"SELECT "+todoColumns+" FROM todos ORDER BY id"); err != nil {
		return nil, fmt.Errorf("querying todos: %w", err)
	}
	return todos, nil
}

func allTombstones(ctx context.Context, q sqlx.QueryerContext) ([]model.Tombstone, error) {
	graves := []model.Tombstone{}
	if err := sqlx.SelectContext(ctx, q, &graves,
		"SELECT id, deleted_at FROM tombstones ORDER BY id"); err != nil {
		return nil, fmt.Errorf("querying tombstones: %w", err)
	}
	return graves, nil
}

// putTombstone records a deletion, keeping the newest deletion time.
func putTombstone(ctx context.Context, tx *sqlx.Tx, id, at int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO tombstones (id, deleted_at) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET deleted_at = MAX(deleted_at, excluded.deleted_at)`,
		id, at,
	)
	if err != nil {
		return fmt.Errorf("recording tombstone %d: %w", id, err)
	}
	return nil
}
