package app

import (
	"context"
	"encoding/json"

	"github.com/nhle/todosync/internal/apperr"
	"github.com/nhle/todosync/internal/merge"
	"github.com/nhle/todosync/internal/model"
)

// Days returns the configured day partitions in display order.
func (a *App) Days() []string {
	if d, ok := a.store.(interface{ Days() []string }); ok {
		return d.Days()
	}
	return model.DefaultDays
}

// AddTodo appends a todo to day and returns its id.
func (a *App) AddTodo(ctx context.Context, day, content string) (int64, error) {
	return a.store.CreateTodo(ctx, day, content)
}

// ListTodos returns the todos of day in order.
func (a *App) ListTodos(ctx context.Context, day string) ([]model.Todo, error) {
	return a.store.ListTodos(ctx, day)
}

// GetTodo returns a single todo.
func (a *App) GetTodo(ctx context.Context, id int64) (*model.Todo, error) {
	return a.store.GetTodo(ctx, id)
}

// DeleteTodo removes a todo. Deleting an absent todo succeeds.
func (a *App) DeleteTodo(ctx context.Context, id int64) error {
	return a.store.DeleteTodo(ctx, id)
}

// ReorderDay replaces the contents of day with todos in the given order.
// Todos of day that are not in the list are dropped.
func (a *App) ReorderDay(ctx context.Context, day string, todos []model.Todo) error {
	return a.store.ReplaceOrder(ctx, day, todos)
}

// MoveTodo moves a todo to the end of newDay.
func (a *App) MoveTodo(ctx context.Context, id int64, newDay string) error {
	return a.store.MoveToDay(ctx, id, newDay)
}

// EditTodo replaces the text of a todo.
func (a *App) EditTodo(ctx context.Context, id int64, content string) error {
	return a.store.UpdateContent(ctx, id, content)
}

// ToggleDone flips the completion flag of a todo and returns the new value.
func (a *App) ToggleDone(ctx context.Context, id int64) (bool, error) {
	return a.store.ToggleDone(ctx, id)
}

// ArchiveTodo moves a todo into the archive.
func (a *App) ArchiveTodo(ctx context.Context, id int64) error {
	return a.store.ArchiveTodo(ctx, id)
}

// ListArchived returns archived todos, newest first.
func (a *App) ListArchived(ctx context.Context) ([]model.ArchivedTodo, error) {
	return a.store.ListArchived(ctx)
}

// ExportSnapshot returns the local snapshot as a JSON array.
func (a *App) ExportSnapshot(ctx context.Context) (string, error) {
	todos, err := a.store.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(todos)
	if err != nil {
		return "", apperr.Storage("encoding snapshot", err)
	}
	return string(data), nil
}

// ImportSnapshot merges a JSON array of todos into the local store.
func (a *App) ImportSnapshot(ctx context.Context, data string) (merge.Result, error) {
	var remote []model.Todo
	if err := json.Unmarshal([]byte(data), &remote); err != nil {
		return merge.Result{}, &apperr.ValidationError{Field: "snapshot", Message: "malformed JSON", Err: err}
	}
	res, err := a.store.ImportMerge(ctx, remote)
	if err != nil {
		return merge.Result{}, err
	}
	a.logger.Info("imported snapshot",
		"records", len(remote),
		"updated", len(res.Updates),
		"inserted", len(res.Inserts),
		"skipped", res.Skipped,
	)
	return res, nil
}
