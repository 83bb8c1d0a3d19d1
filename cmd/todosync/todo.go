package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/todosync/internal/app"
	"github.com/nhle/todosync/internal/apperr"
	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/theme"
)

var addCmd = &cobra.Command{
	Use:     "add <day> <content...>",
	GroupID: "todos",
	Short:   "Add a todo to the end of a day",
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			id, err := a.AddTodo(ctx, args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added todo %d to %s\n", id, args[0])
			return nil
		})
	},
}

var listCmd = &cobra.Command{
	Use:     "list [day]",
	Aliases: []string{"ls"},
	GroupID: "todos",
	Short:   "List the todos of one day or of the whole week",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			days := a.Days()
			if len(args) == 1 {
				days = args
			}
			for i, day := range days {
				todos, err := a.ListTodos(ctx, day)
				if err != nil {
					return err
				}
				if i > 0 {
					fmt.Fprintln(cmd.OutOrStdout())
				}
				fmt.Fprint(cmd.OutOrStdout(), renderDay(day, todos))
			}
			return nil
		})
	},
}

var rmCmd = &cobra.Command{
	Use:     "rm <id>",
	GroupID: "todos",
	Short:   "Delete a todo",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			return a.DeleteTodo(ctx, id)
		})
	},
}

var moveCmd = &cobra.Command{
	Use:     "move <id> <day>",
	GroupID: "todos",
	Short:   "Move a todo to the end of another day",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			return a.MoveTodo(ctx, id, args[1])
		})
	},
}

var editCmd = &cobra.Command{
	Use:     "edit <id> <content...>",
	GroupID: "todos",
	Short:   "Replace the text of a todo",
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			return a.EditTodo(ctx, id, strings.Join(args[1:], " "))
		})
	},
}

var doneCmd = &cobra.Command{
	Use:     "done <id>",
	GroupID: "todos",
	Short:   "Toggle the completion of a todo",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			done, err := a.ToggleDone(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d\n", theme.Checkbox(done), id)
			return nil
		})
	},
}

var reorderCmd = &cobra.Command{
	Use:     "reorder <day> <id...>",
	GroupID: "todos",
	Short:   "Rewrite a day with the given todos in the given order",
	Long: `Rewrite a day so it holds exactly the listed todos, in order.

Todos of that day that are not listed are deleted. Ids from other days are
copied into this day as new todos.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		day := args[0]
		ids := make([]int64, 0, len(args)-1)
		for _, arg := range args[1:] {
			id, err := parseID(arg)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}

		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			todos := make([]model.Todo, 0, len(ids))
			for _, id := range ids {
				t, err := a.GetTodo(ctx, id)
				if err != nil {
					return err
				}
				todos = append(todos, *t)
			}
			return a.ReorderDay(ctx, day, todos)
		})
	},
}

var archiveCmd = &cobra.Command{
	Use:     "archive [id]",
	GroupID: "todos",
	Short:   "Archive a todo, or list the archive when no id is given",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if len(args) == 1 {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				return a.ArchiveTodo(ctx, id)
			}

			archived, err := a.ListArchived(ctx)
			if err != nil {
				return err
			}
			if len(archived) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), theme.MutedStyle.Render("archive is empty"))
				return nil
			}
			for _, t := range archived {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n",
					theme.IDStyle.Render(strconv.FormatInt(t.TodoID, 10)),
					theme.TodoStyle.Render(t.Content),
					theme.MutedStyle.Render(t.Day+", "+t.ArchivedAt.Local().Format("2006-01-02 15:04")),
				)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(addCmd, listCmd, rmCmd, moveCmd, editCmd, doneCmd, reorderCmd, archiveCmd)
}

// renderDay formats one day partition for the terminal.
func renderDay(day string, todos []model.Todo) string {
	var b strings.Builder
	b.WriteString(theme.DayHeaderStyle.Render(day))
	b.WriteString("\n")
	if len(todos) == 0 {
		b.WriteString(theme.MutedStyle.Render("  nothing planned"))
		b.WriteString("\n")
		return b.String()
	}
	for _, t := range todos {
		style := theme.TodoStyle
		if t.Done {
			style = theme.DoneStyle
		}
		b.WriteString(theme.IDStyle.Render(strconv.FormatInt(t.ID, 10)))
		b.WriteString(" ")
		b.WriteString(theme.Checkbox(t.Done))
		b.WriteString(style.Render(t.Content))
		b.WriteString("\n")
	}
	return b.String()
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Invalid("id", "not a todo id: %q", s)
	}
	return id, nil
}
