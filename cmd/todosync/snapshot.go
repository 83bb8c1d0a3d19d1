package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nhle/todosync/internal/app"
)

var exportCmd = &cobra.Command{
	Use:     "export [file]",
	GroupID: "sync",
	Short:   "Write the local snapshot as JSON to a file or stdout",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			data, err := a.ExportSnapshot(ctx)
			if err != nil {
				return err
			}
			if len(args) == 0 || args[0] == "-" {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), data)
				return err
			}
			if err := os.WriteFile(args[0], []byte(data+"\n"), 0o644); err != nil {
				return fmt.Errorf("writing snapshot: %w", err)
			}
			return nil
		})
	},
}

var importCmd = &cobra.Command{
	Use:     "import [file]",
	GroupID: "sync",
	Short:   "Merge a JSON snapshot from a file or stdin",
	Long: `Merge a JSON snapshot into the local database.

A record replaces the local copy only when it was modified later. Records
with unknown ids are added. Local todos missing from the snapshot stay.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			data []byte
			err  error
		)
		if len(args) == 0 || args[0] == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			return fmt.Errorf("reading snapshot: %w", err)
		}

		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			res, err := a.ImportSnapshot(ctx, string(data))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported: %d updated, %d added, %d deleted, %d unchanged\n",
				len(res.Updates), len(res.Inserts), len(res.Deletes), res.Skipped)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(exportCmd, importCmd)
}
