package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/todosync/internal/apperr"
	"github.com/nhle/todosync/internal/model"
	appsync "github.com/nhle/todosync/internal/sync"
	"github.com/nhle/todosync/internal/theme"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Run one synchronization round with the sync server",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, cfg, _, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if t := cfg.Sync.Timeout(); t > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, t)
			defer cancel()
		}

		report, err := a.RunSync(ctx)
		if err != nil {
			if apperr.IsNoIdentity(err) {
				return fmt.Errorf("%w (run `todosync peer connect` first)", err)
			}
			return err
		}
		printReport(cmd.OutOrStdout(), report)
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:     "watch",
	GroupID: "sync",
	Short:   "Keep syncing in the background until interrupted",
	Long: `Run synchronization rounds on the configured interval until interrupted.

Edits to the config file trigger an immediate round. Changes to the server
URL or transport take effect on the next start.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cfg, logger, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if a.LocalID() == "" {
			return fmt.Errorf("%w (run `todosync peer connect` first)", &apperr.NoIdentityError{})
		}

		scheduler := appsync.NewScheduler(a.Coordinator(), cfg.Sync.Interval(), cfg.Sync.Timeout(), logger)

		err = model.WatchConfig(configPath, func(next *model.AppConfig) {
			logger.Info("config changed", "base_url", next.Sync.BaseURL, "transport", next.Sync.Transport)
			scheduler.Trigger()
		}, func(err error) {
			logger.Warn("ignoring invalid config edit", "error", err)
		})
		if err != nil {
			logger.Debug("config file not watched", "error", err)
		}

		g, ctx := errgroup.WithContext(cmd.Context())
		scheduler.Start(ctx)

		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case st := <-scheduler.Results():
					if st.Error != nil {
						fmt.Fprintln(cmd.ErrOrStderr(), theme.ErrorStyle.Render("sync failed:"), st.Error)
						continue
					}
					printReport(cmd.OutOrStdout(), st.LastReport)
				}
			}
		})
		g.Go(func() error {
			<-ctx.Done()
			scheduler.Stop()
			return nil
		})

		fmt.Fprintf(cmd.OutOrStdout(), "Syncing with %s every %s. Press Ctrl+C to stop.\n",
			a.Transport().Peer(), cfg.Sync.Interval())

		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd, watchCmd)
}

func printReport(w io.Writer, r appsync.Report) {
	res := r.Result
	fmt.Fprintf(w, "%s %s: sent %d, received %d; %d updated, %d added, %d deleted, %d unchanged (%s)\n",
		theme.SyncStatusStyle(model.SyncConnected).Render("synced"),
		r.Peer, r.Sent, r.Received,
		len(res.Updates), len(res.Inserts), len(res.Deletes), res.Skipped,
		r.Took.Round(time.Millisecond),
	)
}
