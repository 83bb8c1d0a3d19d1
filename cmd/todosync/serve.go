package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/todosync/internal/logging"
	"github.com/nhle/todosync/internal/server"
	"github.com/nhle/todosync/internal/store"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "sync",
	Short:   "Run the sync server",
	Long: `Run the sync server that devices exchange snapshots with.

Endpoints:
  GET  /healthz         liveness
  POST /sync            merge a JSON array of todos, answer with the merged set
  POST /peer/register   record a device
  GET  /peers           list recorded devices
  GET  /peer/ws         WebSocket peer protocol

When server.token is set, every endpoint but /healthz requires
"Authorization: Bearer <token>".`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}
		logger := logging.New(cfg.Log)

		if err := os.MkdirAll(filepath.Dir(cfg.Server.DBPath), 0o755); err != nil {
			return fmt.Errorf("creating server data directory: %w", err)
		}
		s, err := store.NewSQLiteStore(cfg.Server.DBPath,
			store.WithDays(cfg.Days),
			store.WithTombstones(cfg.Sync.Tombstones),
		)
		if err != nil {
			return err
		}
		defer s.Close()

		gin.SetMode(gin.ReleaseMode)
		srv := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           server.NewRouter(cfg.Server, server.NewHandler(s, logger)),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, ctx := errgroup.WithContext(cmd.Context())
		g.Go(func() error {
			logger.Info("sync server listening", "addr", cfg.Server.Addr, "db", cfg.Server.DBPath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("listening on %s: %w", cfg.Server.Addr, err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			logger.Info("shutting down sync server")
			return srv.Shutdown(shutdownCtx)
		})

		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}
