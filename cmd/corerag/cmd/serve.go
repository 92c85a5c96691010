package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ragforge/corerag/internal/toolcall"
)

func newServeCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP tool-call server over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, watch)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", true, "watch documents_dir and reindex changes while serving")
	return cmd
}

func runServe(ctx context.Context, watch bool) error {
	facade, cfg, cleanup, err := openFacade(ctx)
	if err != nil {
		return err
	}
	defer cleanup()
	defer facade.Shutdown(context.Background())

	if watch {
		go func() {
			if err := facade.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Default().Warn("document watcher stopped", slog.String("error", err.Error()))
			}
		}()
	}

	server := toolcall.New(facade, cfg, nil)
	return server.Serve(ctx)
}
