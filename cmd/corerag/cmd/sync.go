package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the index against the documents directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context())
		},
	}
}

func runSync(ctx context.Context) error {
	facade, cfg, cleanup, err := openFacade(ctx)
	if err != nil {
		return err
	}
	defer cleanup()
	defer facade.Shutdown(context.Background())

	if err := facade.Sync(ctx, cfg.DocumentsDir); err != nil {
		return err
	}
	fmt.Println("sync complete")
	return nil
}
