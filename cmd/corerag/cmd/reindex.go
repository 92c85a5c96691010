package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newReindexCmd() *cobra.Command {
	var clearCache bool

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Clear and rebuild the index from the documents directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReindex(cmd.Context(), clearCache)
		},
	}
	cmd.Flags().BoolVar(&clearCache, "clear-cache", true, "drop all records before resyncing")
	return cmd
}

func runReindex(ctx context.Context, clearCache bool) error {
	facade, cfg, cleanup, err := openFacade(ctx)
	if err != nil {
		return err
	}
	defer cleanup()
	defer facade.Shutdown(context.Background())

	if clearCache {
		if err := facade.ClearAll(ctx); err != nil {
			return err
		}
	}
	if err := facade.Sync(ctx, cfg.DocumentsDir); err != nil {
		return err
	}
	fmt.Println("reindex complete")
	return nil
}
