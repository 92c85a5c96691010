package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ragforge/corerag/internal/search"
)

func newSearchCmd() *cobra.Command {
	var (
		topK    int
		hybrid  bool
		keyword bool
	)

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Run a search over the indexed documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			searchType := search.TypeSemantic
			switch {
			case hybrid:
				searchType = search.TypeHybrid
			case keyword:
				searchType = search.TypeKeyword
			}
			return runSearch(cmd.Context(), strings.Join(args, " "), topK, searchType)
		},
	}

	cmd.Flags().IntVar(&topK, "top-k", 0, "maximum number of results (default from config)")
	cmd.Flags().BoolVar(&hybrid, "hybrid", false, "run hybrid semantic+keyword search")
	cmd.Flags().BoolVar(&keyword, "keyword", false, "run keyword-only search")

	return cmd
}

func runSearch(ctx context.Context, query string, topK int, searchType search.Type) error {
	facade, cfg, cleanup, err := openFacade(ctx)
	if err != nil {
		return err
	}
	defer cleanup()
	defer facade.Shutdown(context.Background())

	if topK <= 0 {
		topK = cfg.TopKDefault
	}

	results, err := facade.Search(ctx, query, search.Options{TopK: topK, Type: searchType})
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Println("no results")
		return nil
	}
	for i, r := range results {
		fmt.Printf("%2d. [%.4f] %s (#%d) %s\n", i+1, r.Score, r.Record.Metadata.FileName, r.Record.Ordinal, snippet(r.Record.Text))
	}
	return nil
}

func snippet(text string) string {
	const max = 120
	text = strings.ReplaceAll(strings.TrimSpace(text), "\n", " ")
	if len(text) <= max {
		return text
	}
	return text[:max] + "..."
}
