package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ragforge/corerag/internal/rag"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show facade health and document counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func runStatus(ctx context.Context, jsonOutput bool) error {
	facade, _, cleanup, err := openFacade(ctx)
	if err != nil {
		return err
	}
	defer cleanup()
	defer facade.Shutdown(context.Background())

	info, err := facade.Info(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	fmt.Printf("state:            %s\n", colorState(info.State))
	fmt.Printf("vector store ok:  %v\n", info.VectorStoreOK)
	fmt.Printf("embedding ok:     %v\n", info.EmbeddingClientOK)
	fmt.Printf("documents:        %d\n", info.DocumentCount)
	fmt.Printf("chunks:           %d\n", info.ChunkCount)
	return nil
}

// colorState highlights a non-ready state in yellow when stdout is a
// terminal; piped/redirected output stays plain so it parses cleanly.
func colorState(state rag.State) string {
	s := string(state)
	if !isTerminal() || state == rag.StateReady {
		return s
	}
	return "\033[33m" + s + "\033[0m"
}
