package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/guiyumin/mediadrop/internal/core/engine"
	"github.com/spf13/cobra"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search YouTube the way the Spotify fallback does",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		eng := &engine.YtDlp{Bin: cfg.Tools.YtDlp, Timeout: cfg.Timeouts.Engine}
		return runSearch(context.Background(), eng, strings.Join(args, " "))
	},
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 5, "number of results")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(ctx context.Context, eng engine.Engine, query string) error {
	results, err := eng.Search(ctx, query, searchLimit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if len(results) == 0 {
		fmt.Println("  No results")
		return nil
	}

	for i, r := range results {
		fmt.Printf("  [%d] %s\n      %s\n", i+1, r.Title, r.Link())
	}
	return nil
}
