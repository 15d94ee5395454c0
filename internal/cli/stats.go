package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jchatbot/jchat/internal/client"
	"github.com/jchatbot/jchat/internal/metrics"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show relay server statistics",
	Long: `Show the relay server's in-memory runtime statistics. Counters reset
when the server restarts.

Examples:
  jchat stats`,
	RunE: runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c := client.New(cfg.ServerURL)
	raw, err := c.Stats(ctx)
	if err != nil {
		exitWithError("relay server unreachable at %s: %v", cfg.ServerURL, err)
	}

	var snap metrics.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return fmt.Errorf("decode stats: %w", err)
	}

	fmt.Printf("Server Statistics (in-memory, since restart)\n")
	fmt.Printf("═══════════════════════════════════════════════\n")
	fmt.Printf("Uptime: %.1f seconds\n", snap.UptimeSeconds)

	if snap.ChatRequest != nil {
		fmt.Printf("\nChat Requests:\n")
		printOpStats(snap.ChatRequest)
	}

	if snap.LLMGenerate != nil {
		fmt.Printf("\nLLM Generate:\n")
		printOpStats(snap.LLMGenerate)
		printSizeStats(snap.LLMGenerate)
	}

	return nil
}

// printOpStats displays timing statistics for an operation.
func printOpStats(op *metrics.OperationSnapshot) {
	fmt.Printf("  Calls: %d, Total: %dms\n", op.Count, op.TotalTimeMs)
	fmt.Printf("  Time: avg %.1fms, min %dms, max %dms\n",
		op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
}

// printSizeStats displays payload size statistics if available.
func printSizeStats(op *metrics.OperationSnapshot) {
	if op.TotalInputChars == nil || op.TotalOutputChars == nil {
		return
	}
	fmt.Printf("  Chars In:  %d total", *op.TotalInputChars)
	if op.AvgInputChars != nil {
		fmt.Printf(", avg %.0f", *op.AvgInputChars)
	}
	fmt.Println()

	fmt.Printf("  Chars Out: %d total", *op.TotalOutputChars)
	if op.AvgOutputChars != nil {
		fmt.Printf(", avg %.0f", *op.AvgOutputChars)
	}
	fmt.Println()
}
