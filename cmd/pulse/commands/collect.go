package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-pulse/internal/pipeline"
)

// collectCmd runs one full pipeline pass in-process
var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "파이프라인 1회 실행",
	Long: `collect → classify → persist → rank 파이프라인을 한 번 실행합니다.

API 서버 없이 직접 실행합니다. 서버를 통해 실행하려면 'pulse trigger'.

Example:
  go run ./cmd/pulse collect
  go run ./cmd/pulse collect --json`,
	RunE: runCollect,
}

var collectJSON bool

func init() {
	rootCmd.AddCommand(collectCmd)
	collectCmd.Flags().BoolVar(&collectJSON, "json", false, "RunResult를 JSON으로 출력")
}

func runCollect(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	result, err := a.pipeline.Run(ctx)
	if collectJSON && result != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
	} else if result != nil {
		printRunResult(result)
	}
	if err != nil {
		PrintError(err.Error())
		return err
	}
	return nil
}

func printRunResult(r *pipeline.RunResult) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  Sentiment pipeline run %s\n", r.RunID)
	PrintSeparator()
	PrintKeyValue("Timestamp", r.Timestamp.Format("2006-01-02 15:04:05"), 14)
	PrintKeyValue("Provenance", string(r.Provenance), 14)
	for _, src := range r.SortedSources() {
		PrintKeyValue("Collected/"+string(src), fmt.Sprintf("%d", r.Collected[src]), 14)
	}
	PrintKeyValue("Quarantined", fmt.Sprintf("%d", r.Quarantined), 14)
	PrintKeyValue("Data points", fmt.Sprintf("%d", r.DataPoints), 14)
	PrintKeyValue("Aggregates", fmt.Sprintf("%d", r.Aggregates), 14)
	PrintKeyValue("Top posts", fmt.Sprintf("%d", r.TopPosts), 14)
	PrintKeyValue("Duration", r.Duration.String(), 14)
	if len(r.FailedTickers) > 0 {
		PrintWarning(fmt.Sprintf("Recompute failed for: %v", r.FailedTickers))
	}
	PrintSeparator()
	if r.Success {
		PrintSuccess("Run completed")
	}
}
