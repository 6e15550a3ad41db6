package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-pulse/internal/storage"
)

// rankCmd rebuilds the actionable ranking from stored posts
var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "저장된 게시물 재랭킹",
	Long: `수집 없이 최근 게시물로 실행 가능한 게시물 랭킹을 다시 계산하고
상위 게시물을 출력합니다.

Example:
  go run ./cmd/pulse rank
  go run ./cmd/pulse rank --show 10`,
	RunE: runRank,
}

var rankShow int

func init() {
	rootCmd.AddCommand(rankCmd)
	rankCmd.Flags().IntVar(&rankShow, "show", 10, "출력할 상위 게시물 수")
}

func runRank(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	n, err := a.pipeline.Rank(ctx)
	if err != nil {
		return fmt.Errorf("rank posts: %w", err)
	}
	PrintSuccess(fmt.Sprintf("Ranked %d posts", n))

	if rankShow <= 0 || n == 0 {
		return nil
	}

	top, err := a.store.TopRanked(ctx, rankShow)
	if err != nil {
		return fmt.Errorf("load ranking: %w", err)
	}

	fmt.Println()
	widths := []int{4, 8, 8, 9, 50}
	PrintTableHeader([]string{"#", "SOURCE", "TICKER", "SCORE", "TITLE"}, widths)
	for _, rp := range top {
		PrintTableRow([]string{
			fmt.Sprintf("%d", rp.Rank),
			string(rp.Post.Source),
			rp.Post.Ticker,
			fmt.Sprintf("%.4f", rp.Score.Composite),
			truncateRunes(storage.DisplayTitle(rp.Post.Text), widths[4]),
		}, widths)
	}
	return nil
}
