package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-pulse/internal/contracts"
	"github.com/wonny/aegis-pulse/internal/pipeline"
)

// ingestCmd feeds posts through the real-time path one at a time
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "게시물 실시간 반영",
	Long: `게시물을 하나씩 분류하고 해당 티커의 집계를 즉시 재계산합니다.

입력은 RawPost JSON 객체 또는 배열입니다 (--file, 없으면 stdin).

Example:
  echo '{"source":"twitter","external_id":"1","text_content":"$NVDA breakout, buy"}' | go run ./cmd/pulse ingest
  go run ./cmd/pulse ingest --file posts.json`,
	RunE: runIngest,
}

var ingestFile string

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVarP(&ingestFile, "file", "f", "", "입력 JSON 파일 (기본: stdin)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	in := cmd.InOrStdin()
	if ingestFile != "" {
		f, err := os.Open(ingestFile)
		if err != nil {
			return fmt.Errorf("open %s: %w", ingestFile, err)
		}
		defer f.Close()
		in = f
	}

	posts, err := decodePosts(in)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	failed := 0
	for _, post := range posts {
		res, err := a.pipeline.Ingest(ctx, post)
		if err != nil {
			failed++
			PrintError(err.Error())
			continue
		}
		printIngestResult(res)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d posts failed", failed, len(posts))
	}
	return nil
}

// decodePosts accepts a single RawPost object or an array of them
func decodePosts(r io.Reader) ([]contracts.RawPost, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("no input posts")
	}

	if data[0] == '[' {
		var posts []contracts.RawPost
		if err := json.Unmarshal(data, &posts); err != nil {
			return nil, fmt.Errorf("decode posts: %w", err)
		}
		if len(posts) == 0 {
			return nil, errors.New("no input posts")
		}
		return posts, nil
	}

	var post contracts.RawPost
	if err := json.Unmarshal(data, &post); err != nil {
		return nil, fmt.Errorf("decode post: %w", err)
	}
	return []contracts.RawPost{post}, nil
}

func printIngestResult(r *pipeline.IngestResult) {
	tickers := "-"
	if len(r.Tickers) > 0 {
		tickers = strings.Join(r.Tickers, ",")
	}
	PrintSuccess(fmt.Sprintf("%s  tickers=%s entries=%d aggregates=%d", r.Post, tickers, r.Entries, len(r.Aggregates)))
	for _, agg := range r.Aggregates {
		fmt.Printf("    %-6s %-4s score=%+.2f mentions=%d at %s\n",
			agg.Ticker, agg.Period, agg.Score, agg.TotalMentions, agg.CalculatedAt.Format(time.RFC3339))
	}
}
