package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-pulse/internal/api"
	"github.com/wonny/aegis-pulse/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

이 명령어는:
- HTTP API + websocket 라이브 피드 제공
- 크론 트리거 엔드포인트 제공 (Bearer CRON_SECRET)

Endpoints:
  GET  /health                     - Health check
  GET  /metrics                    - Prometheus metrics
  GET  /ws/sentiment               - 실시간 감성 업데이트
  POST /api/cron/sentiment-data    - 파이프라인 실행 트리거
  GET  /api/sentiment?period=24h   - 기간별 감성 집계
  GET  /api/sentiment/{ticker}     - 티커 감성 집계
  GET  /api/posts/actionable       - 실행 가능한 게시물 랭킹

Example:
  go run ./cmd/pulse api
  go run ./cmd/pulse api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Aegis Pulse API Server ===")

	initCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	a, err := newApp(initCtx)
	cancel()
	if err != nil {
		return err
	}
	defer a.close()

	cfg, log := a.cfg, a.log
	if apiPort != "" {
		cfg.Port = apiPort
	}

	log.WithFields(map[string]interface{}{
		"port":    cfg.Port,
		"env":     cfg.Env,
		"storage": cfg.Database.Driver,
		"redis":   a.redis.Enabled(),
	}).Info("Initializing API server")

	if cfg.Cron.Secret == "" {
		log.Warn("CRON_SECRET not set, cron endpoint rejects every request")
	}

	router := api.NewRouter(api.Handlers{
		Cron:      handlers.NewCronHandler(a.pipeline, cfg.Cron.Secret, log),
		Sentiment: handlers.NewSentimentHandler(a.store, a.cache, cfg.Redis.CacheTTL, log),
		Posts:     handlers.NewPostsHandler(a.store, a.cache, log),
		Health:    handlers.NewHealthHandler(a.store, a.redis.Status, a.hub.Clients, log),
		WebSocket: a.hub.ServeWS,
	}, a.metrics, log)

	server := api.New(cfg, log, router)

	// Ctrl+C / SIGTERM cancels ctx and Run shuts down gracefully
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	if err := server.Run(ctx); err != nil {
		return err
	}

	log.Info("Server stopped")
	return nil
}
