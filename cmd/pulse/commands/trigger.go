package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-pulse/internal/api/handlers"
	"github.com/wonny/aegis-pulse/pkg/httputil"
)

const cronPath = "/api/cron/sentiment-data"

// errNoSecret is returned when the trigger has no CRON_SECRET to send
var errNoSecret = errors.New("CRON_SECRET is required")

// triggerCmd calls the API server's cron endpoint (daily cron client)
var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "API 서버의 크론 엔드포인트 호출",
	Long: `실행 중인 API 서버에 파이프라인 실행을 요청합니다.

POST <CRON_BASE_URL>/api/cron/sentiment-data
Authorization: Bearer <CRON_SECRET>

타임아웃은 REQUEST_TIMEOUT (기본 300초). 실패 시 종료 코드 1.

Example:
  go run ./cmd/pulse trigger
  go run ./cmd/pulse trigger --base-url http://pulse.internal:8080`,
	RunE: runTrigger,
}

var triggerBaseURL string

func init() {
	rootCmd.AddCommand(triggerCmd)
	triggerCmd.Flags().StringVar(&triggerBaseURL, "base-url", "", "API 서버 주소 (기본: CRON_BASE_URL)")
}

func runTrigger(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	log = log.WithComponent("cron.trigger")

	baseURL := cfg.Cron.BaseURL
	if triggerBaseURL != "" {
		baseURL = triggerBaseURL
	}

	log.WithFields(map[string]interface{}{
		"base_url": baseURL,
		"timeout":  cfg.Cron.RequestTimeout,
	}).Info("Daily sentiment cron job started")

	client := httputil.New(log, cfg.Cron.RequestTimeout).DisableRetry()
	resp, err := callCron(context.Background(), client, baseURL, cfg.Cron.Secret)
	if err != nil {
		log.WithError(err).Error("Sentiment cron job failed")
		return err
	}

	log.WithFields(map[string]interface{}{
		"run_id":      resp.RunID,
		"data_points": resp.DataPoints,
		"top_posts":   resp.TopPosts,
		"timestamp":   resp.Timestamp.Format(time.RFC3339),
		"provenance":  resp.Provenance,
	}).Info("Sentiment data fetch successful")
	return nil
}

// callCron posts an empty JSON body to the cron endpoint; only 200 is success
func callCron(ctx context.Context, client *httputil.Client, baseURL, secret string) (*handlers.CronResponse, error) {
	if secret == "" {
		return nil, errNoSecret
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+cronPath, bytes.NewReader([]byte("{}")))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+secret)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", cronPath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if err := httputil.CheckStatus(resp); err != nil {
			return nil, err
		}
		return nil, &httputil.StatusError{StatusCode: resp.StatusCode, URL: req.URL.String()}
	}

	var out handlers.CronResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode cron response: %w", err)
	}
	return &out, nil
}
