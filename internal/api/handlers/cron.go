package handlers

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/wonny/aegis-pulse/internal/contracts"
	"github.com/wonny/aegis-pulse/internal/pipeline"
	"github.com/wonny/aegis-pulse/pkg/logger"
)

// Runner executes one pipeline pass
type Runner interface {
	Run(ctx context.Context) (*pipeline.RunResult, error)
}

// CronResponse is the body of the scheduler trigger endpoint
type CronResponse struct {
	Success    bool                 `json:"success"`
	DataPoints int                  `json:"dataPoints"`
	TopPosts   int                  `json:"topPosts"`
	Timestamp  time.Time            `json:"timestamp"`
	Provenance contracts.Provenance `json:"provenance"`
	RunID      string               `json:"runId"`
	Error      string               `json:"error,omitempty"`
}

// CronHandler handles the scheduler trigger
// ⭐ SSOT: CRON_SECRET 검증은 여기서만
type CronHandler struct {
	runner Runner
	secret string
	logger *logger.Logger
}

// NewCronHandler creates a new cron handler; an empty secret rejects every call
func NewCronHandler(runner Runner, secret string, log *logger.Logger) *CronHandler {
	return &CronHandler{
		runner: runner,
		secret: secret,
		logger: log,
	}
}

// authorized compares the bearer token in constant time
func (h *CronHandler) authorized(r *http.Request) bool {
	if h.secret == "" {
		return false
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.secret)) == 1
}

// RunSentiment runs the batch pipeline
// POST /api/cron/sentiment-data
func (h *CronHandler) RunSentiment(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		h.logger.WithField("remote", r.RemoteAddr).Warn("Rejected cron trigger with bad secret")
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	res, err := h.runner.Run(r.Context())
	if errors.Is(err, pipeline.ErrRunInProgress) {
		respondError(w, http.StatusConflict, err.Error())
		return
	}

	body := CronResponse{Timestamp: time.Now().UTC()}
	if res != nil {
		body = CronResponse{
			Success:    res.Success,
			DataPoints: res.DataPoints,
			TopPosts:   res.TopPosts,
			Timestamp:  res.Timestamp,
			Provenance: res.Provenance,
			RunID:      res.RunID,
		}
	}
	if err != nil {
		body.Success = false
		body.Error = err.Error()
		respondJSON(w, http.StatusInternalServerError, body)
		return
	}

	respondJSON(w, http.StatusOK, body)
}
