package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/aegis-pulse/internal/aggregator"
	"github.com/wonny/aegis-pulse/internal/contracts"
	"github.com/wonny/aegis-pulse/internal/storage"
	"github.com/wonny/aegis-pulse/pkg/logger"
	"github.com/wonny/aegis-pulse/pkg/redis"
)

const maxListLimit = 100

// SentimentHandler serves sentiment aggregates
// ⭐ SSOT: 감성 집계 조회 API는 여기서만
type SentimentHandler struct {
	repo     storage.AggregateRepository
	cache    *redis.Cache
	cacheTTL time.Duration
	logger   *logger.Logger
}

// NewSentimentHandler creates a new sentiment handler; cache may be nil
func NewSentimentHandler(repo storage.AggregateRepository, cache *redis.Cache, cacheTTL time.Duration, log *logger.Logger) *SentimentHandler {
	if cacheTTL <= 0 {
		cacheTTL = redis.TTLMedium
	}
	return &SentimentHandler{
		repo:     repo,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   log,
	}
}

// AggregateList is the body of the list endpoint
type AggregateList struct {
	Period     string                         `json:"period"`
	Count      int                            `json:"count"`
	Provenance contracts.Provenance           `json:"provenance"`
	Aggregates []contracts.SentimentAggregate `json:"aggregates"`
}

func periodParam(r *http.Request) (string, error) {
	period := r.URL.Query().Get("period")
	if period == "" {
		return aggregator.Period24h, nil
	}
	if _, err := aggregator.ParsePeriod(period); err != nil {
		return "", err
	}
	return period, nil
}

func limitParam(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxListLimit {
		return 0, errors.New("limit must be between 1 and 100")
	}
	return n, nil
}

// ListAggregates returns every aggregate of a period
// GET /api/sentiment?period=24h&limit=50
func (h *SentimentHandler) ListAggregates(w http.ResponseWriter, r *http.Request) {
	period, err := periodParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := limitParam(r, 0)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	aggs, hit, err := readThrough(r.Context(), h.cache, redis.AggregateListKey(period), h.cacheTTL, h.logger,
		func() ([]contracts.SentimentAggregate, error) {
			return h.repo.ListAggregates(r.Context(), period, 0)
		})
	if err != nil {
		h.logger.WithError(err).WithField("period", period).Error("Failed to list aggregates")
		respondError(w, http.StatusInternalServerError, "failed to load aggregates")
		return
	}

	if limit > 0 && len(aggs) > limit {
		aggs = aggs[:limit]
	}
	if aggs == nil {
		aggs = []contracts.SentimentAggregate{}
	}

	prov := contracts.ProvenanceLive
	for i := range aggs {
		if hit {
			aggs[i].Provenance = aggs[i].Provenance.Merge(contracts.ProvenanceCached)
		}
		prov = prov.Merge(aggs[i].Provenance)
	}

	respondJSON(w, http.StatusOK, AggregateList{
		Period:     period,
		Count:      len(aggs),
		Provenance: prov,
		Aggregates: aggs,
	})
}

// NormalizeTicker uppercases and strips a leading "$"
func NormalizeTicker(raw string) (string, bool) {
	t := strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(raw), "$"))
	return t, contracts.IsTickerShape(t)
}

// GetAggregate returns one ticker's aggregate
// GET /api/sentiment/{ticker}?period=24h
func (h *SentimentHandler) GetAggregate(w http.ResponseWriter, r *http.Request) {
	ticker, ok := NormalizeTicker(mux.Vars(r)["ticker"])
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid ticker")
		return
	}
	period, err := periodParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	agg, hit, err := readThrough(r.Context(), h.cache, redis.AggregateKey(ticker, period), h.cacheTTL, h.logger,
		func() (*contracts.SentimentAggregate, error) {
			return h.repo.GetAggregate(r.Context(), ticker, period)
		})
	if errors.Is(err, storage.ErrNotFound) {
		respondError(w, http.StatusNotFound, "no sentiment for "+ticker+" in "+period)
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("ticker", ticker).Error("Failed to get aggregate")
		respondError(w, http.StatusInternalServerError, "failed to load aggregate")
		return
	}

	if hit {
		agg.Provenance = agg.Provenance.Merge(contracts.ProvenanceCached)
	}
	respondJSON(w, http.StatusOK, agg)
}
