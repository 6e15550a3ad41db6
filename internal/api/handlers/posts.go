package handlers

import (
	"net/http"

	"github.com/wonny/aegis-pulse/internal/contracts"
	"github.com/wonny/aegis-pulse/internal/storage"
	"github.com/wonny/aegis-pulse/pkg/logger"
	"github.com/wonny/aegis-pulse/pkg/redis"
)

const defaultPostLimit = 20

// PostsHandler serves the actionable post ranking
type PostsHandler struct {
	repo   storage.RankingRepository
	cache  *redis.Cache
	logger *logger.Logger
}

// NewPostsHandler creates a new posts handler; cache may be nil
func NewPostsHandler(repo storage.RankingRepository, cache *redis.Cache, log *logger.Logger) *PostsHandler {
	return &PostsHandler{
		repo:   repo,
		cache:  cache,
		logger: log,
	}
}

// RankedList is the body of the actionable posts endpoint
type RankedList struct {
	Count      int                    `json:"count"`
	Provenance contracts.Provenance   `json:"provenance"`
	Posts      []contracts.RankedPost `json:"posts"`
}

// GetActionable returns the top ranked posts
// GET /api/posts/actionable?limit=20
func (h *PostsHandler) GetActionable(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r, defaultPostLimit)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ranked, hit, err := readThrough(r.Context(), h.cache, redis.RankingKey(limit), redis.TTLShort, h.logger,
		func() ([]contracts.RankedPost, error) {
			return h.repo.TopRanked(r.Context(), limit)
		})
	if err != nil {
		h.logger.WithError(err).Error("Failed to load ranking")
		respondError(w, http.StatusInternalServerError, "failed to load ranking")
		return
	}
	if ranked == nil {
		ranked = []contracts.RankedPost{}
	}

	prov := contracts.ProvenanceLive
	for i := range ranked {
		if hit {
			ranked[i].Post.Provenance = ranked[i].Post.Provenance.Merge(contracts.ProvenanceCached)
		}
		prov = prov.Merge(ranked[i].Post.Provenance)
	}

	respondJSON(w, http.StatusOK, RankedList{
		Count:      len(ranked),
		Provenance: prov,
		Posts:      ranked,
	})
}
