package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/wonny/aegis-pulse/pkg/logger"
	"github.com/wonny/aegis-pulse/pkg/redis"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// readThrough serves key from cache, or loads and stores it.
// Cache failures are logged and never fail the request.
func readThrough[T any](ctx context.Context, cache *redis.Cache, key string, ttl time.Duration, log *logger.Logger, load func() (T, error)) (T, bool, error) {
	var value T
	if cache != nil {
		hit, err := cache.Get(ctx, key, &value)
		if err != nil {
			log.WithError(err).WithField("key", key).Warn("Cache read failed")
		}
		if hit && err == nil {
			return value, true, nil
		}
	}

	value, err := load()
	if err != nil {
		return value, false, err
	}

	if cache != nil {
		if err := cache.Set(ctx, key, value, ttl); err != nil {
			log.WithError(err).WithField("key", key).Warn("Cache write failed")
		}
	}
	return value, false, nil
}
