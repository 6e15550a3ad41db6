// Package postgres implements storage.Store on PostgreSQL via pgx.
// The schema comes from pkg/database migrations.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/aegis-pulse/internal/storage"
	"github.com/wonny/aegis-pulse/pkg/database"
)

// Store handles sentiment data persistence
// ⭐ SSOT: PostgreSQL 쿼리는 이 패키지에서만
type Store struct {
	db   *database.DB
	pool *pgxpool.Pool
}

var _ storage.Store = (*Store)(nil)

// New creates a Store over an open connection pool
func New(db *database.DB) *Store {
	return &Store{db: db, pool: db.Pool}
}

// Ping implements storage.Store
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close implements storage.Store
func (s *Store) Close() {
	s.db.Close()
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
