package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/wonny/aegis-pulse/internal/storage"
	"github.com/wonny/aegis-pulse/internal/storage/storagetest"
	"github.com/wonny/aegis-pulse/pkg/config"
	"github.com/wonny/aegis-pulse/pkg/database"
)

func TestStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("pulse"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := database.New(ctx, config.DatabaseConfig{URL: dsn, MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	_, err = db.Migrate(ctx)
	require.NoError(t, err)

	store := New(db)
	storagetest.Run(t, func(t *testing.T) storage.Store {
		_, err := db.Pool.Exec(ctx, `TRUNCATE social_posts, social_posts_display, sentiment_aggregates, post_rankings`)
		require.NoError(t, err)
		return store
	})
}
