//go:build integration

package owners

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/flooanalytics/ingest/pkg/plans"
	"github.com/flooanalytics/ingest/pkg/storage"
)

func TestSQLResolver_Postgres(t *testing.T) {
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("ingest_test"),
		postgres.WithUsername("ingest"),
		postgres.WithPassword("ingest_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Errorf("Failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	cfg := storage.DefaultConfig()
	cfg.DatabaseURL = connStr
	db, err := storage.OpenDatabase(ctx, cfg)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, storage.EnsureSchema(ctx, db))

	for _, stmt := range []string{
		`INSERT INTO plans VALUES ('pro', 1000000, 10, 5)`,
		`INSERT INTO owners VALUES ('acme', 'pro')`,
		`INSERT INTO sites VALUES ('acme-web', 'acme')`,
	} {
		_, err := db.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}

	resolver := NewCachedResolver(NewSQLResolver(db), 16, time.Minute, nil)
	owner, err := resolver.Resolve(ctx, "acme-web")
	require.NoError(t, err)
	assert.Equal(t, Owner{ID: "acme", PlanName: "pro"}, owner)

	_, err = resolver.Resolve(ctx, "unknown")
	assert.ErrorIs(t, err, ErrSiteNotFound)

	plan, err := plans.NewSQLCatalog(db).Lookup(ctx, "pro")
	require.NoError(t, err)
	assert.EqualValues(t, 5, plan.MaxTeamMembers)

	_, err = plans.NewSQLCatalog(db).Lookup(ctx, "enterprise")
	assert.ErrorIs(t, err, plans.ErrUnknownPlan)
}
