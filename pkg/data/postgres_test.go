package data

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

func setupPostgresDB(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := t.Context()
	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("dosecheck"),
		postgres.WithUsername("dosecheck"),
		postgres.WithPassword("dosecheck"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

func TestPostgres_ScoreLog(t *testing.T) {
	dsn := setupPostgresDB(t)
	assert.Equal(t, driverPostgres, Driver(dsn))

	require.NoError(t, Init(dsn))
	require.NoError(t, Init(dsn), "schema creation is idempotent")

	db, err := GetDB(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	assert.Equal(t, "SELECT $1, $2", rebind(db, "SELECT ?, ?"))

	start := time.Now()
	assertSaveAndGet(t, db)

	_, err = db.Exec("DELETE FROM score_entry")
	require.NoError(t, err)
	assertListScores(t, db)
	t.Logf("postgres score log round trip: %s", time.Since(start))
}
