package storage

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jdziat/versioned-jobs/pkg/core"
)

// openTestDB opens a database for tests.
// When TEST_DATABASE_URL is set it connects to PostgreSQL; otherwise it
// opens a fresh in-memory SQLite instance pinned to one connection.
// PostgreSQL connections are pool-limited and closed on test cleanup to
// avoid exceeding max_connections.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn != "" {
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		require.NoError(t, err, "open postgres test db")

		require.NoError(t, ConfigurePool(db, MaxOpenConns(4), MaxIdleConns(2)))
		sqlDB, err := db.DB()
		require.NoError(t, err, "get underlying sql.DB")

		// Drop before AND after so every test migrates from scratch.
		cleanupPostgresDB(t, db)
		t.Cleanup(func() {
			cleanupPostgresDB(t, db)
			_ = sqlDB.Close()
		})
		return db
	}
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "open in-memory sqlite")
	require.NoError(t, ConfigurePool(db), "pin sqlite to one connection")
	return db
}

// cleanupPostgresDB drops the tables migrations create.
func cleanupPostgresDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	for _, tbl := range []string{"jobs", MigrationsTable} {
		db.Exec("DROP TABLE IF EXISTS " + tbl)
	}
}

// newTestStorage returns a fully migrated storage on a fresh database.
func newTestStorage(t *testing.T) *GormStorage {
	t.Helper()
	s := NewGormStorage(openTestDB(t))
	require.NoError(t, s.Migrate(context.Background()), "migrate schema")
	return s
}

// newTestJob builds a minimal valid Job for insertion in tests.
func newTestJob(queue, jobType string) *core.Job {
	return &core.Job{
		Type:  jobType,
		Queue: queue,
	}
}

// createTestJob inserts a job and fails the test on error.
func createTestJob(t *testing.T, s *GormStorage, title string) *core.Job {
	t.Helper()
	job := newTestJob("default", "task.run")
	job.Title = title
	require.NoError(t, s.Create(context.Background(), job))
	return job
}

// setTitle returns a mutation that changes the job title.
func setTitle(title string) core.Mutation {
	return func(j *core.Job) error {
		j.Title = title
		return nil
	}
}
