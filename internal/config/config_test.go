package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func newTestManager(t *testing.T, args ...string) *Manager {
	t.Helper()
	cmd := &cobra.Command{Use: "jobsctl"}
	man := NewManager(cmd)
	require.NoError(t, cmd.PersistentFlags().Parse(args))
	return man
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := newTestManager(t).Load()
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "jobs.db", cfg.Database.DSN)
	assert.Equal(t, 0, cfg.Database.MaxOpenConns)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 100, cfg.Server.ListLimit)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.JSON)
	assert.Equal(t, 3, cfg.Retry.Attempts)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("JOBS_DATABASE_DRIVER", "postgres")
	t.Setenv("JOBS_DATABASE_DSN", "postgres://localhost/jobs")
	t.Setenv("JOBS_DATABASE_CONN_MAX_LIFETIME", "90s")
	t.Setenv("JOBS_RETRY_ATTEMPTS", "7")

	cfg, err := newTestManager(t).Load()
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "postgres://localhost/jobs", cfg.Database.DSN)
	assert.Equal(t, 90*time.Second, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, 7, cfg.Retry.Attempts)
}

func TestLoad_FlagBeatsEnvironment(t *testing.T) {
	t.Setenv("JOBS_SERVER_ADDRESS", ":9000")

	cfg, err := newTestManager(t, "--server_address", ":7000").Load()
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Address)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  driver: sqlite
  dsn: /var/lib/jobs/jobs.db
  max_open_conns: 4
server:
  list_limit: 25
logging:
  level: debug
  json: true
`), 0o600))

	cfg, err := newTestManager(t, "--config", path).Load()
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/jobs/jobs.db", cfg.Database.DSN)
	assert.Equal(t, 4, cfg.Database.MaxOpenConns)
	assert.Equal(t, 25, cfg.Server.ListLimit)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.JSON)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := newTestManager(t, "--config", filepath.Join(t.TempDir(), "nope.yaml")).Load()
	assert.Error(t, err)
}

func TestLoad_UnknownDriver(t *testing.T) {
	t.Setenv("JOBS_DATABASE_DRIVER", "oracle")

	_, err := newTestManager(t).Load()
	assert.ErrorIs(t, err, ErrUnknownDriver)
}

func TestEnvNameFromConfigKey(t *testing.T) {
	assert.Equal(t, "JOBS_DATABASE_MAX_OPEN_CONNS", envNameFromConfigKey("database.max_open_conns"))
	assert.Equal(t, "database_dsn", flagNameFromConfigKey("database.dsn"))
}

func TestDatabaseConfig_OpenSQLite(t *testing.T) {
	db, err := DatabaseConfig{Driver: DriverSQLite, DSN: ":memory:"}.Open()
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestDatabaseConfig_OpenUnknownDriver(t *testing.T) {
	_, err := DatabaseConfig{Driver: "mysql"}.Open()
	assert.ErrorIs(t, err, ErrUnknownDriver)
}

func TestDatabaseConfig_PoolOptions(t *testing.T) {
	assert.Empty(t, DatabaseConfig{}.poolOptions())
	assert.Len(t, DatabaseConfig{MaxOpenConns: 5, ConnMaxIdleTime: time.Minute}.poolOptions(), 2)
}

func TestGormLogLevel(t *testing.T) {
	assert.Equal(t, logger.Silent, gormLogLevel(""))
	assert.Equal(t, logger.Error, gormLogLevel("error"))
	assert.Equal(t, logger.Warn, gormLogLevel("WARN"))
	assert.Equal(t, logger.Info, gormLogLevel("info"))
}

func TestLoggingConfig_Logger(t *testing.T) {
	l := LoggingConfig{Level: "debug"}.Logger()
	assert.True(t, l.Enabled(t.Context(), slog.LevelDebug))

	l = LoggingConfig{Level: "bogus", JSON: true}.Logger()
	assert.False(t, l.Enabled(t.Context(), slog.LevelDebug))
	assert.True(t, l.Enabled(t.Context(), slog.LevelInfo))
}
