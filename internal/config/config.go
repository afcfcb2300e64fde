// Package config loads jobsctl settings from flags, JOBS_* environment
// variables and an optional config file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jdziat/versioned-jobs/pkg/storage"
)

const envPrefix = "JOBS"

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ErrUnknownDriver is returned for a database.driver other than sqlite or postgres.
var ErrUnknownDriver = errors.New("config: unknown database driver")

// DatabaseConfig defines configs related to the job database.
type DatabaseConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	LogLevel        string
}

// ServerConfig defines configs related to the HTTP API.
type ServerConfig struct {
	Address   string
	ListLimit int
}

// LoggingConfig defines configs related to logging.
type LoggingConfig struct {
	Level string
	JSON  bool
}

// RetryConfig defines configs for reload-and-reapply updates.
type RetryConfig struct {
	Attempts int
}

// Config holds every jobsctl setting.
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Logging  LoggingConfig
	Retry    RetryConfig
}

// Manager binds config keys to persistent flags on a cobra command and to
// environment variables. Precedence: flag, env, config file, default.
type Manager struct {
	viper   *viper.Viper
	command *cobra.Command
}

// NewManager attaches all config flags to command. Call it once, on the root
// command, so subcommands inherit the flags.
func NewManager(command *cobra.Command) *Manager {
	man := &Manager{
		viper:   viper.New(),
		command: command,
	}
	man.addConfigs()
	return man
}

func (man *Manager) addConfigs() {
	man.command.PersistentFlags().StringP("config", "c", "", "Path to a config file (yaml, toml or json)")

	man.addConfigString("database.driver", DriverSQLite, "Database driver: sqlite or postgres")
	man.addConfigString("database.dsn", "jobs.db", "Database connection string")
	man.addConfigInt("database.max_open_conns", 0, "Maximum open connections (0 uses the driver preset)")
	man.addConfigInt("database.max_idle_conns", 0, "Maximum idle connections (0 uses the driver preset)")
	man.addConfigDuration("database.conn_max_lifetime", 0, "Maximum connection lifetime (0 uses the driver preset)")
	man.addConfigDuration("database.conn_max_idle_time", 0, "Maximum connection idle time (0 uses the driver preset)")
	man.addConfigString("database.log_level", "silent", "GORM log level: silent, error, warn or info")

	man.addConfigString("server.address", ":8080", "HTTP listen address")
	man.addConfigInt("server.list_limit", 100, "Jobs returned by GET /jobs without ?limit")

	man.addConfigString("logging.level", "info", "Log level: debug, info, warn or error")
	man.addConfigBool("logging.json", false, "Log as JSON instead of text")

	man.addConfigInt("retry.attempts", 3, "Attempts for reload-and-reapply updates")
}

// envNameFromConfigKey converts a config key into the corresponding
// environment variable name.
func envNameFromConfigKey(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// flagNameFromConfigKey converts a config key into the corresponding flag name.
func flagNameFromConfigKey(key string) string {
	return strings.ReplaceAll(key, ".", "_")
}

func usage(key, text string) string {
	return fmt.Sprintf("%s (env %s)", text, envNameFromConfigKey(key))
}

func (man *Manager) bind(key string) {
	_ = man.viper.BindPFlag(key, man.command.PersistentFlags().Lookup(flagNameFromConfigKey(key)))
	_ = man.viper.BindEnv(key, envNameFromConfigKey(key))
}

func (man *Manager) addConfigString(key, defVal, text string) {
	man.command.PersistentFlags().String(flagNameFromConfigKey(key), defVal, usage(key, text))
	man.bind(key)
}

func (man *Manager) addConfigInt(key string, defVal int, text string) {
	man.command.PersistentFlags().Int(flagNameFromConfigKey(key), defVal, usage(key, text))
	man.bind(key)
}

func (man *Manager) addConfigBool(key string, defVal bool, text string) {
	man.command.PersistentFlags().Bool(flagNameFromConfigKey(key), defVal, usage(key, text))
	man.bind(key)
}

func (man *Manager) addConfigDuration(key string, defVal time.Duration, text string) {
	man.command.PersistentFlags().Duration(flagNameFromConfigKey(key), defVal, usage(key, text))
	man.bind(key)
}

// Load reads the config file, if one was given, and returns the merged config.
func (man *Manager) Load() (Config, error) {
	if path := man.command.PersistentFlags().Lookup("config"); path != nil && path.Value.String() != "" {
		man.viper.SetConfigFile(path.Value.String())
		if err := man.viper.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", path.Value.String(), err)
		}
	}

	v := man.viper
	cfg := Config{
		Database: DatabaseConfig{
			Driver:          strings.ToLower(v.GetString("database.driver")),
			DSN:             v.GetString("database.dsn"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetDuration("database.conn_max_idle_time"),
			LogLevel:        v.GetString("database.log_level"),
		},
		Server: ServerConfig{
			Address:   v.GetString("server.address"),
			ListLimit: v.GetInt("server.list_limit"),
		},
		Logging: LoggingConfig{
			Level: v.GetString("logging.level"),
			JSON:  v.GetBool("logging.json"),
		},
		Retry: RetryConfig{
			Attempts: v.GetInt("retry.attempts"),
		},
	}

	switch cfg.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Database.Driver)
	}
	return cfg, nil
}

// Open connects to the configured database and applies the pool settings.
func (c DatabaseConfig) Open() (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch c.Driver {
	case DriverSQLite:
		dialector = sqlite.Open(c.DSN)
	case DriverPostgres:
		dialector = postgres.Open(c.DSN)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, c.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel(c.LogLevel)),
	})
	if err != nil {
		return nil, fmt.Errorf("config: opening %s database: %w", c.Driver, err)
	}

	if err := storage.ConfigurePool(db, c.poolOptions()...); err != nil {
		return nil, err
	}
	return db, nil
}

func (c DatabaseConfig) poolOptions() []storage.PoolOption {
	var opts []storage.PoolOption
	if c.MaxOpenConns > 0 {
		opts = append(opts, storage.MaxOpenConns(c.MaxOpenConns))
	}
	if c.MaxIdleConns > 0 {
		opts = append(opts, storage.MaxIdleConns(c.MaxIdleConns))
	}
	if c.ConnMaxLifetime > 0 {
		opts = append(opts, storage.ConnMaxLifetime(c.ConnMaxLifetime))
	}
	if c.ConnMaxIdleTime > 0 {
		opts = append(opts, storage.ConnMaxIdleTime(c.ConnMaxIdleTime))
	}
	return opts
}

func gormLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return logger.Silent
	}
}

// Logger builds the process logger.
func (c LoggingConfig) Logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.JSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
