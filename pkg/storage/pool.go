package storage

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// PoolConfig holds connection pool configuration.
type PoolConfig struct {
	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 25
	MaxOpenConns int

	// MaxIdleConns is the maximum number of connections in the idle pool.
	// Default: 10
	MaxIdleConns int

	// ConnMaxLifetime is the maximum amount of time a connection may be reused.
	// Default: 5 minutes
	ConnMaxLifetime time.Duration

	// ConnMaxIdleTime is the maximum amount of time a connection may be idle.
	// Default: 1 minute
	ConnMaxIdleTime time.Duration
}

// DefaultPoolConfig returns defaults suitable for a PostgreSQL-backed store.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
	}
}

// SQLitePoolConfig returns settings for SQLite. SQLite allows a single writer,
// and two deferred transactions that both read before writing deadlock with
// SQLITE_BUSY instead of serializing, so guarded updates share one connection.
// A ":memory:" database also only exists on the connection that created it.
func SQLitePoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: 0,
		ConnMaxIdleTime: 0,
	}
}

// PoolOption configures connection pool settings.
type PoolOption interface {
	applyPool(*PoolConfig)
}

type poolOptionFunc func(*PoolConfig)

func (f poolOptionFunc) applyPool(c *PoolConfig) { f(c) }

// WithPoolConfig replaces the whole configuration, typically with one of the
// presets above. Later options still override individual fields.
func WithPoolConfig(cfg PoolConfig) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) {
		*c = cfg
	})
}

// MaxOpenConns sets the maximum number of open connections.
// Set to 0 for unlimited (not recommended for production).
func MaxOpenConns(n int) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) {
		c.MaxOpenConns = n
	})
}

// MaxIdleConns sets the maximum number of idle connections.
// Should be less than or equal to MaxOpenConns.
func MaxIdleConns(n int) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) {
		c.MaxIdleConns = n
	})
}

// ConnMaxLifetime sets the maximum connection lifetime.
func ConnMaxLifetime(d time.Duration) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) {
		c.ConnMaxLifetime = d
	})
}

// ConnMaxIdleTime sets the maximum idle time for connections.
func ConnMaxIdleTime(d time.Duration) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) {
		c.ConnMaxIdleTime = d
	})
}

// ResolvePoolConfig returns the configuration ConfigurePool would apply.
// SQLite databases start from SQLitePoolConfig instead of DefaultPoolConfig.
func ResolvePoolConfig(db *gorm.DB, opts ...PoolOption) PoolConfig {
	config := DefaultPoolConfig()
	if NewGormStorage(db).IsSQLite() {
		config = SQLitePoolConfig()
	}
	for _, opt := range opts {
		opt.applyPool(&config)
	}
	return config
}

// ConfigurePool applies pool configuration to a GORM database connection.
// Returns an error if the underlying *sql.DB cannot be retrieved.
func ConfigurePool(db *gorm.DB, opts ...PoolOption) error {
	config := ResolvePoolConfig(db, opts...)

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying *sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	return nil
}

// NewGormStorageWithPool creates a new GORM-backed storage with connection pooling configured.
//
// Example:
//
//	storage, err := NewGormStorageWithPool(db,
//	    MaxOpenConns(50),
//	    MaxIdleConns(20),
//	)
func NewGormStorageWithPool(db *gorm.DB, opts ...PoolOption) (*GormStorage, error) {
	if err := ConfigurePool(db, opts...); err != nil {
		return nil, err
	}
	return NewGormStorage(db), nil
}
