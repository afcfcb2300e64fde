package storage

import (
	"context"
	"time"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// Migration IDs, applied in order.
const (
	MigrationCreateJobs = "0001_create_jobs"
	MigrationJobVersion = "0002_job_version"
)

// MigrationsTable records which migrations have been applied.
const MigrationsTable = "schema_migrations"

// jobV1 is the jobs table as first shipped, before the version column.
// It is frozen here so 0001 keeps creating the same schema as the Job
// model evolves.
type jobV1 struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Type      string    `gorm:"index;size:255;not null"`
	Title     string    `gorm:"size:255"`
	Queue     string    `gorm:"index;size:255;default:'default'"`
	Priority  int       `gorm:"index;default:0"`
	Status    string    `gorm:"index;size:20;default:'pending'"`
	Args      []byte    `gorm:"type:bytes"`
	Result    []byte    `gorm:"type:bytes"`
	Logs      string    `gorm:"type:text"`
	LastError string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (jobV1) TableName() string { return "jobs" }

// Migrations returns the ordered schema migrations for the jobs store.
func Migrations() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		{
			ID: MigrationCreateJobs,
			Migrate: func(tx *gorm.DB) error {
				return tx.Migrator().CreateTable(&jobV1{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("jobs")
			},
		},
		{
			// Record revision number for optimistic concurrency.
			ID: MigrationJobVersion,
			Migrate: func(tx *gorm.DB) error {
				return tx.Exec(`ALTER TABLE jobs ADD COLUMN version BIGINT NOT NULL DEFAULT 0`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Exec(`ALTER TABLE jobs DROP COLUMN version`).Error
			},
		},
	}
}

func (s *GormStorage) migrator(ctx context.Context) *gormigrate.Gormigrate {
	opts := &gormigrate.Options{
		TableName:                 MigrationsTable,
		IDColumnName:              "id",
		IDColumnSize:              255,
		UseTransaction:            true,
		ValidateUnknownMigrations: true,
	}
	return gormigrate.New(s.db.WithContext(ctx), opts, Migrations())
}

// Migrate applies every pending migration.
func (s *GormStorage) Migrate(ctx context.Context) error {
	return s.migrator(ctx).Migrate()
}

// MigrateTo applies pending migrations up to and including id.
func (s *GormStorage) MigrateTo(ctx context.Context, id string) error {
	return s.migrator(ctx).MigrateTo(id)
}

// RollbackLast undoes the most recently applied migration.
func (s *GormStorage) RollbackLast(ctx context.Context) error {
	return s.migrator(ctx).RollbackLast()
}

// AppliedMigrations returns the IDs of applied migrations in order.
func (s *GormStorage) AppliedMigrations(ctx context.Context) ([]string, error) {
	db := s.db.WithContext(ctx)
	if !db.Migrator().HasTable(MigrationsTable) {
		return nil, nil
	}
	var ids []string
	err := db.Table(MigrationsTable).Order("id ASC").Pluck("id", &ids).Error
	return ids, err
}
