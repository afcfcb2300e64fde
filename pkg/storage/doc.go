// Package storage provides storage implementations for job persistence.
//
// This package includes:
//   - GormStorage: A GORM-based implementation supporting SQLite and PostgreSQL
//   - Numbered schema migrations, including the one adding the jobs.version column
//   - Connection pool configuration
//
// GormStorage.Update is the version guard: the version check and the write
// happen in one conditional UPDATE inside a transaction, so two writers holding
// the same version can never both succeed.
//
// The Store interface is defined in pkg/core and must be implemented
// by any custom storage backend.
package storage
