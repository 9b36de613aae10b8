// Package database provides SQLite connectivity for DoseBox Core.
//
// It wraps database/sql with WAL-mode configuration, a single-writer
// connection pool, health checks, and an embedded migration runner.
// Repositories in the domain packages receive the underlying *sql.DB.
package database
