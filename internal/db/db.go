// Package db provides relational storage for users, activities and their evidence.
//
// One schema is served by two dialects: PostgreSQL (via pgx's database/sql
// driver) and SQLite (via go-sqlite3). Queries are written with "?" placeholders
// and rebound for the active driver by sqlx.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	sqlite3 "github.com/mattn/go-sqlite3"
)

// Dialect selects the SQL backend.
type Dialect string

const (
	// Postgres uses the pgx driver.
	Postgres Dialect = "postgres"
	// SQLite uses an embedded database file.
	SQLite Dialect = "sqlite"
)

func (d Dialect) driverName() (string, error) {
	switch d {
	case Postgres:
		return "pgx", nil
	case SQLite:
		return "sqlite3", nil
	default:
		return "", fmt.Errorf("unsupported dialect %q", d)
	}
}

// SQLiteDSN builds a go-sqlite3 DSN for a database file with foreign keys enabled.
func SQLiteDSN(path string) string {
	return "file:" + path + "?_foreign_keys=on&_busy_timeout=5000"
}

// DB wraps a database/sql pool for one dialect.
type DB struct {
	x       *sqlx.DB
	dialect Dialect
}

// Open connects to the database and verifies the connection.
func Open(ctx context.Context, dialect Dialect, dsn string) (*DB, error) {
	driver, err := dialect.driverName()
	if err != nil {
		return nil, err
	}

	x, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if dialect == SQLite {
		// SQLite allows a single writer; serialise through one connection.
		x.SetMaxOpenConns(1)
	}

	if err := x.PingContext(ctx); err != nil {
		x.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{x: x, dialect: dialect}, nil
}

// Dialect reports which backend is in use.
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.x.PingContext(ctx)
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.x != nil {
		db.x.Close()
	}
}

// withTx runs fn in a transaction, committing on success.
func (db *DB) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.x.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// readTxOptions returns the options for multi-query reads. Postgres needs
// REPEATABLE READ for every statement to share one snapshot; a SQLite
// transaction already reads from one snapshot.
func (d Dialect) readTxOptions() *sql.TxOptions {
	if d == Postgres {
		return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	return nil
}

// readTx runs fn in a transaction whose queries all see the same snapshot.
func (db *DB) readTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.x.BeginTxx(ctx, db.dialect.readTxOptions())
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck
	return fn(tx)
}

func get(ctx context.Context, q sqlx.ExtContext, dest any, query string, args ...any) error {
	return sqlx.GetContext(ctx, q, dest, q.Rebind(query), args...)
}

func selectAll(ctx context.Context, q sqlx.ExtContext, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, q, dest, q.Rebind(query), args...)
}

func exec(ctx context.Context, q sqlx.ExtContext, query string, args ...any) (int64, error) {
	res, err := q.ExecContext(ctx, q.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// selectIn expands slice arguments for IN (?) clauses before running the query.
func selectIn(ctx context.Context, q sqlx.ExtContext, dest any, query string, args ...any) error {
	expanded, expandedArgs, err := sqlx.In(query, args...)
	if err != nil {
		return err
	}
	return selectAll(ctx, q, dest, expanded, expandedArgs...)
}

// IsUniqueViolation reports whether err is a unique or primary key conflict on
// either backend.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key")
}
