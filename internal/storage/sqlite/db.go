// Package sqlite stores the savings ledger in a local SQLite file using the
// pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/bobmcallan/savings/internal/common"
)

// Migrations returns the schema statements. Each string is a single
// statement; SQLite executes one at a time.
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			account_id    TEXT PRIMARY KEY,
			account_no    TEXT NOT NULL,
			client_id     TEXT NOT NULL DEFAULT '',
			group_id      TEXT NOT NULL DEFAULT '',
			currency      TEXT NOT NULL,
			status        TEXT NOT NULL,
			sub_status    TEXT NOT NULL DEFAULT '',
			product       TEXT NOT NULL,
			on_hold_funds TEXT NOT NULL DEFAULT '0',
			summary       TEXT NOT NULL,
			version       INTEGER NOT NULL DEFAULT 0,
			created_at    TEXT NOT NULL DEFAULT '',
			updated_at    TEXT NOT NULL DEFAULT ''
		)`,

		// Amounts are decimal strings.
		`CREATE TABLE IF NOT EXISTS transactions (
			txn_id           INTEGER PRIMARY KEY AUTOINCREMENT,
			account_id       TEXT NOT NULL REFERENCES accounts(account_id),
			type             TEXT NOT NULL,
			date             TEXT NOT NULL,
			amount           TEXT NOT NULL,
			currency         TEXT NOT NULL,
			ref_no           TEXT NOT NULL UNIQUE,
			reversed         INTEGER NOT NULL DEFAULT 0,
			reversal_of_id   INTEGER NOT NULL DEFAULT 0,
			reversal_of_ref  TEXT NOT NULL DEFAULT '',
			reversal_of_type TEXT NOT NULL DEFAULT '',
			running_balance  TEXT NOT NULL DEFAULT '0',
			user_posting     INTEGER NOT NULL DEFAULT 0,
			charges_paid     TEXT NOT NULL DEFAULT '',
			created_at       TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_account ON transactions(account_id, txn_id)`,

		`CREATE TABLE IF NOT EXISTS on_hold (
			hold_id    INTEGER PRIMARY KEY AUTOINCREMENT,
			account_id TEXT NOT NULL,
			amount     TEXT NOT NULL,
			date       TEXT NOT NULL,
			reversed   INTEGER NOT NULL DEFAULT 0,
			lien       INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL DEFAULT ''
		)`,

		// Client and group activity; absent owners are active.
		`CREATE TABLE IF NOT EXISTS owners (
			kind       TEXT NOT NULL,
			owner_id   TEXT NOT NULL,
			active     INTEGER NOT NULL DEFAULT 1,
			updated_at TEXT NOT NULL DEFAULT (datetime('now')),
			PRIMARY KEY (kind, owner_id)
		)`,

		`CREATE TABLE IF NOT EXISTS system_kv (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
	}
}

// DB wraps the connection pool. Statements run on the transaction carried
// by ctx when there is one.
type DB struct {
	db     *sql.DB
	logger *common.Logger
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

// Open opens (creating if needed) the database at path and applies migrations.
func Open(ctx context.Context, path string, logger *common.Logger) (*DB, error) {
	dsn := path
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A single connection serializes writers, so the ids handed out inside
	// one unit of work are contiguous.
	sqlDB.SetMaxOpenConns(1)

	for i, stmt := range Migrations() {
		if _, err := sqlDB.ExecContext(ctx, stmt); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to apply migration %d: %w", i, err)
		}
	}

	logger.Info().Str("path", path).Int("migrations", len(Migrations())).Msg("SQLite ledger store opened")
	return &DB{db: sqlDB, logger: logger}, nil
}

func (d *DB) conn(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return d.db
}

// Atomically runs fn inside one SQL transaction. Nested calls join the
// outer transaction.
func (d *DB) Atomically(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			d.logger.Warn().Err(rbErr).Msg("Rollback failed")
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close closes the pool.
func (d *DB) Close() error {
	return d.db.Close()
}
