package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Dialect doubles as the database/sql driver name.
type Dialect string

const (
	Postgres Dialect = "pgx"
	SQLite   Dialect = "sqlite"
)

func init() {
	sqlx.BindDriver(string(SQLite), sqlx.QUESTION)
}

// SQLStore implements Store on top of Postgres or SQLite. Queries are
// written with ? placeholders and rebound for the dialect.
type SQLStore struct {
	db      *sqlx.DB
	q       queryer
	tx      *sqlx.Tx // set on a store bound to a transaction, see Journaled
	dialect Dialect
}

// queryer is what *sqlx.DB and *sqlx.Tx have in common.
type queryer interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
}

func newSQLStore(db *sqlx.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, q: db, dialect: dialect}
}

var _ Mirror = (*SQLStore)(nil)

// OpenPostgres prepares the hosted primary database. No connection is
// made until first use, so an unreachable server is reported by Ping.
func OpenPostgres(dbURL string) (*SQLStore, error) {
	db, err := sqlx.Open(string(Postgres), dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return newSQLStore(db, Postgres), nil
}

// OpenSQLite opens or creates a local database file.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	// Times are written as "2006-01-02 15:04:05.999999999-07:00" so they
	// read back into time.Time and sort as text.
	db, err := sqlx.Open(string(SQLite), path+"?_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One writer keeps SQLite from reporting SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting %s: %w", pragma, err)
		}
	}
	return newSQLStore(db, SQLite), nil
}

// Migrate creates any missing tables and indexes.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schemaFor(s.dialect), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) get(ctx context.Context, dest any, query string, args ...any) error {
	err := s.q.GetContext(ctx, dest, s.q.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *SQLStore) sel(ctx context.Context, dest any, query string, args ...any) error {
	return s.q.SelectContext(ctx, dest, s.q.Rebind(query), args...)
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.q.ExecContext(ctx, s.q.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// execOne runs a statement that must touch exactly one existing row.
func (s *SQLStore) execOne(ctx context.Context, query string, args ...any) error {
	n, err := s.exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// namedOne is execOne for :name queries bound from a struct.
func namedOne(ctx context.Context, e sqlx.ExtContext, query string, arg any) error {
	res, err := sqlx.NamedExecContext(ctx, e, query, arg)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// inTx runs fn in a transaction, or in the store's own one when it is
// already bound to a transaction.
func (s *SQLStore) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rolling back: %w", rbErr))
		}
		return err
	}
	return tx.Commit()
}
