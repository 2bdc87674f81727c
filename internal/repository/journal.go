package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Entity names a table whose rows are replayed from the journal.
type Entity string

const (
	EntityPlatform Entity = "platform"
	EntityKey      Entity = "key"
	EntityWorkflow Entity = "workflow"
	EntityActivity Entity = "activity"
)

// JournalEntry records that a row changed while the primary was away.
// Only the row's identity is kept; its content is read back from the
// fallback at replay time.
type JournalEntry struct {
	Seq       int64     `db:"seq"`
	Entity    Entity    `db:"entity"`
	TenantID  string    `db:"tenant_id"`
	EntityID  string    `db:"entity_id"`
	CreatedAt time.Time `db:"created_at"`
}

func (s *SQLStore) AppendJournal(ctx context.Context, e JournalEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.q.NamedExecContext(ctx, `
		INSERT INTO sync_journal (entity, tenant_id, entity_id, created_at)
		VALUES (:entity, :tenant_id, :entity_id, :created_at)`, e)
	if err != nil {
		return fmt.Errorf("appending to journal: %w", err)
	}
	return nil
}

// Journaled runs fn against a store bound to one transaction and appends
// e in the same transaction, so a change is never kept without its entry.
func (s *SQLStore) Journaled(ctx context.Context, e JournalEntry, fn func(*SQLStore) error) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		bound := &SQLStore{db: s.db, q: tx, tx: tx, dialect: s.dialect}
		if err := fn(bound); err != nil {
			return err
		}
		return bound.AppendJournal(ctx, e)
	})
}

// Journal returns up to limit entries, oldest first.
func (s *SQLStore) Journal(ctx context.Context, limit int) ([]JournalEntry, error) {
	entries := []JournalEntry{}
	err := s.sel(ctx, &entries,
		`SELECT seq, entity, tenant_id, entity_id, created_at FROM sync_journal ORDER BY seq LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("reading journal: %w", err)
	}
	return entries, nil
}

func (s *SQLStore) DropJournal(ctx context.Context, seq int64) error {
	if _, err := s.exec(ctx, `DELETE FROM sync_journal WHERE seq = ?`, seq); err != nil {
		return fmt.Errorf("dropping journal entry %d: %w", seq, err)
	}
	return nil
}

func (s *SQLStore) JournalSize(ctx context.Context) (int, error) {
	var n int
	if err := s.get(ctx, &n, `SELECT COUNT(*) FROM sync_journal`); err != nil {
		return 0, fmt.Errorf("counting journal: %w", err)
	}
	return n, nil
}
