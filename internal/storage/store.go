// Package storage implements the pack entry store on top of PostgreSQL.
// Every exported operation runs inside its own transaction; multi-step units
// (import apply, toggle) share one via Transact.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"log/slog"

	"github.com/packdb/packdb/core/logger"
	"github.com/packdb/packdb/internal/entry"
)

// MatchMode selects how ListEntries matches pack names.
type MatchMode int

const (
	// MatchExact matches a single pack by its exact name.
	MatchExact MatchMode = iota
	// MatchPrefix matches every pack whose name starts with the given
	// pattern (SQL LIKE with a trailing wildcard appended here, so callers
	// never build LIKE patterns themselves).
	MatchPrefix
)

// Queries is the set of entry store operations. It is implemented by both
// Store (one transaction per call) and the transaction handle passed to the
// function given to Transact.
type Queries interface {
	ListPacks(ctx context.Context, ownerID int64) ([]string, error)
	PackExists(ctx context.Context, ownerID int64, pack string) (bool, error)
	RemovePack(ctx context.Context, ownerID int64, pack string) (bool, error)
	ListEntries(ctx context.Context, ownerID int64, pack string, mode MatchMode) ([]entry.Entry, error)
	EntryExists(ctx context.Context, ownerID int64, pack string, e entry.Entry) (bool, error)
	ToggleEntry(ctx context.Context, ownerID int64, pack string, e entry.Entry, onlyRemove bool) (bool, error)
	RemoveAllReferencesTo(ctx context.Context, ownerID int64, externalPack string) error
	CountEntries(ctx context.Context, ownerID int64) (int, error)
	InsertMissing(ctx context.Context, ownerID int64, pack string, entries []entry.Entry) (int, error)
}

// Store provides Queries over a connection pool.
type Store struct {
	db *sqlx.DB
}

// New wraps a connected pool.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Transact runs fn inside a single transaction, rolling back on error or
// panic and committing otherwise.
func (s *Store) Transact(ctx context.Context, fn func(q Queries) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(&txQueries{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			logger.SVCPacks.Warn("rollback failed",
				slog.String("event", "store.rollback"),
				slog.String("err", rbErr.Error()),
			)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) ListPacks(ctx context.Context, ownerID int64) (packs []string, err error) {
	err = s.Transact(ctx, func(q Queries) error {
		packs, err = q.ListPacks(ctx, ownerID)
		return err
	})
	return packs, err
}

func (s *Store) PackExists(ctx context.Context, ownerID int64, pack string) (ok bool, err error) {
	err = s.Transact(ctx, func(q Queries) error {
		ok, err = q.PackExists(ctx, ownerID, pack)
		return err
	})
	return ok, err
}

func (s *Store) RemovePack(ctx context.Context, ownerID int64, pack string) (removed bool, err error) {
	err = s.Transact(ctx, func(q Queries) error {
		removed, err = q.RemovePack(ctx, ownerID, pack)
		return err
	})
	return removed, err
}

func (s *Store) ListEntries(ctx context.Context, ownerID int64, pack string, mode MatchMode) (entries []entry.Entry, err error) {
	err = s.Transact(ctx, func(q Queries) error {
		entries, err = q.ListEntries(ctx, ownerID, pack, mode)
		return err
	})
	return entries, err
}

func (s *Store) EntryExists(ctx context.Context, ownerID int64, pack string, e entry.Entry) (ok bool, err error) {
	err = s.Transact(ctx, func(q Queries) error {
		ok, err = q.EntryExists(ctx, ownerID, pack, e)
		return err
	})
	return ok, err
}

// ToggleEntry keeps its read and write inside one transaction so concurrent
// toggles cannot race into a duplicate key violation.
func (s *Store) ToggleEntry(ctx context.Context, ownerID int64, pack string, e entry.Entry, onlyRemove bool) (added bool, err error) {
	err = s.Transact(ctx, func(q Queries) error {
		added, err = q.ToggleEntry(ctx, ownerID, pack, e, onlyRemove)
		return err
	})
	return added, err
}

func (s *Store) RemoveAllReferencesTo(ctx context.Context, ownerID int64, externalPack string) error {
	return s.Transact(ctx, func(q Queries) error {
		return q.RemoveAllReferencesTo(ctx, ownerID, externalPack)
	})
}

func (s *Store) CountEntries(ctx context.Context, ownerID int64) (n int, err error) {
	err = s.Transact(ctx, func(q Queries) error {
		n, err = q.CountEntries(ctx, ownerID)
		return err
	})
	return n, err
}

func (s *Store) InsertMissing(ctx context.Context, ownerID int64, pack string, entries []entry.Entry) (n int, err error) {
	err = s.Transact(ctx, func(q Queries) error {
		n, err = q.InsertMissing(ctx, ownerID, pack, entries)
		return err
	})
	return n, err
}

type txQueries struct {
	tx *sqlx.Tx
}

type entryRow struct {
	Code string `db:"entry_type"`
	Data string `db:"entry_data"`
}

func decodeRows(rows []entryRow) ([]entry.Entry, error) {
	entries := make([]entry.Entry, 0, len(rows))
	for _, r := range rows {
		typ, err := entry.ParseType(r.Code)
		if err != nil {
			// A row with an unknown code means the relation was written
			// around this package. Fail loudly instead of dropping it.
			return nil, fmt.Errorf("decode entry %q: %w", r.Data, err)
		}
		entries = append(entries, entry.Entry{Type: typ, Data: r.Data})
	}
	return entries, nil
}

func (q *txQueries) ListPacks(ctx context.Context, ownerID int64) ([]string, error) {
	var packs []string
	err := q.tx.SelectContext(ctx, &packs,
		`SELECT DISTINCT pack_name FROM pack_entries WHERE owner_id = $1 ORDER BY pack_name`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list packs: %w", err)
	}
	return packs, nil
}

func (q *txQueries) PackExists(ctx context.Context, ownerID int64, pack string) (bool, error) {
	var exists bool
	err := q.tx.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM pack_entries WHERE owner_id = $1 AND pack_name = $2)`,
		ownerID, pack,
	)
	if err != nil {
		return false, fmt.Errorf("pack exists: %w", err)
	}
	return exists, nil
}

func (q *txQueries) RemovePack(ctx context.Context, ownerID int64, pack string) (bool, error) {
	res, err := q.tx.ExecContext(ctx,
		`DELETE FROM pack_entries WHERE owner_id = $1 AND pack_name = $2`,
		ownerID, pack,
	)
	if err != nil {
		return false, fmt.Errorf("remove pack: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove pack rows: %w", err)
	}
	logger.SVCPacks.Debug("pack removed",
		slog.String("event", "store.remove_pack"),
		slog.Int64("owner_id", ownerID),
		slog.String("pack", pack),
		slog.Int64("rows", affected),
	)
	return affected > 0, nil
}

func (q *txQueries) ListEntries(ctx context.Context, ownerID int64, pack string, mode MatchMode) ([]entry.Entry, error) {
	// The PK index makes this ordering stable across pages; the schema has
	// no insertion timestamp to order by.
	query := `SELECT entry_type, entry_data FROM pack_entries
		WHERE owner_id = $1 AND pack_name = $2
		ORDER BY pack_name, entry_type, entry_data`
	arg := pack
	if mode == MatchPrefix {
		query = `SELECT entry_type, entry_data FROM pack_entries
			WHERE owner_id = $1 AND pack_name LIKE $2
			ORDER BY pack_name, entry_type, entry_data`
		arg = pack + "%"
	}
	var rows []entryRow
	if err := q.tx.SelectContext(ctx, &rows, query, ownerID, arg); err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return decodeRows(rows)
}

func (q *txQueries) EntryExists(ctx context.Context, ownerID int64, pack string, e entry.Entry) (bool, error) {
	var exists bool
	err := q.tx.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM pack_entries
			WHERE owner_id = $1 AND pack_name = $2 AND entry_type = $3 AND entry_data = $4)`,
		ownerID, pack, e.Type.Code(), e.Data,
	)
	if err != nil {
		return false, fmt.Errorf("entry exists: %w", err)
	}
	return exists, nil
}

func (q *txQueries) ToggleEntry(ctx context.Context, ownerID int64, pack string, e entry.Entry, onlyRemove bool) (bool, error) {
	if err := e.Validate(); err != nil {
		return false, err
	}
	present, err := q.EntryExists(ctx, ownerID, pack, e)
	if err != nil {
		return false, err
	}
	switch {
	case present:
		_, err = q.tx.ExecContext(ctx,
			`DELETE FROM pack_entries
				WHERE owner_id = $1 AND pack_name = $2 AND entry_type = $3 AND entry_data = $4`,
			ownerID, pack, e.Type.Code(), e.Data,
		)
		if err != nil {
			return false, fmt.Errorf("toggle delete: %w", err)
		}
		return false, nil
	case onlyRemove:
		return true, nil
	default:
		_, err = q.tx.ExecContext(ctx,
			`INSERT INTO pack_entries (owner_id, pack_name, entry_type, entry_data)
				VALUES ($1, $2, $3, $4)`,
			ownerID, pack, e.Type.Code(), e.Data,
		)
		if err != nil {
			return false, fmt.Errorf("toggle insert: %w", err)
		}
		return true, nil
	}
}

func (q *txQueries) RemoveAllReferencesTo(ctx context.Context, ownerID int64, externalPack string) error {
	res, err := q.tx.ExecContext(ctx,
		`DELETE FROM pack_entries WHERE owner_id = $1 AND entry_type = $2 AND entry_data = $3`,
		ownerID, entry.TypeExternalPack.Code(), externalPack,
	)
	if err != nil {
		return fmt.Errorf("remove references: %w", err)
	}
	affected, _ := res.RowsAffected()
	logger.SVCPacks.Debug("external pack references scrubbed",
		slog.String("event", "store.scrub"),
		slog.Int64("owner_id", ownerID),
		slog.String("external_pack", externalPack),
		slog.Int64("rows", affected),
	)
	return nil
}

func (q *txQueries) CountEntries(ctx context.Context, ownerID int64) (int, error) {
	var n int
	err := q.tx.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM pack_entries WHERE owner_id = $1`,
		ownerID,
	)
	if err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

func (q *txQueries) InsertMissing(ctx context.Context, ownerID int64, pack string, entries []entry.Entry) (int, error) {
	inserted := 0
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return inserted, err
		}
		res, err := q.tx.ExecContext(ctx,
			`INSERT INTO pack_entries (owner_id, pack_name, entry_type, entry_data)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT DO NOTHING`,
			ownerID, pack, e.Type.Code(), e.Data,
		)
		if err != nil {
			return inserted, fmt.Errorf("insert entry: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return inserted, fmt.Errorf("insert entry rows: %w", err)
		}
		inserted += int(affected)
	}
	return inserted, nil
}
