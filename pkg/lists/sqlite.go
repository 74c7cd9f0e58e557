package lists

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps lists in a single SQLite table. Item slices and tier
// groups are stored as JSON columns.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path, creating parent
// directories as needed.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	return newSQLiteStore(db)
}

// NewSQLiteInMemory creates a throwaway database, mostly for tests.
func NewSQLiteInMemory() (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}
	// every connection would get its own empty database
	db.SetMaxOpenConns(1)
	return newSQLiteStore(db)
}

func newSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS lists (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			items TEXT NOT NULL,
			sorted_items TEXT,
			tiers TEXT,
			completed INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			completed_at INTEGER,
			updated_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_lists_owner_created
		ON lists(owner_id, created_at DESC);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

type listRow struct {
	items, sortedItems, tiers []byte
	completedAt               sql.NullInt64
}

func encodeRow(l *SavedList) (listRow, error) {
	var (
		r   listRow
		err error
	)
	if r.items, err = json.Marshal(l.Items); err != nil {
		return r, fmt.Errorf("failed to encode items: %w", err)
	}
	if l.SortedItems != nil {
		if r.sortedItems, err = json.Marshal(l.SortedItems); err != nil {
			return r, fmt.Errorf("failed to encode sorted items: %w", err)
		}
	}
	if l.Tiers != nil {
		if r.tiers, err = json.Marshal(l.Tiers); err != nil {
			return r, fmt.Errorf("failed to encode tiers: %w", err)
		}
	}
	if l.CompletedAt != nil {
		r.completedAt = sql.NullInt64{Int64: l.CompletedAt.UnixMilli(), Valid: true}
	}
	return r, nil
}

func (s *SQLiteStore) Create(ctx context.Context, l *SavedList) error {
	if err := l.Validate(); err != nil {
		return err
	}
	r, err := encodeRow(l)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO lists (id, name, owner_id, items, sorted_items, tiers, completed, created_at, completed_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, l.ID, l.Name, l.OwnerID, string(r.items), nullText(r.sortedItems), nullText(r.tiers),
		l.Completed, l.CreatedAt.UnixMilli(), r.completedAt, l.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert list %s: %w", l.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Update(ctx context.Context, l *SavedList) error {
	if err := l.Validate(); err != nil {
		return err
	}
	r, err := encodeRow(l)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE lists
		SET name = ?, items = ?, sorted_items = ?, tiers = ?, completed = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`, l.Name, string(r.items), nullText(r.sortedItems), nullText(r.tiers),
		l.Completed, r.completedAt, l.UpdatedAt.UnixMilli(), l.ID)
	if err != nil {
		return fmt.Errorf("failed to update list %s: %w", l.ID, err)
	}
	return requireAffected(res, l.ID)
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM lists WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete list %s: %w", id, err)
	}
	return requireAffected(res, id)
}

const selectList = `
	SELECT id, name, owner_id, items, sorted_items, tiers, completed, created_at, completed_at, updated_at
	FROM lists
`

func (s *SQLiteStore) Get(ctx context.Context, id string) (*SavedList, error) {
	row := s.db.QueryRowContext(ctx, selectList+` WHERE id = ?`, id)
	l, err := scanList(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load list %s: %w", id, err)
	}
	return l, nil
}

func (s *SQLiteStore) ListByOwner(ctx context.Context, owner string) ([]*SavedList, error) {
	rows, err := s.db.QueryContext(ctx, selectList+` WHERE owner_id = ? ORDER BY created_at DESC, rowid DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to query lists: %w", err)
	}
	defer rows.Close()

	var out []*SavedList
	for rows.Next() {
		l, err := scanList(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan list: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate lists: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanList(sc scanner) (*SavedList, error) {
	var (
		l                      SavedList
		items                  string
		sortedItems, tiersJSON sql.NullString
		createdAt, updatedAt   int64
		completedAt            sql.NullInt64
	)
	if err := sc.Scan(&l.ID, &l.Name, &l.OwnerID, &items, &sortedItems, &tiersJSON,
		&l.Completed, &createdAt, &completedAt, &updatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(items), &l.Items); err != nil {
		return nil, fmt.Errorf("failed to decode items: %w", err)
	}
	if sortedItems.Valid {
		if err := json.Unmarshal([]byte(sortedItems.String), &l.SortedItems); err != nil {
			return nil, fmt.Errorf("failed to decode sorted items: %w", err)
		}
	}
	if tiersJSON.Valid {
		if err := json.Unmarshal([]byte(tiersJSON.String), &l.Tiers); err != nil {
			return nil, fmt.Errorf("failed to decode tiers: %w", err)
		}
	}

	l.CreatedAt = time.UnixMilli(createdAt).UTC()
	l.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	if completedAt.Valid {
		t := time.UnixMilli(completedAt.Int64).UTC()
		l.CompletedAt = &t
	}
	return &l, nil
}

func nullText(b []byte) sql.NullString {
	if b == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

func requireAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
