package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kdimtricp/humetube/internal/storage"
)

// errNilValue mirrors the NOT NULL constraint on kv.value so every driver
// rejects a nil value the same way.
var errNilValue = errors.New("nil value")

// KVStore implements storage.Store on top of the kv table.
type KVStore struct {
	db *DB
}

func NewKVStore(db *DB) *KVStore {
	return &KVStore{db: db}
}

func (s *KVStore) placeholder(n int) string {
	if s.db.dbType == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (s *KVStore) upsertQuery() string {
	return fmt.Sprintf(`
		INSERT INTO kv (key, value, updated_at) VALUES (%s, %s, CURRENT_TIMESTAMP)
		ON CONFLICT (key)
		DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		s.placeholder(1), s.placeholder(2))
}

func (s *KVStore) Set(ctx context.Context, key string, value []byte) error {
	if value == nil {
		return fmt.Errorf("failed to set %s: %w", key, errNilValue)
	}
	if _, err := s.db.conn.ExecContext(ctx, s.upsertQuery(), key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	query := fmt.Sprintf(`SELECT value FROM kv WHERE key = %s`, s.placeholder(1))

	var value []byte
	err := s.db.conn.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, nil
}

func (s *KVStore) List(ctx context.Context, prefix string) ([]storage.Entry, error) {
	var (
		rows *sql.Rows
		err  error
	)

	// A half-open key range instead of LIKE, so '%' and '_' in keys need no escaping.
	if end := storage.PrefixEnd(prefix); end != "" {
		query := fmt.Sprintf(`SELECT key, value FROM kv WHERE key >= %s AND key < %s ORDER BY key`,
			s.placeholder(1), s.placeholder(2))
		rows, err = s.db.conn.QueryContext(ctx, query, prefix, end)
	} else {
		query := fmt.Sprintf(`SELECT key, value FROM kv WHERE key >= %s ORDER BY key`, s.placeholder(1))
		rows, err = s.db.conn.QueryContext(ctx, query, prefix)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}
	defer rows.Close()

	entries := []storage.Entry{}
	for rows.Next() {
		var e storage.Entry
		if err := rows.Scan(&e.Key, &e.Value); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return entries, nil
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	query := fmt.Sprintf(`DELETE FROM kv WHERE key = %s`, s.placeholder(1))
	if _, err := s.db.conn.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *KVStore) SetAll(ctx context.Context, entries []storage.Entry) error {
	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.upsertQuery())
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if e.Value == nil {
			return fmt.Errorf("failed to set %s: %w", e.Key, errNilValue)
		}
		if _, err := stmt.ExecContext(ctx, e.Key, e.Value); err != nil {
			return fmt.Errorf("failed to set %s: %w", e.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}
