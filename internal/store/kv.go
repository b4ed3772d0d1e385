package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetKV returns the value stored under key. ok is false when the key is absent.
func (db *DB) GetKV(ctx context.Context, key string) (value []byte, ok bool, err error) {
	err = db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get kv[%s]: %w", key, err)
	}
	return value, true, nil
}

// PutKV overwrites the whole value stored under key.
func (db *DB) PutKV(ctx context.Context, key string, value []byte) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("put kv[%s]: %w", key, err)
	}
	return nil
}

// DeleteKV removes key. Deleting an absent key is not an error.
func (db *DB) DeleteKV(ctx context.Context, key string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete kv[%s]: %w", key, err)
	}
	return nil
}
