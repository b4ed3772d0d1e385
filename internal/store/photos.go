package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PutPhoto stores a compressed photo payload under id, replacing any previous payload.
func (db *DB) PutPhoto(ctx context.Context, id string, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO photos (id, data, size_bytes, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, size_bytes = excluded.size_bytes`,
		id, data, len(data), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("put photo %s: %w", id, err)
	}
	return nil
}

// GetPhoto returns the payload for id, or nil when absent.
func (db *DB) GetPhoto(ctx context.Context, id string) ([]byte, error) {
	var data []byte
	err := db.QueryRowContext(ctx, `SELECT data FROM photos WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get photo %s: %w", id, err)
	}
	return data, nil
}

// DeletePhoto removes the payload for id. Missing ids are ignored.
func (db *DB) DeletePhoto(ctx context.Context, id string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM photos WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete photo %s: %w", id, err)
	}
	return nil
}

// DeletePhotos removes several payloads in one transaction.
func (db *DB) DeletePhotos(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM photos WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete photo %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}

// PhotoStats reports how many payloads are stored and their total size.
func (db *DB) PhotoStats(ctx context.Context) (count int, totalBytes int64, err error) {
	err = db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(size_bytes), 0) FROM photos`).Scan(&count, &totalBytes)
	if err != nil {
		return 0, 0, fmt.Errorf("photo stats: %w", err)
	}
	return count, totalBytes, nil
}

// PhotoIDs lists every stored photo id, oldest first.
func (db *DB) PhotoIDs(ctx context.Context) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT id FROM photos ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
