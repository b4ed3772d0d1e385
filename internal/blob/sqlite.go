package blob

import (
	"context"

	"github.com/matheus3301/camlog/internal/store"
)

// SQLiteBackend keeps payloads in the photos table of the profile database.
type SQLiteBackend struct {
	db *store.DB
}

func NewSQLite(db *store.DB) *SQLiteBackend {
	return &SQLiteBackend{db: db}
}

func (s *SQLiteBackend) Put(ctx context.Context, id string, data []byte) error {
	return s.db.PutPhoto(ctx, id, data)
}

func (s *SQLiteBackend) Get(ctx context.Context, id string) ([]byte, error) {
	return s.db.GetPhoto(ctx, id)
}

func (s *SQLiteBackend) Delete(ctx context.Context, id string) error {
	return s.db.DeletePhoto(ctx, id)
}

func (s *SQLiteBackend) DeleteMany(ctx context.Context, ids []string) error {
	return s.db.DeletePhotos(ctx, ids)
}

func (s *SQLiteBackend) IDs(ctx context.Context) ([]string, error) {
	return s.db.PhotoIDs(ctx)
}

var (
	_ Backend      = (*SQLiteBackend)(nil)
	_ Lister       = (*SQLiteBackend)(nil)
	_ BatchDeleter = (*SQLiteBackend)(nil)
)
