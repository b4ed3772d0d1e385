package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
)

// SealedBackend encrypts payloads with an age X25519 identity before they
// reach the inner backend.
type SealedBackend struct {
	inner     Backend
	identity  *age.X25519Identity
	recipient *age.X25519Recipient
}

func NewSealed(inner Backend, identity *age.X25519Identity) *SealedBackend {
	return &SealedBackend{inner: inner, identity: identity, recipient: identity.Recipient()}
}

// LoadOrCreateIdentity reads the identity stored at path, generating and
// writing a new one (mode 0600) when the file does not exist.
func LoadOrCreateIdentity(path string) (*age.X25519Identity, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		id, err := age.ParseX25519Identity(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("parse key %s: %w", path, err)
		}
		return id, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read key %s: %w", path, err)
	}

	id, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create key directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(id.String()+"\n"), 0o600); err != nil {
		return nil, fmt.Errorf("write key %s: %w", path, err)
	}
	return id, nil
}

func (s *SealedBackend) Put(ctx context.Context, id string, data []byte) error {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, s.recipient)
	if err != nil {
		return fmt.Errorf("create encrypted writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("encrypt payload: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize encryption: %w", err)
	}
	return s.inner.Put(ctx, id, buf.Bytes())
}

func (s *SealedBackend) Get(ctx context.Context, id string) ([]byte, error) {
	sealed, err := s.inner.Get(ctx, id)
	if err != nil || sealed == nil {
		return nil, err
	}
	r, err := age.Decrypt(bytes.NewReader(sealed), s.identity)
	if err != nil {
		return nil, fmt.Errorf("decrypt payload: %w", err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read decrypted payload: %w", err)
	}
	return data, nil
}

func (s *SealedBackend) Delete(ctx context.Context, id string) error {
	return s.inner.Delete(ctx, id)
}

// IDs delegates to the inner backend; ids are not encrypted.
func (s *SealedBackend) IDs(ctx context.Context) ([]string, error) {
	l, ok := s.inner.(Lister)
	if !ok {
		return nil, errors.New("inner backend cannot list ids")
	}
	return l.IDs(ctx)
}

func (s *SealedBackend) DeleteMany(ctx context.Context, ids []string) error {
	if bd, ok := s.inner.(BatchDeleter); ok {
		return bd.DeleteMany(ctx, ids)
	}
	var errs []error
	for _, id := range ids {
		if err := s.inner.Delete(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ Backend      = (*SealedBackend)(nil)
	_ Lister       = (*SealedBackend)(nil)
	_ BatchDeleter = (*SealedBackend)(nil)
)
