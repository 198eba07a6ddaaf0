package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/coss1333/Qr-market/internal/domain/model"
	"github.com/coss1333/Qr-market/internal/store"
)

// FSStore keeps blobs as files named by digest under a root directory.
type FSStore struct {
	dir string
}

var _ store.BlobStore = (*FSStore)(nil)

func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &FSStore{dir: dir}, nil
}

func (s *FSStore) Save(_ context.Context, data []byte) (string, error) {
	handle := Handle(data)
	d, _ := digest(handle)
	path := filepath.Join(s.dir, d)

	if _, err := os.Stat(path); err == nil {
		return handle, nil
	}

	tmp, err := os.CreateTemp(s.dir, ".blob-*")
	if err != nil {
		return "", fmt.Errorf("create temp blob: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("commit blob: %w", err)
	}
	return handle, nil
}

func (s *FSStore) Load(_ context.Context, handle string) ([]byte, error) {
	d, err := digest(handle)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, d))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: blob %s", model.ErrNotFound, handle)
	}
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", handle, err)
	}
	return data, nil
}
