package blob

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	apperrors "sjsage522/estateworker/pkg/errors"
)

// LocalStore writes objects under a root directory. The reference of an
// object is its file path.
type LocalStore struct {
	root string
}

// NewLocalStore creates a store rooted at dir
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperrors.NewBlob("local", "failed to create output directory", err)
	}
	return &LocalStore{root: dir}, nil
}

func (s *LocalStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", apperrors.NewValidation("local", "object key escapes the output directory: "+key)
	}

	path := filepath.Join(s.root, clean)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", apperrors.NewBlob("local", "failed to create directory", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", apperrors.NewBlob("local", "failed to write "+path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", apperrors.NewBlob("local", "failed to move "+path, err)
	}
	return path, nil
}
