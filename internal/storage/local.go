package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore implements ObjectStore on a local directory. Meant for
// development and tests; the "public" URL is a file:// address unless a
// base URL is given.
type LocalStore struct {
	root      string
	publicURL string
}

// NewLocal creates a directory-backed ObjectStore rooted at root.
func NewLocal(root, publicURL string) *LocalStore {
	return &LocalStore{root: root, publicURL: strings.TrimSuffix(publicURL, "/")}
}

// Put writes the object to disk under root/key.
func (s *LocalStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	full := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0750); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	if err := os.WriteFile(full, data, 0600); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	if s.publicURL != "" {
		return s.publicURL + "/" + key, nil
	}
	return "file://" + full, nil
}

var _ ObjectStore = (*LocalStore)(nil)
