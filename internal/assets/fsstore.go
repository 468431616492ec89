package assets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"storyboard/internal/config"
)

// FSStore is an ObjectStore backed by the local filesystem. Keys map to
// paths under the root directory and public URLs are formed by joining the
// configured base URL with the key.
type FSStore struct {
	root    string
	baseURL string
}

// NewFSStore builds a filesystem object store from the application
// configuration.
func NewFSStore(cfg *config.Config) *FSStore {
	root := ""
	baseURL := ""
	if cfg != nil {
		root = cfg.Paths.AssetsDir
		baseURL = strings.TrimRight(cfg.Assets.PublicBaseURL, "/")
	}
	return &FSStore{root: root, baseURL: baseURL}
}

// Put writes data under key and returns its public URL.
func (s *FSStore) Put(_ context.Context, key, _ string, data []byte) (string, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return "", fmt.Errorf("fsstore put: key required")
	}
	if strings.Contains(key, "..") {
		return "", fmt.Errorf("fsstore put: key %q escapes root", key)
	}
	target := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("fsstore put: mkdir for %s: %w", key, err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", fmt.Errorf("fsstore put: write %s: %w", key, err)
	}
	if s.baseURL != "" {
		return s.baseURL + "/" + key, nil
	}
	return "file://" + target, nil
}
