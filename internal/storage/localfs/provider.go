// Package localfs stores media blobs on the local filesystem.
package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Provider writes blobs under a root directory and serves them from a
// configured base URL.
type Provider struct {
	root    string
	baseURL string
}

// New creates a filesystem storage provider rooted at root.
func New(root, baseURL string) (*Provider, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Provider{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Put writes a blob under key, rejecting keys that escape the root.
func (p *Provider) Put(ctx context.Context, key string, r io.Reader) error {
	path, err := p.keyPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create media dir: %w", err)
	}

	f, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := f.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("write blob: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close blob: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// PublicURL returns the serving URL for a stored key.
func (p *Provider) PublicURL(key string) string {
	return p.baseURL + "/" + strings.TrimLeft(key, "/")
}

func (p *Provider) keyPath(key string) (string, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return "", fmt.Errorf("storage key is required")
	}
	path := filepath.Join(p.root, filepath.FromSlash(key))
	rootAbs, err := filepath.Abs(p.root)
	if err != nil {
		return "", err
	}
	pathAbs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if pathAbs != rootAbs && !strings.HasPrefix(pathAbs, rootAbs+string(filepath.Separator)) {
		return "", fmt.Errorf("storage key escapes root: %q", key)
	}
	return pathAbs, nil
}
