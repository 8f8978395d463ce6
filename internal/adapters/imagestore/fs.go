package imagestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"busboard/internal/ports"
)

// FS stores uploaded schedule images as flat files in one directory. Names
// are caller-supplied ids, so there is no collision handling beyond the
// filesystem's own.
type FS struct {
	dir string
}

var _ ports.ImageStore = (*FS)(nil)

func NewFS(dir string) (*FS, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image directory: %w", err)
	}
	return &FS{dir: dir}, nil
}

func (f *FS) Save(ctx context.Context, name string, data []byte) (string, error) {
	path := filepath.Join(f.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write image %s: %w", name, err)
	}
	return path, nil
}

func (f *FS) Load(ctx context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", path, err)
	}
	return data, nil
}
