package storage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/realmkeep/realmkeep/pkg/types"
)

// Local implements Backend on a base directory. Buckets are
// subdirectories; writes go through a temp file plus rename so readers
// never observe a partial object.
type Local struct {
	baseDir string
}

// NewLocal creates a local backend rooted at the configured base
// directory, creating it if needed.
func NewLocal(cfg LocalConfig) (*Local, error) {
	if cfg.BaseDir == "" {
		return nil, fmt.Errorf("%w: local storage requires base_dir", types.ErrConfig)
	}
	if err := os.MkdirAll(cfg.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &Local{baseDir: cfg.BaseDir}, nil
}

func (l *Local) objectPath(bucket, key string) string {
	return filepath.Join(l.baseDir, bucket, filepath.FromSlash(key))
}

// Put writes an object atomically via temp-file + rename.
func (l *Local) Put(ctx context.Context, bucket, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := l.objectPath(bucket, key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".put-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to commit object: %w", err)
	}
	return nil
}

// Get reads an object, failing with NotFound when absent.
func (l *Local) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(l.objectPath(bucket, key))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: object %s/%s", types.ErrNotFound, bucket, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read object: %w", err)
	}
	return data, nil
}

// List returns the relative paths of all objects under a prefix.
func (l *Local) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	root := filepath.Join(l.baseDir, bucket)
	var keys []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}
	return keys, nil
}

// UploadTree mirrors a local directory under the bucket.
func (l *Local) UploadTree(ctx context.Context, bucket, localDir string) error {
	return filepath.WalkDir(localDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(localDir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		return l.Put(ctx, bucket, filepath.ToSlash(rel), data)
	})
}

// DownloadTree materialises the bucket contents into a local directory.
func (l *Local) DownloadTree(ctx context.Context, bucket, localDir string) error {
	keys, err := l.List(ctx, bucket, "")
	if err != nil {
		return err
	}
	for _, key := range keys {
		data, err := l.Get(ctx, bucket, key)
		if err != nil {
			return err
		}
		dest := filepath.Join(localDir, filepath.FromSlash(key))
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		if err := os.WriteFile(dest, data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", dest, err)
		}
	}
	return nil
}

// Delete removes every object under a prefix. Idempotent.
func (l *Local) Delete(ctx context.Context, bucket, prefix string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if prefix == "" {
		err := os.RemoveAll(filepath.Join(l.baseDir, bucket))
		if err != nil {
			return fmt.Errorf("failed to delete bucket: %w", err)
		}
		return nil
	}

	keys, err := l.List(ctx, bucket, prefix)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := os.Remove(l.objectPath(bucket, key)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete object %s: %w", key, err)
		}
	}
	return nil
}
