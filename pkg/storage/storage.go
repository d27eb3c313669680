package storage

import (
	"context"
	"fmt"

	"github.com/realmkeep/realmkeep/pkg/types"
)

// Backend defines uniform object I/O over a storage location. A "bucket"
// is a namespace under the backend root: a subdirectory for the local
// backend, a key prefix within the configured bucket for S3. Payloads are
// opaque; the backend never interprets them.
type Backend interface {
	// Put atomically writes an object, overwriting any existing one.
	Put(ctx context.Context, bucket, key string, data []byte) error

	// Get returns an object's bytes, or a NotFound error.
	Get(ctx context.Context, bucket, key string) ([]byte, error)

	// List returns the keys under a prefix, relative to the bucket.
	// Order is unspecified; pagination is handled internally.
	List(ctx context.Context, bucket, prefix string) ([]string, error)

	// UploadTree mirrors a local directory tree under the bucket.
	UploadTree(ctx context.Context, bucket, localDir string) error

	// DownloadTree materialises the bucket contents as a local tree.
	DownloadTree(ctx context.Context, bucket, localDir string) error

	// Delete removes every object under a prefix.
	Delete(ctx context.Context, bucket, prefix string) error
}

// Config selects and parameterises a backend.
type Config struct {
	Type  string      `yaml:"type" json:"type"`
	Local LocalConfig `yaml:"local" json:"local"`
	S3    S3Config    `yaml:"s3" json:"s3"`
}

// LocalConfig configures the filesystem backend.
type LocalConfig struct {
	BaseDir string `yaml:"base_dir" json:"base_dir"`
}

// S3Config configures the S3 backend. When the access key pair is empty
// the ambient credential chain is used (pod service-account style).
type S3Config struct {
	Bucket          string `yaml:"bucket" json:"bucket"`
	Region          string `yaml:"region" json:"region"`
	AccessKeyID     string `yaml:"aws_access_key_id" json:"aws_access_key_id"`
	SecretAccessKey string `yaml:"aws_secret_access_key" json:"aws_secret_access_key"`
}

// New constructs the backend named by the config.
func New(ctx context.Context, cfg Config) (Backend, error) {
	switch cfg.Type {
	case "", "local":
		return NewLocal(cfg.Local)
	case "s3":
		return NewS3(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("%w: unknown storage type %q", types.ErrConfig, cfg.Type)
	}
}
