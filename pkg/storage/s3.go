package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/realmkeep/realmkeep/pkg/types"
)

// S3 implements Backend against an S3-compatible object store. All
// objects live in one configured bucket; the Backend bucket argument
// becomes a key prefix within it.
type S3 struct {
	client *s3.Client
	bucket string
}

// NewS3 creates an S3 backend. Ambient credentials (pod service-account
// style) are used when no explicit access key pair is configured.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: s3 storage requires bucket", types.ErrConfig)
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load AWS config: %v", types.ErrConfig, err)
	}

	return &S3{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.Bucket,
	}, nil
}

func (b *S3) objectKey(bucket, key string) string {
	if bucket == "" {
		return key
	}
	return path.Join(bucket, key)
}

// Put uploads an object. S3 writes are atomic by contract.
func (b *S3) Put(ctx context.Context, bucket, key string, data []byte) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(bucket, key)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("%w: put %s/%s: %v", types.ErrTransport, bucket, key, err)
	}
	return nil
}

// Get downloads an object, failing with NotFound when absent.
func (b *S3) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(bucket, key)),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("%w: object %s/%s", types.ErrNotFound, bucket, key)
		}
		return nil, fmt.Errorf("%w: get %s/%s: %v", types.ErrTransport, bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s/%s: %v", types.ErrTransport, bucket, key, err)
	}
	return data, nil
}

// List pages through ListObjectsV2 and returns keys relative to the
// bucket prefix.
func (b *S3) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	base := b.objectKey(bucket, prefix)
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(base),
	})

	strip := ""
	if bucket != "" {
		strip = bucket + "/"
	}

	var keys []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: list %s: %v", types.ErrTransport, base, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, strings.TrimPrefix(aws.ToString(obj.Key), strip))
		}
	}
	return keys, nil
}

// UploadTree mirrors a local directory under the bucket prefix.
func (b *S3) UploadTree(ctx context.Context, bucket, localDir string) error {
	return filepath.WalkDir(localDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(localDir, p)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", p, err)
		}
		return b.Put(ctx, bucket, filepath.ToSlash(rel), data)
	})
}

// DownloadTree materialises the bucket prefix as a local tree.
func (b *S3) DownloadTree(ctx context.Context, bucket, localDir string) error {
	keys, err := b.List(ctx, bucket, "")
	if err != nil {
		return err
	}
	for _, key := range keys {
		data, err := b.Get(ctx, bucket, key)
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

// Delete removes every object under a prefix.
func (b *S3) Delete(ctx context.Context, bucket, prefix string) error {
	keys, err := b.List(ctx, bucket, prefix)
	if err != nil {
		return err
	}
	for _, key := range keys {
		_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(b.objectKey(bucket, key)),
		})
		if err != nil {
			return fmt.Errorf("%w: delete %s/%s: %v", types.ErrTransport, bucket, key, err)
		}
	}
	return nil
}
