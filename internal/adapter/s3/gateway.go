// Package s3 publishes storage objects to an S3-compatible bucket.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/couchcryptid/reanalysis-climate-etl/internal/domain"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config locates the bucket.
type Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Gateway reads and writes objects in one bucket.
type Gateway struct {
	client *minio.Client
	bucket string
}

// New creates a Gateway. It does not contact the server.
func New(cfg Config) (*Gateway, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return &Gateway{client: client, bucket: cfg.Bucket}, nil
}

// EnsureBucket creates the bucket if it does not exist.
func (g *Gateway) EnsureBucket(ctx context.Context) error {
	ok, err := g.client.BucketExists(ctx, g.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", g.bucket, err)
	}
	if ok {
		return nil
	}
	if err := g.client.MakeBucket(ctx, g.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", g.bucket, err)
	}
	return nil
}

// Get downloads the object at key.
func (g *Gateway) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := g.client.GetObject(ctx, g.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapError(key, err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, mapError(key, err)
	}
	return data, nil
}

// Put uploads data to key.
func (g *Gateway) Put(ctx context.Context, key string, data []byte) error {
	_, err := g.client.PutObject(ctx, g.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// ListKeys lists every key under prefix.
func (g *Gateway) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for info := range g.client.ListObjects(ctx, g.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if info.Err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, info.Err)
		}
		keys = append(keys, info.Key)
	}
	return keys, nil
}

// CheckReadiness reports whether the bucket is reachable.
func (g *Gateway) CheckReadiness(ctx context.Context) error {
	ok, err := g.client.BucketExists(ctx, g.bucket)
	if err != nil {
		return fmt.Errorf("s3 bucket %s: %w", g.bucket, err)
	}
	if !ok {
		return fmt.Errorf("s3 bucket %s does not exist", g.bucket)
	}
	return nil
}

func mapError(key string, err error) error {
	if isNotFound(err) {
		return fmt.Errorf("get %s: %w", key, domain.ErrObjectNotFound)
	}
	return fmt.Errorf("get %s: %w", key, err)
}

func isNotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchObject":
		return true
	}
	return false
}
