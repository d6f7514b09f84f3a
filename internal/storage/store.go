// Package storage uploads pipeline artifacts to object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob" // GCS driver
	_ "gocloud.dev/blob/s3blob"  // S3 driver
)

// ObjectStore is the object-storage sink used by the loader.
type ObjectStore interface {
	// Upload copies a local file to remoteName and returns its URL.
	Upload(ctx context.Context, localPath, remoteName string) (string, error)

	// List returns object names under prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Close releases the bucket connection.
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Backend  string // "s3" | "gcs" | "local"
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string
	LocalDir string
}

// New opens the configured backend.
func New(ctx context.Context, cfg Config) (*BlobStore, error) {
	switch cfg.Backend {
	case "s3":
		return NewS3Store(ctx, cfg.Bucket, cfg.Prefix, cfg.Endpoint, cfg.Region)
	case "gcs":
		return NewGCSStore(ctx, cfg.Bucket, cfg.Prefix)
	case "local", "":
		return NewLocalStore(cfg.LocalDir, cfg.Prefix)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
}

// BlobStore implements ObjectStore over any gocloud.dev bucket.
type BlobStore struct {
	bucket  *blob.Bucket
	prefix  string
	urlBase string // public URL of the bucket root
}

// NewS3Store opens an S3-compatible bucket.
// Works with AWS S3, MinIO and other endpoints that speak the S3 API.
func NewS3Store(ctx context.Context, bucketName, prefix, endpoint, region string) (*BlobStore, error) {
	bucketURL := fmt.Sprintf("s3://%s", bucketName)

	params := url.Values{}
	if region != "" {
		params.Set("region", region)
	}
	if endpoint != "" {
		params.Set("endpoint", endpoint)
		params.Set("s3ForcePathStyle", "true")
	}
	if len(params) > 0 {
		bucketURL = bucketURL + "?" + params.Encode()
	}

	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open S3 bucket %s: %w", bucketName, err)
	}

	base := fmt.Sprintf("https://%s.s3.amazonaws.com/", bucketName)
	if endpoint != "" {
		base = strings.TrimSuffix(endpoint, "/") + "/" + bucketName + "/"
	}
	return &BlobStore{bucket: bucket, prefix: prefix, urlBase: base}, nil
}

// NewGCSStore opens a Google Cloud Storage bucket.
func NewGCSStore(ctx context.Context, bucketName, prefix string) (*BlobStore, error) {
	bucket, err := blob.OpenBucket(ctx, fmt.Sprintf("gs://%s", bucketName))
	if err != nil {
		return nil, fmt.Errorf("open GCS bucket %s: %w", bucketName, err)
	}
	return &BlobStore{
		bucket:  bucket,
		prefix:  prefix,
		urlBase: fmt.Sprintf("https://storage.googleapis.com/%s/", bucketName),
	}, nil
}

// NewLocalStore uses a directory as the bucket.
func NewLocalStore(dir, prefix string) (*BlobStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("local storage directory is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("create storage directory %s: %w", abs, err)
	}
	bucket, err := fileblob.OpenBucket(abs, nil)
	if err != nil {
		return nil, fmt.Errorf("open local bucket %s: %w", abs, err)
	}
	return &BlobStore{
		bucket:  bucket,
		prefix:  prefix,
		urlBase: "file://" + filepath.ToSlash(abs) + "/",
	}, nil
}

func (s *BlobStore) key(name string) string {
	return s.prefix + strings.TrimPrefix(name, "/")
}

// Upload streams localPath into the bucket under remoteName.
func (s *BlobStore) Upload(ctx context.Context, localPath, remoteName string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	if remoteName == "" {
		remoteName = filepath.Base(localPath)
	}
	key := s.key(remoteName)

	opts := &blob.WriterOptions{ContentType: mime.TypeByExtension(filepath.Ext(remoteName))}
	if opts.ContentType == "" {
		opts.ContentType = "application/octet-stream"
	}

	w, err := s.bucket.NewWriter(ctx, key, opts)
	if err != nil {
		return "", fmt.Errorf("create writer for %s: %w", key, err)
	}
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return "", fmt.Errorf("write data to %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close writer for %s: %w", key, err)
	}

	return s.urlBase + key, nil
}

// List returns object names under prefix, relative to the store prefix.
func (s *BlobStore) List(ctx context.Context, prefix string) ([]string, error) {
	iter := s.bucket.List(&blob.ListOptions{Prefix: s.key(prefix)})

	var names []string
	for {
		obj, err := iter.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		if obj.IsDir {
			continue
		}
		names = append(names, strings.TrimPrefix(obj.Key, s.prefix))
	}
	return names, nil
}

// Exists checks whether an object is present.
func (s *BlobStore) Exists(ctx context.Context, name string) (bool, error) {
	return s.bucket.Exists(ctx, s.key(name))
}

// Close releases the bucket connection.
func (s *BlobStore) Close() error {
	if s.bucket != nil {
		return s.bucket.Close()
	}
	return nil
}
