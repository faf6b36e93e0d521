package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"jotter/internal/models"
)

const (
	s3BackendName     = "s3"
	s3PutPartSize     = 5 << 20 // minimum S3 multipart part size
	s3ConnectTimeout  = 10 * time.Second
	s3NoSuchKeyCode   = "NoSuchKey"
	s3NoSuchObjectErr = "The specified key does not exist."
)

// S3Config configures an S3-compatible bucket backend.
type S3Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Prefix    string
}

// S3Store stores blobs as objects in one bucket. Object names are the key
// under an optional prefix, so the namespace stays flat.
type S3Store struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewS3Store dials an S3-compatible endpoint and ensures the bucket exists.
func NewS3Store(cfg S3Config) (*S3Store, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("s3 credentials are required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s3ConnectTimeout)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return newS3Store(client, cfg.Bucket, cfg.Prefix), nil
}

func newS3Store(client *minio.Client, bucket, prefix string) *S3Store {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix != "" {
		prefix += "/"
	}
	return &S3Store{client: client, bucket: bucket, prefix: prefix}
}

// Backend names the storage backend.
func (s *S3Store) Backend() string {
	return s3BackendName
}

// Put uploads r under key. S3 object writes are atomic: a failed upload
// never becomes visible.
func (s *S3Store) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	if s == nil || s.client == nil {
		return 0, fmt.Errorf("blob store is not configured")
	}
	if r == nil {
		return 0, fmt.Errorf("reader is required")
	}
	if err := ValidateKey(key); err != nil {
		return 0, err
	}
	info, err := s.client.PutObject(ctx, s.bucket, s.objectName(key), contextReader{ctx: ctx, r: r}, -1, minio.PutObjectOptions{
		ContentType: models.ContentTypeForKey(key),
		PartSize:    s3PutPartSize,
	})
	if err != nil {
		return 0, err
	}
	return info.Size, nil
}

// Open returns a lazily-read object stream.
func (s *S3Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("blob store is not configured")
	}
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, s.objectName(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, mapS3Error(err)
	}
	// GetObject is lazy; Stat surfaces a missing key before the caller reads.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, mapS3Error(err)
	}
	return obj, nil
}

// Stat reports whether key exists and its size.
func (s *S3Store) Stat(ctx context.Context, key string) (BlobStat, error) {
	var zero BlobStat
	if s == nil || s.client == nil {
		return zero, fmt.Errorf("blob store is not configured")
	}
	if err := ValidateKey(key); err != nil {
		return zero, err
	}
	info, err := s.client.StatObject(ctx, s.bucket, s.objectName(key), minio.StatObjectOptions{})
	if err != nil {
		if errors.Is(mapS3Error(err), ErrNotFound) {
			return zero, nil
		}
		return zero, err
	}
	return BlobStat{Exists: true, SizeBytes: info.Size, ModTime: info.LastModified}, nil
}

// Delete removes an object. S3 reports success for absent keys.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("blob store is not configured")
	}
	if err := ValidateKey(key); err != nil {
		return err
	}
	err := s.client.RemoveObject(ctx, s.bucket, s.objectName(key), minio.RemoveObjectOptions{})
	if err != nil && errors.Is(mapS3Error(err), ErrNotFound) {
		return nil
	}
	return err
}

// List returns every object under the prefix whose name is a valid key.
func (s *S3Store) List(ctx context.Context) ([]BlobInfo, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("blob store is not configured")
	}
	out := []BlobInfo{}
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: s.prefix}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		key, ok := s.keyFromObjectName(obj.Key)
		if !ok {
			continue
		}
		out = append(out, BlobInfo{Key: key, SizeBytes: obj.Size, ModTime: obj.LastModified})
	}
	return out, nil
}

func (s *S3Store) objectName(key string) string {
	return s.prefix + key
}

func (s *S3Store) keyFromObjectName(name string) (string, bool) {
	if !strings.HasPrefix(name, s.prefix) {
		return "", false
	}
	key := strings.TrimPrefix(name, s.prefix)
	if ValidateKey(key) != nil {
		return "", false
	}
	return key, true
}

func mapS3Error(err error) error {
	if err == nil {
		return nil
	}
	resp := minio.ToErrorResponse(err)
	if resp.Code == s3NoSuchKeyCode || resp.Message == s3NoSuchObjectErr {
		return fmt.Errorf("%w: %s", ErrNotFound, resp.Key)
	}
	return err
}
