package storage

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"

	"github.com/geoharvest/m2m-harvester/pkg/logging"
)

// Config holds the object-storage destination.
type Config struct {
	// Endpoint is the S3-compatible endpoint URL (scheme selects SSL).
	Endpoint string

	// AccessKey and SecretKey authenticate against the store.
	AccessKey string
	SecretKey string

	// Bucket is the destination bucket.
	Bucket string

	// Prefix is prepended to every artifact name to form the object key.
	Prefix string

	// Region is optional; S3-compatible stores often ignore it.
	Region string
}

// MinioStore is an ObjectStore backed by any S3-compatible endpoint.
type MinioStore struct {
	client *minio.Client
	cfg    Config
	logger zerolog.Logger
}

// NewMinioStore creates a store from config and verifies the bucket exists.
func NewMinioStore(ctx context.Context, cfg Config) (*MinioStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("storage endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}

	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid storage endpoint: %w", err)
	}
	endpoint := u.Host
	if endpoint == "" {
		endpoint = cfg.Endpoint
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: u.Scheme == "https",
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %q does not exist", cfg.Bucket)
	}

	return &MinioStore{
		client: client,
		cfg:    cfg,
		logger: logging.NewLogger("storage"),
	}, nil
}

// Put uploads the file at path as prefix+name. S3 put semantics make the
// upload an overwrite, never a duplicate.
func (s *MinioStore) Put(ctx context.Context, name, path string) error {
	key := s.cfg.Prefix + name

	info, err := s.client.FPutObject(ctx, s.cfg.Bucket, key, path, minio.PutObjectOptions{
		ContentType: contentTypeFor(name),
	})
	if err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}

	s.logger.Debug().
		Str("bucket", s.cfg.Bucket).
		Str("key", key).
		Int64("size", info.Size).
		Msg("Uploaded artifact")

	return nil
}

// contentTypeFor maps common imagery extensions to media types.
func contentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jp2":
		return "image/jp2"
	case ".tif", ".tiff":
		return "image/tiff"
	case ".xml":
		return "application/xml"
	case ".zip":
		return "application/zip"
	default:
		return "application/octet-stream"
	}
}
