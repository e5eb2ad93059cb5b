package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/SmallTownDocumentary/gallery-backend/internal/config"
)

func init() {
	Register(BackendR2, NewR2)
}

// R2 talks to Cloudflare R2 through its S3-compatible API.
type R2 struct {
	client     *minio.Client
	bucket     string
	endpoint   string
	publicBase string
}

func NewR2(cfg config.StorageConfig) (Store, error) {
	u, err := url.Parse(cfg.R2Endpoint)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid R2 endpoint %q", cfg.R2Endpoint)
	}
	client, err := minio.New(u.Host, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.R2AccessKeyID, cfg.R2SecretAccessKey, ""),
		Secure:       u.Scheme != "http",
		Region:       "auto",
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("create R2 client: %w", err)
	}
	return &R2{
		client:     client,
		bucket:     cfg.R2Bucket,
		endpoint:   strings.TrimRight(cfg.R2Endpoint, "/"),
		publicBase: cfg.R2PublicBaseURL,
	}, nil
}

func (s *R2) Name() Backend { return BackendR2 }

func (s *R2) Put(ctx context.Context, key string, r io.Reader, size int64, opts PutOptions) (Object, error) {
	info, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType:  opts.ContentType,
		CacheControl: opts.CacheControl,
	})
	if err != nil {
		return Object{}, fmt.Errorf("put %s: %w", key, err)
	}
	return Object{Key: key, URL: s.PublicURL(key), Size: info.Size}, nil
}

func (s *R2) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", key, err)
}

func (s *R2) Delete(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

// PublicURL prefers R2_PUBLIC_BASE_URL and falls back to the bucket path on the endpoint.
func (s *R2) PublicURL(key string) string {
	if s.publicBase != "" {
		return joinURL(s.publicBase, key)
	}
	return joinURL(s.endpoint+"/"+s.bucket, key)
}

func (s *R2) PresignPut(ctx context.Context, key string, expires time.Duration) (string, error) {
	u, err := s.client.PresignedPutObject(ctx, s.bucket, key, expires)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return u.String(), nil
}
