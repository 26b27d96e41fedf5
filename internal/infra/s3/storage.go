package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
)

const defaultSignedTTL = 24 * time.Hour

var ErrStorageUnavailable = errors.New("object storage is unavailable")

// Storage keeps generated artifacts (audio narrations, pdf exports) in one bucket.
type Storage struct {
	client     *minio.Client
	bucket     string
	publicBase string
	signedTTL  time.Duration

	ensureOnce sync.Once
	ensureErr  error
}

func NewStorage(client *minio.Client, bucket, publicBase string, signedTTL time.Duration) *Storage {
	if signedTTL <= 0 {
		signedTTL = defaultSignedTTL
	}
	return &Storage{
		client:     client,
		bucket:     strings.TrimSpace(bucket),
		publicBase: strings.TrimRight(strings.TrimSpace(publicBase), "/"),
		signedTTL:  signedTTL,
	}
}

func (s *Storage) ensureBucket(ctx context.Context) error {
	if s == nil || s.client == nil {
		return ErrStorageUnavailable
	}
	if s.bucket == "" {
		return fmt.Errorf("s3 bucket is empty")
	}

	s.ensureOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.ensureErr = err
			return
		}
		if exists {
			return
		}
		s.ensureErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
	})

	if s.ensureErr != nil {
		return fmt.Errorf("ensure s3 bucket %q: %w", s.bucket, s.ensureErr)
	}
	return nil
}

func (s *Storage) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if key == "" || len(data) == 0 {
		return fmt.Errorf("object key and body are required")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}

	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put object to s3: %w", err)
	}
	return nil
}

// URL returns a stable public link when a public base is configured and a
// presigned link otherwise.
func (s *Storage) URL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("object key is required")
	}
	if s != nil && s.publicBase != "" {
		return s.publicBase + "/" + s.bucket + "/" + key, nil
	}
	return s.PresignGet(ctx, key)
}

func (s *Storage) PresignGet(ctx context.Context, key string) (string, error) {
	if s == nil || s.client == nil {
		return "", ErrStorageUnavailable
	}
	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.signedTTL, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign get object: %w", err)
	}
	return presigned.String(), nil
}

func (s *Storage) Delete(ctx context.Context, key string) error {
	if s == nil || s.client == nil || key == "" {
		return nil
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}
