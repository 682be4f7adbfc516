package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStore keeps blobs in a Google Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
	now    func() time.Time
}

func NewGCSStore(ctx context.Context, bucket string, opts ...option.ClientOption) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("missing env var GCS_BUCKET")
	}
	opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket, now: time.Now}, nil
}

func (s *GCSStore) Store(ctx context.Context, r io.Reader, originalName, folder, contentType string) (Object, error) {
	key := objectKey(folder, originalName, s.now())
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	hr := newHashingReader(r)
	if _, err := io.Copy(w, hr); err != nil {
		_ = w.Close()
		return Object{}, fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return Object{}, fmt.Errorf("failed to close GCS writer: %w", err)
	}

	return Object{
		URL:      fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, key),
		ID:       key,
		Checksum: hr.checksum(),
		Size:     hr.size,
		Name:     path.Base(key),
	}, nil
}

func (s *GCSStore) Open(ctx context.Context, id string) (io.ReadCloser, error) {
	if err := validKey(id); err != nil {
		return nil, err
	}
	rc, err := s.client.Bucket(s.bucket).Object(id).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrNotFound
	}
	return rc, err
}

func (s *GCSStore) Delete(ctx context.Context, id string) error {
	if err := validKey(id); err != nil {
		return err
	}
	err := s.client.Bucket(s.bucket).Object(id).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return ErrNotFound
	}
	return err
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
