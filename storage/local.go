package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// LocalStore writes blobs under a directory on disk.
type LocalStore struct {
	root    string
	baseURL string
	now     func() time.Time
}

func NewLocalStore(root, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(root, os.ModePerm); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &LocalStore{root: root, baseURL: baseURL, now: time.Now}, nil
}

func (s *LocalStore) Store(ctx context.Context, r io.Reader, originalName, folder, contentType string) (Object, error) {
	key := objectKey(folder, originalName, s.now())
	full := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), os.ModePerm); err != nil {
		return Object{}, fmt.Errorf("create object directory: %w", err)
	}

	f, err := os.Create(full)
	if err != nil {
		return Object{}, fmt.Errorf("create object: %w", err)
	}
	hr := newHashingReader(r)
	if _, err := io.Copy(f, hr); err != nil {
		f.Close()
		os.Remove(full)
		return Object{}, fmt.Errorf("write object: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(full)
		return Object{}, fmt.Errorf("close object: %w", err)
	}

	return Object{
		URL:      s.baseURL + "/" + key,
		ID:       key,
		Checksum: hr.checksum(),
		Size:     hr.size,
		Name:     filepath.Base(key),
	}, nil
}

func (s *LocalStore) Open(ctx context.Context, id string) (io.ReadCloser, error) {
	if err := validKey(id); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.root, filepath.FromSlash(id)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

func (s *LocalStore) Delete(ctx context.Context, id string) error {
	if err := validKey(id); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(id)))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	return err
}
