package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when an object id does not resolve.
var ErrNotFound = errors.New("storage: object not found")

// Object is the locator returned for a stored blob. The workflow only persists it.
type Object struct {
	URL      string
	ID       string
	Checksum string
	Size     int64
	Name     string
}

// BlobStore keeps uploaded document files.
type BlobStore interface {
	Store(ctx context.Context, r io.Reader, originalName, folder, contentType string) (Object, error)
	Open(ctx context.Context, id string) (io.ReadCloser, error)
	Delete(ctx context.Context, id string) error
}

// objectKey builds "<folder>/<yyyy>/<mm>/<uuid><ext>" for a new upload.
func objectKey(folder, originalName string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	folder = strings.Trim(folder, "/")
	name := uuid.NewString() + ext
	return path.Join(folder, now.Format("2006"), now.Format("01"), name)
}

// hashingReader tees the stream into a sha256 digest and counts bytes.
type hashingReader struct {
	r    io.Reader
	h    hashWriter
	size int64
}

type hashWriter interface {
	io.Writer
	Sum(b []byte) []byte
}

func newHashingReader(r io.Reader) *hashingReader {
	return &hashingReader{r: r, h: sha256.New()}
}

func (hr *hashingReader) Read(p []byte) (int, error) {
	n, err := hr.r.Read(p)
	if n > 0 {
		hr.h.Write(p[:n])
		hr.size += int64(n)
	}
	return n, err
}

func (hr *hashingReader) checksum() string {
	return hex.EncodeToString(hr.h.Sum(nil))
}

func validKey(id string) error {
	if id == "" || strings.Contains(id, "..") || strings.HasPrefix(id, "/") {
		return fmt.Errorf("storage: invalid object id %q", id)
	}
	return nil
}
