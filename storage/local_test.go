package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/uploads")
	require.NoError(t, err)
	ctx := context.Background()

	body := "accreditation application v1"
	obj, err := store.Store(ctx, strings.NewReader(body), "Application.PDF", "documents", "application/pdf")
	require.NoError(t, err)

	sum := sha256.Sum256([]byte(body))
	assert.Equal(t, hex.EncodeToString(sum[:]), obj.Checksum)
	assert.Equal(t, int64(len(body)), obj.Size)
	assert.True(t, strings.HasPrefix(obj.ID, "documents/"))
	assert.True(t, strings.HasSuffix(obj.ID, ".pdf"))
	assert.Equal(t, "/uploads/"+obj.ID, obj.URL)

	rc, err := store.Open(ctx, obj.ID)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, body, string(got))

	require.NoError(t, store.Delete(ctx, obj.ID))
	assert.ErrorIs(t, store.Delete(ctx, obj.ID), ErrNotFound)
	_, err = store.Open(ctx, obj.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "")
	require.NoError(t, err)

	_, err = store.Open(context.Background(), "../etc/passwd")
	assert.Error(t, err)
	assert.Error(t, store.Delete(context.Background(), "/abs"))
}
