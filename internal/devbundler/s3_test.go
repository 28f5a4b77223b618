package devbundler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/dmitrijs2005/helix/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 answers path-style object requests from a map.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodPut:
		b, _ := io.ReadAll(r.Body)
		f.objects[r.URL.Path] = b
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet, http.MethodHead:
		b, ok := f.objects[r.URL.Path]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			if r.Method == http.MethodGet {
				_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>not found</Message></Error>`)
			}
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write(b)
		}
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestS3Blobs(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}}
	ts := httptest.NewServer(fake)
	t.Cleanup(ts.Close)

	ctx := context.Background()
	blobs, err := NewS3Blobs(ctx, S3Settings{
		BaseEndpoint: ts.URL,
		Region:       "us-east-1",
		Bucket:       "helix",
		AccessKey:    "minioadmin",
		SecretKey:    "minioadmin",
	})
	require.NoError(t, err)

	ok, err := blobs.Has(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = blobs.Get(ctx, "abc")
	assert.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, blobs.Put(ctx, "abc", []byte("item bytes")))
	for k := range fake.objects {
		assert.True(t, strings.HasSuffix(k, "/helix/items/abc"), k)
	}

	ok, err = blobs.Has(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := blobs.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, []byte("item bytes"), got)
}

func TestMemoryBlobs(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBlobs()

	_, err := m.Get(ctx, "x")
	assert.ErrorIs(t, err, common.ErrNotFound)

	item := []byte("data")
	require.NoError(t, m.Put(ctx, "x", item))
	item[0] = 'D'

	got, err := m.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), got)
}
