package memory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func put(t *testing.T, rawURL, contentType, body string) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodPut, rawURL, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func newServedStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	store := New(srv.URL, opts...)
	mux.Handle(PathPrefix, store.Handler())
	return store
}

func TestSignedUploadRoundTrip(t *testing.T) {
	store := newServedStore(t)
	ctx := context.Background()

	u, err := store.PresignPut(ctx, "uploads/acct1/a.mp4", "video/mp4", time.Minute)
	require.NoError(t, err)

	ok, _ := store.Exists(ctx, "uploads/acct1/a.mp4")
	assert.False(t, ok)

	assert.Equal(t, http.StatusOK, put(t, u, "video/mp4", "frames"))

	ok, err = store.Exists(ctx, "uploads/acct1/a.mp4")
	require.NoError(t, err)
	assert.True(t, ok)

	obj, ok := store.Get("uploads/acct1/a.mp4")
	require.True(t, ok)
	assert.Equal(t, "video/mp4", obj.ContentType)
	assert.Equal(t, "frames", string(obj.Data))
	assert.Equal(t, "mem://uploads/acct1/a.mp4", store.Locate("uploads/acct1/a.mp4"))
}

func TestUploadRejections(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store := newServedStore(t, WithClock(clock), WithMaxObjectBytes(4))
	ctx := context.Background()

	u, err := store.PresignPut(ctx, "uploads/acct1/a.mp4", "video/mp4", time.Minute)
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, put(t, u, "video/quicktime", "ab"), "content type must match")
	assert.Equal(t, http.StatusForbidden, put(t, strings.Replace(u, "acct1", "acct2", 1), "video/mp4", "ab"), "key is signed")
	assert.Equal(t, http.StatusRequestEntityTooLarge, put(t, u, "video/mp4", "too large"))

	now = now.Add(2 * time.Minute)
	assert.Equal(t, http.StatusForbidden, put(t, u, "video/mp4", "ab"), "expired")

	ok, _ := store.Exists(ctx, "uploads/acct1/a.mp4")
	assert.False(t, ok)
}
