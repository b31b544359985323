package s3

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, endpoint string) *Store {
	t.Helper()
	client := s3.New(s3.Options{
		Region:           "us-east-1",
		Credentials:      credentials.NewStaticCredentialsProvider("AKIDEXAMPLE", "secret", ""),
		BaseEndpoint:     aws.String(endpoint),
		UsePathStyle:     true,
		RetryMaxAttempts: 1,
	})
	store, err := New(client, "videos")
	require.NoError(t, err)
	return store
}

func TestNew_RequiresBucket(t *testing.T) {
	_, err := New(s3.New(s3.Options{Region: "us-east-1"}), "")
	assert.Error(t, err)
}

func TestPresignPut(t *testing.T) {
	store := newTestStore(t, "http://s3.test")

	raw, err := store.PresignPut(context.Background(), "uploads/acct1/abc.mp4", "video/mp4", 15*time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "s3.test", u.Host)
	assert.Equal(t, "/videos/uploads/acct1/abc.mp4", u.Path)

	q := u.Query()
	assert.Equal(t, "900", q.Get("X-Amz-Expires"))
	assert.NotEmpty(t, q.Get("X-Amz-Signature"))
	assert.Contains(t, q.Get("X-Amz-SignedHeaders"), "content-type")
}

func TestExists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		switch r.URL.Path {
		case "/videos/uploads/acct1/present.mp4":
			w.Header().Set("Content-Type", "video/mp4")
			w.WriteHeader(http.StatusOK)
		case "/videos/uploads/acct1/broken.mp4":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	store := newTestStore(t, srv.URL)
	ctx := context.Background()

	ok, err := store.Exists(ctx, "uploads/acct1/present.mp4")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Exists(ctx, "uploads/acct1/missing.mp4")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Exists(ctx, "uploads/acct1/broken.mp4")
	assert.Error(t, err)
}

func TestLocate(t *testing.T) {
	store := newTestStore(t, "http://s3.test")
	assert.Equal(t, "s3://videos/uploads/acct1/abc.mp4", store.Locate("uploads/acct1/abc.mp4"))
}
