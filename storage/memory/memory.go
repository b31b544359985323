// Package memory is an in-process object store for local runs and tests. It
// issues HMAC-signed upload URLs served by its own http.Handler.
package memory

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ineyio/sentimentgate"
)

// PathPrefix is the URL path under which Handler serves uploads.
const PathPrefix = "/objects/"

// DefaultMaxObjectBytes bounds a single upload.
const DefaultMaxObjectBytes = 512 << 20

// Object is a stored upload.
type Object struct {
	ContentType string
	Data        []byte
}

// Store keeps objects in memory.
type Store struct {
	baseURL  string
	secret   []byte
	maxBytes int64
	now      func() time.Time

	mu      sync.RWMutex
	objects map[string]Object
}

var _ sentimentgate.ObjectStore = (*Store)(nil)

// Option configures Store.
type Option func(*Store)

// WithSecret sets the HMAC key for upload URLs (default: random per process).
func WithSecret(secret []byte) Option {
	return func(s *Store) { s.secret = secret }
}

// WithMaxObjectBytes bounds the size of one upload.
func WithMaxObjectBytes(n int64) Option {
	return func(s *Store) { s.maxBytes = n }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a store whose upload URLs point at baseURL + PathPrefix.
func New(baseURL string, opts ...Option) *Store {
	s := &Store{
		baseURL:  strings.TrimRight(baseURL, "/"),
		maxBytes: DefaultMaxObjectBytes,
		now:      time.Now,
		objects:  make(map[string]Object),
	}
	for _, opt := range opts {
		opt(s)
	}
	if len(s.secret) == 0 {
		s.secret = make([]byte, 32)
		if _, err := rand.Read(s.secret); err != nil {
			panic(fmt.Sprintf("memory: read random secret: %v", err))
		}
	}
	return s
}

func (s *Store) sign(key, contentType string, expires int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s\n%s\n%d", key, contentType, expires)
	return hex.EncodeToString(mac.Sum(nil))
}

// PresignPut returns a signed URL accepting one PUT of key until ttl elapses.
func (s *Store) PresignPut(_ context.Context, key, contentType string, ttl time.Duration) (string, error) {
	expires := s.now().Add(ttl).Unix()
	q := url.Values{}
	q.Set("content_type", contentType)
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("signature", s.sign(key, contentType, expires))
	return s.baseURL + PathPrefix + key + "?" + q.Encode(), nil
}

// Exists reports whether key was uploaded.
func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok, nil
}

// Locate returns a mem:// URI for key.
func (s *Store) Locate(key string) string {
	return "mem://" + key
}

// Get returns a stored object.
func (s *Store) Get(key string) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	return obj, ok
}

// Put stores an object directly, bypassing URL signing.
func (s *Store) Put(key, contentType string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = Object{ContentType: contentType, Data: append([]byte(nil), data...)}
}

// Handler serves signed PUTs under PathPrefix.
func (s *Store) Handler() http.Handler {
	return http.HandlerFunc(s.servePut)
}

func (s *Store) servePut(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	key := strings.TrimPrefix(r.URL.Path, PathPrefix)
	if key == "" || key == r.URL.Path {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	q := r.URL.Query()
	contentType := q.Get("content_type")
	expires, err := strconv.ParseInt(q.Get("expires"), 10, 64)
	if err != nil {
		http.Error(w, "invalid expiry", http.StatusForbidden)
		return
	}
	want := s.sign(key, contentType, expires)
	if !hmac.Equal([]byte(want), []byte(q.Get("signature"))) {
		http.Error(w, "signature mismatch", http.StatusForbidden)
		return
	}
	if s.now().Unix() > expires {
		http.Error(w, "upload url expired", http.StatusForbidden)
		return
	}
	if r.Header.Get("Content-Type") != contentType {
		http.Error(w, "content type mismatch", http.StatusForbidden)
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, s.maxBytes+1))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	if int64(len(data)) > s.maxBytes {
		http.Error(w, "object too large", http.StatusRequestEntityTooLarge)
		return
	}

	s.Put(key, contentType, data)
	w.WriteHeader(http.StatusOK)
}
