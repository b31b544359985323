package httpengine

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/gowebpki/jcs"
)

// Signature headers set on every engine request when a signing key is configured.
const (
	HeaderSignature = "X-Signature"
	HeaderTimestamp = "X-Timestamp"
	HeaderPublicKey = "X-Signer-Pubkey"
)

// signingTransport is an http.RoundTripper that signs the canonical JSON body
// of each request with a secp256k1 key. The Authorization header is left as is.
type signingTransport struct {
	base    http.RoundTripper
	key     *secp256k1.PrivateKey
	pubHex  string
	nowFunc func() time.Time
}

func newSigningTransport(base http.RoundTripper, key *secp256k1.PrivateKey) *signingTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &signingTransport{
		base:   base,
		key:    key,
		pubHex: hex.EncodeToString(key.PubKey().SerializeCompressed()),
	}
}

func (t *signingTransport) now() time.Time {
	if t.nowFunc != nil {
		return t.nowFunc()
	}
	return time.Now()
}

// RoundTrip implements http.RoundTripper.
func (t *signingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("httpengine: read request body: %w", err)
		}
	}

	tsNanos := t.now().UnixNano()
	signature, err := signBody(t.key, body, tsNanos)
	if err != nil {
		return nil, fmt.Errorf("httpengine: sign: %w", err)
	}

	clone := req.Clone(req.Context())
	clone.Header.Set(HeaderSignature, signature)
	clone.Header.Set(HeaderTimestamp, strconv.FormatInt(tsNanos, 10))
	clone.Header.Set(HeaderPublicKey, t.pubHex)
	clone.Body = io.NopCloser(bytes.NewReader(body))
	clone.ContentLength = int64(len(body))

	return t.base.RoundTrip(clone)
}

// parsePrivateKey decodes a hex string into a secp256k1 private key.
func parsePrivateKey(hexKey string) (*secp256k1.PrivateKey, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")

	keyBytes, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("httpengine: invalid signing key hex: %w", err)
	}
	if len(keyBytes) != 32 {
		return nil, fmt.Errorf("httpengine: signing key must be 32 bytes, got %d", len(keyBytes))
	}

	key := secp256k1.PrivKeyFromBytes(keyBytes)
	if key.Key.IsZero() {
		return nil, fmt.Errorf("httpengine: signing key is zero")
	}
	return key, nil
}

// SigningDigest returns the digest that is signed for body at tsNanos:
// SHA256(hex(SHA256(JCS(body))) || decimal(tsNanos)). An empty body is hashed
// as is.
func SigningDigest(body []byte, tsNanos int64) ([32]byte, error) {
	canonical := body
	if len(body) > 0 {
		var err error
		canonical, err = jcs.Transform(body)
		if err != nil {
			return [32]byte{}, fmt.Errorf("canonicalize body: %w", err)
		}
	}
	bodyHash := sha256.Sum256(canonical)
	message := hex.EncodeToString(bodyHash[:]) + strconv.FormatInt(tsNanos, 10)
	return sha256.Sum256([]byte(message)), nil
}

// signBody returns the base64 raw signature (r || s, 64 bytes).
func signBody(key *secp256k1.PrivateKey, body []byte, tsNanos int64) (string, error) {
	digest, err := SigningDigest(body, tsNanos)
	if err != nil {
		return "", err
	}
	// [recovery flag, r(32), s(32)]; RFC6979 nonces, low-S.
	compact := ecdsa.SignCompact(key, digest[:], false)
	return base64.StdEncoding.EncodeToString(compact[1:65]), nil
}
