package blob

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// SignedPathPrefix is where the HTTP server serves signed blob downloads.
const SignedPathPrefix = "/blobs/"

var (
	ErrSignatureExpired = errors.New("signed url expired")
	ErrSignatureInvalid = errors.New("signed url signature mismatch")
)

// URLSigner issues and verifies HMAC-signed download links.
type URLSigner struct {
	secret  []byte
	baseURL string
	now     func() time.Time
}

// NewURLSigner constructs a signer for links under baseURL.
func NewURLSigner(secret, baseURL string) (*URLSigner, error) {
	if secret == "" {
		return nil, errors.New("signing secret is required")
	}
	return &URLSigner{
		secret:  []byte(secret),
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}, nil
}

// Sign returns a link to bucket/key valid for ttl.
func (s *URLSigner) Sign(bucket, key string, ttl time.Duration) string {
	expires := s.now().Add(ttl).Unix()
	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("sig", s.mac(bucket, key, expires))
	return s.baseURL + SignedPathPrefix + url.PathEscape(bucket) + "/" + escapeKey(key) + "?" + q.Encode()
}

// Verify checks a link's expiry and signature.
func (s *URLSigner) Verify(bucket, key, expires, sig string) error {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad expiry", ErrSignatureInvalid)
	}
	if s.now().Unix() > exp {
		return ErrSignatureExpired
	}
	if !hmac.Equal([]byte(sig), []byte(s.mac(bucket, key, exp))) {
		return ErrSignatureInvalid
	}
	return nil
}

func (s *URLSigner) mac(bucket, key string, expires int64) string {
	h := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(h, "%s\n%s\n%d", bucket, key, expires)
	return hex.EncodeToString(h.Sum(nil))
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
