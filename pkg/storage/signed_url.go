package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Errors returned by SignedURLSigner.Verify.
var (
	ErrMalformedToken = errors.New("malformed download token")
	ErrBadSignature   = errors.New("download token signature mismatch")
	ErrTokenExpired   = errors.New("download token expired")
)

// DownloadGrant is the information carried by a download token.
type DownloadGrant struct {
	ResourceID string
	Path       string
	ExpiresAt  time.Time
}

// SignedURLSigner issues and verifies HMAC download tokens of the form
// resourceID.expiryUnix.base64(path).signature.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Sign returns a token granting access to path for the configured TTL.
func (s *SignedURLSigner) Sign(resourceID, path string) (string, time.Time, error) {
	if resourceID == "" || path == "" {
		return "", time.Time{}, fmt.Errorf("resource id and path required")
	}
	if strings.Contains(resourceID, ".") {
		return "", time.Time{}, fmt.Errorf("resource id must not contain '.'")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	exp := strconv.FormatInt(expiresAt.Unix(), 10)
	encodedPath := base64.RawURLEncoding.EncodeToString([]byte(path))
	sig := s.mac(resourceID, exp, encodedPath)
	return strings.Join([]string{resourceID, exp, encodedPath, sig}, "."), expiresAt, nil
}

// Verify checks signature and expiry and returns the grant.
func (s *SignedURLSigner) Verify(token string) (*DownloadGrant, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return nil, ErrMalformedToken
	}
	resourceID, exp, encodedPath, sig := parts[0], parts[1], parts[2], parts[3]

	if !hmac.Equal([]byte(s.mac(resourceID, exp, encodedPath)), []byte(sig)) {
		return nil, ErrBadSignature
	}
	unix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return nil, ErrMalformedToken
	}
	path, err := base64.RawURLEncoding.DecodeString(encodedPath)
	if err != nil {
		return nil, ErrMalformedToken
	}
	expiresAt := time.Unix(unix, 0)
	if s.now().After(expiresAt) {
		return nil, ErrTokenExpired
	}
	return &DownloadGrant{ResourceID: resourceID, Path: string(path), ExpiresAt: expiresAt}, nil
}

func (s *SignedURLSigner) mac(resourceID, exp, encodedPath string) string {
	h := hmac.New(sha256.New, s.secret)
	_, _ = h.Write([]byte(resourceID + "|" + exp + "|" + encodedPath))
	return hex.EncodeToString(h.Sum(nil))
}
