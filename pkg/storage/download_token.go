package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrTokenMalformed reports a token that does not decode into its four segments.
	ErrTokenMalformed = errors.New("download token malformed")
	// ErrTokenSignature reports a token whose MAC does not match its payload.
	ErrTokenSignature = errors.New("download token signature mismatch")
	// ErrTokenExpired reports a well-formed token past its expiry.
	ErrTokenExpired = errors.New("download token expired")
)

// DownloadToken is the payload carried by an export download link.
type DownloadToken struct {
	JobID     string
	Path      string
	ExpiresAt time.Time
}

// DownloadSigner issues and verifies HMAC-signed export download tokens.
// Tokens take the form jobID.expiryUnix.base64(path).hexMAC.
type DownloadSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewDownloadSigner builds a signer. A non-positive ttl falls back to one day.
func NewDownloadSigner(secret string, ttl time.Duration) *DownloadSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &DownloadSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL reports how long issued tokens stay valid.
func (s *DownloadSigner) TTL() time.Duration {
	return s.ttl
}

// Sign issues a token for the stored export at relPath.
func (s *DownloadSigner) Sign(jobID, relPath string) (string, DownloadToken, error) {
	if jobID == "" || relPath == "" {
		return "", DownloadToken{}, errors.New("job id and path required")
	}
	if strings.Contains(jobID, ".") {
		return "", DownloadToken{}, errors.New("job id must not contain '.'")
	}
	if len(s.secret) == 0 {
		return "", DownloadToken{}, errors.New("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	encodedPath := base64.RawURLEncoding.EncodeToString([]byte(relPath))
	expiry := strconv.FormatInt(expiresAt.Unix(), 10)
	token := strings.Join([]string{jobID, expiry, encodedPath, s.mac(jobID, expiry, encodedPath)}, ".")
	return token, DownloadToken{JobID: jobID, Path: relPath, ExpiresAt: expiresAt}, nil
}

// Verify checks the token signature and, unless allowExpired is set, its expiry.
// Cleanup passes allowExpired so stale files can still be located.
func (s *DownloadSigner) Verify(token string, allowExpired bool) (DownloadToken, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 || parts[0] == "" {
		return DownloadToken{}, ErrTokenMalformed
	}
	jobID, expiry, encodedPath, signature := parts[0], parts[1], parts[2], parts[3]

	expected := s.mac(jobID, expiry, encodedPath)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return DownloadToken{}, ErrTokenSignature
	}
	expUnix, err := strconv.ParseInt(expiry, 10, 64)
	if err != nil {
		return DownloadToken{}, ErrTokenMalformed
	}
	rawPath, err := base64.RawURLEncoding.DecodeString(encodedPath)
	if err != nil || len(rawPath) == 0 {
		return DownloadToken{}, ErrTokenMalformed
	}

	out := DownloadToken{JobID: jobID, Path: string(rawPath), ExpiresAt: time.Unix(expUnix, 0)}
	if !allowExpired && s.now().After(out.ExpiresAt) {
		return out, ErrTokenExpired
	}
	return out, nil
}

func (s *DownloadSigner) mac(jobID, expiry, encodedPath string) string {
	h := hmac.New(sha256.New, s.secret)
	_, _ = h.Write([]byte(jobID + "|" + expiry + "|" + encodedPath))
	return hex.EncodeToString(h.Sum(nil))
}
