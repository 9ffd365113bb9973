package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DownloadTokenSigner mints and verifies the tokens that gate register
// downloads. A token binds a register job id to the exported file's relative
// path and an expiry, so the public download endpoint can serve finished
// exports without a session.
type DownloadTokenSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewDownloadTokenSigner builds a signer. A non-positive TTL falls back to
// 24 hours.
func NewDownloadTokenSigner(secret string, ttl time.Duration) *DownloadTokenSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &DownloadTokenSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Generate returns a token for the register job and its exported file,
// together with the moment the token stops working.
func (s *DownloadTokenSigner) Generate(jobID, relPath string) (string, time.Time, error) {
	if jobID == "" || relPath == "" {
		return "", time.Time{}, fmt.Errorf("job id and file path are required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("download token secret is not configured")
	}
	expiresAt := s.now().Add(s.ttl)
	path := base64.RawURLEncoding.EncodeToString([]byte(relPath))
	expiry := strconv.FormatInt(expiresAt.Unix(), 10)
	token := strings.Join([]string{jobID, expiry, path, s.sign(jobID, expiry, path)}, ".")
	return token, expiresAt, nil
}

// Parse verifies a token's signature and expiry and returns the register job
// id and file path it was minted for. allowExpired skips the expiry check,
// which storage cleanup uses to identify stale exports.
func (s *DownloadTokenSigner) Parse(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return "", "", time.Time{}, fmt.Errorf("malformed download token")
	}
	jobID, expiry, path, signature := parts[0], parts[1], parts[2], parts[3]

	if !hmac.Equal([]byte(s.sign(jobID, expiry, path)), []byte(signature)) {
		return "", "", time.Time{}, fmt.Errorf("download token signature mismatch")
	}

	expUnix, err := strconv.ParseInt(expiry, 10, 64)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("malformed download token expiry")
	}
	expiresAt = time.Unix(expUnix, 0)
	if !allowExpired && s.now().After(expiresAt) {
		return "", "", time.Time{}, fmt.Errorf("download token expired")
	}

	rawPath, err := base64.RawURLEncoding.DecodeString(path)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("malformed download token path: %w", err)
	}
	return jobID, string(rawPath), expiresAt, nil
}

func (s *DownloadTokenSigner) sign(jobID, expiry, path string) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s.%s.%s", jobID, expiry, path)
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
