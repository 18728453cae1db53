package blob

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Local is a disk-backed Gateway. Public variants are served by the HTTP
// server from under /files; originals are served only through signed URLs.
type Local struct {
	root    string
	baseURL string
	secret  []byte
	maxTTL  time.Duration
}

func NewLocal(root, baseURL, secret string, maxTTL time.Duration) *Local {
	return &Local{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  []byte(secret),
		maxTTL:  maxTTL,
	}
}

func (l *Local) Upload(ctx context.Context, photoID, variant string, data []byte) (string, string, error) {
	const op = "blob.Upload"

	path := fmt.Sprintf("media/%s/%s.jpg", photoID, variant)
	full := filepath.Join(l.root, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	publicURL := ""
	if variant == VariantWatermarked || variant == VariantThumbnail {
		publicURL = l.baseURL + "/files/" + path
	}
	return path, publicURL, nil
}

func (l *Local) Download(ctx context.Context, path string) ([]byte, error) {
	const op = "blob.Download"

	clean := filepath.Clean(filepath.FromSlash(path))
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return nil, fmt.Errorf("%s: invalid path %q", op, path)
	}
	data, err := os.ReadFile(filepath.Join(l.root, clean))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return data, nil
}

// SignedURL builds a time-limited URL for a blob. The TTL is always clamped
// to the configured maximum.
func (l *Local) SignedURL(path string, ttl time.Duration) (string, error) {
	const op = "blob.SignedURL"

	if ttl <= 0 || ttl > l.maxTTL {
		ttl = l.maxTTL
	}
	exp := time.Now().Add(ttl).Unix()
	sig := l.sign(path, exp)
	return fmt.Sprintf("%s/signed/%s?exp=%d&sig=%s", l.baseURL, path, exp, sig), nil
}

// Verify checks a signed-URL token produced by SignedURL.
func (l *Local) Verify(path string, exp int64, sig string) bool {
	if time.Now().Unix() > exp {
		return false
	}
	return hmac.Equal([]byte(l.sign(path, exp)), []byte(sig))
}

// FilePath maps a blob path to its location on disk, for serving.
func (l *Local) FilePath(path string) string {
	return filepath.Join(l.root, filepath.FromSlash(filepath.Clean(path)))
}

func (l *Local) sign(path string, exp int64) string {
	mac := hmac.New(sha256.New, l.secret)
	mac.Write([]byte(path))
	mac.Write([]byte("|"))
	mac.Write([]byte(strconv.FormatInt(exp, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}
