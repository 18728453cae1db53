package blob

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocal(t *testing.T) *Local {
	t.Helper()
	return NewLocal(t.TempDir(), "http://localhost:8080", "test-secret", time.Hour)
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	l := newTestLocal(t)

	path, publicURL, err := l.Upload(context.Background(), "abc", VariantThumbnail, []byte("bytes"))
	require.NoError(t, err)
	assert.Equal(t, "media/abc/thumbnail.jpg", path)
	assert.Equal(t, "http://localhost:8080/files/media/abc/thumbnail.jpg", publicURL)

	data, err := l.Download(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []byte("bytes"), data)
}

func TestUploadOriginalHasNoPublicURL(t *testing.T) {
	l := newTestLocal(t)

	_, publicURL, err := l.Upload(context.Background(), "abc", VariantOriginal, []byte("bytes"))
	require.NoError(t, err)
	assert.Empty(t, publicURL, "originals are only reachable through signed URLs")
}

func TestDownloadRejectsTraversal(t *testing.T) {
	l := newTestLocal(t)
	_, err := l.Download(context.Background(), "../etc/passwd")
	require.Error(t, err)
}

func TestSignedURLClampsTTL(t *testing.T) {
	l := newTestLocal(t)

	signed, err := l.SignedURL("media/abc/original.jpg", 100*time.Hour)
	require.NoError(t, err)

	u, err := url.Parse(signed)
	require.NoError(t, err)
	exp, err := strconv.ParseInt(u.Query().Get("exp"), 10, 64)
	require.NoError(t, err)
	assert.LessOrEqual(t, exp, time.Now().Add(time.Hour+time.Minute).Unix())
	assert.Greater(t, exp, time.Now().Unix())
}

func TestSignedURLVerify(t *testing.T) {
	l := newTestLocal(t)

	signed, err := l.SignedURL("media/abc/original.jpg", time.Minute)
	require.NoError(t, err)
	u, err := url.Parse(signed)
	require.NoError(t, err)

	path := strings.TrimPrefix(u.Path, "/signed/")
	exp, _ := strconv.ParseInt(u.Query().Get("exp"), 10, 64)
	sig := u.Query().Get("sig")

	assert.True(t, l.Verify(path, exp, sig))
	assert.False(t, l.Verify(path, exp, sig+"00"), "tampered signature")
	assert.False(t, l.Verify("media/other/original.jpg", exp, sig), "signature bound to path")
	assert.False(t, l.Verify(path, exp+10, sig), "signature bound to expiry")
	assert.False(t, l.Verify(path, time.Now().Add(-time.Minute).Unix(), sig), "expired")
}
