// Package blob is the storage gateway the worker and the HTTP surface talk
// to. The real deployment backs it with an object store; the Local
// implementation keeps files on disk the way the rest of the service expects.
package blob

import (
	"context"
	"time"
)

// Variant names used as blob path segments.
const (
	VariantOriginal    = "original"
	VariantWatermarked = "watermarked"
	VariantThumbnail   = "thumbnail"
)

// Gateway stores and serves photo bytes. Upload returns the blob path and,
// for publicly served variants (watermarked, thumbnail), a public URL;
// originals get no public URL and are reachable only through SignedURL.
type Gateway interface {
	Upload(ctx context.Context, photoID string, variant string, data []byte) (path string, publicURL string, err error)
	Download(ctx context.Context, path string) ([]byte, error)
	SignedURL(path string, ttl time.Duration) (string, error)
}
