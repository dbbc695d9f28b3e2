// Package blob moves build artifacts into cloud object storage. The
// storage semantics (durability, overwrite behavior, server side
// copies) belong to the backing service; this package only names
// objects and shuttles bytes.
package blob

import (
	"context"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Store is a minimal interface over an object storage bucket.
type Store interface {
	// Upload writes body to the named object, overwriting any
	// existing object of that name.
	Upload(ctx context.Context, name string, body io.Reader) error

	// Copy performs a server side copy from src to dst within the
	// bucket.
	Copy(ctx context.Context, src, dst string) error

	// URL returns a browsable URL for the named object.
	URL(name string) string
}

// Open returns a Store for a bucket URI. The scheme picks the
// backend: gs://bucket or s3://bucket.
func Open(ctx context.Context, bucketURI string) (Store, error) {
	scheme, bucket, found := strings.Cut(bucketURI, "://")
	if !found || bucket == "" {
		return nil, errors.Errorf("bucket URI %q is not of the form scheme://bucket", bucketURI)
	}

	switch scheme {
	case "gs":
		return newGCSStore(ctx, bucket)
	case "s3":
		return newS3Store(ctx, bucket)
	default:
		return nil, errors.Errorf("unsupported storage scheme %q", scheme)
	}
}
