package blob

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
)

type gcsStore struct {
	bucketName string
	bucket     *storage.BucketHandle
}

func newGCSStore(ctx context.Context, bucketName string) (*gcsStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "creating gcs client")
	}

	return &gcsStore{
		bucketName: bucketName,
		bucket:     client.Bucket(bucketName),
	}, nil
}

func (s *gcsStore) Upload(ctx context.Context, name string, body io.Reader) error {
	w := s.bucket.Object(name).NewWriter(ctx)

	if _, err := io.Copy(w, body); err != nil {
		w.Close()
		return errors.Wrapf(err, "writing gs://%s/%s", s.bucketName, name)
	}

	// Close finalizes the upload; errors surface here.
	if err := w.Close(); err != nil {
		return errors.Wrapf(err, "finalizing gs://%s/%s", s.bucketName, name)
	}

	return nil
}

func (s *gcsStore) Copy(ctx context.Context, src, dst string) error {
	copier := s.bucket.Object(dst).CopierFrom(s.bucket.Object(src))
	if _, err := copier.Run(ctx); err != nil {
		return errors.Wrapf(err, "copying gs://%s/%s to %s", s.bucketName, src, dst)
	}
	return nil
}

func (s *gcsStore) URL(name string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucketName, name)
}
