package blob

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
)

type s3Store struct {
	bucketName string
	client     *s3.Client
}

func newS3Store(ctx context.Context, bucketName string) (*s3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "loading aws config")
	}

	return &s3Store{
		bucketName: bucketName,
		client:     s3.NewFromConfig(cfg),
	}, nil
}

func (s *s3Store) Upload(ctx context.Context, name string, body io.Reader) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(name),
		Body:   body,
	})
	if err != nil {
		return errors.Wrapf(err, "putting s3://%s/%s", s.bucketName, name)
	}
	return nil
}

func (s *s3Store) Copy(ctx context.Context, src, dst string) error {
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucketName),
		Key:        aws.String(dst),
		CopySource: aws.String(path.Join(s.bucketName, src)),
	})
	if err != nil {
		return errors.Wrapf(err, "copying s3://%s/%s to %s", s.bucketName, src, dst)
	}
	return nil
}

func (s *s3Store) URL(name string) string {
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.bucketName, name)
}
