package storage

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/pkg/errors"
)

// S3Config holds the credentials of an S3-compatible object store.
// All fields are required; the bucket must pre-exist.
type S3Config struct {
	Region    string
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
}

// Complete returns true when every field needed to reach the bucket is set.
func (c S3Config) Complete() bool {
	return c.Region != "" && c.Endpoint != "" && c.Bucket != "" &&
		c.AccessKey != "" && c.SecretKey != ""
}

// An S3 stores attachment bytes in a single pre-existing bucket under
// attachments/<slug>/ keys.
type S3 struct {
	client *s3.Client
	bucket string
}

// NewS3 returns an object-store backend for the given configuration.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	awscfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, errors.Wrap(err, "could not load S3 configuration")
	}

	client := s3.NewFromConfig(awscfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true // MinIO & friends
	})

	return &S3{client: client, bucket: cfg.Bucket}, nil
}

// Save implements Backend.
func (b *S3) Save(ctx context.Context, slug string, locator Locator, data []byte) error {
	key := locator.ObjectKey(slug)

	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return errors.Wrapf(ErrUnavailable, "put object %s: %s", key, err)
	}
	return nil
}

// Get implements Backend.
func (b *S3) Get(ctx context.Context, slug string, locator Locator) ([]byte, error) {
	key := locator.ObjectKey(slug)

	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notfound *types.NoSuchKey
		if stderrors.As(err, &notfound) {
			return nil, errors.Wrapf(ErrNotFound, "%s", key)
		}
		return nil, errors.Wrapf(ErrUnavailable, "get object %s: %s", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, errors.Wrapf(ErrUnavailable, "read object %s: %s", key, err)
	}
	return data, nil
}

// Delete implements Backend. S3 object deletion is idempotent so a missing
// key is already not an error.
func (b *S3) Delete(ctx context.Context, slug string, locator Locator) error {
	key := locator.ObjectKey(slug)

	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return errors.Wrapf(ErrUnavailable, "delete object %s: %s", key, err)
	}
	return nil
}
