package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Archiver stores transcript bodies in an S3-compatible bucket.
type S3Archiver struct {
	client *s3.Client
	bucket string
}

// NewS3Archiver builds an archiver for bucket using the default AWS
// credential chain, scoped to region.
func NewS3Archiver(ctx context.Context, bucket, region string) (*S3Archiver, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("archive: load aws config: %w", err)
	}
	return &S3Archiver{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
	}, nil
}

func objectKey(ledgerID, stream string) string {
	return fmt.Sprintf("transcripts/%s/%s", ledgerID, stream)
}

// Store uploads body to s3://bucket/transcripts/<ledgerID>/<stream> and
// returns that location as the reference.
func (a *S3Archiver) Store(ctx context.Context, ledgerID, stream string, body []byte) (string, error) {
	key := objectKey(ledgerID, stream)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return "", fmt.Errorf("archive: put object: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", a.bucket, key), nil
}

// Fetch downloads the object previously returned by Store. ref must be
// one of this archiver's own "s3://bucket/key" references.
func (a *S3Archiver) Fetch(ctx context.Context, ref string) ([]byte, error) {
	key, err := keyFromRef(a.bucket, ref)
	if err != nil {
		return nil, err
	}
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("archive: get object: %w", err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func keyFromRef(bucket, ref string) (string, error) {
	prefix := "s3://" + bucket + "/"
	if len(ref) <= len(prefix) || ref[:len(prefix)] != prefix {
		return "", fmt.Errorf("archive: reference %q does not belong to bucket %q", ref, bucket)
	}
	return ref[len(prefix):], nil
}
