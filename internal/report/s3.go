package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Yandex Object Storage speaks the S3 protocol; reports default there
// but any S3-compatible endpoint works.
const (
	DefaultEndpoint = "https://storage.yandexcloud.net"
	DefaultRegion   = "ru-central1"
)

// S3Writer puts one object per run at `<prefix>/<run-id>.json`.
// Credentials come from the standard AWS environment and config files.
type S3Writer struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Writer builds a writer for the bucket. Empty region and
// endpoint fall back to the Yandex Object Storage defaults.
func NewS3Writer(ctx context.Context, bucket, prefix, region, endpoint string) (*S3Writer, error) {
	if region == "" {
		region = DefaultRegion
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load object storage config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})
	return &S3Writer{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

// Write implements Writer.
func (w *S3Writer) Write(ctx context.Context, r *RunReport) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	key := r.RunID + ".json"
	if w.prefix != "" {
		key = w.prefix + "/" + key
	}
	_, err = w.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put report %s: %w", key, err)
	}
	return nil
}
