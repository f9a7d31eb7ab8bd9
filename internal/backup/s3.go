// Package backup uploads device exports to S3.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/fitforge/fitforge-backend/config"
	"github.com/fitforge/fitforge-backend/internal/profiles/localstore"
)

var ErrDisabled = errors.New("backup bucket not configured")

// ObjectPutter is the part of the S3 client used by Sink.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Sink writes exports as JSON objects under
// <prefix><device>/<yyyy>/<mm>/<dd>/<uuid>.json.
type Sink struct {
	client ObjectPutter
	bucket string
	prefix string
	now    func() time.Time
}

// NewSink builds an S3 client from the default AWS credential chain. It
// returns ErrDisabled when no bucket is configured.
func NewSink(ctx context.Context, cfg config.BackupConfig) (*Sink, error) {
	if cfg.S3Bucket == "" {
		return nil, ErrDisabled
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewSinkWithClient(client, cfg.S3Bucket, cfg.Prefix), nil
}

func NewSinkWithClient(client ObjectPutter, bucket, prefix string) *Sink {
	return &Sink{client: client, bucket: bucket, prefix: prefix, now: time.Now}
}

// Store uploads exp and returns the object key.
func (s *Sink) Store(ctx context.Context, deviceID string, exp *localstore.Export) (string, error) {
	body, err := json.Marshal(exp)
	if err != nil {
		return "", fmt.Errorf("encode export: %w", err)
	}

	key := s.objectKey(deviceID)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("upload export to s3://%s/%s: %w", s.bucket, key, err)
	}
	return key, nil
}

func (s *Sink) objectKey(deviceID string) string {
	d := s.now().UTC()
	prefix := s.prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return fmt.Sprintf("%s%s/%04d/%02d/%02d/%s.json", prefix, deviceID, d.Year(), d.Month(), d.Day(), uuid.New())
}
