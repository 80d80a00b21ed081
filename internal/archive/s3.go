// Package archive stores swept followup rows in S3 before they are deleted.
package archive

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/contact-app/followup/internal/domain"
)

type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config configures the archive bucket.
type S3Config struct {
	Bucket   string
	Prefix   string
	Region   string
	Compress bool
}

// S3Archiver writes one JSON object per sweep.
type S3Archiver struct {
	client   s3API
	bucket   string
	prefix   string
	compress bool
	now      func() time.Time
}

// NewS3Archiver loads the default AWS credential chain.
func NewS3Archiver(ctx context.Context, cfg S3Config) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive: bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("archive: load AWS config: %w", err)
	}
	log.Printf("[Archive] S3 archive bucket=%s prefix=%s compressed=%v", cfg.Bucket, cfg.Prefix, cfg.Compress)
	return newS3Archiver(s3.NewFromConfig(awsCfg), cfg), nil
}

func newS3Archiver(client s3API, cfg S3Config) *S3Archiver {
	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &S3Archiver{
		client:   client,
		bucket:   cfg.Bucket,
		prefix:   prefix,
		compress: cfg.Compress,
		now:      time.Now,
	}
}

type document struct {
	ArchivedAt time.Time         `json:"archived_at"`
	Cutoff     time.Time         `json:"cutoff"`
	Count      int               `json:"count"`
	Followups  []domain.Followup `json:"followups"`
}

// Archive uploads rows and returns the object key. An empty batch writes
// nothing and returns an empty key.
func (a *S3Archiver) Archive(ctx context.Context, cutoff time.Time, rows []domain.Followup) (string, error) {
	if len(rows) == 0 {
		return "", nil
	}
	now := a.now().UTC()

	data, err := json.Marshal(document{ArchivedAt: now, Cutoff: cutoff.UTC(), Count: len(rows), Followups: rows})
	if err != nil {
		return "", fmt.Errorf("archive: encode: %w", err)
	}

	key := fmt.Sprintf("%sfollowups/%s/%s-%s.json", a.prefix, now.Format("2006/01/02"), now.Format("150405"), uuid.NewString()[:8])
	in := &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		ContentType: aws.String("application/json"),
	}
	if a.compress {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			return "", fmt.Errorf("archive: compress: %w", err)
		}
		if err := zw.Close(); err != nil {
			return "", fmt.Errorf("archive: compress: %w", err)
		}
		data = buf.Bytes()
		key += ".gz"
		in.ContentEncoding = aws.String("gzip")
	}
	in.Key = aws.String(key)
	in.Body = bytes.NewReader(data)

	if _, err := a.client.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("archive: put s3://%s/%s: %w", a.bucket, key, err)
	}
	log.Printf("[Archive] wrote %d followup(s) to s3://%s/%s", len(rows), a.bucket, key)
	return key, nil
}
