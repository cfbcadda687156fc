// Package blob archives source audio to S3-compatible object storage.
// Archiving is best-effort: the journal entry is already durable before
// any blob upload happens.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Config configures the audio archive.
type Config struct {
	Bucket   string
	Region   string
	Prefix   string // key prefix, e.g. "voice/"
	Endpoint string // optional custom endpoint (MinIO etc.)
}

// Store uploads and deletes audio blobs.
type Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// New builds an archive store using the default AWS credential chain.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive bucket not configured")
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

	return &Store{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Put uploads audio bytes and returns the object key as the blob ref.
func (s *Store) Put(ctx context.Context, audio []byte, mimeType string) (string, error) {
	key := s.prefix + uuid.NewString() + extensionFor(mimeType)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(audio),
		ContentType: aws.String(mimeType),
	})
	if err != nil {
		return "", fmt.Errorf("put blob: %w", err)
	}

	slog.Debug("audio archived", "key", key, "bytes", len(audio))
	return key, nil
}

// Delete removes an archived blob. A missing object is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete blob %s: %w", key, err)
	}
	return nil
}

func extensionFor(mimeType string) string {
	switch {
	case strings.Contains(mimeType, "ogg"), strings.Contains(mimeType, "opus"):
		return ".oga"
	case strings.Contains(mimeType, "mpeg"), strings.Contains(mimeType, "mp3"):
		return ".mp3"
	case strings.Contains(mimeType, "mp4"), strings.Contains(mimeType, "m4a"):
		return ".m4a"
	case strings.Contains(mimeType, "wav"):
		return ".wav"
	}
	return ".bin"
}
