// Package archive stores raw industry-brief source payloads outside the
// database, in a local directory by default or S3 when a bucket is
// configured. Briefs themselves live in Postgres; the archive only keeps the
// bulky raw payloads retrievable.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"campaign-advisor/internal/config"
)

type uploader interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// Archiver writes one object per brief and returns a reference to it.
type Archiver struct {
	uploader uploader
}

// New picks the uploader: S3 when a bucket is configured, the local archive
// directory otherwise.
func New(ctx context.Context, cfg config.Config) (*Archiver, error) {
	if cfg.BriefS3Bucket != "" {
		client, err := newS3Client(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &Archiver{uploader: &s3Uploader{client: client, bucket: cfg.BriefS3Bucket}}, nil
	}
	baseDir := cfg.BriefArchiveDir
	if baseDir == "" {
		baseDir = "./archive"
	}
	return &Archiver{uploader: &localUploader{baseDir: baseDir}}, nil
}

// Archive stores the raw payload under a date-partitioned key and returns the
// reference (path or s3:// URL).
func (a *Archiver) Archive(ctx context.Context, briefID string, raw []byte) (string, error) {
	key := fmt.Sprintf("briefs/%s/%s.json", time.Now().UTC().Format("2006/01/02"), sanitizeKey(briefID))
	ref, err := a.uploader.Upload(ctx, key, raw, "application/json")
	if err != nil {
		return "", fmt.Errorf("archive brief %s: %w", briefID, err)
	}
	return ref, nil
}

func newS3Client(ctx context.Context, cfg config.Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.BriefS3Region),
	}
	if cfg.BriefS3Endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
			if service == s3.ServiceID {
				return aws.Endpoint{
					URL:               cfg.BriefS3Endpoint,
					HostnameImmutable: cfg.BriefS3PathStyle,
					SigningRegion:     cfg.BriefS3Region,
					Source:            aws.EndpointSourceCustom,
				}, nil
			}
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		})
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.BriefS3PathStyle
	}), nil
}

func sanitizeKey(key string) string {
	key = filepath.Clean(key)
	key = strings.TrimPrefix(key, string(filepath.Separator))
	key = strings.TrimPrefix(key, "./")
	return key
}

type localUploader struct {
	baseDir string
}

func (l *localUploader) Upload(_ context.Context, key string, body []byte, _ string) (string, error) {
	path := filepath.Join(l.baseDir, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create dirs: %w", err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}

type s3Uploader struct {
	client *s3.Client
	bucket string
}

func (s *s3Uploader) Upload(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}
