package export

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"scadforge/internal/errors"
	"scadforge/internal/logging"
)

// S3Config configures an S3-compatible sink
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// S3Sink uploads objects to <prefix>/<runID>/<name> in a bucket
type S3Sink struct {
	client     *minio.Client
	bucketName string
	region     string
	prefix     string
	logger     *logging.Logger

	initOnce sync.Once
	initErr  error
}

// NewS3Sink validates cfg and creates the client. The bucket is created
// on first use when missing.
func NewS3Sink(cfg S3Config, logger *logging.Logger) (*S3Sink, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.Newf(errors.ConfigInvalid, "s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, errors.Newf(errors.ConfigInvalid, "s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errors.Newf(errors.ConfigInvalid, "s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	return &S3Sink{
		client:     client,
		bucketName: bucket,
		region:     region,
		prefix:     strings.Trim(strings.TrimSpace(cfg.Prefix), "/"),
		logger:     logger,
	}, nil
}

func (s *S3Sink) ensureBucket(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucketName)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

// Put uploads data and returns its s3:// location
func (s *S3Sink) Put(ctx context.Context, runID, name string, data []byte) (string, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return "", errors.New(errors.ExportFailed, "ensure bucket", err)
	}
	if data == nil {
		data = []byte{}
	}

	key := ObjectKey(s.prefix, runID, name)
	_, err := s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType(name),
	})
	if err != nil {
		return "", errors.New(errors.ExportFailed, fmt.Sprintf("upload %s", key), err)
	}

	location := fmt.Sprintf("s3://%s/%s", s.bucketName, key)
	s.logger.Debug("Uploaded export", map[string]interface{}{
		"location": location,
		"size":     len(data),
	})
	return location, nil
}

// ObjectKey joins prefix, run and file name into an object key
func ObjectKey(prefix, runID, name string) string {
	segments := make([]string, 0, 3)
	for _, s := range []string{prefix, strings.TrimSpace(runID), path.Base(strings.TrimSpace(name))} {
		s = strings.Trim(s, "/")
		if s != "" {
			segments = append(segments, s)
		}
	}
	return strings.Join(segments, "/")
}

func contentType(name string) string {
	switch path.Ext(name) {
	case MeshExtension:
		return "model/stl"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
