package blob

import (
	"bytes"
	"context"
	"io"

	"sjsage522/estateworker/logger"
	apperrors "sjsage522/estateworker/pkg/errors"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Options configures the bucket store
type S3Options struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

type objectPutter interface {
	PutObject(ctx context.Context, bucket, key string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// S3Store uploads objects to an S3-compatible bucket and returns their
// virtual-host style URL.
type S3Store struct {
	client   objectPutter
	bucket   string
	endpoint string
	logger   *logger.Logger
}

// NewS3Store connects to the bucket, creating it when missing
func NewS3Store(ctx context.Context, opts S3Options, log *logger.Logger) (*S3Store, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, apperrors.NewConfiguration("invalid blob store endpoint", err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, apperrors.NewBlob("s3", "failed to check bucket "+opts.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{Region: opts.Region}); err != nil {
			return nil, apperrors.NewBlob("s3", "failed to create bucket "+opts.Bucket, err)
		}
	}

	s := newS3Store(client, opts.Bucket, opts.Endpoint, log)
	s.logger.Info().Str("bucket", opts.Bucket).Str("endpoint", opts.Endpoint).Msg("Connected to blob store")
	return s, nil
}

func newS3Store(client objectPutter, bucket, endpoint string, log *logger.Logger) *S3Store {
	return &S3Store{client: client, bucket: bucket, endpoint: endpoint, logger: log.ForComponent("s3")}
}

// PublicURL returns the address an object is served from.
func (s *S3Store) PublicURL(key string) string {
	return "https://" + s.bucket + "." + s.endpoint + "/" + key
}

func (s *S3Store) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "image/jpeg"
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", apperrors.NewBlob("s3", "failed to upload "+key, err)
	}
	s.logger.Debug().Str("key", key).Int("bytes", len(data)).Msg("Uploaded object")
	return s.PublicURL(key), nil
}
