package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"
	"github.com/warehoused/warehoused/pkg/circuitbreaker"
)

// S3Config selects an S3-compatible backend, per §6's storage selector.
type S3Config struct {
	Endpoint string // host[:port], no scheme
	Bucket   string
	Region   string
	Key      string
	Secret   string
	Secure   bool
}

// S3Store stores objects in a single S3-compatible bucket via minio-go,
// the same client the cold-storage layer of grafana-tempo is built on.
type S3Store struct {
	client  *minio.Client
	bucket  string
	logger  *logrus.Logger
	breaker *circuitbreaker.Breaker
}

// NewS3Store dials endpoint and creates the bucket if it does not exist.
func NewS3Store(ctx context.Context, cfg S3Config, logger *logrus.Logger) (*S3Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Key, cfg.Secret, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("objectstore: dial s3 endpoint %s: %w", cfg.Endpoint, err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("objectstore: check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("objectstore: create bucket %s: %w", cfg.Bucket, err)
		}
		logger.WithField("bucket", cfg.Bucket).Info("created object store bucket")
	}

	return &S3Store{
		client:  client,
		bucket:  cfg.Bucket,
		logger:  logger,
		breaker: circuitbreaker.New(circuitbreaker.Config{MaxFailures: 5, ResetTimeout: 30 * time.Second}),
	}, nil
}

func (s *S3Store) Put(ctx context.Context, key string, data []byte) error {
	err := s.breaker.Execute(func() error {
		_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
			ContentType: "application/octet-stream",
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("objectstore: put %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.breaker.Execute(func() error {
		obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
		if err != nil {
			return err
		}
		defer obj.Close()

		data, err = io.ReadAll(obj)
		return err
	})
	if err != nil {
		if errResp := minio.ToErrorResponse(err); errResp.Code == "NoSuchKey" {
			return nil, fmt.Errorf("%s: %w", key, ErrNotExist)
		}
		return nil, fmt.Errorf("objectstore: get %s: %w", key, err)
	}
	return data, nil
}

func (s *S3Store) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	err := s.breaker.Execute(func() error {
		for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
			Prefix:    prefix,
			Recursive: true,
		}) {
			if obj.Err != nil {
				return obj.Err
			}
			out = append(out, ObjectInfo{Key: obj.Key, Size: obj.Size})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("objectstore: list %s: %w", prefix, err)
	}
	return out, nil
}

// OpenAt returns the live minio object, which implements io.ReaderAt over
// ranged GETs — exactly what parquet-go needs for column-level reads
// without downloading whole files.
func (s *S3Store) OpenAt(ctx context.Context, key string) (ReaderAtCloser, int64, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, fmt.Errorf("objectstore: open %s: %w", key, err)
	}
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		if errResp := minio.ToErrorResponse(err); errResp.Code == "NoSuchKey" {
			return nil, 0, fmt.Errorf("%s: %w", key, ErrNotExist)
		}
		return nil, 0, fmt.Errorf("objectstore: stat %s: %w", key, err)
	}
	return obj, info.Size, nil
}
