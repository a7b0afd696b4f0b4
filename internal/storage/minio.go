package storage

import (
	"bytes"
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig holds connection settings for a MinIO (or any S3-compatible)
// endpoint.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// MinioStore implements ObjectStore backed by the MinIO SDK.
type MinioStore struct {
	client *minio.Client
}

// NewMinioStore creates an object store client. The client is constructed once
// at process start and injected into the components that need it.
func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	return &MinioStore{client: client}, nil
}

func (s *MinioStore) Put(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", wrapError("put", bucket, key, err)
	}
	return bucket + "/" + key, nil
}

func (s *MinioStore) Get(ctx context.Context, bucket, key string) ([]byte, map[string]string, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, wrapError("get", bucket, key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, nil, wrapError("get", bucket, key, err)
	}

	headers := map[string]string{}
	if stat, err := obj.Stat(); err == nil {
		headers["Content-Type"] = stat.ContentType
		headers["ETag"] = stat.ETag
	}
	return data, headers, nil
}

func (s *MinioStore) EnsureBucket(ctx context.Context, name string) error {
	exists, err := s.client.BucketExists(ctx, name)
	if err != nil {
		return wrapError("ensure_bucket", name, "", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, name, minio.MakeBucketOptions{}); err != nil {
		return wrapError("ensure_bucket", name, "", err)
	}
	return nil
}

var _ ObjectStore = (*MinioStore)(nil)
