package storage

import (
	"bytes"
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/oyounis19/beyond-rag/internal/config"
	"github.com/oyounis19/beyond-rag/internal/logger"
	"github.com/oyounis19/beyond-rag/utils"
)

// ObjectStore keeps raw uploads so a document can be re-parsed or audited
// after ingestion.
type ObjectStore struct {
	client *minio.Client
	bucket string
}

// NewObjectStore connects to the object store and ensures the bucket exists.
func NewObjectStore(ctx context.Context, cfg *config.Config) (*ObjectStore, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, utils.WrapError(utils.KindStore, "connect object store", err)
	}

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, utils.WrapError(utils.KindStore, "check bucket", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, utils.WrapError(utils.KindStore, "create bucket", err)
		}
		logger.Info("Created object store bucket", "bucket", cfg.MinioBucket)
	}

	return &ObjectStore{client: client, bucket: cfg.MinioBucket}, nil
}

// Put writes raw bytes under the given key.
func (o *ObjectStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := o.client.PutObject(ctx, o.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return utils.WrapError(utils.KindStore, "put object", err)
	}
	return nil
}

// Get reads the full object back.
func (o *ObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := o.client.GetObject(ctx, o.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, utils.WrapError(utils.KindStore, "get object", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, utils.WrapError(utils.KindStore, "read object", err)
	}
	return data, nil
}

// Delete removes the object. Missing keys are not an error.
func (o *ObjectStore) Delete(ctx context.Context, key string) error {
	if err := o.client.RemoveObject(ctx, o.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return utils.WrapError(utils.KindStore, "delete object", err)
	}
	return nil
}
