package store

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
)

const objectPrefix = "content/"

// MinioContentStore keeps the content namespace as objects in a bucket,
// for deployments where large payloads should stay out of the KV store.
type MinioContentStore struct {
	client *minio.Client
	bucket string
}

// NewMinioContentStore uses an already initialised client and bucket.
func NewMinioContentStore(client *minio.Client, bucket string) *MinioContentStore {
	return &MinioContentStore{client: client, bucket: bucket}
}

func objectName(id string) string { return objectPrefix + id }

func (s *MinioContentStore) GetContent(ctx context.Context, id string) (string, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectName(id), minio.GetObjectOptions{})
	if err != nil {
		return "", s.mapErr(err)
	}
	defer obj.Close()

	if _, err := obj.Stat(); err != nil {
		return "", s.mapErr(err)
	}
	data, err := io.ReadAll(obj)
	if err != nil {
		return "", s.mapErr(err)
	}
	return string(data), nil
}

func (s *MinioContentStore) PutContent(ctx context.Context, id, blob string) error {
	_, err := s.client.PutObject(
		ctx,
		s.bucket,
		objectName(id),
		strings.NewReader(blob),
		int64(len(blob)),
		minio.PutObjectOptions{ContentType: "text/plain"},
	)
	if err != nil {
		return fmt.Errorf("minio put content: %w", err)
	}
	return nil
}

func (s *MinioContentStore) DeleteContent(ctx context.Context, id string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, objectName(id), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("minio delete content: %w", err)
	}
	return nil
}

func (s *MinioContentStore) mapErr(err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrNotFound
	}
	return fmt.Errorf("minio get content: %w", err)
}
