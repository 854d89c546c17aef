package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/tags"

	"github.com/mario-guerra/translation-service/internal/domain/port"
)

// Tag key carrying the container creation timestamp, used by the
// retention sweeper.
const creationDateTag = "creation-date"

// Storage adapts MinIO to the ArtifactStore and ContainerStore ports.
// Containers map to buckets.
type Storage struct {
	client *miniogo.Client
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

func NewStorage(cfg StorageConfig) (*Storage, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &Storage{client: client}, nil
}

func (s *Storage) DownloadFile(ctx context.Context, container, blobName, destPath string) error {
	err := s.client.FGetObject(ctx, container, blobName, destPath, miniogo.GetObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("download %s/%s: %w", container, blobName, port.ErrBlobNotFound)
		}
		return fmt.Errorf("download %s/%s: %w", container, blobName, err)
	}
	return nil
}

func (s *Storage) UploadText(ctx context.Context, container, blobName, content string) error {
	r := strings.NewReader(content)
	_, err := s.client.PutObject(ctx, container, blobName, r, int64(r.Len()), miniogo.PutObjectOptions{
		ContentType: "text/plain; charset=utf-8",
	})
	if err != nil {
		return fmt.Errorf("upload text %s/%s: %w", container, blobName, err)
	}
	return nil
}

func (s *Storage) UploadFile(ctx context.Context, container, blobName, localPath, contentType string) error {
	_, err := s.client.FPutObject(ctx, container, blobName, localPath, miniogo.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("upload file %s/%s: %w", container, blobName, err)
	}
	return nil
}

func (s *Storage) GetJSON(ctx context.Context, container, blobName string, out any) error {
	obj, err := s.client.GetObject(ctx, container, blobName, miniogo.GetObjectOptions{})
	if err != nil {
		return fmt.Errorf("get %s/%s: %w", container, blobName, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("get %s/%s: %w", container, blobName, port.ErrBlobNotFound)
		}
		return fmt.Errorf("read %s/%s: %w", container, blobName, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s/%s: %w", container, blobName, err)
	}
	return nil
}

func (s *Storage) CreateContainer(ctx context.Context, name string) error {
	exists, err := s.client.BucketExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check container %s: %w", name, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, name, miniogo.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create container %s: %w", name, err)
		}
	}

	created, err := tags.NewTags(map[string]string{
		creationDateTag: time.Now().UTC().Format(time.RFC3339),
	}, false)
	if err != nil {
		return fmt.Errorf("build container tags: %w", err)
	}
	if err := s.client.SetBucketTagging(ctx, name, created); err != nil {
		return fmt.Errorf("tag container %s: %w", name, err)
	}
	return nil
}

func (s *Storage) ListContainers(ctx context.Context) ([]string, error) {
	buckets, err := s.client.ListBuckets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}
	names := make([]string, 0, len(buckets))
	for _, b := range buckets {
		names = append(names, b.Name)
	}
	return names, nil
}

func (s *Storage) ContainerCreationDate(ctx context.Context, name string) (time.Time, error) {
	t, err := s.client.GetBucketTagging(ctx, name)
	if err != nil {
		return time.Time{}, fmt.Errorf("get tags for container %s: %w", name, err)
	}
	raw, ok := t.ToMap()[creationDateTag]
	if !ok {
		return time.Time{}, fmt.Errorf("container %s has no %s tag", name, creationDateTag)
	}
	created, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse creation date of container %s: %w", name, err)
	}
	return created, nil
}

func (s *Storage) DeleteContainer(ctx context.Context, name string) error {
	// Buckets must be empty before removal.
	objects := s.client.ListObjects(ctx, name, miniogo.ListObjectsOptions{Recursive: true})
	for obj := range objects {
		if obj.Err != nil {
			return fmt.Errorf("list objects in container %s: %w", name, obj.Err)
		}
		if err := s.client.RemoveObject(ctx, name, obj.Key, miniogo.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("remove %s/%s: %w", name, obj.Key, err)
		}
	}
	if err := s.client.RemoveBucket(ctx, name); err != nil {
		return fmt.Errorf("remove container %s: %w", name, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var resp miniogo.ErrorResponse
	if errors.As(err, &resp) {
		return resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket"
	}
	return false
}
