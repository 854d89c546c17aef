package port

import (
	"context"
	"errors"
	"time"
)

// ErrBlobNotFound is returned by ArtifactStore reads when the blob or
// its container does not exist.
var ErrBlobNotFound = errors.New("blob not found")

// ArtifactStore is the blob-level view of the object store used by the
// pipeline.
type ArtifactStore interface {
	DownloadFile(ctx context.Context, container, blobName, destPath string) error
	UploadText(ctx context.Context, container, blobName, content string) error
	UploadFile(ctx context.Context, container, blobName, localPath, contentType string) error
	GetJSON(ctx context.Context, container, blobName string, out any) error
}

// ContainerStore is the container-level view of the object store,
// used by the upload intake and the retention sweeper. The worker
// itself never creates or deletes containers.
type ContainerStore interface {
	CreateContainer(ctx context.Context, name string) error
	ListContainers(ctx context.Context) ([]string, error)
	ContainerCreationDate(ctx context.Context, name string) (time.Time, error)
	DeleteContainer(ctx context.Context, name string) error
}
