package port

import (
	"context"
	"io"
)

// ArchiveStorage keeps album outputs in an object store.
type ArchiveStorage interface {
	UploadArchive(ctx context.Context, objectKey string, reader io.Reader, size int64) error
	UploadFile(ctx context.Context, objectKey string, path string) error
}
