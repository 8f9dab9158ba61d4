package port

import (
	"context"

	"github.com/fiapx/fiapx-album-harvester/internal/domain/entity"
)

// MediaDownloader fetches one file into the task directory. It blocks until
// done and returns a failure record when every attempt failed, nil on
// success or when the file was skipped.
type MediaDownloader interface {
	Download(ctx context.Context, task entity.DownloadTask, progress ItemProgress, retries int) *entity.FailureRecord
}
