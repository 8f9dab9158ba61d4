package port

import (
	"context"

	"github.com/fiapx/fiapx-album-harvester/internal/domain/entity"
	"github.com/google/uuid"
)

type AlbumJobRepository interface {
	Create(ctx context.Context, job *entity.AlbumJob) error
	Update(ctx context.Context, job *entity.AlbumJob) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.AlbumJob, error)
	RecordFailures(ctx context.Context, jobID uuid.UUID, failures []entity.FailureRecord) error
}
