package port

import (
	"context"

	"github.com/fiapx/fiapx-album-harvester/internal/domain/entity"
)

// PageResolver turns album and item pages into direct download links.
type PageResolver interface {
	ResolveAlbum(ctx context.Context, albumURL string) (*entity.Album, error)
	ResolveItem(ctx context.Context, itemPage string) (downloadLink string, filename string, err error)
}
