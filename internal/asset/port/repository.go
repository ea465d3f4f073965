package port

import (
	"context"
	"io"

	"github.com/peerclass/asset-service/internal/asset/domain"
)

//go:generate mockgen -destination=../service/mocks/repository_mock.go -package=mocks -source=repository.go

// ObjectStore is the long-term binary store. Put consumes the reader until
// EOF and returns the final object location; an aborted or failed Put must
// leave no partial object behind.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader) (string, error)
	Get(ctx context.Context, location string) (io.ReadCloser, error)
	Delete(ctx context.Context, location string) error
}

// AssetRepository persists completed asset records.
type AssetRepository interface {
	SaveAsset(ctx context.Context, rec *domain.AssetRecord) error
	GetAsset(ctx context.Context, assetID string) (*domain.AssetRecord, error)
	FindAsset(ctx context.Context, parentID, filename string) (*domain.AssetRecord, error)
	ListByParent(ctx context.Context, parentID string) ([]domain.AssetRecord, error)
	CountByParent(ctx context.Context, parentID string) (int, error)
	DeleteAsset(ctx context.Context, assetID string) (*domain.AssetRecord, error)
}

// EntityRepository persists parent entity rows, the saga's shared state.
type EntityRepository interface {
	CreateEntity(ctx context.Context, e *domain.ParentEntity) error
	GetEntity(ctx context.Context, entityID string) (*domain.ParentEntity, error)
	DeleteEntity(ctx context.Context, entityID string) (bool, error)
}
