package service

import (
	"context"
	"io"

	"github.com/peerclass/asset-service/internal/asset/config"
	"github.com/peerclass/asset-service/internal/asset/domain"
	"github.com/peerclass/asset-service/internal/asset/port"
)

//go:generate mockgen -destination=mocks/dependencies_mock.go -package=mocks -source=asset.go

// IDGenerator defines ID generation capability.
type IDGenerator interface {
	Next() (int64, error)
}

// AssetServiceImpl is the facade that wires use-case services for asset
// transfer and the entity write saga.
type AssetServiceImpl struct {
	cfg      *config.Config
	store    port.ObjectStore
	assets   port.AssetRepository
	entities port.EntityRepository
	idGen    IDGenerator

	uploadUseCase   *uploadService
	downloadUseCase *downloadService
	catalogUseCase  *catalogService
	sagaUseCase     *sagaService
}

// Ensure AssetServiceImpl implements port.AssetService.
var _ port.AssetService = (*AssetServiceImpl)(nil)

// NewAssetService builds the asset service facade and all use-case services.
func NewAssetService(
	cfg *config.Config,
	store port.ObjectStore,
	assets port.AssetRepository,
	entities port.EntityRepository,
	idGen IDGenerator,
) *AssetServiceImpl {
	svc := &AssetServiceImpl{
		cfg:      cfg,
		store:    store,
		assets:   assets,
		entities: entities,
		idGen:    idGen,
	}

	svc.uploadUseCase = newUploadService(svc)
	svc.downloadUseCase = newDownloadService(svc)
	svc.catalogUseCase = newCatalogService(svc)
	svc.sagaUseCase = newSagaService(svc)

	return svc
}

// Upload delegates to the upload pipeline.
func (s *AssetServiceImpl) Upload(ctx context.Context, meta domain.AssetMetadata, chunks port.ChunkSource) (*domain.AssetRecord, error) {
	return s.uploadUseCase.upload(ctx, meta, chunks)
}

// Download delegates to the download pipeline.
func (s *AssetServiceImpl) Download(ctx context.Context, ref domain.AssetRef) (*domain.AssetRecord, io.ReadCloser, error) {
	return s.downloadUseCase.download(ctx, ref)
}

// GetAsset delegates to the catalog use-case service.
func (s *AssetServiceImpl) GetAsset(ctx context.Context, assetID string) (*domain.AssetRecord, error) {
	return s.catalogUseCase.getAsset(ctx, assetID)
}

// ListAssets delegates to the catalog use-case service.
func (s *AssetServiceImpl) ListAssets(ctx context.Context, parentID string) ([]domain.AssetRecord, error) {
	return s.catalogUseCase.listAssets(ctx, parentID)
}

// DeleteAsset delegates to the catalog use-case service.
func (s *AssetServiceImpl) DeleteAsset(ctx context.Context, assetID string) (bool, error) {
	return s.catalogUseCase.deleteAsset(ctx, assetID)
}

// DeleteEntity delegates to the catalog use-case service.
func (s *AssetServiceImpl) DeleteEntity(ctx context.Context, entityID string) (bool, error) {
	return s.catalogUseCase.deleteEntity(ctx, entityID)
}

// CreateWithAssets delegates to the entity write saga.
func (s *AssetServiceImpl) CreateWithAssets(ctx context.Context, kind string, document []byte, uploads port.UploadSequence) (*domain.ParentEntity, []domain.AssetRecord, error) {
	return s.sagaUseCase.createWithAssets(ctx, kind, document, uploads)
}
