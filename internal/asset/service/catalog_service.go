package service

import (
	"context"
	"fmt"

	"github.com/anthanhphan/gosdk/logger"
	"github.com/peerclass/asset-service/internal/asset/domain"
	"github.com/peerclass/asset-service/pkg/catp"
)

// catalogService covers listing and removal of assets and bare entity
// deletion.
type catalogService struct {
	core *AssetServiceImpl
}

// newCatalogService creates the catalog use-case service.
func newCatalogService(core *AssetServiceImpl) *catalogService {
	return &catalogService{core: core}
}

// getAsset reads one asset record by ID.
func (s *catalogService) getAsset(ctx context.Context, assetID string) (*domain.AssetRecord, error) {
	if assetID == "" {
		return nil, fmt.Errorf("%w: asset id is required", catp.ErrInvalidArgument)
	}
	return s.core.assets.GetAsset(ctx, assetID)
}

// listAssets returns every asset attached to the parent, in filename order.
func (s *catalogService) listAssets(ctx context.Context, parentID string) ([]domain.AssetRecord, error) {
	if parentID == "" {
		return nil, fmt.Errorf("%w: parent id is required", catp.ErrInvalidArgument)
	}
	return s.core.assets.ListByParent(ctx, parentID)
}

// deleteAsset removes the catalog record and then the stored object. Store
// cleanup is best-effort; a removed record is reported as deleted even when
// the object removal fails.
func (s *catalogService) deleteAsset(ctx context.Context, assetID string) (bool, error) {
	if assetID == "" {
		return false, fmt.Errorf("%w: asset id is required", catp.ErrInvalidArgument)
	}
	record, err := s.core.assets.DeleteAsset(ctx, assetID)
	if err != nil {
		return false, fmt.Errorf("delete asset %s: %w", assetID, err)
	}
	if record == nil {
		return false, nil
	}

	if err := s.core.store.Delete(ctx, record.StoreLocation); err != nil {
		logger.Warnw("Stored object removal failed",
			"asset_id", assetID, "location", record.StoreLocation, "error", err.Error())
	}
	logger.Infow("Asset deleted", "asset_id", assetID, "parent_id", record.ParentID)
	return true, nil
}

// deleteEntity removes a parent entity record. Attached assets are left in
// place; callers remove them explicitly.
func (s *catalogService) deleteEntity(ctx context.Context, entityID string) (bool, error) {
	if entityID == "" {
		return false, fmt.Errorf("%w: entity id is required", catp.ErrInvalidArgument)
	}
	deleted, err := s.core.entities.DeleteEntity(ctx, entityID)
	if err != nil {
		return false, fmt.Errorf("delete entity %s: %w", entityID, err)
	}
	if deleted {
		logger.Infow("Entity deleted", "entity_id", entityID)
	}
	return deleted, nil
}
