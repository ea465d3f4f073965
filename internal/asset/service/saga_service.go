package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/anthanhphan/gosdk/logger"
	"github.com/peerclass/asset-service/internal/asset/domain"
	"github.com/peerclass/asset-service/internal/asset/port"
	"github.com/peerclass/asset-service/pkg/catp"
	"github.com/peerclass/asset-service/pkg/resilience"
)

// sagaService orchestrates the combined entity-plus-assets write: create the
// entity record first, attach the uploads, and compensate by deleting the
// entity when any upload fails.
type sagaService struct {
	core *AssetServiceImpl
}

// entitySaga tracks one in-flight combined write.
type entitySaga struct {
	entityID string
	kind     string
	state    domain.SagaState
}

// newSagaService creates the entity write use-case service.
func newSagaService(core *AssetServiceImpl) *sagaService {
	return &sagaService{core: core}
}

// createWithAssets runs the combined write. On success the entity and all
// asset records exist together; on upload failure the entity is removed so
// no entity without its declared assets becomes visible.
func (s *sagaService) createWithAssets(ctx context.Context, kind string, document []byte, uploads port.UploadSequence) (*domain.ParentEntity, []domain.AssetRecord, error) {
	if kind == "" {
		return nil, nil, fmt.Errorf("%w: entity kind is required", catp.ErrInvalidArgument)
	}

	entityID, err := s.core.newID()
	if err != nil {
		return nil, nil, err
	}
	entity := &domain.ParentEntity{
		ID:        entityID,
		Kind:      kind,
		Document:  document,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.core.entities.CreateEntity(ctx, entity); err != nil {
		return nil, nil, fmt.Errorf("create %s entity: %w", kind, err)
	}

	saga := &entitySaga{entityID: entityID, kind: kind, state: domain.SagaCreated}
	logger.Infow("Entity write started", "entity_id", entityID, "kind", kind)

	saga.state = domain.SagaAssetPending
	var records []domain.AssetRecord
	for {
		up, err := uploads.NextUpload(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, s.rollback(ctx, saga, records, fmt.Errorf("receive next upload: %w", err))
		}
		meta := up.Meta
		meta.ParentID = entityID
		record, err := s.core.uploadUseCase.upload(ctx, meta, up.Chunks)
		if err != nil {
			return nil, nil, s.rollback(ctx, saga, records, err)
		}
		records = append(records, *record)
	}
	if len(records) == 0 {
		err := fmt.Errorf("%w: a combined write needs at least one asset", catp.ErrInvalidArgument)
		return nil, nil, s.rollback(ctx, saga, nil, err)
	}

	saga.state = domain.SagaCommitted
	logger.Infow("Entity write committed", "entity_id", entityID, "kind", kind, "assets", len(records))
	return entity, records, nil
}

// rollback compensates a failed combined write: already-attached assets are
// removed in parallel, then the entity record itself. Compensation runs
// detached from request cancellation.
func (s *sagaService) rollback(ctx context.Context, saga *entitySaga, attached []domain.AssetRecord, uploadErr error) error {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 60*time.Second)
	defer cancel()

	if len(attached) > 0 {
		pool := resilience.NewWorkerPool(4, len(attached))
		for _, record := range attached {
			assetID := record.ID
			if err := pool.Submit(cleanupCtx, func() {
				if _, err := s.core.catalogUseCase.deleteAsset(cleanupCtx, assetID); err != nil {
					logger.Warnw("Rollback asset cleanup failed",
						"entity_id", saga.entityID, "asset_id", assetID, "error", err.Error())
				}
			}); err != nil {
				logger.Warnw("Rollback asset cleanup not scheduled",
					"entity_id", saga.entityID, "asset_id", assetID, "error", err.Error())
			}
		}
		pool.Close()
		pool.Wait()
	}

	if _, err := s.core.entities.DeleteEntity(cleanupCtx, saga.entityID); err != nil {
		logger.Errorw("Entity compensation failed, entity is orphaned",
			"entity_id", saga.entityID, "kind", saga.kind,
			"upload_error", uploadErr.Error(), "delete_error", err.Error())
		return &domain.OrphanedEntityError{
			EntityID:  saga.entityID,
			Kind:      saga.kind,
			UploadErr: uploadErr,
			DeleteErr: err,
		}
	}

	saga.state = domain.SagaRolledBack
	logger.Warnw("Entity write rolled back",
		"entity_id", saga.entityID, "kind", saga.kind, "error", uploadErr.Error())
	return fmt.Errorf("%s entity write rolled back: %w", saga.kind, uploadErr)
}
