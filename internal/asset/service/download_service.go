package service

import (
	"context"
	"fmt"
	"io"

	"github.com/anthanhphan/gosdk/logger"
	"github.com/peerclass/asset-service/internal/asset/domain"
	"github.com/peerclass/asset-service/pkg/catp"
)

// downloadService resolves asset references and streams content back out of
// the object store.
type downloadService struct {
	core *AssetServiceImpl
}

// newDownloadService creates the download use-case service.
func newDownloadService(core *AssetServiceImpl) *downloadService {
	return &downloadService{core: core}
}

// download resolves the reference to a catalog record and opens the stored
// object for reading. The caller owns the returned reader.
func (s *downloadService) download(ctx context.Context, ref domain.AssetRef) (*domain.AssetRecord, io.ReadCloser, error) {
	record, err := s.resolve(ctx, ref)
	if err != nil {
		return nil, nil, err
	}

	reader, err := s.core.store.Get(ctx, record.StoreLocation)
	if err != nil {
		logger.Errorw("Download open failed", "asset_id", record.ID, "error", err.Error())
		return nil, nil, fmt.Errorf("open object for asset %s: %w", record.ID, err)
	}

	logger.Infow("Download started", "asset_id", record.ID, "size_bytes", record.Size)
	return record, reader, nil
}

// resolve looks the asset up by ID, or by parent plus filename when no ID is
// given.
func (s *downloadService) resolve(ctx context.Context, ref domain.AssetRef) (*domain.AssetRecord, error) {
	if ref.AssetID != "" {
		return s.core.assets.GetAsset(ctx, ref.AssetID)
	}
	if ref.ParentID == "" || ref.Filename == "" {
		return nil, fmt.Errorf("%w: download needs an asset id or a parent id and filename", catp.ErrInvalidArgument)
	}
	return s.core.assets.FindAsset(ctx, ref.ParentID, ref.Filename)
}
