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
)

// uploadService orchestrates the chunk-receive pipeline from stream to store
// and catalog.
type uploadService struct {
	core *AssetServiceImpl
}

// putResult carries the store-write task outcome across the conduit.
type putResult struct {
	location string
	err      error
}

// newUploadService creates the upload use-case service.
func newUploadService(core *AssetServiceImpl) *uploadService {
	return &uploadService{core: core}
}

// upload performs the full upload workflow: metadata validation, attachment
// ceiling check, streaming the chunk sequence into the object store, size
// accounting, and catalog persistence.
func (s *uploadService) upload(ctx context.Context, meta domain.AssetMetadata, chunks port.ChunkSource) (*domain.AssetRecord, error) {
	limits := s.core.cfg.Limits
	if err := meta.Validate(limits.MaxFileSize); err != nil {
		return nil, err
	}

	count, err := s.core.assets.CountByParent(ctx, meta.ParentID)
	if err != nil {
		return nil, fmt.Errorf("count attachments for parent %s: %w", meta.ParentID, err)
	}
	if count >= limits.MaxAttachments {
		return nil, fmt.Errorf("%w: parent %s already has %d of %d attachments",
			catp.ErrLimitExceeded, meta.ParentID, count, limits.MaxAttachments)
	}

	assetID, err := s.core.newID()
	if err != nil {
		return nil, err
	}

	logger.Infow("Upload started",
		"asset_id", assetID,
		"parent_id", meta.ParentID,
		"file_name", meta.Filename,
		"declared_size", meta.TotalSize)

	callCtx, cancel := context.WithTimeout(ctx, limits.UploadTimeout())
	defer cancel()

	key := objectKey(meta.ParentID, assetID, meta.Filename)
	location, received, err := s.streamToStore(callCtx, key, meta, chunks)
	if err != nil {
		logger.Errorw("Upload failed", "asset_id", assetID, "error", err.Error())
		return nil, s.mapStreamError(ctx, callCtx, err)
	}

	if received != meta.TotalSize {
		s.discardObject(ctx, location)
		logger.Errorw("Upload size mismatch",
			"asset_id", assetID, "declared", meta.TotalSize, "received", received)
		return nil, fmt.Errorf("%w: declared %d bytes, received %d",
			catp.ErrSizeMismatch, meta.TotalSize, received)
	}

	record := &domain.AssetRecord{
		ID:            assetID,
		ParentID:      meta.ParentID,
		Filename:      meta.Filename,
		Size:          received,
		ContentType:   meta.ContentType,
		StoreLocation: location,
		UploadedAt:    time.Now().UTC(),
	}
	if err := s.core.assets.SaveAsset(ctx, record); err != nil {
		s.discardObject(ctx, location)
		logger.Errorw("Catalog persistence failed", "asset_id", assetID, "error", err.Error())
		return nil, fmt.Errorf("save asset %s: %w", assetID, err)
	}

	logger.Infow("Upload completed", "asset_id", assetID, "size_bytes", received, "location", location)
	return record, nil
}

// streamToStore bridges the chunk source and the object store through a pipe.
// The store-write task consumes the pipe reader concurrently while this
// goroutine pumps chunks into the writer, so chunk receive and store write
// overlap without buffering the whole asset.
func (s *uploadService) streamToStore(ctx context.Context, key string, meta domain.AssetMetadata, chunks port.ChunkSource) (string, int64, error) {
	pr, pw := io.Pipe()
	done := make(chan putResult, 1)

	go func() {
		location, err := s.core.store.Put(ctx, key, pr)
		if err != nil {
			// Unblock the feeding side immediately.
			_ = pr.CloseWithError(err)
		}
		done <- putResult{location: location, err: err}
	}()

	var received int64
	feedErr := func() error {
		for {
			data, err := chunks.Next(ctx)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("receive chunk: %w", err)
			}
			if received+int64(len(data)) > meta.TotalSize {
				return fmt.Errorf("%w: stream exceeds declared size of %d bytes",
					catp.ErrSizeMismatch, meta.TotalSize)
			}
			if _, err := pw.Write(data); err != nil {
				// The store task failed and closed its end; its error is
				// authoritative.
				return fmt.Errorf("store write: %w", err)
			}
			received += int64(len(data))
		}
	}()

	if feedErr != nil {
		_ = pw.CloseWithError(feedErr)
	} else {
		_ = pw.Close()
	}

	res := s.awaitStoreTask(ctx, done)
	if feedErr != nil {
		if res.err == nil && res.location != "" {
			s.discardObject(ctx, res.location)
		}
		return "", received, feedErr
	}
	if res.err != nil {
		return "", received, fmt.Errorf("store put: %w", res.err)
	}
	return res.location, received, nil
}

// awaitStoreTask joins the store-write goroutine. The task runs under the
// call context so it terminates on its own after cancellation; the grace
// timer only bounds how long we block on that teardown before logging and
// abandoning the join.
func (s *uploadService) awaitStoreTask(ctx context.Context, done <-chan putResult) putResult {
	select {
	case res := <-done:
		return res
	case <-ctx.Done():
	}

	grace := time.NewTimer(s.core.cfg.Limits.CancelGrace())
	defer grace.Stop()
	select {
	case res := <-done:
		return res
	case <-grace.C:
		logger.Warnw("Store-write task did not stop within grace period")
		return putResult{err: ctx.Err()}
	}
}

// mapStreamError normalizes pipeline failures to the protocol error taxonomy.
// Timeout of the per-call deadline and caller disconnect surface as distinct
// codes; everything already carrying a protocol sentinel passes through.
func (s *uploadService) mapStreamError(parent, call context.Context, err error) error {
	switch {
	case errors.Is(err, catp.ErrSizeMismatch),
		errors.Is(err, catp.ErrInvalidArgument),
		errors.Is(err, catp.ErrLimitExceeded):
		return err
	case errors.Is(call.Err(), context.DeadlineExceeded), errors.Is(parent.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: upload exceeded %s", catp.ErrDeadlineExceeded, s.core.cfg.Limits.UploadTimeout())
	case parent.Err() != nil:
		return fmt.Errorf("%w: caller went away", catp.ErrCanceled)
	default:
		return err
	}
}

// discardObject removes a store object that must not outlive a failed upload.
// Runs detached from request cancellation so cleanup still happens when the
// caller is already gone.
func (s *uploadService) discardObject(ctx context.Context, location string) {
	if location == "" {
		return
	}
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := s.core.store.Delete(cleanupCtx, location); err != nil {
		logger.Warnw("Orphan object cleanup failed", "location", location, "error", err.Error())
	}
}
