package catp_handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/anthanhphan/gosdk/logger"
	"github.com/peerclass/asset-service/internal/asset/domain"
	"github.com/peerclass/asset-service/pkg/catp"
)

var errMissingMetadata = fmt.Errorf("%w: chunk frame before metadata", catp.ErrInvalidArgument)

func errUnknownFrame(t catp.FrameType) error {
	return fmt.Errorf("%w: unexpected opening frame %#x", catp.ErrInvalidArgument, byte(t))
}

// expireReadOn arranges for the socket read to fail once ctx is done. The
// connection stays writable, so the typed error frame still reaches a client
// whose stream just timed out.
func expireReadOn(ctx context.Context, conn net.Conn) func() bool {
	return context.AfterFunc(ctx, func() { _ = conn.SetReadDeadline(time.Now()) })
}

// handleUpload runs a plain single-asset upload under the upload deadline.
func (s *Server) handleUpload(ctx context.Context, cancel context.CancelFunc, conn net.Conn, frame catp.Frame, dec *catp.Decoder, enc *catp.Encoder) {
	var meta catp.Metadata
	if err := frame.Decode(&meta); err != nil {
		s.writeError(enc, fmt.Errorf("%w: %s", catp.ErrInvalidArgument, err))
		return
	}

	ctx, cancelDeadline := context.WithTimeout(ctx, s.cfg.Limits.UploadTimeout())
	defer cancelDeadline()
	stop := expireReadOn(ctx, conn)
	defer stop()

	src := newChunkSource(dec, cancel, meta.First)
	record, err := s.service.Upload(ctx, toDomainMetadata(meta), src)
	if err != nil {
		s.writeError(enc, err)
		return
	}

	if err := enc.Encode(catp.FrameResult, catp.Result{Assets: []catp.AssetDescriptor{toDescriptor(record)}}); err != nil {
		logger.Warnw("Upload result not delivered", "asset_id", record.ID, "error", err.Error())
	}
}

// handleCreateWithAsset runs the combined entity-plus-assets write. The
// deadline scales with the announced file count since each stream gets the
// full upload budget.
func (s *Server) handleCreateWithAsset(ctx context.Context, cancel context.CancelFunc, conn net.Conn, frame catp.Frame, dec *catp.Decoder, enc *catp.Encoder) {
	var req catp.CreateWithAsset
	if err := frame.Decode(&req); err != nil {
		s.writeError(enc, fmt.Errorf("%w: %s", catp.ErrInvalidArgument, err))
		return
	}

	timeout := s.cfg.Limits.UploadTimeout() * time.Duration(max(req.FileCount, 1))
	ctx, cancelDeadline := context.WithTimeout(ctx, timeout)
	defer cancelDeadline()
	stop := expireReadOn(ctx, conn)
	defer stop()

	seq := &wireUploadSequence{
		dec:       dec,
		cancel:    cancel,
		first:     &req.Metadata,
		remaining: max(req.FileCount, 1),
	}
	entity, records, err := s.service.CreateWithAssets(ctx, req.Kind, req.Document, seq)
	if err != nil {
		s.writeError(enc, err)
		return
	}

	result := catp.Result{EntityID: entity.ID, Assets: make([]catp.AssetDescriptor, 0, len(records))}
	for i := range records {
		result.Assets = append(result.Assets, toDescriptor(&records[i]))
	}
	if err := enc.Encode(catp.FrameResult, result); err != nil {
		logger.Warnw("Entity write result not delivered", "entity_id", entity.ID, "error", err.Error())
	}
}

// handleDownload streams the asset back as info, chunk frames of the
// configured size, and a final end frame as the success signal. A stream
// that dies midway simply stops short of the end frame.
func (s *Server) handleDownload(ctx context.Context, frame catp.Frame, enc *catp.Encoder) {
	var req catp.DownloadRequest
	if err := frame.Decode(&req); err != nil {
		s.writeError(enc, fmt.Errorf("%w: %s", catp.ErrInvalidArgument, err))
		return
	}

	ref := domain.AssetRef{AssetID: req.AssetID, ParentID: req.ParentID, Filename: req.Filename}
	record, reader, err := s.service.Download(ctx, ref)
	if err != nil {
		s.writeError(enc, err)
		return
	}
	defer func() { _ = reader.Close() }()

	info := catp.Info{
		Filename:    record.Filename,
		Size:        record.Size,
		ContentType: record.ContentType,
		UploadedAt:  record.UploadedAt,
	}
	if err := enc.Encode(catp.FrameInfo, info); err != nil {
		return
	}

	buf := make([]byte, s.cfg.Limits.ChunkSize)
	for {
		n, err := reader.Read(buf)
		if n > 0 {
			if werr := enc.Encode(catp.FrameChunk, catp.Chunk{Data: buf[:n]}); werr != nil {
				return
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			logger.Errorw("Download stream failed", "asset_id", record.ID, "error", err.Error())
			return
		}
	}

	if err := enc.Encode(catp.FrameEnd, catp.End{}); err != nil {
		logger.Warnw("Download end frame not delivered", "asset_id", record.ID, "error", err.Error())
		return
	}
	logger.Infow("Download completed", "asset_id", record.ID, "size_bytes", record.Size)
}

func (s *Server) handleStat(ctx context.Context, frame catp.Frame, enc *catp.Encoder) {
	var req catp.StatRequest
	if err := frame.Decode(&req); err != nil {
		s.writeError(enc, fmt.Errorf("%w: %s", catp.ErrInvalidArgument, err))
		return
	}

	record, err := s.service.GetAsset(ctx, req.AssetID)
	if err != nil {
		s.writeError(enc, err)
		return
	}
	_ = enc.Encode(catp.FrameDescriptor, toDescriptor(record))
}

func (s *Server) handleList(ctx context.Context, frame catp.Frame, enc *catp.Encoder) {
	var req catp.ListRequest
	if err := frame.Decode(&req); err != nil {
		s.writeError(enc, fmt.Errorf("%w: %s", catp.ErrInvalidArgument, err))
		return
	}

	records, err := s.service.ListAssets(ctx, req.ParentID)
	if err != nil {
		s.writeError(enc, err)
		return
	}

	list := catp.List{Assets: make([]catp.AssetDescriptor, 0, len(records))}
	for i := range records {
		list.Assets = append(list.Assets, toDescriptor(&records[i]))
	}
	if err := enc.Encode(catp.FrameList, list); err != nil {
		logger.Warnw("List result not delivered", "parent_id", req.ParentID, "error", err.Error())
	}
}

func (s *Server) handleDeleteAsset(ctx context.Context, frame catp.Frame, enc *catp.Encoder) {
	var req catp.DeleteAssetRequest
	if err := frame.Decode(&req); err != nil {
		s.writeError(enc, fmt.Errorf("%w: %s", catp.ErrInvalidArgument, err))
		return
	}

	deleted, err := s.service.DeleteAsset(ctx, req.AssetID)
	if err != nil {
		s.writeError(enc, err)
		return
	}
	_ = enc.Encode(catp.FrameBool, catp.Bool{OK: deleted})
}

func (s *Server) handleDeleteEntity(ctx context.Context, frame catp.Frame, enc *catp.Encoder) {
	var req catp.DeleteEntityRequest
	if err := frame.Decode(&req); err != nil {
		s.writeError(enc, fmt.Errorf("%w: %s", catp.ErrInvalidArgument, err))
		return
	}

	deleted, err := s.service.DeleteEntity(ctx, req.EntityID)
	if err != nil {
		s.writeError(enc, err)
		return
	}
	_ = enc.Encode(catp.FrameBool, catp.Bool{OK: deleted})
}

func toDomainMetadata(m catp.Metadata) domain.AssetMetadata {
	return domain.AssetMetadata{
		ParentID:    m.ParentID,
		Filename:    m.Filename,
		TotalSize:   m.TotalSize,
		ContentType: m.ContentType,
	}
}

func toDescriptor(r *domain.AssetRecord) catp.AssetDescriptor {
	return catp.AssetDescriptor{
		ID:          r.ID,
		ParentID:    r.ParentID,
		Filename:    r.Filename,
		Size:        r.Size,
		ContentType: r.ContentType,
		UploadedAt:  r.UploadedAt,
	}
}
