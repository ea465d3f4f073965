package port

import (
	"context"
	"io"

	"github.com/peerclass/asset-service/internal/asset/domain"
)

// ChunkSource is the lazy frame sequence of one upload, already stripped of
// its metadata frame. Next returns io.EOF at end-of-stream; any other error
// aborts the transfer. A piggybacked first chunk is delivered as the first
// Next result so the pipeline treats both wire shapes identically.
type ChunkSource interface {
	Next(ctx context.Context) ([]byte, error)
}

// PendingUpload pairs declared metadata with its not-yet-consumed chunks.
type PendingUpload struct {
	Meta   domain.AssetMetadata
	Chunks ChunkSource
}

// UploadSequence yields the successive uploads of a combined write. Next
// returns io.EOF after the last upload. Metadata of a later upload may not
// be readable before the previous chunk stream is drained, which is why the
// sequence is lazy.
type UploadSequence interface {
	NextUpload(ctx context.Context) (*PendingUpload, error)
}

type sliceSequence struct {
	uploads []PendingUpload
	pos     int
}

func (s *sliceSequence) NextUpload(_ context.Context) (*PendingUpload, error) {
	if s.pos >= len(s.uploads) {
		return nil, io.EOF
	}
	up := &s.uploads[s.pos]
	s.pos++
	return up, nil
}

// Uploads wraps an in-memory set of pending uploads as a sequence.
func Uploads(uploads ...PendingUpload) UploadSequence {
	return &sliceSequence{uploads: uploads}
}

// AssetService is the business surface of the asset subsystem.
type AssetService interface {
	// Upload runs the full upload pipeline for one transfer and returns the
	// persisted record. On any failure no record and no store object remain.
	Upload(ctx context.Context, meta domain.AssetMetadata, chunks ChunkSource) (*domain.AssetRecord, error)

	// Download resolves the asset and opens a store read stream. The caller
	// owns the reader and must emit an explicit success signal after the last
	// chunk so receivers can distinguish completion from a dead stream.
	Download(ctx context.Context, ref domain.AssetRef) (*domain.AssetRecord, io.ReadCloser, error)

	// GetAsset returns one asset's record without opening its content.
	GetAsset(ctx context.Context, assetID string) (*domain.AssetRecord, error)

	// ListAssets returns descriptors of all assets attached to a parent.
	ListAssets(ctx context.Context, parentID string) ([]domain.AssetRecord, error)

	// DeleteAsset removes a record and its stored object. False when absent.
	DeleteAsset(ctx context.Context, assetID string) (bool, error)

	// DeleteEntity is the compensating action. False when absent.
	DeleteEntity(ctx context.Context, entityID string) (bool, error)

	// CreateWithAssets runs the two-step write saga: persist the parent
	// entity, then upload its mandatory asset(s). Asset failure triggers a
	// best-effort compensating delete of the entity.
	CreateWithAssets(ctx context.Context, kind string, document []byte, uploads UploadSequence) (*domain.ParentEntity, []domain.AssetRecord, error)
}
