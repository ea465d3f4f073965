package port

import (
	"context"
	"io"

	"github.com/peerclass/asset-service/pkg/catp"
)

// UploadFile is one file the gateway forwards to the asset node. Size is the
// declared total; the node rejects streams that do not match it.
type UploadFile struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// FileSource yields the files of a combined write one at a time. Next
// returns io.EOF after the last file. Lazy because the files arrive
// sequentially on the caller's request body and each must be fully consumed
// before the next is readable.
type FileSource interface {
	Next(ctx context.Context) (*UploadFile, error)
}

type sliceSource struct {
	files []UploadFile
	pos   int
}

func (s *sliceSource) Next(_ context.Context) (*UploadFile, error) {
	if s.pos >= len(s.files) {
		return nil, io.EOF
	}
	f := &s.files[s.pos]
	s.pos++
	return f, nil
}

// Files wraps an in-memory file list as a source.
func Files(files ...UploadFile) FileSource {
	return &sliceSource{files: files}
}

// AssetClient is the gateway's view of the asset node.
type AssetClient interface {
	// Upload streams one file to the node and returns its descriptor.
	Upload(ctx context.Context, parentID string, file UploadFile) (*catp.AssetDescriptor, error)

	// Download writes the asset's bytes to w. It fails when the node stream
	// ends without the explicit success signal, so a short body is never
	// silently passed through.
	Download(ctx context.Context, req catp.DownloadRequest, w io.Writer) (*catp.Info, error)

	// Stat returns one asset's descriptor without its content.
	Stat(ctx context.Context, assetID string) (*catp.AssetDescriptor, error)

	// List returns descriptors of all assets attached to a parent.
	List(ctx context.Context, parentID string) ([]catp.AssetDescriptor, error)

	// DeleteAsset removes one asset. False when it did not exist.
	DeleteAsset(ctx context.Context, assetID string) (bool, error)

	// DeleteEntity removes a parent entity record.
	DeleteEntity(ctx context.Context, entityID string) (bool, error)

	// CreateWithAssets runs the combined entity-plus-assets write. fileCount
	// announces how many files the source will yield.
	CreateWithAssets(ctx context.Context, kind string, document []byte, fileCount int, files FileSource) (*catp.Result, error)
}
