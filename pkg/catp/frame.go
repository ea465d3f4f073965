// Package catp implements the Chunked Asset Transfer Protocol wire format:
// discrete frames carrying one metadata message followed by chunk messages,
// independent of the transport the frames travel on.
package catp

import (
	"time"

	"github.com/fxamacker/cbor/v2"
)

// FrameType identifies the payload carried by a frame.
type FrameType byte

const (
	// Upload direction.
	FrameMetadata FrameType = 0x01
	FrameChunk    FrameType = 0x02
	FrameEnd      FrameType = 0x03

	// Download direction.
	FrameInfo FrameType = 0x10

	// Responses.
	FrameResult     FrameType = 0x20
	FrameError      FrameType = 0x21
	FrameBool       FrameType = 0x22
	FrameList       FrameType = 0x23
	FrameDescriptor FrameType = 0x24

	// Companion requests.
	FrameDownloadRequest     FrameType = 0x30
	FrameListRequest         FrameType = 0x31
	FrameDeleteAssetRequest  FrameType = 0x32
	FrameDeleteEntityRequest FrameType = 0x33
	FrameCreateWithAsset     FrameType = 0x34
	FrameStatRequest         FrameType = 0x35
)

// Metadata is the mandatory first frame of an upload. First may piggyback an
// initial chunk; receivers must treat it exactly like a separate chunk frame.
type Metadata struct {
	ParentID    string `cbor:"parent_id"`
	Filename    string `cbor:"filename"`
	TotalSize   int64  `cbor:"total_size"`
	ContentType string `cbor:"content_type"`
	First       []byte `cbor:"first,omitempty"`
}

// Chunk carries one slice of asset bytes in stream order.
type Chunk struct {
	Data []byte `cbor:"data"`
}

// End terminates a chunk sequence. On downloads it is the explicit success
// signal; a stream that stops without it must be discarded by the caller.
type End struct{}

// Info is the single descriptor frame preceding download chunks.
type Info struct {
	Filename    string    `cbor:"filename"`
	Size        int64     `cbor:"size"`
	ContentType string    `cbor:"content_type"`
	UploadedAt  time.Time `cbor:"uploaded_at"`
}

// AssetDescriptor is the caller-facing view of a stored asset.
type AssetDescriptor struct {
	ID          string    `cbor:"id"`
	ParentID    string    `cbor:"parent_id"`
	Filename    string    `cbor:"filename"`
	Size        int64     `cbor:"size"`
	ContentType string    `cbor:"content_type"`
	UploadedAt  time.Time `cbor:"uploaded_at"`
}

// Result acknowledges a completed upload or combined write. A plain upload
// carries a single descriptor; a combined write may carry several plus the
// ID of the entity they were attached to.
type Result struct {
	Assets   []AssetDescriptor `cbor:"assets"`
	EntityID string            `cbor:"entity_id,omitempty"`
}

// Error carries a typed failure across the wire.
type Error struct {
	Code    string `cbor:"code"`
	Message string `cbor:"message"`
}

// Bool is the response to delete requests.
type Bool struct {
	OK bool `cbor:"ok"`
}

// List is the response to FrameListRequest.
type List struct {
	Assets []AssetDescriptor `cbor:"assets"`
}

// DownloadRequest resolves an asset either by ID or by (parent, filename).
type DownloadRequest struct {
	AssetID  string `cbor:"asset_id,omitempty"`
	ParentID string `cbor:"parent_id,omitempty"`
	Filename string `cbor:"filename,omitempty"`
}

// ListRequest asks for all assets attached to one parent.
type ListRequest struct {
	ParentID string `cbor:"parent_id"`
}

// DeleteAssetRequest removes one asset record and its stored object.
type DeleteAssetRequest struct {
	AssetID string `cbor:"asset_id"`
}

// StatRequest asks for one asset's descriptor without opening its content
// stream. The response is a FrameDescriptor carrying an AssetDescriptor.
type StatRequest struct {
	AssetID string `cbor:"asset_id"`
}

// DeleteEntityRequest is the saga's compensating action.
type DeleteEntityRequest struct {
	EntityID string `cbor:"entity_id"`
}

// CreateWithAsset opens a create-entity-plus-mandatory-asset saga call.
// Chunk frames for the first asset follow; FileCount > 1 announces that
// further Metadata+Chunk sequences follow on the same connection.
type CreateWithAsset struct {
	Kind      string   `cbor:"kind"`
	Document  []byte   `cbor:"document"`
	FileCount int      `cbor:"file_count"`
	Metadata  Metadata `cbor:"metadata"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	dm, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}
	encMode = em
	decMode = dm
}
