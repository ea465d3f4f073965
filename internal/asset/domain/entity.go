package domain

import (
	"fmt"
	"time"

	"github.com/peerclass/asset-service/pkg/catp"
)

// ParentEntity is the metadata row (article, lab, submission, feedback) an
// asset attaches to. The document body is opaque to this service; schema
// design belongs to the owning CRUD service.
type ParentEntity struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Document  []byte    `json:"document"`
	CreatedAt time.Time `json:"created_at"`
}

// SagaState tracks one create-entity-plus-asset write.
type SagaState int

const (
	SagaCreated SagaState = iota
	SagaAssetPending
	SagaCommitted
	SagaRolledBack
)

func (s SagaState) String() string {
	switch s {
	case SagaCreated:
		return "created"
	case SagaAssetPending:
		return "asset_pending"
	case SagaCommitted:
		return "committed"
	case SagaRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// OrphanedEntityError flags the inconsistency window left behind when the
// asset step failed AND the compensating entity delete also failed. It is an
// operational condition for alerting, never a normal caller-facing error.
type OrphanedEntityError struct {
	EntityID  string
	Kind      string
	UploadErr error
	DeleteErr error
}

func (e *OrphanedEntityError) Error() string {
	return fmt.Sprintf(
		"entity %s (%s) orphaned: asset upload failed (%v) and compensation failed (%v)",
		e.EntityID, e.Kind, e.UploadErr, e.DeleteErr,
	)
}

// Unwrap exposes the original upload failure so callers see the typed cause.
func (e *OrphanedEntityError) Unwrap() error { return e.UploadErr }

var (
	errMissingParent   = fmt.Errorf("%w: parent id is required", catp.ErrInvalidArgument)
	errMissingFilename = fmt.Errorf("%w: filename is required", catp.ErrInvalidArgument)
	errBadTotalSize    = fmt.Errorf("%w: declared total size must be positive", catp.ErrInvalidArgument)
	errTooLarge        = fmt.Errorf("%w: declared total size exceeds maximum file size", catp.ErrInvalidArgument)
)
