package domain

import (
	"strings"
	"time"
)

// AssetMetadata is the declared shape of an incoming upload. Exactly one
// metadata message precedes any chunk of a transfer.
type AssetMetadata struct {
	ParentID    string
	Filename    string
	TotalSize   int64
	ContentType string
}

// Validate checks the invariants every upload must satisfy before any byte
// touches the object store.
func (m AssetMetadata) Validate(maxFileSize int64) error {
	switch {
	case strings.TrimSpace(m.ParentID) == "":
		return errMissingParent
	case strings.TrimSpace(m.Filename) == "":
		return errMissingFilename
	case m.TotalSize <= 0:
		return errBadTotalSize
	case maxFileSize > 0 && m.TotalSize > maxFileSize:
		return errTooLarge
	}
	return nil
}

// AssetRecord is the persisted descriptor of a fully received asset. It is
// created only after the declared size has been received and durably written,
// so a partial upload is never visible.
type AssetRecord struct {
	ID            string    `json:"id"`
	ParentID      string    `json:"parent_id"`
	Filename      string    `json:"filename"`
	Size          int64     `json:"size"`
	ContentType   string    `json:"content_type"`
	StoreLocation string    `json:"store_location"`
	UploadedAt    time.Time `json:"uploaded_at"`
}

// AssetRef addresses an asset either directly or by its parent attachment.
type AssetRef struct {
	AssetID  string
	ParentID string
	Filename string
}
