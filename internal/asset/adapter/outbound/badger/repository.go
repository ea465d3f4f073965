// Package badger persists asset records and parent entity rows in BadgerDB.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/peerclass/asset-service/internal/asset/config"
	"github.com/peerclass/asset-service/internal/asset/domain"
	"github.com/peerclass/asset-service/internal/asset/port"
	"github.com/peerclass/asset-service/pkg/catp"
)

// Key layout:
//
//	asset/<assetID>                 -> AssetRecord (JSON)
//	parent/<parentID>/<filename>    -> assetID
//	entity/<entityID>               -> ParentEntity (JSON)
//
// The parent index makes the per-parent listing and the attachment-count
// check a single prefix scan.
const (
	assetKeyPrefix  = "asset/"
	parentKeyPrefix = "parent/"
	entityKeyPrefix = "entity/"
)

// Repository implements port.AssetRepository and port.EntityRepository.
type Repository struct {
	db *badger.DB
}

var (
	_ port.AssetRepository  = (*Repository)(nil)
	_ port.EntityRepository = (*Repository)(nil)
)

// Open opens (or creates) the record database.
func Open(cfg config.BadgerConfig) (*Repository, error) {
	opts := badger.DefaultOptions(cfg.Dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open record db: %w", err)
	}
	return &Repository{db: db}, nil
}

// NewWithDB wraps an already-open database. Used by tests with in-memory
// badger instances.
func NewWithDB(db *badger.DB) *Repository {
	return &Repository{db: db}
}

// Close flushes and closes the database.
func (r *Repository) Close() error {
	return r.db.Close()
}

func assetKey(assetID string) []byte {
	return []byte(assetKeyPrefix + assetID)
}

func parentIndexKey(parentID, filename string) []byte {
	return []byte(parentKeyPrefix + parentID + "/" + filename)
}

func entityKey(entityID string) []byte {
	return []byte(entityKeyPrefix + entityID)
}

// SaveAsset writes the record and its parent index entry atomically.
func (r *Repository) SaveAsset(ctx context.Context, rec *domain.AssetRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode asset record: %w", err)
	}

	return r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(assetKey(rec.ID), value); err != nil {
			return err
		}
		return txn.Set(parentIndexKey(rec.ParentID, rec.Filename), []byte(rec.ID))
	})
}

// GetAsset reads one record by asset ID.
func (r *Repository) GetAsset(ctx context.Context, assetID string) (*domain.AssetRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec *domain.AssetRecord
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = readAsset(txn, assetID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// FindAsset resolves a record through the parent index.
func (r *Repository) FindAsset(ctx context.Context, parentID, filename string) (*domain.AssetRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec *domain.AssetRecord
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(parentIndexKey(parentID, filename))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("asset %s/%s: %w", parentID, filename, catp.ErrNotFound)
			}
			return err
		}
		assetID, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		rec, err = readAsset(txn, string(assetID))
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListByParent returns every record attached to one parent.
func (r *Repository) ListByParent(ctx context.Context, parentID string) ([]domain.AssetRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var records []domain.AssetRecord
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(parentKeyPrefix + parentID + "/")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			assetID, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			rec, err := readAsset(txn, string(assetID))
			if err != nil {
				// Index entries without a record are skipped; the record is
				// the source of truth.
				if errors.Is(err, catp.ErrNotFound) {
					continue
				}
				return err
			}
			records = append(records, *rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// CountByParent counts attachments for the per-parent ceiling check. This is
// a plain read: the ceiling is read-then-act by design and may overshoot by
// one under a race.
func (r *Repository) CountByParent(ctx context.Context, parentID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	count := 0
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(parentKeyPrefix + parentID + "/")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// DeleteAsset removes a record and its index entry, returning the removed
// record so the caller can delete the stored object. Returns (nil, nil) when
// the record does not exist.
func (r *Repository) DeleteAsset(ctx context.Context, assetID string) (*domain.AssetRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec *domain.AssetRecord
	err := r.db.Update(func(txn *badger.Txn) error {
		found, err := readAsset(txn, assetID)
		if err != nil {
			if errors.Is(err, catp.ErrNotFound) {
				return nil
			}
			return err
		}
		if err := txn.Delete(assetKey(assetID)); err != nil {
			return err
		}
		if err := txn.Delete(parentIndexKey(found.ParentID, found.Filename)); err != nil {
			return err
		}
		rec = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// CreateEntity persists a parent entity row.
func (r *Repository) CreateEntity(ctx context.Context, e *domain.ParentEntity) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode entity: %w", err)
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entityKey(e.ID), value)
	})
}

// GetEntity reads a parent entity row.
func (r *Repository) GetEntity(ctx context.Context, entityID string) (*domain.ParentEntity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entity domain.ParentEntity
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(entityKey(entityID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("entity %s: %w", entityID, catp.ErrNotFound)
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entity)
		})
	})
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

// DeleteEntity removes a parent entity row. False when the row was absent.
func (r *Repository) DeleteEntity(ctx context.Context, entityID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	deleted := false
	err := r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(entityKey(entityID)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		if err := txn.Delete(entityKey(entityID)); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

// readAsset decodes one asset record inside a transaction.
func readAsset(txn *badger.Txn, assetID string) (*domain.AssetRecord, error) {
	item, err := txn.Get(assetKey(assetID))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("asset %s: %w", assetID, catp.ErrNotFound)
		}
		return nil, err
	}

	var rec domain.AssetRecord
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	}); err != nil {
		return nil, fmt.Errorf("failed to decode asset record: %w", err)
	}
	return &rec, nil
}
