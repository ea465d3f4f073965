package badger

import (
	"context"
	"testing"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/peerclass/asset-service/internal/asset/domain"
	"github.com/peerclass/asset-service/pkg/catp"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(db)
}

func record(id, parentID, filename string) *domain.AssetRecord {
	return &domain.AssetRecord{
		ID:            id,
		ParentID:      parentID,
		Filename:      filename,
		Size:          128,
		ContentType:   "text/plain",
		StoreLocation: "loc/" + id,
		UploadedAt:    time.Now().UTC().Truncate(time.Second),
	}
}

func TestSaveAndGetAsset(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	rec := record("1", "article-1", "a.txt")
	require.NoError(t, repo.SaveAsset(ctx, rec))

	got, err := repo.GetAsset(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, rec.ID, got.ID)
	require.Equal(t, rec.StoreLocation, got.StoreLocation)
	require.Equal(t, rec.Size, got.Size)
	require.True(t, rec.UploadedAt.Equal(got.UploadedAt))

	byName, err := repo.FindAsset(ctx, "article-1", "a.txt")
	require.NoError(t, err)
	require.Equal(t, rec.ID, byName.ID)
}

func TestGetAssetNotFound(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.GetAsset(context.Background(), "missing")
	require.ErrorIs(t, err, catp.ErrNotFound)

	_, err = repo.FindAsset(context.Background(), "article-1", "missing.txt")
	require.ErrorIs(t, err, catp.ErrNotFound)
}

func TestListAndCountByParent(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveAsset(ctx, record("1", "article-1", "a.txt")))
	require.NoError(t, repo.SaveAsset(ctx, record("2", "article-1", "b.txt")))
	require.NoError(t, repo.SaveAsset(ctx, record("3", "article-2", "c.txt")))

	records, err := repo.ListByParent(ctx, "article-1")
	require.NoError(t, err)
	require.Len(t, records, 2)

	count, err := repo.CountByParent(ctx, "article-1")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	count, err = repo.CountByParent(ctx, "article-3")
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestCountDoesNotCrossParentPrefix(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	// "article-1" must not count assets of "article-10".
	require.NoError(t, repo.SaveAsset(ctx, record("1", "article-1", "a.txt")))
	require.NoError(t, repo.SaveAsset(ctx, record("2", "article-10", "b.txt")))

	count, err := repo.CountByParent(ctx, "article-1")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestDeleteAssetReturnsRemovedRecord(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	rec := record("1", "article-1", "a.txt")
	require.NoError(t, repo.SaveAsset(ctx, rec))

	removed, err := repo.DeleteAsset(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, rec.StoreLocation, removed.StoreLocation)

	_, err = repo.GetAsset(ctx, "1")
	require.ErrorIs(t, err, catp.ErrNotFound)
	_, err = repo.FindAsset(ctx, "article-1", "a.txt")
	require.ErrorIs(t, err, catp.ErrNotFound)

	// Second delete is a no-op.
	removed, err = repo.DeleteAsset(ctx, "1")
	require.NoError(t, err)
	require.Nil(t, removed)
}

func TestReuploadSameFilenameReplacesIndex(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveAsset(ctx, record("1", "article-1", "a.txt")))
	require.NoError(t, repo.SaveAsset(ctx, record("2", "article-1", "a.txt")))

	byName, err := repo.FindAsset(ctx, "article-1", "a.txt")
	require.NoError(t, err)
	require.Equal(t, "2", byName.ID)
}

func TestEntityLifecycle(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	entity := &domain.ParentEntity{
		ID:        "100",
		Kind:      "article",
		Document:  []byte(`{"title":"Recursion"}`),
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, repo.CreateEntity(ctx, entity))

	got, err := repo.GetEntity(ctx, "100")
	require.NoError(t, err)
	require.Equal(t, entity.Kind, got.Kind)
	require.Equal(t, entity.Document, got.Document)
	require.True(t, entity.CreatedAt.Equal(got.CreatedAt))

	deleted, err := repo.DeleteEntity(ctx, "100")
	require.NoError(t, err)
	require.True(t, deleted)

	_, err = repo.GetEntity(ctx, "100")
	require.ErrorIs(t, err, catp.ErrNotFound)

	deleted, err = repo.DeleteEntity(ctx, "100")
	require.NoError(t, err)
	require.False(t, deleted)
}
