package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/peerclass/asset-service/internal/asset/domain"
	"github.com/peerclass/asset-service/pkg/catp"
	"go.uber.org/mock/gomock"
)

func TestDownloadByID(t *testing.T) {
	svc, store, assets, _, _ := newTestService(t)

	record := &domain.AssetRecord{ID: "42", Filename: "slides.pdf", Size: 5, StoreLocation: "loc/slides"}
	assets.EXPECT().GetAsset(gomock.Any(), "42").Return(record, nil)
	store.EXPECT().Get(gomock.Any(), "loc/slides").Return(io.NopCloser(strings.NewReader("hello")), nil)

	got, reader, err := svc.Download(context.Background(), domain.AssetRef{AssetID: "42"})
	if err != nil {
		t.Fatalf("download failed: %v", err)
	}
	defer func() { _ = reader.Close() }()

	if got.ID != "42" {
		t.Fatalf("unexpected record %+v", got)
	}
	body, _ := io.ReadAll(reader)
	if string(body) != "hello" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestDownloadByParentAndFilename(t *testing.T) {
	svc, store, assets, _, _ := newTestService(t)

	record := &domain.AssetRecord{ID: "43", StoreLocation: "loc/x"}
	assets.EXPECT().FindAsset(gomock.Any(), "article-1", "x.txt").Return(record, nil)
	store.EXPECT().Get(gomock.Any(), "loc/x").Return(io.NopCloser(strings.NewReader("")), nil)

	_, reader, err := svc.Download(context.Background(), domain.AssetRef{ParentID: "article-1", Filename: "x.txt"})
	if err != nil {
		t.Fatalf("download failed: %v", err)
	}
	_ = reader.Close()
}

func TestDownloadUnknownAsset(t *testing.T) {
	svc, _, assets, _, _ := newTestService(t)

	assets.EXPECT().GetAsset(gomock.Any(), "nope").Return(nil, catp.ErrNotFound)

	_, _, err := svc.Download(context.Background(), domain.AssetRef{AssetID: "nope"})
	if !errors.Is(err, catp.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDownloadIncompleteRef(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	_, _, err := svc.Download(context.Background(), domain.AssetRef{ParentID: "article-1"})
	if !errors.Is(err, catp.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestDeleteAssetRemovesObject(t *testing.T) {
	svc, store, assets, _, _ := newTestService(t)

	assets.EXPECT().
		DeleteAsset(gomock.Any(), "42").
		Return(&domain.AssetRecord{ID: "42", StoreLocation: "loc/slides"}, nil)
	store.EXPECT().Delete(gomock.Any(), "loc/slides").Return(nil)

	deleted, err := svc.DeleteAsset(context.Background(), "42")
	if err != nil || !deleted {
		t.Fatalf("expected deletion, got %v %v", deleted, err)
	}
}

func TestDeleteAssetAbsent(t *testing.T) {
	svc, _, assets, _, _ := newTestService(t)

	assets.EXPECT().DeleteAsset(gomock.Any(), "42").Return(nil, nil)

	deleted, err := svc.DeleteAsset(context.Background(), "42")
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if deleted {
		t.Fatal("absent asset reported as deleted")
	}
}
