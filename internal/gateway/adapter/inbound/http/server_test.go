package http_handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/peerclass/asset-service/internal/gateway/config"
	"github.com/peerclass/asset-service/internal/gateway/port"
	"github.com/peerclass/asset-service/pkg/catp"
)

// fakeClient plays back canned node responses.
type fakeClient struct {
	descriptor *catp.AssetDescriptor
	uploadErr  error
	uploaded   []byte
	parentID   string
	file       port.UploadFile
	result     *catp.Result
	createErr  error
	listed     []catp.AssetDescriptor
	deleted    bool
	body       string
}

func (f *fakeClient) Upload(ctx context.Context, parentID string, file port.UploadFile) (*catp.AssetDescriptor, error) {
	f.parentID = parentID
	f.file = file
	body, err := io.ReadAll(file.Content)
	if err != nil {
		return nil, err
	}
	f.uploaded = body
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return f.descriptor, nil
}

func (f *fakeClient) Download(ctx context.Context, req catp.DownloadRequest, w io.Writer) (*catp.Info, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	_, _ = w.Write([]byte(f.body))
	return &catp.Info{Filename: "a.txt", Size: int64(len(f.body))}, nil
}

func (f *fakeClient) Stat(ctx context.Context, assetID string) (*catp.AssetDescriptor, error) {
	if f.descriptor == nil {
		return nil, fmt.Errorf("asset %s: %w", assetID, catp.ErrNotFound)
	}
	return f.descriptor, nil
}

func (f *fakeClient) List(ctx context.Context, parentID string) ([]catp.AssetDescriptor, error) {
	return f.listed, nil
}

func (f *fakeClient) DeleteAsset(ctx context.Context, assetID string) (bool, error) {
	return f.deleted, nil
}

func (f *fakeClient) DeleteEntity(ctx context.Context, entityID string) (bool, error) {
	return f.deleted, nil
}

func (f *fakeClient) CreateWithAssets(ctx context.Context, kind string, document []byte, fileCount int, files port.FileSource) (*catp.Result, error) {
	var uploaded []byte
	for {
		file, err := files.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		body, err := io.ReadAll(file.Content)
		if err != nil {
			return nil, err
		}
		uploaded = append(uploaded, body...)
	}
	f.uploaded = uploaded
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.result, nil
}

func newTestServer(client port.AssetClient) *Server {
	return NewServer(config.DefaultConfig(), client)
}

func multipartBody(t *testing.T, document string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if document != "" {
		if err := mw.WriteField("document", document); err != nil {
			t.Fatal(err)
		}
	}
	for _, content := range files {
		if err := mw.WriteField("size", fmt.Sprint(len(content))); err != nil {
			t.Fatal(err)
		}
	}
	for name, content := range files {
		fw, err := mw.CreateFormFile("file", name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestUploadEndpoint(t *testing.T) {
	client := &fakeClient{descriptor: &catp.AssetDescriptor{ID: "7", ParentID: "article-1", Filename: "a.txt"}}
	server := newTestServer(client)

	body, contentType := multipartBody(t, "", map[string]string{"a.txt": "hello world"})
	req := httptest.NewRequest(http.MethodPost, "/parents/article-1/assets", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := server.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status %d, want 201", resp.StatusCode)
	}
	if client.parentID != "article-1" {
		t.Fatalf("parent id not forwarded: %q", client.parentID)
	}
	if string(client.uploaded) != "hello world" {
		t.Fatalf("body not streamed: %q", client.uploaded)
	}
	if client.file.Size != int64(len("hello world")) {
		t.Fatalf("declared size not forwarded: %d", client.file.Size)
	}
}

func TestUploadRequiresMultipart(t *testing.T) {
	server := newTestServer(&fakeClient{})

	req := httptest.NewRequest(http.MethodPost, "/parents/article-1/assets", bytes.NewReader([]byte("raw")))
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := server.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", resp.StatusCode)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: no parent", catp.ErrInvalidArgument), http.StatusBadRequest},
		{fmt.Errorf("%w: short stream", catp.ErrSizeMismatch), http.StatusBadRequest},
		{fmt.Errorf("%w: parent full", catp.ErrLimitExceeded), http.StatusConflict},
		{fmt.Errorf("%w: asset 9", catp.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: slow link", catp.ErrDeadlineExceeded), http.StatusGatewayTimeout},
		{errors.New("pipe burst"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		server := newTestServer(&fakeClient{uploadErr: tc.err})

		body, contentType := multipartBody(t, "", map[string]string{"a.txt": "hello"})
		req := httptest.NewRequest(http.MethodPost, "/parents/p/assets", body)
		req.Header.Set("Content-Type", contentType)

		resp, err := server.app.Test(req, -1)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if resp.StatusCode != tc.status {
			t.Errorf("error %v mapped to %d, want %d", tc.err, resp.StatusCode, tc.status)
		}
	}
}

func TestCreateArticleEndpoint(t *testing.T) {
	client := &fakeClient{result: &catp.Result{EntityID: "100", Assets: []catp.AssetDescriptor{{ID: "101"}}}}
	server := newTestServer(client)

	body, contentType := multipartBody(t, `{"title":"Graphs"}`, map[string]string{"cover.png": "pngbytes"})
	req := httptest.NewRequest(http.MethodPost, "/articles", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := server.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status %d, want 201", resp.StatusCode)
	}

	var result catp.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.EntityID != "100" {
		t.Fatalf("unexpected result %+v", result)
	}
	if string(client.uploaded) != "pngbytes" {
		t.Fatalf("file not streamed: %q", client.uploaded)
	}
}

func TestStatEndpoint(t *testing.T) {
	server := newTestServer(&fakeClient{
		descriptor: &catp.AssetDescriptor{ID: "7", ParentID: "lab-3", Filename: "report.pdf", Size: 512},
	})

	req := httptest.NewRequest(http.MethodGet, "/assets/7", nil)
	resp, err := server.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d, want 200", resp.StatusCode)
	}

	var got catp.AssetDescriptor
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got.ID != "7" || got.Filename != "report.pdf" {
		t.Fatalf("unexpected descriptor %+v", got)
	}
}

func TestStatUnknownAsset(t *testing.T) {
	server := newTestServer(&fakeClient{})

	req := httptest.NewRequest(http.MethodGet, "/assets/9", nil)
	resp, err := server.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d, want 404", resp.StatusCode)
	}
}

func TestDeleteAssetNotFound(t *testing.T) {
	server := newTestServer(&fakeClient{deleted: false})

	req := httptest.NewRequest(http.MethodDelete, "/assets/9", nil)
	resp, err := server.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d, want 404", resp.StatusCode)
	}
}

func TestDownloadEndpoint(t *testing.T) {
	server := newTestServer(&fakeClient{body: "file-content"})

	req := httptest.NewRequest(http.MethodGet, "/assets/7/download", nil)
	resp, err := server.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "file-content" {
		t.Fatalf("unexpected body %q", body)
	}
}
