package http_handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/peerclass/asset-service/internal/gateway/port"
)

// multipartForm reads an upload request incrementally. Text fields must
// precede file parts: "size" once per file in file order, and for combined
// writes an optional "document" field. File bytes are never buffered; each
// file part is handed to the caller as a reader positioned at its start.
type multipartForm struct {
	mr      *multipart.Reader
	doc     []byte
	sizes   []int64
	pending *multipart.Part
	idx     int
}

var _ port.FileSource = (*multipartForm)(nil)

func newMultipartForm(c *fiber.Ctx) (*multipartForm, error) {
	contentType := c.Get("Content-Type")
	if !strings.HasPrefix(contentType, "multipart/form-data") {
		return nil, errors.New("Content-Type must be multipart/form-data")
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, errors.New("invalid Content-Type")
	}
	boundary, ok := params["boundary"]
	if !ok {
		return nil, errors.New("missing boundary in Content-Type")
	}

	bodyStream := c.Context().RequestBodyStream()
	if bodyStream == nil {
		bodyStream = bytes.NewReader(c.Body())
	}

	form := &multipartForm{mr: multipart.NewReader(bodyStream, boundary)}
	if err := form.readFields(); err != nil {
		return nil, err
	}
	return form, nil
}

// readFields consumes text parts up to the first file part, which stays
// pending for the first nextFile call.
func (f *multipartForm) readFields() error {
	for {
		part, err := f.mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read multipart: %w", err)
		}

		if part.FileName() != "" {
			f.pending = part
			return nil
		}

		value, err := io.ReadAll(part)
		_ = part.Close()
		if err != nil {
			return fmt.Errorf("read %q field: %w", part.FormName(), err)
		}

		switch part.FormName() {
		case "document":
			f.doc = value
		case "size":
			size, err := strconv.ParseInt(string(bytes.TrimSpace(value)), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid size field %q", value)
			}
			f.sizes = append(f.sizes, size)
		}
	}
}

func (f *multipartForm) document() []byte { return f.doc }

func (f *multipartForm) fileCount() int { return len(f.sizes) }

// Next yields the next file part paired with its declared size.
func (f *multipartForm) Next(_ context.Context) (*port.UploadFile, error) {
	var part *multipart.Part
	if f.pending != nil {
		part = f.pending
		f.pending = nil
	} else {
		for {
			p, err := f.mr.NextPart()
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			if err != nil {
				return nil, fmt.Errorf("read multipart: %w", err)
			}
			if p.FileName() != "" {
				part = p
				break
			}
			_ = p.Close()
		}
	}

	if f.idx >= len(f.sizes) {
		return nil, fmt.Errorf("missing size field for file %q", part.FileName())
	}
	size := f.sizes[f.idx]
	f.idx++

	return &port.UploadFile{
		Filename:    part.FileName(),
		ContentType: contentTypeOf(part.Header.Get("Content-Type")),
		Size:        size,
		Content:     part,
	}, nil
}

// nextFile is Next for single-file requests, with a friendlier error when
// the file part is missing.
func (f *multipartForm) nextFile() (*port.UploadFile, error) {
	file, err := f.Next(context.Background())
	if errors.Is(err, io.EOF) {
		return nil, errors.New("missing file part")
	}
	return file, err
}
