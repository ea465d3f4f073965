package catp_handler

import (
	"context"
	"fmt"
	"io"

	"github.com/peerclass/asset-service/internal/asset/domain"
	"github.com/peerclass/asset-service/internal/asset/port"
	"github.com/peerclass/asset-service/pkg/catp"
)

// chunkSource adapts the connection's frame stream to the pipeline's chunk
// sequence. A transport failure cancels the request context so store work
// attached to the same request stops promptly.
type chunkSource struct {
	dec    *catp.Decoder
	cancel context.CancelFunc
	first  []byte
	done   bool
	err    error
}

func newChunkSource(dec *catp.Decoder, cancel context.CancelFunc, first []byte) *chunkSource {
	return &chunkSource{dec: dec, cancel: cancel, first: first}
}

func (c *chunkSource) Next(ctx context.Context) ([]byte, error) {
	if c.err != nil {
		return nil, c.err
	}
	if c.done {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(c.first) > 0 {
		data := c.first
		c.first = nil
		return data, nil
	}

	frame, err := c.dec.Next()
	if err != nil {
		c.cancel()
		c.err = fmt.Errorf("connection lost mid-stream: %w", err)
		return nil, c.err
	}

	switch frame.Type {
	case catp.FrameChunk:
		var chunk catp.Chunk
		if err := frame.Decode(&chunk); err != nil {
			c.fail(fmt.Errorf("%w: %s", catp.ErrInvalidArgument, err))
			return nil, c.err
		}
		return chunk.Data, nil
	case catp.FrameEnd:
		c.done = true
		return nil, io.EOF
	default:
		c.fail(fmt.Errorf("%w: frame %#x inside chunk stream", catp.ErrInvalidArgument, byte(frame.Type)))
		return nil, c.err
	}
}

func (c *chunkSource) fail(err error) {
	c.cancel()
	c.err = err
}

// wireUploadSequence yields the uploads of a combined write off one
// connection. The first upload's metadata rides in the opening frame; each
// later upload starts with its own metadata frame, readable only after the
// previous chunk stream was drained.
type wireUploadSequence struct {
	dec       *catp.Decoder
	cancel    context.CancelFunc
	first     *catp.Metadata
	remaining int
}

func (w *wireUploadSequence) NextUpload(ctx context.Context) (*port.PendingUpload, error) {
	if w.remaining <= 0 {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w.remaining--

	var meta catp.Metadata
	if w.first != nil {
		meta = *w.first
		w.first = nil
	} else {
		frame, err := w.dec.Next()
		if err != nil {
			w.cancel()
			return nil, fmt.Errorf("connection lost between uploads: %w", err)
		}
		if frame.Type != catp.FrameMetadata {
			return nil, fmt.Errorf("%w: expected metadata frame, got %#x", catp.ErrInvalidArgument, byte(frame.Type))
		}
		if err := frame.Decode(&meta); err != nil {
			return nil, fmt.Errorf("%w: %s", catp.ErrInvalidArgument, err)
		}
	}

	return &port.PendingUpload{
		Meta: domain.AssetMetadata{
			ParentID:    meta.ParentID,
			Filename:    meta.Filename,
			TotalSize:   meta.TotalSize,
			ContentType: meta.ContentType,
		},
		Chunks: newChunkSource(w.dec, w.cancel, meta.First),
	}, nil
}
