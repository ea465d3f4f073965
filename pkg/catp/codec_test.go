package catp

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	meta := Metadata{
		ParentID:    "article-1",
		Filename:    "diagram.png",
		TotalSize:   1024,
		ContentType: "image/png",
		First:       []byte("head"),
	}
	if err := enc.Encode(FrameMetadata, meta); err != nil {
		t.Fatalf("encode metadata: %v", err)
	}
	if err := enc.Encode(FrameChunk, Chunk{Data: []byte("body")}); err != nil {
		t.Fatalf("encode chunk: %v", err)
	}
	if err := enc.Encode(FrameEnd, End{}); err != nil {
		t.Fatalf("encode end: %v", err)
	}

	dec := NewDecoder(&buf, 0)

	frame, err := dec.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if frame.Type != FrameMetadata {
		t.Fatalf("expected metadata frame, got %#x", byte(frame.Type))
	}
	var gotMeta Metadata
	if err := frame.Decode(&gotMeta); err != nil {
		t.Fatalf("decode metadata: %v", err)
	}
	if gotMeta.ParentID != meta.ParentID || gotMeta.TotalSize != meta.TotalSize || !bytes.Equal(gotMeta.First, meta.First) {
		t.Fatalf("metadata round trip mismatch: %+v", gotMeta)
	}

	frame, err = dec.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if frame.Type != FrameChunk {
		t.Fatalf("expected chunk frame, got %#x", byte(frame.Type))
	}
	var chunk Chunk
	if err := frame.Decode(&chunk); err != nil {
		t.Fatalf("decode chunk: %v", err)
	}
	if string(chunk.Data) != "body" {
		t.Fatalf("chunk data mismatch: %q", chunk.Data)
	}

	frame, err = dec.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if frame.Type != FrameEnd {
		t.Fatalf("expected end frame, got %#x", byte(frame.Type))
	}

	if _, err := dec.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected clean EOF, got %v", err)
	}
}

func TestDecoderMidFrameTruncation(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	if err := enc.Encode(FrameChunk, Chunk{Data: bytes.Repeat([]byte("x"), 100)}); err != nil {
		t.Fatalf("encode: %v", err)
	}

	// Cut the stream inside the payload.
	truncated := buf.Bytes()[:buf.Len()-10]
	dec := NewDecoder(bytes.NewReader(truncated), 0)

	if _, err := dec.Next(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected unexpected EOF, got %v", err)
	}
}

func TestDecoderRejectsOversizedPayload(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	if err := enc.Encode(FrameChunk, Chunk{Data: bytes.Repeat([]byte("x"), 2048)}); err != nil {
		t.Fatalf("encode: %v", err)
	}

	dec := NewDecoder(&buf, 64)
	if _, err := dec.Next(); err == nil {
		t.Fatal("expected payload cap violation")
	}
}

func TestInfoTimestampSurvivesRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	uploaded := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	enc := NewEncoder(&buf)
	if err := enc.Encode(FrameInfo, Info{Filename: "notes.pdf", Size: 42, UploadedAt: uploaded}); err != nil {
		t.Fatalf("encode: %v", err)
	}

	frame, err := NewDecoder(&buf, 0).Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	var info Info
	if err := frame.Decode(&info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !info.UploadedAt.Equal(uploaded) {
		t.Fatalf("timestamp mismatch: got %v want %v", info.UploadedAt, uploaded)
	}
}
