package catp

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Wire layout per frame: 1-byte frame type, 4-byte big-endian payload length,
// CBOR payload. The length cap is enforced on decode so a corrupt or hostile
// peer cannot force an unbounded allocation.

const headerSize = 5

// Frame is one decoded message unit. The payload stays raw until the caller
// decodes it into the type implied by Type.
type Frame struct {
	Type    FrameType
	payload []byte
}

// Decode unmarshals the frame payload into v.
func (f Frame) Decode(v any) error {
	if err := decMode.Unmarshal(f.payload, v); err != nil {
		return fmt.Errorf("catp: decode %#x frame: %w", byte(f.Type), err)
	}
	return nil
}

// Encoder writes frames to a transport stream. Not safe for concurrent use.
type Encoder struct {
	w   io.Writer
	hdr [headerSize]byte
}

// NewEncoder creates a frame encoder on top of w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode marshals v and writes it as one frame of type t.
func (e *Encoder) Encode(t FrameType, v any) error {
	payload, err := encMode.Marshal(v)
	if err != nil {
		return fmt.Errorf("catp: encode %#x frame: %w", byte(t), err)
	}

	e.hdr[0] = byte(t)
	binary.BigEndian.PutUint32(e.hdr[1:], uint32(len(payload)))
	if _, err := e.w.Write(e.hdr[:]); err != nil {
		return fmt.Errorf("catp: write frame header: %w", err)
	}
	if _, err := e.w.Write(payload); err != nil {
		return fmt.Errorf("catp: write frame payload: %w", err)
	}
	return nil
}

// Decoder reads frames from a transport stream. Not safe for concurrent use.
type Decoder struct {
	r          *bufio.Reader
	maxPayload uint32
}

// DefaultMaxPayload bounds a single frame payload. Chunk frames are sized by
// the sender's chunk size, which is far below this.
const DefaultMaxPayload = 32 * 1024 * 1024

// NewDecoder creates a frame decoder. maxPayload <= 0 selects the default.
func NewDecoder(r io.Reader, maxPayload int) *Decoder {
	max := uint32(DefaultMaxPayload)
	if maxPayload > 0 {
		max = uint32(maxPayload)
	}
	return &Decoder{r: bufio.NewReader(r), maxPayload: max}
}

// Next reads one frame. It returns io.EOF at a clean stream end and
// io.ErrUnexpectedEOF when the stream dies mid-frame.
func (d *Decoder) Next() (Frame, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(d.r, hdr[:1]); err != nil {
		if err == io.EOF {
			return Frame{}, io.EOF
		}
		return Frame{}, fmt.Errorf("catp: read frame type: %w", err)
	}

	if _, err := io.ReadFull(d.r, hdr[1:]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return Frame{}, fmt.Errorf("catp: read frame length: %w", err)
	}

	length := binary.BigEndian.Uint32(hdr[1:])
	if length > d.maxPayload {
		return Frame{}, fmt.Errorf("catp: frame payload %d exceeds cap %d", length, d.maxPayload)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(d.r, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return Frame{}, fmt.Errorf("catp: read frame payload: %w", err)
	}

	return Frame{Type: FrameType(hdr[0]), payload: payload}, nil
}
