package catp_client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/anthanhphan/gosdk/logger"
	"github.com/peerclass/asset-service/internal/gateway/config"
	"github.com/peerclass/asset-service/internal/gateway/port"
	"github.com/peerclass/asset-service/pkg/catp"
	"github.com/peerclass/asset-service/pkg/resilience"
)

// ClientAdapter talks CATP to the asset node. Each call dials its own
// connection; a per-address circuit breaker sheds load when the node is
// down instead of stacking dial timeouts.
type ClientAdapter struct {
	cfg      config.AssetConfig
	breakers map[string]*resilience.CircuitBreaker
	mu       sync.RWMutex
}

// NewClientAdapter creates the asset node client.
func NewClientAdapter(cfg config.AssetConfig) *ClientAdapter {
	return &ClientAdapter{
		cfg:      cfg,
		breakers: make(map[string]*resilience.CircuitBreaker),
	}
}

// Ensure ClientAdapter implements port.AssetClient.
var _ port.AssetClient = (*ClientAdapter)(nil)

func (a *ClientAdapter) getBreaker(addr string) *resilience.CircuitBreaker {
	a.mu.RLock()
	breaker, ok := a.breakers[addr]
	a.mu.RUnlock()
	if ok {
		return breaker
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if breaker, ok = a.breakers[addr]; ok {
		return breaker
	}
	breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:             addr,
		FailureThreshold: 3,
		OpenTimeout:      10 * time.Second,
	})
	a.breakers[addr] = breaker
	return breaker
}

// call dials the node, runs fn on the framed connection, and feeds the
// outcome to the breaker. Protocol-level failures reported by the node are
// the caller's problem, not the node's health, so they do not trip it.
func (a *ClientAdapter) call(ctx context.Context, fn func(enc *catp.Encoder, dec *catp.Decoder) error) error {
	breaker := a.getBreaker(a.cfg.Addr)
	var callerErr error
	err := breaker.Execute(ctx, func(execCtx context.Context) error {
		dialer := net.Dialer{Timeout: a.cfg.DialTimeout()}
		conn, err := dialer.DialContext(execCtx, "tcp", a.cfg.Addr)
		if err != nil {
			return fmt.Errorf("dial asset node %s: %w", a.cfg.Addr, err)
		}
		defer func() { _ = conn.Close() }()

		stop := context.AfterFunc(execCtx, func() { _ = conn.Close() })
		defer stop()

		err = fn(catp.NewEncoder(conn), catp.NewDecoder(conn, catp.DefaultMaxPayload))
		if err != nil && execCtx.Err() != nil {
			return execCtx.Err()
		}
		if isCallerFault(err) {
			// The node is healthy, it just rejected this request.
			callerErr = err
			return nil
		}
		return err
	})
	if err != nil {
		return err
	}
	return callerErr
}

func isCallerFault(err error) bool {
	return errors.Is(err, catp.ErrInvalidArgument) ||
		errors.Is(err, catp.ErrSizeMismatch) ||
		errors.Is(err, catp.ErrLimitExceeded) ||
		errors.Is(err, catp.ErrNotFound)
}

// preferNodeError recovers the node's typed error frame when a send failure
// was really the node rejecting the stream and closing the connection.
func preferNodeError(dec *catp.Decoder, sendErr error) error {
	frame, err := dec.Next()
	if err == nil && frame.Type == catp.FrameError {
		return decodeError(frame)
	}
	return sendErr
}

// readResponse decodes the node's closing frame into a Result.
func readResponse(dec *catp.Decoder) (*catp.Result, error) {
	frame, err := dec.Next()
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	switch frame.Type {
	case catp.FrameResult:
		var result catp.Result
		if err := frame.Decode(&result); err != nil {
			return nil, err
		}
		return &result, nil
	case catp.FrameError:
		return nil, decodeError(frame)
	default:
		return nil, fmt.Errorf("unexpected response frame %#x", byte(frame.Type))
	}
}

func decodeError(frame catp.Frame) error {
	var wireErr catp.Error
	if err := frame.Decode(&wireErr); err != nil {
		return err
	}
	return catp.ErrorFromFrame(wireErr)
}

// sendChunks streams r as chunk frames followed by the end frame. The first
// chunk is expected to have been piggybacked on the opening frame already.
func (a *ClientAdapter) sendChunks(enc *catp.Encoder, r io.Reader) error {
	buf := make([]byte, a.cfg.ChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if werr := enc.Encode(catp.FrameChunk, catp.Chunk{Data: buf[:n]}); werr != nil {
				return werr
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read upload body: %w", err)
		}
	}
	return enc.Encode(catp.FrameEnd, catp.End{})
}

// firstChunk reads the piggyback chunk for an opening frame.
func (a *ClientAdapter) firstChunk(r io.Reader) ([]byte, error) {
	buf := make([]byte, a.cfg.ChunkSize)
	n, err := io.ReadFull(r, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("read upload body: %w", err)
	}
	return buf[:n], nil
}

func (a *ClientAdapter) Upload(ctx context.Context, parentID string, file port.UploadFile) (*catp.AssetDescriptor, error) {
	var descriptor *catp.AssetDescriptor
	err := a.call(ctx, func(enc *catp.Encoder, dec *catp.Decoder) error {
		first, err := a.firstChunk(file.Content)
		if err != nil {
			return err
		}
		meta := catp.Metadata{
			ParentID:    parentID,
			Filename:    file.Filename,
			TotalSize:   file.Size,
			ContentType: file.ContentType,
			First:       first,
		}
		if err := enc.Encode(catp.FrameMetadata, meta); err != nil {
			return err
		}
		if err := a.sendChunks(enc, file.Content); err != nil {
			return preferNodeError(dec, err)
		}

		result, err := readResponse(dec)
		if err != nil {
			return err
		}
		if len(result.Assets) == 0 {
			return errors.New("upload result carried no descriptor")
		}
		descriptor = &result.Assets[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return descriptor, nil
}

func (a *ClientAdapter) Download(ctx context.Context, req catp.DownloadRequest, w io.Writer) (*catp.Info, error) {
	var info *catp.Info
	err := a.call(ctx, func(enc *catp.Encoder, dec *catp.Decoder) error {
		if err := enc.Encode(catp.FrameDownloadRequest, req); err != nil {
			return err
		}

		frame, err := dec.Next()
		if err != nil {
			return fmt.Errorf("read download info: %w", err)
		}
		switch frame.Type {
		case catp.FrameError:
			return decodeError(frame)
		case catp.FrameInfo:
		default:
			return fmt.Errorf("unexpected download frame %#x", byte(frame.Type))
		}
		var i catp.Info
		if err := frame.Decode(&i); err != nil {
			return err
		}
		info = &i

		var written int64
		for {
			frame, err := dec.Next()
			if err != nil {
				return fmt.Errorf("download stream died after %d of %d bytes: %w", written, info.Size, err)
			}
			switch frame.Type {
			case catp.FrameChunk:
				var chunk catp.Chunk
				if err := frame.Decode(&chunk); err != nil {
					return err
				}
				n, werr := w.Write(chunk.Data)
				written += int64(n)
				if werr != nil {
					return fmt.Errorf("write download body: %w", werr)
				}
			case catp.FrameEnd:
				if written != info.Size {
					return fmt.Errorf("download ended at %d bytes, expected %d", written, info.Size)
				}
				return nil
			case catp.FrameError:
				return decodeError(frame)
			default:
				return fmt.Errorf("unexpected download frame %#x", byte(frame.Type))
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

func (a *ClientAdapter) Stat(ctx context.Context, assetID string) (*catp.AssetDescriptor, error) {
	var descriptor *catp.AssetDescriptor
	err := a.unary(ctx, catp.FrameStatRequest, catp.StatRequest{AssetID: assetID}, func(frame catp.Frame) error {
		if frame.Type != catp.FrameDescriptor {
			return fmt.Errorf("unexpected response frame %#x", byte(frame.Type))
		}
		var d catp.AssetDescriptor
		if err := frame.Decode(&d); err != nil {
			return err
		}
		descriptor = &d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return descriptor, nil
}

func (a *ClientAdapter) List(ctx context.Context, parentID string) ([]catp.AssetDescriptor, error) {
	var assets []catp.AssetDescriptor
	err := a.unary(ctx, catp.FrameListRequest, catp.ListRequest{ParentID: parentID}, func(frame catp.Frame) error {
		if frame.Type != catp.FrameList {
			return fmt.Errorf("unexpected response frame %#x", byte(frame.Type))
		}
		var list catp.List
		if err := frame.Decode(&list); err != nil {
			return err
		}
		assets = list.Assets
		return nil
	})
	return assets, err
}

func (a *ClientAdapter) DeleteAsset(ctx context.Context, assetID string) (bool, error) {
	return a.deleteCall(ctx, catp.FrameDeleteAssetRequest, catp.DeleteAssetRequest{AssetID: assetID})
}

func (a *ClientAdapter) DeleteEntity(ctx context.Context, entityID string) (bool, error) {
	return a.deleteCall(ctx, catp.FrameDeleteEntityRequest, catp.DeleteEntityRequest{EntityID: entityID})
}

func (a *ClientAdapter) deleteCall(ctx context.Context, t catp.FrameType, req any) (bool, error) {
	var ok bool
	err := a.unary(ctx, t, req, func(frame catp.Frame) error {
		if frame.Type != catp.FrameBool {
			return fmt.Errorf("unexpected response frame %#x", byte(frame.Type))
		}
		var b catp.Bool
		if err := frame.Decode(&b); err != nil {
			return err
		}
		ok = b.OK
		return nil
	})
	return ok, err
}

// unary sends one request frame and hands the single response frame to
// handle, under the configured request timeout.
func (a *ClientAdapter) unary(ctx context.Context, t catp.FrameType, req any, handle func(frame catp.Frame) error) error {
	callCtx, cancel := context.WithTimeout(ctx, a.cfg.RequestTimeout())
	defer cancel()

	return a.call(callCtx, func(enc *catp.Encoder, dec *catp.Decoder) error {
		if err := enc.Encode(t, req); err != nil {
			return err
		}
		frame, err := dec.Next()
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		if frame.Type == catp.FrameError {
			return decodeError(frame)
		}
		return handle(frame)
	})
}

func (a *ClientAdapter) CreateWithAssets(ctx context.Context, kind string, document []byte, fileCount int, files port.FileSource) (*catp.Result, error) {
	if fileCount <= 0 {
		return nil, fmt.Errorf("%w: a combined write needs at least one file", catp.ErrInvalidArgument)
	}

	var result *catp.Result
	err := a.call(ctx, func(enc *catp.Encoder, dec *catp.Decoder) error {
		file, err := files.Next(ctx)
		if err != nil {
			return fmt.Errorf("read first file: %w", err)
		}
		first, err := a.firstChunk(file.Content)
		if err != nil {
			return err
		}
		open := catp.CreateWithAsset{
			Kind:      kind,
			Document:  document,
			FileCount: fileCount,
			Metadata: catp.Metadata{
				Filename:    file.Filename,
				TotalSize:   file.Size,
				ContentType: file.ContentType,
				First:       first,
			},
		}
		if err := enc.Encode(catp.FrameCreateWithAsset, open); err != nil {
			return err
		}
		if err := a.sendChunks(enc, file.Content); err != nil {
			return preferNodeError(dec, err)
		}

		for {
			file, err := files.Next(ctx)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return fmt.Errorf("read next file: %w", err)
			}
			meta := catp.Metadata{
				Filename:    file.Filename,
				TotalSize:   file.Size,
				ContentType: file.ContentType,
			}
			if err := enc.Encode(catp.FrameMetadata, meta); err != nil {
				return preferNodeError(dec, err)
			}
			if err := a.sendChunks(enc, file.Content); err != nil {
				return preferNodeError(dec, err)
			}
		}

		result, err = readResponse(dec)
		return err
	})
	if err != nil {
		logger.Warnw("Combined write failed", "kind", kind, "error", err.Error())
		return nil, err
	}
	return result, nil
}
