package catp_handler

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/anthanhphan/gosdk/logger"
	"github.com/peerclass/asset-service/internal/asset/config"
	"github.com/peerclass/asset-service/internal/asset/port"
	"github.com/peerclass/asset-service/pkg/catp"
)

// Server accepts CATP connections and dispatches one request per connection.
type Server struct {
	cfg     *config.Config
	service port.AssetService
	wg      sync.WaitGroup

	mu       sync.Mutex
	listener net.Listener
}

// NewServer creates a CATP server around the asset service.
func NewServer(cfg *config.Config, service port.AssetService) *Server {
	return &Server{cfg: cfg, service: service}
}

// Serve listens on the configured address and handles connections until the
// context is canceled.
func (s *Server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Server.Addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	logger.Infow("Asset server listening", "addr", s.cfg.Server.Addr)

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				s.wg.Wait()
				return nil
			default:
				logger.Warnw("Accept failed", "error", err.Error())
				continue
			}
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

// Addr returns the bound listen address, for tests that listen on port 0.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener. In-flight connections finish on their own.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

// handleConn reads the opening frame and routes the request. The connection
// carries exactly one request; the request context is canceled when the
// connection goes away so in-flight store work stops too. Cancellation also
// expires the socket read, because a stalled client never errors the read on
// its own and the frame loop would otherwise stay blocked in it.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer func() { _ = conn.Close() }()

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stop := context.AfterFunc(reqCtx, func() { _ = conn.SetReadDeadline(time.Now()) })
	defer stop()

	dec := catp.NewDecoder(conn, catp.DefaultMaxPayload)
	enc := catp.NewEncoder(conn)

	frame, err := dec.Next()
	if err != nil {
		logger.Warnw("Connection dropped before first frame", "remote", conn.RemoteAddr().String(), "error", err.Error())
		return
	}

	switch frame.Type {
	case catp.FrameMetadata:
		s.handleUpload(reqCtx, cancel, conn, frame, dec, enc)
	case catp.FrameCreateWithAsset:
		s.handleCreateWithAsset(reqCtx, cancel, conn, frame, dec, enc)
	case catp.FrameDownloadRequest:
		s.handleDownload(reqCtx, frame, enc)
	case catp.FrameStatRequest:
		s.handleStat(reqCtx, frame, enc)
	case catp.FrameListRequest:
		s.handleList(reqCtx, frame, enc)
	case catp.FrameDeleteAssetRequest:
		s.handleDeleteAsset(reqCtx, frame, enc)
	case catp.FrameDeleteEntityRequest:
		s.handleDeleteEntity(reqCtx, frame, enc)
	case catp.FrameChunk:
		s.writeError(enc, errMissingMetadata)
	default:
		s.writeError(enc, errUnknownFrame(frame.Type))
	}
}

// writeError maps err to its wire code and sends an error frame. Send
// failures only mean the caller is already gone.
func (s *Server) writeError(enc *catp.Encoder, err error) {
	wireErr := catp.Error{Code: catp.CodeOf(err), Message: err.Error()}
	if werr := enc.Encode(catp.FrameError, wireErr); werr != nil && !errors.Is(werr, net.ErrClosed) {
		logger.Warnw("Error frame not delivered", "code", wireErr.Code, "error", werr.Error())
	}
}
