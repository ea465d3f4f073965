package http_handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/peerclass/asset-service/internal/gateway/config"
	"github.com/peerclass/asset-service/internal/gateway/port"
	"github.com/peerclass/asset-service/pkg/catp"
	"github.com/peerclass/asset-service/pkg/resilience"

	sdklogger "github.com/anthanhphan/gosdk/logger"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

type Server struct {
	app    *fiber.App
	cfg    *config.Config
	client port.AssetClient
}

func NewServer(cfg *config.Config, client port.AssetClient) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit:         int(cfg.Asset.MaxFileSize),
		StreamRequestBody: true,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())

	s := &Server{
		app:    app,
		cfg:    cfg,
		client: client,
	}

	// Routes
	s.registerRoutes()

	return s
}

func (s *Server) registerRoutes() {
	s.app.Get("/healthz", s.handleHealth)

	s.app.Post("/parents/:parentId/assets", s.handleUpload)
	s.app.Get("/parents/:parentId/assets", s.handleList)
	s.app.Get("/parents/:parentId/assets/:filename", s.handleDownloadByName)
	s.app.Get("/assets/:assetId", s.handleStat)
	s.app.Get("/assets/:assetId/download", s.handleDownload)
	s.app.Delete("/assets/:assetId", s.handleDeleteAsset)
	s.app.Delete("/entities/:entityId", s.handleDeleteEntity)

	// Combined entity-plus-assets writes.
	s.app.Post("/articles", s.handleCreate("article"))
	s.app.Post("/labs", s.handleCreate("lab"))
	s.app.Post("/submissions", s.handleCreate("submission"))
}

func (s *Server) Start() error {
	return s.app.Listen(s.cfg.Server.Addr)
}

func (s *Server) Stop(ctx context.Context) error {
	return s.app.Shutdown()
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// sendError maps protocol errors onto HTTP statuses.
func (s *Server) sendError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, catp.ErrInvalidArgument):
		status = fiber.StatusBadRequest
	case errors.Is(err, catp.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, catp.ErrSizeMismatch):
		status = fiber.StatusBadRequest
	case errors.Is(err, catp.ErrLimitExceeded):
		status = fiber.StatusConflict
	case errors.Is(err, catp.ErrDeadlineExceeded):
		status = fiber.StatusGatewayTimeout
	case errors.Is(err, resilience.ErrCircuitOpen):
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func (s *Server) handleUpload(c *fiber.Ctx) error {
	parentID := c.Params("parentId")

	form, err := newMultipartForm(c)
	if err != nil {
		return s.sendError(c, fmt.Errorf("%w: %s", catp.ErrInvalidArgument, err))
	}

	file, err := form.nextFile()
	if err != nil {
		return s.sendError(c, fmt.Errorf("%w: %s", catp.ErrInvalidArgument, err))
	}

	descriptor, err := s.client.Upload(c.Context(), parentID, *file)
	if err != nil {
		sdklogger.Errorw("Upload failed", "parent_id", parentID, "file_name", file.Filename, "error", err.Error())
		return s.sendError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(descriptor)
}

func (s *Server) handleCreate(kind string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		form, err := newMultipartForm(c)
		if err != nil {
			return s.sendError(c, fmt.Errorf("%w: %s", catp.ErrInvalidArgument, err))
		}

		result, err := s.client.CreateWithAssets(c.Context(), kind, form.document(), form.fileCount(), form)
		if err != nil {
			sdklogger.Errorw("Combined write failed", "kind", kind, "error", err.Error())
			return s.sendError(c, err)
		}

		return c.Status(fiber.StatusCreated).JSON(result)
	}
}

func (s *Server) handleList(c *fiber.Ctx) error {
	parentID := c.Params("parentId")

	assets, err := s.client.List(c.Context(), parentID)
	if err != nil {
		return s.sendError(c, err)
	}
	return c.JSON(fiber.Map{"assets": assets})
}

func (s *Server) handleStat(c *fiber.Ctx) error {
	descriptor, err := s.client.Stat(c.Context(), c.Params("assetId"))
	if err != nil {
		return s.sendError(c, err)
	}
	return c.JSON(descriptor)
}

func (s *Server) handleDownload(c *fiber.Ctx) error {
	return s.streamDownload(c, catp.DownloadRequest{AssetID: c.Params("assetId")})
}

func (s *Server) handleDownloadByName(c *fiber.Ctx) error {
	return s.streamDownload(c, catp.DownloadRequest{
		ParentID: c.Params("parentId"),
		Filename: c.Params("filename"),
	})
}

func (s *Server) streamDownload(c *fiber.Ctx, req catp.DownloadRequest) error {
	info, err := s.client.Download(c.Context(), req, c.Response().BodyWriter())
	if err != nil {
		// If chunks already went out the status line is gone; the truncated
		// body plus the missing end is the client's signal either way.
		sdklogger.Errorw("Download failed", "asset_id", req.AssetID, "filename", req.Filename, "error", err.Error())
		return s.sendError(c, err)
	}

	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", info.Filename))
	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Set("Content-Type", contentType)
	return nil
}

func (s *Server) handleDeleteAsset(c *fiber.Ctx) error {
	deleted, err := s.client.DeleteAsset(c.Context(), c.Params("assetId"))
	if err != nil {
		return s.sendError(c, err)
	}
	if !deleted {
		return s.sendError(c, fmt.Errorf("%w: asset %s", catp.ErrNotFound, c.Params("assetId")))
	}
	return c.JSON(fiber.Map{"deleted": true})
}

func (s *Server) handleDeleteEntity(c *fiber.Ctx) error {
	deleted, err := s.client.DeleteEntity(c.Context(), c.Params("entityId"))
	if err != nil {
		return s.sendError(c, err)
	}
	if !deleted {
		return s.sendError(c, fmt.Errorf("%w: entity %s", catp.ErrNotFound, c.Params("entityId")))
	}
	return c.JSON(fiber.Map{"deleted": true})
}

// contentTypeOf falls back to octet-stream for parts without a declared type.
func contentTypeOf(header string) string {
	if header == "" {
		return "application/octet-stream"
	}
	if i := strings.IndexByte(header, ';'); i >= 0 {
		header = strings.TrimSpace(header[:i])
	}
	return header
}
