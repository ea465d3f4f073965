package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpHandler "github.com/peerclass/asset-service/internal/gateway/adapter/inbound/http"
	catpClient "github.com/peerclass/asset-service/internal/gateway/adapter/outbound/catp"
	"github.com/peerclass/asset-service/internal/gateway/config"

	"github.com/anthanhphan/gosdk/logger"
)

// App owns the gateway's lifecycle: the asset node client and the HTTP edge.
type App struct {
	cfg    *config.Config
	server *httpHandler.Server
}

func New(configPath string) (*App, error) {
	// 1. Load Config
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 2. Initialize Logger
	logger.InitLogger(&cfg.Logger)

	// 3. Asset node client and HTTP server
	client := catpClient.NewClientAdapter(cfg.Asset)
	server := httpHandler.NewServer(cfg, client)

	return &App{
		cfg:    cfg,
		server: server,
	}, nil
}

func (a *App) Run() error {
	logger.Infow("Gateway starting", "addr", a.cfg.Server.Addr, "asset_node", a.cfg.Asset.Addr)

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- a.server.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	var runErr error
	select {
	case sig := <-stop:
		logger.Infow("Shutdown signal received", "signal", sig.String())
	case err := <-serverErrCh:
		if err != nil {
			runErr = fmt.Errorf("http server failed: %w", err)
			logger.Errorw("Gateway server exited unexpectedly", "error", err.Error())
		}
	}

	logger.Info("Shutting down gateway")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		logger.Warnw("HTTP shutdown failed", "error", err.Error())
	}

	return runErr
}
