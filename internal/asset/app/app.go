package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	catpHandler "github.com/peerclass/asset-service/internal/asset/adapter/inbound/catp"
	badgerRepo "github.com/peerclass/asset-service/internal/asset/adapter/outbound/badger"
	"github.com/peerclass/asset-service/internal/asset/adapter/outbound/s3"
	"github.com/peerclass/asset-service/internal/asset/config"
	"github.com/peerclass/asset-service/internal/asset/service"
	"github.com/peerclass/asset-service/pkg/idgen"

	"github.com/anthanhphan/gosdk/logger"
	"github.com/redis/go-redis/v9"
)

// App owns the asset node's lifecycle: storage adapters, the service facade,
// and the CATP listener.
type App struct {
	cfg    *config.Config
	server *catpHandler.Server
	repo   *badgerRepo.Repository
	redis  *redis.Client
}

func New(configPath string) (*App, error) {
	// 1. Load Config
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 2. Initialize Logger
	logger.InitLogger(&cfg.Logger)

	// 3. Initialize Redis and Snowflake IDGen
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	redisClock := idgen.NewRedisClock(redisClient)
	idGen, err := idgen.New(cfg.Server.NodeID, redisClock)
	if err != nil {
		return nil, fmt.Errorf("failed to init snowflake: %w", err)
	}

	// 4. Record database
	if err := os.MkdirAll(cfg.Badger.Dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create record db dir: %w", err)
	}
	repo, err := badgerRepo.Open(cfg.Badger)
	if err != nil {
		return nil, err
	}

	// 5. Object store
	store, err := s3.New(context.Background(), cfg.Store)
	if err != nil {
		_ = repo.Close()
		return nil, err
	}

	// 6. Service facade and CATP server
	svc := service.NewAssetService(cfg, store, repo, repo, idGen)
	server := catpHandler.NewServer(cfg, svc)

	return &App{
		cfg:    cfg,
		server: server,
		repo:   repo,
		redis:  redisClient,
	}, nil
}

func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- a.server.Serve(ctx)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	var runErr error
	select {
	case sig := <-stop:
		logger.Infow("Shutdown signal received", "signal", sig.String())
		cancel()
		<-serverErrCh
	case err := <-serverErrCh:
		if err != nil {
			runErr = fmt.Errorf("asset server failed: %w", err)
			logger.Errorw("Asset server exited unexpectedly", "error", err.Error())
		}
	}

	logger.Info("Shutting down asset node")
	if err := a.repo.Close(); err != nil {
		logger.Warnw("Record db close failed", "error", err.Error())
	}
	if err := a.redis.Close(); err != nil {
		logger.Warnw("Redis close failed", "error", err.Error())
	}

	return runErr
}
