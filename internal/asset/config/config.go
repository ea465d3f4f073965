package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/anthanhphan/gosdk/conflux"
	"github.com/anthanhphan/gosdk/logger"
	"github.com/go-playground/validator/v10"
)

// Config holds asset service configuration.
type Config struct {
	Server ServerConfig  `json:"server" yaml:"server"`
	Store  StoreConfig   `json:"store" yaml:"store"`
	Badger BadgerConfig  `json:"badger" yaml:"badger"`
	Redis  RedisConfig   `json:"redis" yaml:"redis"`
	Limits LimitsConfig  `json:"limits" yaml:"limits"`
	Logger logger.Config `json:"logger" yaml:"logger"`
}

type ServerConfig struct {
	Addr   string `json:"addr" yaml:"addr" validate:"required"`
	NodeID int64  `json:"node_id" yaml:"node_id" validate:"gte=0"`
}

type StoreConfig struct {
	Endpoint       string `json:"endpoint" yaml:"endpoint"`
	Region         string `json:"region" yaml:"region" validate:"required"`
	Bucket         string `json:"bucket" yaml:"bucket" validate:"required"`
	KeyPrefix      string `json:"key_prefix" yaml:"key_prefix"`
	AccessKey      string `json:"access_key" yaml:"access_key"`
	SecretKey      string `json:"secret_key" yaml:"secret_key"`
	ForcePathStyle bool   `json:"force_path_style" yaml:"force_path_style"`
	// PartSize is the multipart upload part size. S3 requires 5MB minimum.
	PartSize int64 `json:"part_size" yaml:"part_size" validate:"omitempty,gte=5242880"`
}

type BadgerConfig struct {
	Dir string `json:"dir" yaml:"dir" validate:"required"`
}

type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

type LimitsConfig struct {
	MaxFileSize          int64 `json:"max_file_size" yaml:"max_file_size" validate:"gt=0"`
	ChunkSize            int64 `json:"chunk_size" yaml:"chunk_size" validate:"gt=0"`
	MaxAttachments       int   `json:"max_attachments" yaml:"max_attachments" validate:"gt=0"`
	UploadTimeoutSeconds int   `json:"upload_timeout_seconds" yaml:"upload_timeout_seconds" validate:"gt=0"`
	CancelGraceSeconds   int   `json:"cancel_grace_seconds" yaml:"cancel_grace_seconds" validate:"gt=0"`
}

// UploadTimeout returns the configured whole-call upload deadline.
func (l LimitsConfig) UploadTimeout() time.Duration {
	return time.Duration(l.UploadTimeoutSeconds) * time.Second
}

// CancelGrace bounds how long the store-write task may outlive its request.
func (l LimitsConfig) CancelGrace() time.Duration {
	return time.Duration(l.CancelGraceSeconds) * time.Second
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:   ":9040",
			NodeID: 1,
		},
		Store: StoreConfig{
			Region:   "us-east-1",
			Bucket:   "peerclass-assets",
			PartSize: 8 * 1024 * 1024,
		},
		Badger: BadgerConfig{
			Dir: "data/asset-records",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Limits: LimitsConfig{
			MaxFileSize:          512 * 1024 * 1024, // 512MB
			ChunkSize:            256 * 1024,        // 256KB
			MaxAttachments:       16,
			UploadTimeoutSeconds: 300,
			CancelGraceSeconds:   5,
		},
		Logger: logger.Config{
			LogLevel:    logger.LevelInfo,
			LogEncoding: logger.EncodingJSON,
		},
	}
}

// Load loads configuration from file and validates it.
func Load(path string) (*Config, error) {
	configPath := path
	if configPath == "" {
		env := os.Getenv("ENV")
		if env == "" {
			env = "local"
		}
		configPath = filepath.Join("internal", "asset", "config", env+".yaml")
	}

	cfg := DefaultConfig()

	parsedCfg, err := conflux.ParseConfig(configPath, cfg)
	if err != nil {
		log.Printf("Config file not found or failed to parse, using defaults if file not specified. Path: %s, Error: %v", configPath, err)
		if path != "" {
			return nil, err
		}
		parsedCfg = cfg
	}

	if err := validator.New().Struct(parsedCfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return parsedCfg, nil
}

// MustLoad loads configuration or exits on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}
