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

// Config holds gateway configuration.
type Config struct {
	Server ServerConfig  `json:"server" yaml:"server"`
	Asset  AssetConfig   `json:"asset" yaml:"asset"`
	Logger logger.Config `json:"logger" yaml:"logger"`
}

type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr" validate:"required"`
}

// AssetConfig points the gateway at the asset node.
type AssetConfig struct {
	Addr                  string `json:"addr" yaml:"addr" validate:"required"`
	ChunkSize             int64  `json:"chunk_size" yaml:"chunk_size" validate:"gt=0"`
	MaxFileSize           int64  `json:"max_file_size" yaml:"max_file_size" validate:"gt=0"`
	DialTimeoutSeconds    int    `json:"dial_timeout_seconds" yaml:"dial_timeout_seconds" validate:"gt=0"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds" yaml:"request_timeout_seconds" validate:"gt=0"`
}

// DialTimeout bounds establishing one asset-node connection.
func (a AssetConfig) DialTimeout() time.Duration {
	return time.Duration(a.DialTimeoutSeconds) * time.Second
}

// RequestTimeout bounds one unary asset-node call. Streaming calls run
// under the caller's context instead.
func (a AssetConfig) RequestTimeout() time.Duration {
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Asset: AssetConfig{
			Addr:                  "localhost:9040",
			ChunkSize:             256 * 1024,        // 256KB
			MaxFileSize:           512 * 1024 * 1024, // 512MB
			DialTimeoutSeconds:    5,
			RequestTimeoutSeconds: 30,
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
		configPath = filepath.Join("internal", "gateway", "config", env+".yaml")
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
