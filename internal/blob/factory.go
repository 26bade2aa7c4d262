package blob

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Environment variables read by ConfigFromEnv. S3 variables are documented
// in s3.go.
const (
	EnvDriver = "FLOWPANEL_BLOB_DRIVER"
	EnvFSRoot = "FLOWPANEL_BLOB_FS_ROOT"
)

// Config selects and parameterises an artifact store.
type Config struct {
	Driver Driver
	FSRoot string
	S3     S3Config
}

// ConfigFromEnv reads the blob settings from the process environment.
// S3 settings are only read when the s3 driver is selected.
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		Driver: Driver(strings.ToLower(strings.TrimSpace(os.Getenv(EnvDriver)))),
		FSRoot: os.Getenv(EnvFSRoot),
	}
	if cfg.Driver == DriverS3 {
		s3cfg, err := S3ConfigFromEnv()
		if err != nil {
			return Config{}, err
		}
		cfg.S3 = s3cfg
	}
	return cfg, nil
}

// Open selects a Store using environment variables.
//
//	FLOWPANEL_BLOB_DRIVER: fs|s3|memory (default fs)
//	FLOWPANEL_BLOB_FS_ROOT: directory root when driver=fs (default ./exports)
func Open(ctx context.Context) (Store, error) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return OpenConfig(ctx, cfg)
}

// OpenConfig constructs the Store described by cfg. An empty driver selects
// the filesystem.
func OpenConfig(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverFilesystem:
		return NewFilesystem(cfg.FSRoot)
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}
