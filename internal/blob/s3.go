package blob

import (
	"context"

	infraS3 "flowpanel/internal/infra/blob/s3"
)

// S3Config is the S3 backend configuration.
//
//	FLOWPANEL_BLOB_S3_BUCKET=<bucket> (required)
//	FLOWPANEL_BLOB_S3_REGION=<region> (default us-east-1)
//	FLOWPANEL_BLOB_S3_ENDPOINT=<url> (optional, for MinIO)
//	FLOWPANEL_BLOB_S3_PATH_STYLE=true|false (default false)
//	AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY / AWS_SESSION_TOKEN (optional)
type S3Config = infraS3.Config

// S3 environment variables and defaults.
const (
	EnvS3Bucket     = infraS3.EnvBucket
	EnvS3Region     = infraS3.EnvRegion
	EnvS3Endpoint   = infraS3.EnvEndpoint
	EnvS3PathStyle  = infraS3.EnvPathStyle
	DefaultS3Region = infraS3.DefaultRegion
)

// NewS3 constructs an S3-backed Store from cfg.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) {
	s, err := infraS3.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// S3ConfigFromEnv reads the S3 settings from the environment.
func S3ConfigFromEnv() (S3Config, error) { return infraS3.ConfigFromEnv() }

// NewMockS3ForTests exposes the in-process S3 fake for cross-package tests.
func NewMockS3ForTests() Store { return infraS3.NewMockForTests(0) }
