package blob

import (
	"context"
	"fmt"

	"modelcore/internal/infra/blob/fs"
	memorystore "modelcore/internal/infra/blob/memory"
	infraS3 "modelcore/internal/infra/blob/s3"
)

// S3Config configures the S3 backend; it is parsed from MODELCORE_BLOB_S3_*.
type S3Config = infraS3.Config

// Config selects the backend behind the blob partition driver.
type Config struct {
	// Driver is fs, s3 or memory. Empty selects fs.
	Driver string
	FSRoot string
	S3     S3Config
}

// Open builds the backend named by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch Driver(cfg.Driver) {
	case "", DriverFilesystem:
		return NewFilesystem(cfg.FSRoot)
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	case DriverMemory:
		return NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown blob driver %s", cfg.Driver)
}

// NewFilesystem stores objects under root, publishing through rename.
func NewFilesystem(root string) (Store, error) { return fs.New(root) }

// NewS3 connects to an S3 compatible bucket.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) { return infraS3.New(ctx, cfg) }

// NewMemory is a process-local backend for tests and the memory blob driver.
func NewMemory() Store { return memorystore.New() }

// NewMockS3ForTests is the S3 backend over an in-process fake endpoint.
func NewMockS3ForTests() Store { return infraS3.NewMockForTests() }
