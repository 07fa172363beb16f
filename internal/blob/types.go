// Package blob is the import point for blob storage. Callers depend on Store
// and the constructors here; the concrete backends live under internal/infra/blob.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"modelcore/internal/blob/core"
)

type (
	// Driver names a backend.
	Driver = core.Driver
	// PutOptions carries content type and metadata of a write.
	PutOptions = core.PutOptions
	// Info describes one stored object.
	Info = core.Info
	// Store is implemented by every backend.
	Store = core.Store
)

// Backends selectable through Config.Driver.
const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

var (
	ErrNotFound = core.ErrNotFound
	ErrExists   = core.ErrExists
)

// ReplaceBytes publishes data at key, overwriting any previous object.
func ReplaceBytes(ctx context.Context, s Store, key string, data []byte, opts PutOptions) (Info, error) {
	return s.Replace(ctx, key, bytes.NewReader(data), opts)
}

// ReadBytes returns the full content at key. A missing key yields an error
// matching ErrNotFound.
func ReadBytes(ctx context.Context, s Store, key string) (Info, []byte, error) {
	info, rc, err := s.Get(ctx, key)
	if err != nil {
		return Info{}, nil, err
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		return Info{}, nil, fmt.Errorf("read blob %s: %w", key, err)
	}
	return info, data, nil
}
