// Package blob is the entry point for plant image storage. It re-exports the
// core contract and constructs the configured backend so callers never import
// the infra packages directly.
package blob

import (
	"context"
	"fmt"

	"gardenkeep/internal/blob/core"
	"gardenkeep/internal/infra/blob/fs"
	memorystore "gardenkeep/internal/infra/blob/memory"
	infraS3 "gardenkeep/internal/infra/blob/s3"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
	// SignedURLOptions configures URL pre-signing.
	SignedURLOptions = core.SignedURLOptions
	// Info describes stored blob metadata.
	Info = core.Info
	// Store is the interface for blob storage backends.
	Store = core.Store
	// S3Config configures the S3 driver.
	S3Config = infraS3.Config
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

var (
	ErrUnsupported = core.ErrUnsupported
	ErrNotFound    = core.ErrNotFound
	ErrExists      = core.ErrExists
)

// Config selects and configures a backend.
type Config struct {
	Driver Driver
	// FSRoot is the directory for the fs driver.
	FSRoot string
	// PublicBaseURL prefixes object URLs for drivers without signing.
	PublicBaseURL string
	S3            S3Config
}

// Open constructs the Store named by cfg.Driver (default fs).
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverFilesystem:
		return fs.New(cfg.FSRoot, fs.WithBaseURL(cfg.PublicBaseURL))
	case DriverMemory:
		return memorystore.New(), nil
	case DriverS3:
		return infraS3.New(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}

// NewMemory returns an in-memory Store.
func NewMemory() Store { return memorystore.New() }

// NewMockS3ForTests exposes the in-process S3 fake for cross-package tests.
func NewMockS3ForTests() Store { return infraS3.NewMockForTests() }
