// Package sqlite provides the public API for the SQLite record store.
// This package exposes the factory function while keeping implementation
// details internal.
package sqlite

import (
	"go.uber.org/zap"

	"github.com/mesh-intelligence/recordkit/internal/sqlite"
	"github.com/mesh-intelligence/recordkit/pkg/types"
)

// Backend is a SQLite record store. It implements types.Store once
// attached.
type Backend = sqlite.Backend

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
//
// Example:
//
//	backend := sqlite.NewBackend(logger)
//	err := backend.Attach(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".recordkit",
//	})
//	defer backend.Detach()
//	reg := schema.NewRegistry(schema.WithDir("schema"), schema.WithAdapter(backend))
func NewBackend(logger *zap.Logger) *Backend {
	return sqlite.NewBackend(logger)
}

var _ types.Store = (*Backend)(nil)
