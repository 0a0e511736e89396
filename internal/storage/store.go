package storage

import (
	"fmt"
	"strings"

	"github.com/decimal-labs/leakwatch/internal/common"
	"github.com/decimal-labs/leakwatch/internal/service"
)

// Supported storage backends.
const (
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
)

// Open returns the LeakStore for backend at path. The caller runs Migrate.
func Open(backend, path string) (service.LeakStore, error) {
	switch strings.ToLower(backend) {
	case "", BackendSQLite:
		return NewSQLiteStorage(path)
	case BackendBolt:
		return NewBoltStorage(path)
	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", common.ErrInvalidConfig, backend)
	}
}
