package history

import (
	"context"
	"time"

	"github.com/gridsage/gridsage/pkg/types"
)

// Provider supplies historical solar and load telemetry for a lookback
// window. Implementations make no ordering guarantee; the core sorts and
// groups by timestamp itself.
type Provider interface {
	// GetDataset returns samples covering at most the given lookback
	// window ending now.
	GetDataset(ctx context.Context, lookback time.Duration) (types.Dataset, error)
}

// StateProvider supplies the current system-state snapshot, fresh on each
// optimizer evaluation.
type StateProvider interface {
	GetState(ctx context.Context) (types.SystemState, error)
}
