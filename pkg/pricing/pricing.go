// Package pricing defines the price-forecast boundary the optimizer
// consumes, plus a synthetic provider used for training and for hosts
// without a dynamic tariff.
package pricing

import (
	"context"

	"github.com/gridsage/gridsage/pkg/types"
)

// Provider supplies current and near-future electricity prices. The
// forecast must cover at least the next 24 hours; Level on each price is
// optional and consumers fall back to numeric thresholds without it.
type Provider interface {
	GetCurrentPrice(ctx context.Context) (types.Price, error)
	GetForecast(ctx context.Context) ([]types.Price, error)
}
