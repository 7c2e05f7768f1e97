package history

import (
	"context"
	"sync"
	"time"

	"github.com/gridsage/gridsage/pkg/types"
)

// Memory is an in-memory Provider. It backs tests and hosts that push
// telemetry into the process instead of reading it from disk.
type Memory struct {
	mu      sync.Mutex
	dataset types.Dataset
}

// NewMemory returns a Memory provider seeded with the given dataset.
func NewMemory(ds types.Dataset) *Memory {
	return &Memory{dataset: ds}
}

// Add appends samples to the stored series.
func (m *Memory) Add(solar, load []types.Sample) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dataset.Solar = append(m.dataset.Solar, solar...)
	m.dataset.Load = append(m.dataset.Load, load...)
}

// GetDataset returns the stored samples within the lookback window.
func (m *Memory) GetDataset(_ context.Context, lookback time.Duration) (types.Dataset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-lookback)
	return types.Dataset{
		Solar: filterSince(m.dataset.Solar, cutoff),
		Load:  filterSince(m.dataset.Load, cutoff),
	}, nil
}

func filterSince(samples []types.Sample, cutoff time.Time) []types.Sample {
	out := make([]types.Sample, 0, len(samples))
	for _, s := range samples {
		if !s.Timestamp.Before(cutoff) {
			out = append(out, s)
		}
	}
	return out
}

// StaticState is a StateProvider returning a fixed snapshot with the
// timestamp refreshed on each call. Useful for tests and dry runs.
type StaticState struct {
	State types.SystemState
}

// GetState returns the configured snapshot stamped with the current time.
func (s *StaticState) GetState(_ context.Context) (types.SystemState, error) {
	st := s.State
	st.Timestamp = time.Now()
	return st, nil
}
