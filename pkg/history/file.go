package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/gridsage/gridsage/pkg/types"
	"github.com/levenlabs/go-lflag"
)

// File is a Provider reading a JSON telemetry export from disk. The file
// holds a types.Dataset; it is re-read on every call so an external
// process can keep appending to it.
type File struct {
	path string

	stateSOC      float64
	stateCapacity float64
}

// Configured sets up the file-backed provider from flags.
func Configured() *File {
	f := &File{}
	path := lflag.String("history-file", "", "Path to a JSON telemetry export ({solar: [...], load: [...]})")
	soc := 50.0
	lflag.JSON(&soc, "initial-soc", soc, "Battery SOC percent to report until the host supplies one")
	capacity := 10.0
	lflag.JSON(&capacity, "battery-capacity-kwh", capacity, "Battery capacity in kWh")

	lflag.Do(func() {
		f.path = *path
		f.stateSOC = soc
		f.stateCapacity = capacity
	})
	return f
}

// Validate ensures the configuration is usable.
func (f *File) Validate() error {
	if f.path == "" {
		return fmt.Errorf("history-file is required")
	}
	if _, err := os.Stat(f.path); err != nil {
		return fmt.Errorf("history-file not readable (%s): %w", f.path, err)
	}
	return nil
}

// GetDataset reads the export and returns samples within the lookback window.
func (f *File) GetDataset(_ context.Context, lookback time.Duration) (types.Dataset, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return types.Dataset{}, fmt.Errorf("failed to read history file: %w", err)
	}
	var ds types.Dataset
	if err := json.Unmarshal(raw, &ds); err != nil {
		return types.Dataset{}, fmt.Errorf("failed to parse history file: %w", err)
	}
	cutoff := time.Now().Add(-lookback)
	return types.Dataset{
		Solar: filterSince(ds.Solar, cutoff),
		Load:  filterSince(ds.Load, cutoff),
	}, nil
}

// GetState derives a best-effort snapshot from the latest samples in the
// export plus the configured SOC. Hosts with a live battery feed should
// provide their own StateProvider instead.
func (f *File) GetState(ctx context.Context) (types.SystemState, error) {
	ds, err := f.GetDataset(ctx, 24*time.Hour)
	if err != nil {
		return types.SystemState{}, err
	}
	st := types.SystemState{
		Timestamp:          time.Now(),
		BatterySOC:         f.stateSOC,
		BatteryCapacityKWH: f.stateCapacity,
	}
	if n := len(ds.Solar); n > 0 {
		SortSamples(ds.Solar)
		st.PVPower = ds.Solar[n-1].Power
	}
	if n := len(ds.Load); n > 0 {
		SortSamples(ds.Load)
		st.LoadPower = ds.Load[n-1].Power
	}
	return st, nil
}
