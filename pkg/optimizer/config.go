package optimizer

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the optimizer tunables. Every field has a working default
// so a zero config file (or none at all) yields a usable optimizer.
type Config struct {
	// PriceThresholdCents is the grid price below which charging from
	// the grid is considered attractive.
	PriceThresholdCents float64 `yaml:"priceThresholdCents"`
	// PriceMaxCents is the grid price above which grid charging is
	// penalized outright.
	PriceMaxCents float64 `yaml:"priceMaxCents"`
	// AvgPriceCents is the assumed long-run average purchase price used
	// to value cheap-charge spreads and avoided purchases.
	AvgPriceCents float64 `yaml:"avgPriceCents"`
	// ChargePowerKW is the assumed charge/discharge power.
	ChargePowerKW float64 `yaml:"chargePowerKW"`
	// Epsilon is the exploration rate during training.
	Epsilon float64 `yaml:"epsilon"`
	// LearningRate is the initial Q-learning step size.
	LearningRate float64 `yaml:"learningRate"`
	// MaxScenarios caps the synthetic scenarios built per training pass.
	MaxScenarios int `yaml:"maxScenarios"`
}

// DefaultConfig returns the built-in tunables.
func DefaultConfig() Config {
	return Config{
		PriceThresholdCents: 8,
		PriceMaxCents:       10,
		AvgPriceCents:       12,
		ChargePowerKW:       3,
		Epsilon:             0.1,
		LearningRate:        0.1,
		MaxScenarios:        200,
	}
}

// LoadConfig reads tunables from a YAML file, filling unset fields with
// the defaults. An empty path returns the defaults unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading optimizer config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing optimizer config %s: %w", path, err)
	}
	if cfg.MaxScenarios <= 0 {
		cfg.MaxScenarios = DefaultConfig().MaxScenarios
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = DefaultConfig().LearningRate
	}
	if cfg.ChargePowerKW <= 0 {
		cfg.ChargePowerKW = DefaultConfig().ChargePowerKW
	}
	return cfg, nil
}
