// Package optimizer decides what the battery should do right now. It
// learns an action-value table from synthetic scenarios built out of
// historical telemetry and refines it online from realized outcomes.
package optimizer

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/gridsage/gridsage/pkg/log"
	"github.com/gridsage/gridsage/pkg/pricing"
	"github.com/gridsage/gridsage/pkg/rolling"
	"github.com/gridsage/gridsage/pkg/stats"
	"github.com/gridsage/gridsage/pkg/types"
	"github.com/levenlabs/go-lflag"
)

const (
	// RewardHistoryCap bounds the online reward history.
	RewardHistoryCap = 500

	// adaptMinHistory is how many outcomes must accumulate before the
	// learning rate starts adapting.
	adaptMinHistory = 100
	adaptWindow     = 50

	learningRateMin = 0.01
	learningRateMax = 0.3

	defaultBaseCents = 10.0
)

// rewardRecord is one reward observation kept for training diagnostics.
type rewardRecord struct {
	Timestamp time.Time    `json:"timestamp"`
	Action    types.Action `json:"action"`
	Reward    float64      `json:"reward"`
}

// Optimizer owns the action-value table. Train once from history, then
// evaluate one decision at a time; callers running evaluations in
// parallel must serialize access since the table mutates in place.
type Optimizer struct {
	cfg   Config
	rng   *rand.Rand
	alpha float64

	trained bool
	qtable  map[string]map[types.Action]float64
	rewards *rolling.Buffer[rewardRecord]
}

// Status reports training state for observability.
type Status struct {
	Trained         bool    `json:"trained"`
	States          int     `json:"states"`
	LearningRate    float64 `json:"learningRate"`
	Epsilon         float64 `json:"epsilon"`
	RewardCount     int     `json:"rewardCount"`
	AvgRecentReward float64 `json:"avgRecentReward"`
}

// Configured sets up an Optimizer from flags, optionally layering
// tunables from a YAML file on top of the defaults.
func Configured() *Optimizer {
	o := New(DefaultConfig(), 1)
	path := lflag.String("optimizer-config", "", "Optional YAML file with optimizer tunables")
	seed := lflag.Int("optimizer-seed", 1, "Seed for scenario sampling and exploration")
	lflag.Do(func() {
		cfg, err := LoadConfig(*path)
		if err != nil {
			log.Ctx(context.Background()).Error("invalid optimizer config, using defaults",
				slog.Any("err", err),
			)
			cfg = DefaultConfig()
		}
		o.cfg = cfg
		o.alpha = cfg.LearningRate
		o.rng = rand.New(rand.NewPCG(uint64(*seed), 0))
	})
	return o
}

// New creates an Optimizer with the given tunables and seed.
func New(cfg Config, seed uint64) *Optimizer {
	return &Optimizer{
		cfg:     cfg,
		rng:     rand.New(rand.NewPCG(seed, 0)),
		alpha:   cfg.LearningRate,
		qtable:  make(map[string]map[types.Action]float64),
		rewards: rolling.New[rewardRecord](RewardHistoryCap),
	}
}

// Train runs one pass of synthetic scenarios through the Q-learning
// update. The price curve is anchored on the provider's current price
// when available. An empty dataset returns false and leaves prior state
// untouched.
func (o *Optimizer) Train(ctx context.Context, ds types.Dataset, priceService pricing.Provider) bool {
	base := defaultBaseCents
	if priceService != nil {
		if p, err := priceService.GetCurrentPrice(ctx); err == nil && p.CentsPerKWH > 0 {
			base = p.CentsPerKWH
		} else if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "price provider unavailable, using default base",
				slog.Any("err", err),
				slog.Float64("baseCents", base),
			)
		}
	}

	scenarios := buildScenarios(ds, base, o.cfg.MaxScenarios, o.rng)
	if len(scenarios) == 0 {
		log.Ctx(ctx).WarnContext(ctx, "no scenarios could be built from dataset",
			slog.Int("solarSamples", len(ds.Solar)),
			slog.Int("loadSamples", len(ds.Load)),
		)
		return false
	}

	for _, sc := range scenarios {
		key := encodeState(sc.in)
		action := o.selectAction(key, o.cfg.Epsilon)
		r := o.reward(action, sc.in)
		o.applyUpdate(key, action, r)
		o.rewards.Append(rewardRecord{
			Timestamp: sc.in.Timestamp,
			Action:    action,
			Reward:    r,
		})
	}
	o.trained = true

	log.Ctx(ctx).InfoContext(ctx, "optimizer trained",
		slog.Int("scenarios", len(scenarios)),
		slog.Int("states", len(o.qtable)),
		slog.Float64("learningRate", o.alpha),
	)
	return true
}

// selectAction is ε-greedy: explore with probability epsilon, otherwise
// take the best-known action. Ties resolve to enumeration order.
func (o *Optimizer) selectAction(key string, epsilon float64) types.Action {
	if epsilon > 0 && o.rng.Float64() < epsilon {
		return types.Actions[o.rng.IntN(len(types.Actions))]
	}
	return o.greedyAction(key)
}

func (o *Optimizer) greedyAction(key string) types.Action {
	best := types.Actions[0]
	bestV := o.qvalue(key, best)
	for _, a := range types.Actions[1:] {
		if v := o.qvalue(key, a); v > bestV {
			best, bestV = a, v
		}
	}
	return best
}

func (o *Optimizer) qvalue(key string, a types.Action) float64 {
	return o.qtable[key][a]
}

// applyUpdate is the single-step rule Q ← Q + α(r − Q). There is no
// discounted next-state term; each evaluation is a one-shot decision.
func (o *Optimizer) applyUpdate(key string, a types.Action, r float64) {
	row, ok := o.qtable[key]
	if !ok {
		row = make(map[types.Action]float64, len(types.Actions))
		o.qtable[key] = row
	}
	row[a] += o.alpha * (r - row[a])
}

// Optimize evaluates one snapshot and returns the decision, greedy over
// the table (ε=0). Unknown states read as all-zero rows, which makes the
// first enumerated action win.
func (o *Optimizer) Optimize(ctx context.Context, in Input) types.Decision {
	key := encodeState(in)
	action := o.greedyAction(key)

	values := make([]float64, len(types.Actions))
	alternatives := make([]types.Alternative, 0, len(types.Actions)-1)
	var chosen float64
	for i, a := range types.Actions {
		values[i] = o.qvalue(key, a)
		if a == action {
			chosen = values[i]
		} else {
			alternatives = append(alternatives, types.Alternative{Action: a, Value: values[i]})
		}
	}

	d := types.Decision{
		ID:              uuid.NewString(),
		Type:            "charging",
		Timestamp:       in.Timestamp,
		Action:          action,
		Priority:        priorityFor(action),
		Reason:          o.reasonFor(action, in),
		ExpectedSavings: o.expectedSavings(action, in),
		Confidence:      confidence(chosen, values),
		Reasoning:       o.buildReasoning(in),
		Alternatives:    alternatives,
	}

	log.Ctx(ctx).DebugContext(ctx, "charging decision",
		slog.String("state", key),
		slog.String("action", string(action)),
		slog.Float64("confidence", d.Confidence),
	)
	return d
}

// confidence min-max normalizes the chosen value against the spread of
// all action values and scales it into [0.3,0.95]. No spread reads as a
// 0.5 normalized value.
func confidence(chosen float64, values []float64) float64 {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	norm := 0.5
	if hi > lo {
		norm = (chosen - lo) / (hi - lo)
	}
	return 0.3 + 0.65*norm
}

func priorityFor(action types.Action) types.Priority {
	switch action {
	case types.ActionChargeGrid, types.ActionChargeSolar, types.ActionStopCharging:
		return types.PriorityHigh
	case types.ActionDischarge:
		return types.PriorityMedium
	default:
		return types.PriorityLow
	}
}

func (o *Optimizer) reasonFor(action types.Action, in Input) string {
	switch action {
	case types.ActionChargeGrid:
		return fmt.Sprintf("charge from grid at %.1f¢/kWh", in.GridPriceCents)
	case types.ActionChargeSolar:
		return fmt.Sprintf("store %.0fW of solar surplus", in.SolarPower-in.LoadPower)
	case types.ActionDischarge:
		return fmt.Sprintf("cover %.0fW of load from the battery", in.LoadPower)
	case types.ActionStopCharging:
		return fmt.Sprintf("stop charging, price %.1f¢/kWh is too high", in.GridPriceCents)
	default:
		return "hold current state"
	}
}

func (o *Optimizer) expectedSavings(action types.Action, in Input) string {
	kw := o.cfg.ChargePowerKW
	switch action {
	case types.ActionChargeGrid:
		if spread := o.cfg.AvgPriceCents - in.GridPriceCents; spread > 0 {
			return fmt.Sprintf("%.1f¢/h", spread*kw)
		}
	case types.ActionChargeSolar:
		if surplus := (in.SolarPower - in.LoadPower) / 1000; surplus > 0 {
			return fmt.Sprintf("%.1f¢/h", in.GridPriceCents*surplus)
		}
	case types.ActionDischarge:
		return fmt.Sprintf("%.1f¢/h", in.GridPriceCents*kw*roundTripEfficiency)
	}
	return "0.0¢/h"
}

// buildReasoning derives the explanation list from its own threshold
// checks on price, SOC, and solar balance. It is intentionally separate
// from the reward computation and may disagree with the chosen action.
func (o *Optimizer) buildReasoning(in Input) []string {
	var out []string

	switch {
	case in.GridPriceCents <= o.cfg.PriceThresholdCents:
		out = append(out, fmt.Sprintf("grid price %.1f¢/kWh is below the %.1f¢ cheap threshold", in.GridPriceCents, o.cfg.PriceThresholdCents))
	case in.GridPriceCents > o.cfg.PriceMaxCents:
		out = append(out, fmt.Sprintf("grid price %.1f¢/kWh is above the %.1f¢ ceiling", in.GridPriceCents, o.cfg.PriceMaxCents))
	default:
		out = append(out, fmt.Sprintf("grid price %.1f¢/kWh is in the normal band", in.GridPriceCents))
	}
	if in.PriceLevel != "" {
		out = append(out, fmt.Sprintf("tariff classifies this hour as %s", in.PriceLevel))
	}

	switch {
	case in.CurrentSOC < 20:
		out = append(out, fmt.Sprintf("battery critically low at %.0f%%", in.CurrentSOC))
	case in.CurrentSOC > 95:
		out = append(out, fmt.Sprintf("battery nearly full at %.0f%%", in.CurrentSOC))
	case in.CurrentSOC >= 30 && in.CurrentSOC <= 80:
		out = append(out, fmt.Sprintf("battery at %.0f%%, inside the healthy band", in.CurrentSOC))
	}

	if surplus := in.SolarPower - in.LoadPower; surplus > surplusThresholdW {
		out = append(out, fmt.Sprintf("solar surplus of %.0fW available", surplus))
	} else if surplus < 0 {
		out = append(out, fmt.Sprintf("load exceeds solar by %.0fW", -surplus))
	}

	if in.WeatherHint != "" {
		out = append(out, fmt.Sprintf("expected day class: %s", in.WeatherHint))
	}
	return out
}

// UpdateRewards feeds a realized outcome back into the reward history
// and, with enough samples, adapts the learning rate: shrink it while
// recent rewards run positive, grow it while they run negative.
func (o *Optimizer) UpdateRewards(ctx context.Context, outcome types.Outcome) {
	actual := outcome.EarnedCents*10 - outcome.SpentCents*5
	if outcome.SelfConsumptionRatio > 0.8 {
		actual += 5
	}
	ts := outcome.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	o.rewards.Append(rewardRecord{
		Timestamp: ts,
		Action:    outcome.Action,
		Reward:    actual,
	})

	if o.rewards.Len() >= adaptMinHistory {
		if stats.Mean(o.recentRewards(adaptWindow)) > 0 {
			o.alpha *= 0.95
		} else {
			o.alpha *= 1.05
		}
		if o.alpha < learningRateMin {
			o.alpha = learningRateMin
		}
		if o.alpha > learningRateMax {
			o.alpha = learningRateMax
		}
	}

	log.Ctx(ctx).DebugContext(ctx, "outcome recorded",
		slog.String("action", string(outcome.Action)),
		slog.Float64("actualReward", actual),
		slog.Float64("learningRate", o.alpha),
	)
}

// recentRewards extracts the reward values from the last n records.
func (o *Optimizer) recentRewards(n int) []float64 {
	recs := o.rewards.Last(n)
	out := make([]float64, len(recs))
	for i, rec := range recs {
		out[i] = rec.Reward
	}
	return out
}

// GetStatus reports table size and learning parameters.
func (o *Optimizer) GetStatus() Status {
	return Status{
		Trained:         o.trained,
		States:          len(o.qtable),
		LearningRate:    o.alpha,
		Epsilon:         o.cfg.Epsilon,
		RewardCount:     o.rewards.Len(),
		AvgRecentReward: stats.Mean(o.recentRewards(adaptWindow)),
	}
}

// Reset discards the table, the reward history, and the adapted
// learning rate.
func (o *Optimizer) Reset() {
	o.trained = false
	o.qtable = make(map[string]map[types.Action]float64)
	o.rewards.Reset()
	o.alpha = o.cfg.LearningRate
}
