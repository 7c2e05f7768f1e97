package types

import "time"

// Sample is one instantaneous power reading (watts) from the telemetry
// store. Samples are immutable; the core never mutates them.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	Power     float64   `json:"power"`
}

// Dataset holds the historical solar and load series for a lookback window.
// No ordering guarantee: consumers sort and group by timestamp themselves.
type Dataset struct {
	Solar []Sample `json:"solar"`
	Load  []Sample `json:"load"`
}

// Forecast is one predicted hour of power (watts) with a confidence score.
type Forecast struct {
	Timestamp  time.Time `json:"timestamp"`
	Power      float64   `json:"power"`
	Confidence float64   `json:"confidence"`
}

// PriceLevel is an optional categorical classification of a price.
type PriceLevel string

const (
	PriceLevelCheap     PriceLevel = "cheap"
	PriceLevelNormal    PriceLevel = "normal"
	PriceLevelExpensive PriceLevel = "expensive"
)

// Price represents the electricity price for one interval. Level is
// optional; when empty, consumers must fall back to the numeric thresholds.
type Price struct {
	Timestamp   time.Time  `json:"timestamp"`
	CentsPerKWH float64    `json:"centsPerKWH"`
	Level       PriceLevel `json:"level,omitempty"`
}

// SystemState is the snapshot supplied fresh on each optimizer evaluation.
type SystemState struct {
	Timestamp          time.Time `json:"timestamp"`
	BatterySOC         float64   `json:"batterySOC"` // 0-100
	PVPower            float64   `json:"pvPower"`    // watts
	LoadPower          float64   `json:"loadPower"`  // watts
	BatteryCapacityKWH float64   `json:"batteryCapacityKWH"`
}

// Action is one of the five things the optimizer can tell the battery to do.
type Action string

const (
	ActionChargeGrid   Action = "CHARGE_GRID"
	ActionChargeSolar  Action = "CHARGE_SOLAR"
	ActionDischarge    Action = "DISCHARGE"
	ActionHold         Action = "HOLD"
	ActionStopCharging Action = "STOP_CHARGING"
)

// Actions lists every action in enumeration order. Greedy selection
// resolves ties to the earliest entry, so this order is load-bearing.
var Actions = []Action{
	ActionChargeGrid,
	ActionChargeSolar,
	ActionDischarge,
	ActionHold,
	ActionStopCharging,
}

// Priority indicates how urgent a decision is.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Alternative is a non-chosen action with its table value, included in a
// Decision for observability.
type Alternative struct {
	Action Action  `json:"action"`
	Value  float64 `json:"value"`
}

// Decision is the optimizer's output. Computed fresh on every evaluation,
// never cached. Reasoning is derived from an independent set of threshold
// checks and may disagree with the action the table chose.
type Decision struct {
	ID              string        `json:"id"`
	Type            string        `json:"type"`
	Timestamp       time.Time     `json:"timestamp"`
	Action          Action        `json:"action"`
	Priority        Priority      `json:"priority"`
	Reason          string        `json:"reason"`
	ExpectedSavings string        `json:"expectedSavings"`
	Confidence      float64       `json:"confidence"`
	Reasoning       []string      `json:"reasoning"`
	Alternatives    []Alternative `json:"alternatives"`
}

// Outcome reports what actually happened after a decision was applied,
// fed back into the optimizer for online learning.
type Outcome struct {
	Timestamp            time.Time `json:"timestamp"`
	Action               Action    `json:"action"`
	EarnedCents          float64   `json:"earnedCents"`
	SpentCents           float64   `json:"spentCents"`
	SelfConsumptionRatio float64   `json:"selfConsumptionRatio"` // 0-1
}

// AnomalyRecord flags a day whose solar or load total deviates more than
// two standard deviations from the dataset mean.
type AnomalyRecord struct {
	ID          string    `json:"id"`
	Date        time.Time `json:"date"`
	Type        string    `json:"type"`     // "solar" or "load"
	Severity    float64   `json:"severity"` // absolute z-score
	SolarTotal  float64   `json:"solarTotal"`
	LoadTotal   float64   `json:"loadTotal"`
	Description string    `json:"description"`
}
