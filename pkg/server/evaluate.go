package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gridsage/gridsage/pkg/log"
	"github.com/gridsage/gridsage/pkg/optimizer"
	"github.com/gridsage/gridsage/pkg/types"
)

// TrainResult reports which components accepted the training pass.
type TrainResult struct {
	Patterns  bool `json:"patterns"`
	Solar     bool `json:"solar"`
	Load      bool `json:"load"`
	Optimizer bool `json:"optimizer"`
}

// evaluation serializes all model mutation. The components are
// single-threaded by design, so every train or decide pass, whether from
// the ticker or an API call, goes through this mutex.
type evaluation struct {
	mu  sync.Mutex
	srv *Server

	lastDecision *types.Decision
	lastTrained  time.Time
}

func newEvaluation(srv *Server) *evaluation {
	return &evaluation{srv: srv}
}

// loop runs train-and-decide cycles until the context is canceled. The
// first cycle runs immediately so a fresh deployment has a decision
// before the first tick.
func (e *evaluation) loop(ctx context.Context, interval time.Duration) {
	e.cycle(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.cycle(ctx)
		}
	}
}

func (e *evaluation) cycle(ctx context.Context) {
	res := e.train(ctx)
	if _, err := e.evaluate(ctx); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "evaluation cycle failed",
			slog.Any("error", err),
			slog.Any("trained", res),
		)
	}
}

// train pulls the lookback window and retrains every component. A
// component rejecting the pass (not enough data) keeps its prior state;
// that is reported, not fatal.
func (e *evaluation) train(ctx context.Context) TrainResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.trainLocked(ctx)
}

func (e *evaluation) trainLocked(ctx context.Context) TrainResult {
	var res TrainResult
	ds, err := e.srv.history.GetDataset(ctx, e.srv.lookback)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to pull history", slog.Any("error", err))
		return res
	}

	res.Patterns = e.srv.detector.AnalyzePatterns(ctx, ds)
	res.Solar = e.srv.solar.Train(ctx, ds.Solar)
	res.Load = e.srv.load.Train(ctx, ds.Load)
	res.Optimizer = e.srv.optimizer.Train(ctx, ds, e.srv.prices)
	e.lastTrained = time.Now()

	log.Ctx(ctx).InfoContext(ctx, "training pass complete",
		slog.Bool("patterns", res.Patterns),
		slog.Bool("solar", res.Solar),
		slog.Bool("load", res.Load),
		slog.Bool("optimizer", res.Optimizer),
	)
	return res
}

// evaluate takes a fresh system snapshot and produces a charging
// decision. Missing price data degrades to the numeric-threshold path
// with a zero price level rather than failing the evaluation.
func (e *evaluation) evaluate(ctx context.Context) (types.Decision, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, err := e.srv.state.GetState(ctx)
	if err != nil {
		return types.Decision{}, fmt.Errorf("fetching system state: %w", err)
	}

	in := optimizer.Input{
		Timestamp:  state.Timestamp,
		CurrentSOC: state.BatterySOC,
		SolarPower: state.PVPower,
		LoadPower:  state.LoadPower,
	}
	if in.Timestamp.IsZero() {
		in.Timestamp = time.Now()
	}

	if price, err := e.srv.prices.GetCurrentPrice(ctx); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "price unavailable, deciding without it", slog.Any("error", err))
	} else {
		in.GridPriceCents = price.CentsPerKWH
		in.PriceLevel = price.Level
	}

	if w := e.srv.detector.PredictWeather(in.Timestamp); w.Confidence > 0 {
		in.WeatherHint = string(w.Class)
	}

	d := e.srv.optimizer.Optimize(ctx, in)
	e.lastDecision = &d

	// fold the snapshot into the rolling trend buffers
	e.srv.solar.UpdateModel(types.Sample{Timestamp: in.Timestamp, Power: state.PVPower})
	e.srv.load.UpdateModel(types.Sample{Timestamp: in.Timestamp, Power: state.LoadPower})

	return d, nil
}

// last returns the most recent decision, if any.
func (e *evaluation) last() *types.Decision {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastDecision
}

// forecastSolar and forecastLoad hold the mutex because prediction reads
// the same rolling buffers the cycle writes.
func (e *evaluation) forecastSolar(ctx context.Context, start time.Time, hours int) []types.Forecast {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.srv.solar.Predict(ctx, start, hours)
}

func (e *evaluation) forecastLoad(ctx context.Context, start time.Time, hours int) []types.Forecast {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.srv.load.Predict(ctx, start, hours)
}
