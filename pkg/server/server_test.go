package server

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gridsage/gridsage/pkg/history"
	"github.com/gridsage/gridsage/pkg/load"
	"github.com/gridsage/gridsage/pkg/optimizer"
	"github.com/gridsage/gridsage/pkg/patterns"
	"github.com/gridsage/gridsage/pkg/pricing"
	"github.com/gridsage/gridsage/pkg/solar"
	"github.com/gridsage/gridsage/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testDataset builds 35 days of hourly telemetry ending now: a bell solar
// curve and a 650/450 weekday/weekend load split.
func testDataset() types.Dataset {
	var ds types.Dataset
	end := time.Now().Truncate(time.Hour)
	start := end.Add(-35 * 24 * time.Hour)
	for ts := start; ts.Before(end); ts = ts.Add(time.Hour) {
		solarW := 0.0
		if h := ts.Hour(); h >= 7 && h <= 19 {
			solarW = 3000 * math.Exp(-math.Pow(float64(h)-13, 2)/(2*9))
		}
		loadW := 650.0
		if wd := ts.Weekday(); wd == time.Saturday || wd == time.Sunday {
			loadW = 450
		}
		ds.Solar = append(ds.Solar, types.Sample{Timestamp: ts, Power: solarW})
		ds.Load = append(ds.Load, types.Sample{Timestamp: ts, Power: loadW})
	}
	return ds
}

func testServer() *Server {
	srv := &Server{
		history: history.NewMemory(testDataset()),
		state: &history.StaticState{State: types.SystemState{
			BatterySOC:         55,
			PVPower:            1200,
			LoadPower:          600,
			BatteryCapacityKWH: 10,
		}},
		prices:     pricing.NewSynthetic(10, 1),
		detector:   patterns.NewDetector(1),
		solar:      solar.New(48),
		load:       load.New(),
		optimizer:  optimizer.New(optimizer.DefaultConfig(), 1),
		lookback:   40 * 24 * time.Hour,
		serverName: "gridsage-test",
	}
	srv.evaluation = newEvaluation(srv)
	return srv
}

func doJSON(t *testing.T, h http.Handler, method, path string, out any) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if out != nil && w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
	}
	return w
}

func TestHealthz(t *testing.T) {
	h := testServer().setupHandler()
	w := doJSON(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
	assert.Equal(t, "gridsage-test", w.Header().Get("Server"))
}

func TestTrainAndStatus(t *testing.T) {
	srv := testServer()
	h := srv.setupHandler()

	var res TrainResult
	w := doJSON(t, h, http.MethodPost, "/api/train", &res)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, res.Patterns)
	assert.True(t, res.Solar)
	assert.True(t, res.Load)
	assert.True(t, res.Optimizer)

	var st statusResponse
	w = doJSON(t, h, http.MethodGet, "/api/status", &st)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, st.Patterns.Trained)
	assert.True(t, st.Solar.Trained)
	assert.True(t, st.Load.Trained)
	assert.True(t, st.Optimizer.Trained)
	assert.Nil(t, st.LastDecision)
}

func TestForecastEndpoints(t *testing.T) {
	srv := testServer()
	h := srv.setupHandler()
	srv.evaluation.train(context.Background())

	t.Run("Solar", func(t *testing.T) {
		var fc []types.Forecast
		w := doJSON(t, h, http.MethodGet, "/api/forecast/solar?hours=12", &fc)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, fc, 12)
	})

	t.Run("Load Default Hours", func(t *testing.T) {
		var fc []types.Forecast
		w := doJSON(t, h, http.MethodGet, "/api/forecast/load", &fc)
		require.Equal(t, http.StatusOK, w.Code)
		require.Len(t, fc, 24)
		for _, f := range fc {
			assert.GreaterOrEqual(t, f.Power, 50.0)
		}
	})

	t.Run("Bad Hours", func(t *testing.T) {
		w := doJSON(t, h, http.MethodGet, "/api/forecast/solar?hours=1000", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		w = doJSON(t, h, http.MethodGet, "/api/forecast/load?hours=abc", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestPatternsEndpoint(t *testing.T) {
	srv := testServer()
	h := srv.setupHandler()
	srv.evaluation.train(context.Background())

	var res patternsResponse
	w := doJSON(t, h, http.MethodGet, "/api/patterns", &res)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, res.DailyPatterns)
	assert.NotNil(t, res.WeeklyPattern)
}

func TestEvaluateEndpoint(t *testing.T) {
	srv := testServer()
	h := srv.setupHandler()
	srv.evaluation.train(context.Background())

	var d types.Decision
	w := doJSON(t, h, http.MethodPost, "/api/evaluate", &d)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, types.Actions, d.Action)
	assert.NotEmpty(t, d.ID)
	assert.NotEmpty(t, d.Reasoning)
	assert.GreaterOrEqual(t, d.Confidence, 0.3)
	assert.LessOrEqual(t, d.Confidence, 0.95)

	// the decision is now visible via status
	var st statusResponse
	doJSON(t, h, http.MethodGet, "/api/status", &st)
	require.NotNil(t, st.LastDecision)
	assert.Equal(t, d.ID, st.LastDecision.ID)
}

func TestEvaluationLoopStops(t *testing.T) {
	srv := testServer()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		srv.evaluation.loop(ctx, time.Hour)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("evaluation loop did not stop after cancel")
	}
}
