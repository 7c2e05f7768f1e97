package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gridsage/gridsage/pkg/load"
	"github.com/gridsage/gridsage/pkg/optimizer"
	"github.com/gridsage/gridsage/pkg/patterns"
	"github.com/gridsage/gridsage/pkg/solar"
	"github.com/gridsage/gridsage/pkg/types"
)

const maxForecastHours = 72

type statusResponse struct {
	Patterns     patterns.Status  `json:"patterns"`
	Solar        solar.Status     `json:"solar"`
	Load         load.Status      `json:"load"`
	Optimizer    optimizer.Status `json:"optimizer"`
	LastDecision *types.Decision  `json:"lastDecision,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, statusResponse{
		Patterns:     s.detector.GetStatus(),
		Solar:        s.solar.GetStatus(),
		Load:         s.load.GetStatus(),
		Optimizer:    s.optimizer.GetStatus(),
		LastDecision: s.evaluation.last(),
	})
}

// forecastHours parses the optional ?hours= query parameter.
func forecastHours(r *http.Request) (int, bool) {
	hours := 24
	if v := r.URL.Query().Get("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxForecastHours {
			return 0, false
		}
		hours = n
	}
	return hours, true
}

func (s *Server) handleForecastSolar(w http.ResponseWriter, r *http.Request) {
	hours, ok := forecastHours(r)
	if !ok {
		writeJSONError(w, "hours must be between 1 and 72", http.StatusBadRequest)
		return
	}
	writeJSON(w, s.evaluation.forecastSolar(r.Context(), time.Now().Truncate(time.Hour), hours))
}

func (s *Server) handleForecastLoad(w http.ResponseWriter, r *http.Request) {
	hours, ok := forecastHours(r)
	if !ok {
		writeJSONError(w, "hours must be between 1 and 72", http.StatusBadRequest)
		return
	}
	writeJSON(w, s.evaluation.forecastLoad(r.Context(), time.Now().Truncate(time.Hour), hours))
}

type patternsResponse struct {
	patterns.RelevantPatterns
	Anomalies []types.AnomalyRecord `json:"anomalies,omitempty"`
}

func (s *Server) handlePatterns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, patternsResponse{
		RelevantPatterns: s.detector.RelevantPatterns(time.Now()),
		Anomalies:        s.detector.Anomalies(),
	})
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	d, err := s.evaluation.evaluate(r.Context())
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, d)
}

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.evaluation.train(r.Context()))
}
