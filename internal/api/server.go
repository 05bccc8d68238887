// Package api serves the fused estimate over HTTP as JSON: the latest
// snapshot and recent history. Rendering is left entirely to clients.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/driveline-data/speedfusion/internal/fusion"
	"github.com/driveline-data/speedfusion/internal/units"
)

// StateProvider exposes the latest fused estimate.
type StateProvider interface {
	Latest() fusion.Estimate
	RunID() string
}

// HistoryStore serves recorded estimates, newest first.
type HistoryStore interface {
	RecentEstimates(limit int) ([]fusion.Estimate, error)
}

// Server holds the API dependencies.
type Server struct {
	state   StateProvider
	history HistoryStore // may be nil when persistence is disabled
}

// NewServer creates an API server. history may be nil.
func NewServer(state StateProvider, history HistoryStore) *Server {
	return &Server{state: state, history: history}
}

// ServeMux returns the API routes.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/state", s.handleState)
	mux.HandleFunc("/history", s.handleHistory)
	return mux
}

type stateResponse struct {
	fusion.Estimate
	Speed      float64 `json:"speed"`
	SpeedUnits string  `json:"speed_units"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	unit := r.URL.Query().Get("units")
	if unit == "" {
		unit = units.MPS
	}
	if !units.IsValid(unit) {
		http.Error(w, fmt.Sprintf("invalid units %q", unit), http.StatusBadRequest)
		return
	}

	est := s.state.Latest()
	writeJSON(w, stateResponse{
		Estimate:   est,
		Speed:      units.ConvertSpeed(est.SpeedMps, unit),
		SpeedUnits: unit,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.history == nil {
		http.Error(w, "history persistence is disabled", http.StatusNotFound)
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 10000 {
			http.Error(w, fmt.Sprintf("invalid limit %q", v), http.StatusBadRequest)
			return
		}
		limit = n
	}

	estimates, err := s.history.RecentEstimates(limit)
	if err != nil {
		http.Error(w, "failed to read history", http.StatusInternalServerError)
		return
	}
	if estimates == nil {
		estimates = []fusion.Estimate{}
	}
	writeJSON(w, estimates)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
