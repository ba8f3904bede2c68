package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/offer-goat/offer-goat/internal/device"
	"github.com/offer-goat/offer-goat/internal/store"
)

// maxBeaconBytes bounds the body of a beacon request.
const maxBeaconBytes = 16 << 10

type HealthResponse struct {
	Status           string `json:"status"`
	ExperimentsCount int    `json:"experiments_count"`
	DBSizeBytes      int64  `json:"db_size_bytes"`
	UptimeSeconds    int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	exps, err := s.store.ListExperiments(ctx)
	if err != nil {
		zap.L().Error("health: list experiments", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var dbSize int64
	row := s.store.DB().QueryRowContext(ctx, "SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()")
	if err := row.Scan(&dbSize); err != nil {
		// Fall back to the file size
		if info, statErr := os.Stat(s.store.Path()); statErr == nil {
			dbSize = info.Size()
		}
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:           "ok",
		ExperimentsCount: len(exps),
		DBSizeBytes:      dbSize,
		UptimeSeconds:    int64(time.Since(s.startTime).Seconds()),
	})
}

type AssignResponse struct {
	Experiment string `json:"experiment"`
	Variant    string `json:"variant"`
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("e")
	visitorID := r.URL.Query().Get("vid")
	if name == "" || visitorID == "" {
		http.Error(w, "e and vid parameters required", http.StatusBadRequest)
		return
	}

	variant, err := s.analytics.Assign(r.Context(), name, visitorID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Experiment not found", http.StatusNotFound)
			return
		}
		zap.L().Error("assign failed", zap.String("experiment", name), zap.Error(err))
		http.Error(w, "Failed to assign variant", http.StatusInternalServerError)
		return
	}

	assignmentsTotal.WithLabelValues(name, variant).Inc()
	writeJSON(w, http.StatusOK, AssignResponse{Experiment: name, Variant: variant})
}

// VisitRequest is a visit beacon. Repeated beacons for the same session
// are merged by the store.
type VisitRequest struct {
	Experiment     string   `json:"experiment"`
	Variant        string   `json:"variant"`
	SessionID      string   `json:"session_id"`
	PropertyID     string   `json:"property_id"`
	Source         string   `json:"source"`
	DeviceType     string   `json:"device_type"`
	ViewedHero     bool     `json:"viewed_hero"`
	ViewedOffer    bool     `json:"viewed_offer"`
	ViewedBenefits bool     `json:"viewed_benefits"`
	ViewedProcess  bool     `json:"viewed_process"`
	ViewedForm     bool     `json:"viewed_form"`
	SubmittedForm  bool     `json:"submitted_form"`
	TimeOnPage     *float64 `json:"time_on_page"`
}

func (s *Server) handleVisit(w http.ResponseWriter, r *http.Request) {
	const kind = "visit"

	var req VisitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBeaconBytes)).Decode(&req); err != nil {
		s.reject(w, kind, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if req.Experiment == "" || req.Variant == "" || req.SessionID == "" {
		s.reject(w, kind, "Missing required fields", http.StatusBadRequest)
		return
	}
	if req.TimeOnPage != nil && *req.TimeOnPage < 0 {
		s.reject(w, kind, "Invalid time_on_page", http.StatusBadRequest)
		return
	}

	exp, ok := s.runningExperiment(r.Context(), w, kind, req.Experiment, req.Variant)
	if !ok {
		return
	}

	visit := &store.Visit{
		Experiment:     exp.Name,
		Variant:        req.Variant,
		SessionID:      req.SessionID,
		PropertyID:     req.PropertyID,
		DeviceType:     device.Normalize(req.DeviceType, r.UserAgent()),
		Source:         req.Source,
		ViewedHero:     req.ViewedHero,
		ViewedOffer:    req.ViewedOffer,
		ViewedBenefits: req.ViewedBenefits,
		ViewedProcess:  req.ViewedProcess,
		ViewedForm:     req.ViewedForm,
		SubmittedForm:  req.SubmittedForm,
		TimeOnPage:     req.TimeOnPage,
	}
	if visit.PropertyID == "" {
		visit.PropertyID = exp.PropertyID
	}

	if _, err := s.store.RecordVisit(r.Context(), visit); err != nil {
		beaconsTotal.WithLabelValues(kind, outcomeFailed).Inc()
		zap.L().Error("record visit failed",
			zap.String("experiment", exp.Name),
			zap.String("session_id", req.SessionID),
			zap.Error(err),
		)
		http.Error(w, "Failed to record visit", http.StatusInternalServerError)
		return
	}

	beaconsTotal.WithLabelValues(kind, outcomeRecorded).Inc()
	w.WriteHeader(http.StatusNoContent)
}

// EventRequest is an interaction beacon.
type EventRequest struct {
	Experiment string         `json:"experiment"`
	Variant    string         `json:"variant"`
	SessionID  string         `json:"session_id"`
	Type       string         `json:"type"`
	Metadata   map[string]any `json:"metadata"`
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	const kind = "event"

	var req EventRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBeaconBytes)).Decode(&req); err != nil {
		s.reject(w, kind, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if req.Experiment == "" || req.Variant == "" || req.SessionID == "" {
		s.reject(w, kind, "Missing required fields", http.StatusBadRequest)
		return
	}

	eventType := store.EventType(req.Type)
	if !eventType.Valid() {
		s.reject(w, kind, "Invalid event type", http.StatusBadRequest)
		return
	}

	exp, ok := s.runningExperiment(r.Context(), w, kind, req.Experiment, req.Variant)
	if !ok {
		return
	}

	event := &store.Event{
		Experiment: exp.Name,
		Variant:    req.Variant,
		SessionID:  req.SessionID,
		Type:       eventType,
		Metadata:   req.Metadata,
	}
	if err := s.store.RecordEvent(r.Context(), event); err != nil {
		beaconsTotal.WithLabelValues(kind, outcomeFailed).Inc()
		zap.L().Error("record event failed",
			zap.String("experiment", exp.Name),
			zap.String("type", req.Type),
			zap.Error(err),
		)
		http.Error(w, "Failed to record event", http.StatusInternalServerError)
		return
	}

	beaconsTotal.WithLabelValues(kind, outcomeRecorded).Inc()
	w.WriteHeader(http.StatusNoContent)
}

// runningExperiment loads the experiment a beacon refers to and checks the
// variant belongs to it. It writes the error response itself and reports
// false when the beacon must be dropped.
func (s *Server) runningExperiment(ctx context.Context, w http.ResponseWriter, kind, name, variant string) (*store.Experiment, bool) {
	exp, err := s.store.GetExperiment(ctx, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.reject(w, kind, "Experiment not found", http.StatusNotFound)
			return nil, false
		}
		beaconsTotal.WithLabelValues(kind, outcomeFailed).Inc()
		zap.L().Error("load experiment failed", zap.String("experiment", name), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return nil, false
	}

	if !exp.HasVariant(variant) {
		s.reject(w, kind, "Invalid variant", http.StatusBadRequest)
		return nil, false
	}
	if exp.State != store.StateRunning {
		s.reject(w, kind, "Experiment is not running", http.StatusConflict)
		return nil, false
	}
	return exp, true
}

func (s *Server) reject(w http.ResponseWriter, kind, msg string, code int) {
	beaconsTotal.WithLabelValues(kind, outcomeRejected).Inc()
	http.Error(w, msg, code)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}
