package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/flashcamp/camp-ensemble/camp"
	"github.com/flashcamp/camp-ensemble/camp/model"
	"github.com/flashcamp/camp-ensemble/camp/report"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string            `json:"error" yaml:"error"`
	Fields    []camp.FieldError `json:"fields,omitempty" yaml:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty" yaml:"request_id,omitempty"`
}

// Health status values.
const (
	HealthOK          = "ok"
	HealthDegraded    = "degraded"
	HealthUnavailable = "unavailable"
)

// HealthResponse reports service status and per-model load status.
type HealthResponse struct {
	Status        string         `json:"status" yaml:"status"`
	ModelsLoaded  int            `json:"models_loaded" yaml:"models_loaded"`
	ModelsTotal   int            `json:"models_total" yaml:"models_total"`
	Models        []model.Status `json:"models" yaml:"models"`
	UptimeSeconds float64        `json:"uptime_seconds" yaml:"uptime_seconds"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Errorf("Failed to encode JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string, fields []camp.FieldError) {
	writeJSON(w, status, ErrorResponse{Error: msg, Fields: fields, RequestID: RequestID(r.Context())})
}

func (s *Server) predictHandler(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded", nil)
		return
	}

	raw, err := decodeObject(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, fmt.Sprintf("body exceeds %d bytes", maxBodyBytes), nil)
			return
		}
		writeError(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	}

	rec, err := camp.Normalize(raw)
	if err != nil {
		var verr *camp.ValidationError
		if errors.As(err, &verr) {
			logrus.WithFields(logrus.Fields{"request_id": RequestID(r.Context()), "fields": verr.FieldNames()}).Info("Rejected invalid metrics")
			writeError(w, r, http.StatusBadRequest, "invalid metrics", verr.Fields)
			return
		}
		writeError(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	}

	res, err := s.ensemble.Predict(r.Context(), rec)
	if err != nil {
		var aerr *camp.AggregationError
		switch {
		case errors.As(err, &aerr):
			writeError(w, r, http.StatusServiceUnavailable, "no model produced a result", nil)
		case r.Context().Err() != nil:
			// client went away; nothing to write to
			logrus.WithFields(logrus.Fields{"request_id": RequestID(r.Context()), "record": rec.ID()}).Info("Client disconnected before prediction completed")
		default:
			writeError(w, r, http.StatusInternalServerError, err.Error(), nil)
		}
		return
	}
	writeJSON(w, http.StatusOK, report.Assemble(res, rec))
}

// decodeObject reads exactly one JSON object, keeping numbers as json.Number.
func decodeObject(body io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(body)
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("malformed JSON body: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("body must be a JSON object")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("body must contain a single JSON object")
	}
	return raw, nil
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{
		ModelsLoaded:  s.registry.Loaded(),
		ModelsTotal:   len(model.Names()),
		Models:        s.registry.Status(),
		UptimeSeconds: time.Since(s.started).Seconds(),
	}
	status := http.StatusOK
	switch {
	case resp.ModelsLoaded == 0:
		resp.Status = HealthUnavailable
		status = http.StatusServiceUnavailable
	case resp.ModelsLoaded < resp.ModelsTotal:
		resp.Status = HealthDegraded
	default:
		resp.Status = HealthOK
	}
	writeJSON(w, status, resp)
}

func (s *Server) modelsHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Status())
}

func (s *Server) fieldsHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, camp.Fields())
}
