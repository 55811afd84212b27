package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flashcamp/camp-ensemble/camp"
	"github.com/flashcamp/camp-ensemble/camp/model"
	"github.com/flashcamp/camp-ensemble/camp/report"
	"github.com/flashcamp/camp-ensemble/camp/server"
	"github.com/flashcamp/camp-ensemble/camp/synth"
)

func fastOptions() Options {
	return Options{
		Timeout:           2 * time.Second,
		RequestsPerSecond: 1000,
		Burst:             100,
		InitialInterval:   time.Millisecond,
		MaxRetryTimeout:   2 * time.Second,
	}
}

func sampleInput(t *testing.T) map[string]any {
	t.Helper()
	raws, err := synth.Generate(synth.Options{Count: 1, Seed: 9, IDPrefix: "cli"})
	require.NoError(t, err)
	return raws[0]
}

func TestClient_Predict_AgainstRealServer(t *testing.T) {
	// GIVEN a real server with the embedded models
	reg := model.LoadEmbedded()
	ens, err := camp.NewEnsemble(camp.NewAdapters(reg), camp.EnsembleConfig{})
	require.NoError(t, err)
	ts := httptest.NewServer(server.New(server.DefaultConfig(), ens, reg).Handler())
	defer ts.Close()
	c := New(ts.URL+"/", fastOptions())

	// WHEN a record is submitted
	resp, err := c.Predict(context.Background(), sampleInput(t))

	// THEN the typed response comes back
	require.NoError(t, err)
	assert.Equal(t, "cli-9-0000", resp.RecordID)
	assert.Equal(t, 5, resp.ModelsAttempted)

	health, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, server.HealthOK, health.Status)
}

func TestClient_RetriesBadGateway(t *testing.T) {
	// GIVEN a server that fails twice with 502 before answering
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(report.Response{RecordID: "r1", Verdict: camp.VerdictPass})
	}))
	defer ts.Close()

	// WHEN predicted
	resp, err := New(ts.URL, fastOptions()).Predict(context.Background(), map[string]any{})

	// THEN the client retried until it succeeded
	require.NoError(t, err)
	assert.Equal(t, "r1", resp.RecordID)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_ValidationError_NotRetried(t *testing.T) {
	// GIVEN a server rejecting the input
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set(server.RequestIDHeader, "req-7")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(server.ErrorResponse{
			Error:  "invalid metrics",
			Fields: []camp.FieldError{{Field: "runway_months", Reason: "missing"}},
		})
	}))
	defer ts.Close()

	// WHEN predicted
	_, err := New(ts.URL, fastOptions()).Predict(context.Background(), map[string]any{})

	// THEN one call was made and the API error carries the offending fields
	assert.Equal(t, int32(1), calls.Load())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "invalid metrics", apiErr.Message)
	assert.Equal(t, "req-7", apiErr.RequestID)
	require.Len(t, apiErr.Fields, 1)
	assert.False(t, apiErr.Retryable())
	assert.Contains(t, err.Error(), "runway_months")
}

func TestClient_PlainTextError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "teapot", http.StatusTeapot)
	}))
	defer ts.Close()

	_, err := New(ts.URL, fastOptions()).Predict(context.Background(), map[string]any{})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "teapot", apiErr.Message)
}

func TestClient_Health_UnavailableIsNotAnError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(server.HealthResponse{Status: server.HealthUnavailable, ModelsTotal: 5})
	}))
	defer ts.Close()

	health, err := New(ts.URL, fastOptions()).Health(context.Background())

	require.NoError(t, err)
	assert.Equal(t, server.HealthUnavailable, health.Status)
}

func TestClient_CancelledContext_StopsRetrying(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGatewayTimeout)
	}))
	defer ts.Close()
	opts := fastOptions()
	opts.InitialInterval = 50 * time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := New(ts.URL, opts).Predict(ctx, map[string]any{})

	require.Error(t, err)
}

func TestAPIError_Retryable(t *testing.T) {
	for code, want := range map[int]bool{
		http.StatusTooManyRequests:     true,
		http.StatusBadGateway:          true,
		http.StatusGatewayTimeout:      true,
		http.StatusServiceUnavailable:  false,
		http.StatusBadRequest:          false,
		http.StatusInternalServerError: false,
	} {
		assert.Equal(t, want, (&APIError{StatusCode: code}).Retryable(), "status %d", code)
	}
}
