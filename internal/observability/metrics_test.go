package observability

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"orderflow/internal/saga"
)

func TestMetricsTracksSteps(t *testing.T) {
	metrics := NewMetrics()
	sink := metrics.EventSink()

	sink(saga.Event{Type: saga.EventRunStarted, RunID: "r1"})
	sink(saga.Event{Type: saga.EventStepSucceeded, RunID: "r1", Step: "validate-order", Elapsed: 2 * time.Millisecond})
	sink(saga.Event{Type: saga.EventStepFailed, RunID: "r1", Step: "charge-payment", Err: errors.New("declined"), Elapsed: 5 * time.Millisecond})
	sink(saga.Event{Type: saga.EventCompensationApplied, RunID: "r1", Step: "cancel-order"})
	sink(saga.Event{Type: saga.EventRunFinished, RunID: "r1", Outcome: &saga.Outcome{Status: saga.StatusFailed}})

	snap := metrics.Snapshot()
	if snap.RunsStarted != 1 {
		t.Fatalf("runs started = %d", snap.RunsStarted)
	}
	if snap.RunsInFlight != 0 {
		t.Fatalf("runs in flight = %d", snap.RunsInFlight)
	}
	if snap.Outcomes[string(saga.StatusFailed)] != 1 {
		t.Fatalf("unexpected outcomes: %v", snap.Outcomes)
	}
	if snap.Compensations != 1 {
		t.Fatalf("compensations = %d", snap.Compensations)
	}

	charge := snap.Steps["charge-payment"]
	if charge.Count != 1 || charge.Failures != 1 {
		t.Fatalf("unexpected charge stats: %+v", charge)
	}
	validate := snap.Steps["validate-order"]
	if validate.Count != 1 || validate.Failures != 0 {
		t.Fatalf("unexpected validate stats: %+v", validate)
	}
	cancel := snap.Steps["cancel-order"]
	if cancel.Compensations != 1 {
		t.Fatalf("unexpected cancel stats: %+v", cancel)
	}
}

func TestMetricsTracksRateLimitWait(t *testing.T) {
	metrics := NewMetrics()
	metrics.AddRateLimitWait(50 * time.Millisecond)
	metrics.AddRateLimitWait(25 * time.Millisecond)
	metrics.AddRateLimitWait(0)

	snap := metrics.Snapshot()
	if snap.RateLimitWaits != 2 {
		t.Fatalf("expected 2 waits, got %d", snap.RateLimitWaits)
	}
	if snap.RateLimitWaitMs != 75 {
		t.Fatalf("expected 75ms, got %d", snap.RateLimitWaitMs)
	}
}

func TestHandlerReturnsJSON(t *testing.T) {
	metrics := NewMetrics()
	sink := metrics.EventSink()
	sink(saga.Event{Type: saga.EventRunStarted, RunID: "r1"})
	sink(saga.Event{Type: saga.EventRunFinished, RunID: "r1", Outcome: &saga.Outcome{Status: saga.StatusSucceeded}})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()

	Handler(metrics).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var snap Snapshot
	if err := json.Unmarshal(rr.Body.Bytes(), &snap); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if snap.RunsStarted != 1 {
		t.Fatalf("runs started = %d", snap.RunsStarted)
	}
	if snap.Outcomes[string(saga.StatusSucceeded)] != 1 {
		t.Fatalf("unexpected outcomes: %v", snap.Outcomes)
	}
}

func TestHandlerRejectsNonGet(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/metrics", nil)
	rr := httptest.NewRecorder()

	Handler(NewMetrics()).ServeHTTP(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestMetricsNilSafePaths(t *testing.T) {
	var m *Metrics
	m.EventSink()(saga.Event{Type: saga.EventRunStarted})
	m.AddRateLimitWait(10 * time.Millisecond)
	if snap := m.Snapshot(); snap.RunsStarted != 0 {
		t.Fatalf("expected zero snapshot, got %+v", snap)
	}
}
