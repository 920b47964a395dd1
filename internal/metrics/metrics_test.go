package metrics

import (
	"testing"
	"time"
)

func TestHistogram_Snapshot(t *testing.T) {
	h := NewHistogram(100)
	for i := 1; i <= 5; i++ {
		h.Record(time.Duration(i) * time.Millisecond)
	}

	s := h.Snapshot()
	if s.Count != 5 {
		t.Fatalf("Expected 5 samples, got %d", s.Count)
	}
	if s.Min != 1 || s.Max != 5 {
		t.Errorf("Expected min=1 max=5, got min=%v max=%v", s.Min, s.Max)
	}
	if s.Mean != 3 {
		t.Errorf("Expected mean 3, got %v", s.Mean)
	}
	if s.P50 != 3 {
		t.Errorf("Expected p50 3, got %v", s.P50)
	}
}

func TestHistogram_Empty(t *testing.T) {
	h := NewHistogram(0)
	if got := h.Percentile(95); got != 0 {
		t.Errorf("Expected 0 for empty histogram, got %v", got)
	}
	if s := h.Snapshot(); s.Count != 0 {
		t.Errorf("Expected empty snapshot, got %+v", s)
	}
}

func TestHistogram_Trim(t *testing.T) {
	h := NewHistogram(10)
	for i := 0; i < 11; i++ {
		h.Record(time.Millisecond)
	}
	if got := h.Count(); got != 9 {
		t.Errorf("Expected 9 samples after trimming, got %d", got)
	}

	h.Reset()
	if got := h.Count(); got != 0 {
		t.Errorf("Expected 0 samples after reset, got %d", got)
	}
}

func TestRequestMetrics_Summary(t *testing.T) {
	m := NewRequestMetrics()
	m.Observe("GET /collection", 10*time.Millisecond, false)
	m.Observe("GET /collection", 20*time.Millisecond, false)
	m.Observe("DELETE /collection/{id}", 5*time.Millisecond, true)

	s := m.Summary()
	if s.Requests != 3 || s.Errors != 1 {
		t.Fatalf("Expected 3 requests and 1 error, got %d and %d", s.Requests, s.Errors)
	}
	if len(s.Endpoints) != 2 {
		t.Fatalf("Expected 2 endpoints, got %d", len(s.Endpoints))
	}
	if s.Endpoints[0].Endpoint != "DELETE /collection/{id}" {
		t.Errorf("Expected endpoints sorted by key, got %q first", s.Endpoints[0].Endpoint)
	}
	if s.Endpoints[1].Count != 2 {
		t.Errorf("Expected 2 samples for GET /collection, got %d", s.Endpoints[1].Count)
	}
}
