package metrics

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// RequestMetrics collects per-endpoint latency plus global counters for
// outbound API calls. Endpoints are keyed by "METHOD /path" with ids
// collapsed, e.g. "PUT /collection/{id}".
type RequestMetrics struct {
	mu        sync.RWMutex
	endpoints map[string]*Histogram

	Requests      atomic.Uint64
	Errors        atomic.Uint64
	Retries       atomic.Uint64
	Unauthorized  atomic.Uint64
	StaleDiscards atomic.Uint64

	startTime time.Time
}

// NewRequestMetrics creates an empty collector.
func NewRequestMetrics() *RequestMetrics {
	return &RequestMetrics{
		endpoints: make(map[string]*Histogram),
		startTime: time.Now(),
	}
}

// Observe records one completed request.
func (m *RequestMetrics) Observe(endpoint string, d time.Duration, failed bool) {
	m.Requests.Add(1)
	if failed {
		m.Errors.Add(1)
	}
	m.histogram(endpoint).Record(d)
}

func (m *RequestMetrics) histogram(endpoint string) *Histogram {
	m.mu.RLock()
	h, ok := m.endpoints[endpoint]
	m.mu.RUnlock()
	if ok {
		return h
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok = m.endpoints[endpoint]; !ok {
		h = NewHistogram(1000)
		m.endpoints[endpoint] = h
	}
	return h
}

// EndpointStats pairs an endpoint key with its latency summary.
type EndpointStats struct {
	Endpoint string `json:"endpoint"`
	Stats
}

// Summary is a snapshot of all request metrics.
type Summary struct {
	Requests      uint64          `json:"requests"`
	Errors        uint64          `json:"errors"`
	Retries       uint64          `json:"retries"`
	Unauthorized  uint64          `json:"unauthorized"`
	StaleDiscards uint64          `json:"stale_discards"`
	SuccessRate   float64         `json:"success_rate"` // percentage
	Uptime        string          `json:"uptime"`
	Endpoints     []EndpointStats `json:"endpoints"`
}

// Summary returns the current statistics, endpoints sorted by key.
func (m *RequestMetrics) Summary() Summary {
	m.mu.RLock()
	keys := make([]string, 0, len(m.endpoints))
	for k := range m.endpoints {
		keys = append(keys, k)
	}
	m.mu.RUnlock()
	slices.Sort(keys)

	s := Summary{
		Requests:      m.Requests.Load(),
		Errors:        m.Errors.Load(),
		Retries:       m.Retries.Load(),
		Unauthorized:  m.Unauthorized.Load(),
		StaleDiscards: m.StaleDiscards.Load(),
		Uptime:        time.Since(m.startTime).Round(time.Second).String(),
	}
	if s.Requests > 0 {
		s.SuccessRate = float64(s.Requests-s.Errors) / float64(s.Requests) * 100
	}
	for _, k := range keys {
		s.Endpoints = append(s.Endpoints, EndpointStats{Endpoint: k, Stats: m.histogram(k).Snapshot()})
	}
	return s
}
