package observability

import (
	"strconv"
	"sync"
	"time"
)

// AuthOutcome labels what the authentication filter concluded for a request.
type AuthOutcome string

const (
	AuthOutcomeAuthenticated   AuthOutcome = "authenticated"
	AuthOutcomeUnauthenticated AuthOutcome = "unauthenticated"
	AuthOutcomeInvalid         AuthOutcome = "invalid"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu           sync.Mutex
	requestCount map[string]int64
	errorCount   map[string]int64
	authCount    map[AuthOutcome]int64
	latencyTotal map[string]time.Duration
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
		authCount:    make(map[AuthOutcome]int64),
		latencyTotal: make(map[string]time.Duration),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
	m.latencyTotal[key] += duration
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordAuth counts an authentication filter outcome.
func (m *Metrics) RecordAuth(outcome AuthOutcome) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authCount[outcome]++
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Requests map[string]int64      `json:"requests"`
	Errors   map[string]int64      `json:"errors"`
	Auth     map[AuthOutcome]int64 `json:"auth"`
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() Snapshot {
	snap := Snapshot{
		Requests: map[string]int64{},
		Errors:   map[string]int64{},
		Auth:     map[AuthOutcome]int64{},
	}
	if m == nil {
		return snap
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.requestCount {
		snap.Requests[k] = v
	}
	for k, v := range m.errorCount {
		snap.Errors[k] = v
	}
	for k, v := range m.authCount {
		snap.Auth[k] = v
	}
	return snap
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
