package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu           sync.Mutex
	requestCount map[string]int64
	errorCount   map[string]int64
	engineCount  map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
		engineCount:  make(map[string]int64),
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

// Engine counter names.
const (
	CounterEventsRouted      = "events_routed"
	CounterEventsDeduped     = "events_deduped"
	CounterEventsSuppressed  = "events_suppressed"
	CounterEventsMalformed   = "events_malformed"
	CounterHistoryLoads      = "history_loads"
	CounterHistoryDiscarded  = "history_discarded"
	CounterMessagesSent      = "messages_sent"
	CounterSendFailures      = "send_failures"
	CounterAutoStarts        = "auto_starts"
)

// RecordEngine increments a named engine counter.
func (m *Metrics) RecordEngine(counter string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.engineCount[counter]++
}

// EngineCount returns a counter's current value.
func (m *Metrics) EngineCount(counter string) int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.engineCount[counter]
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
