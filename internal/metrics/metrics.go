package metrics

import "sync/atomic"

// MetricID indexes a single counter.
type MetricID int

const (
	MetricAccountCreated MetricID = iota
	MetricAccountDuplicate
	MetricLoginPasswordFailure
	MetricLoginCodeIssued
	MetricLoginCodeRejected
	MetricLoginRateLimited
	MetricLoginSuccess
	MetricResetRequested
	MetricResetRateLimited
	MetricResetCodeVerified
	MetricResetCodeRejected
	MetricResetCompleted
	MetricSessionCreated
	MetricSessionFlushed
	MetricFlowStateViolation
	MetricNotificationFailure

	MetricIDCount
)

// Config enables or disables the counter set.
type Config struct {
	Enabled bool
}

// Metrics holds a fixed array of atomic counters. A nil or disabled
// instance makes every operation a no-op, so callers never branch.
type Metrics struct {
	enabled  bool
	counters [MetricIDCount]atomic.Uint64
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Counters [MetricIDCount]uint64
}

func New(cfg Config) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id < 0 || id >= MetricIDCount {
		return
	}
	m.counters[id].Add(1)
}

func (m *Metrics) Get(id MetricID) uint64 {
	if m == nil || !m.enabled || id < 0 || id >= MetricIDCount {
		return 0
	}
	return m.counters[id].Load()
}

func (m *Metrics) Snapshot() Snapshot {
	var s Snapshot
	if m == nil || !m.enabled {
		return s
	}
	for i := MetricID(0); i < MetricIDCount; i++ {
		s.Counters[i] = m.counters[i].Load()
	}
	return s
}
