// Package obs collects lightweight in-process counters and latency stats.
// Everything is atomic; observation never takes a lock on the hot path.
package obs

import (
	"sync/atomic"
	"time"

	"main/internal/schema"
)

const (
	maxMessageKind = int(schema.MessageKindConnectivity)
	maxPolicyMode  = int(schema.PolicyHardDerisk)
)

// Metrics counts provider messages, policy decisions, and cancel outcomes,
// and aggregates submit/cancel/risk latencies.
type Metrics struct {
	messageCounts    [maxMessageKind + 1]uint64
	policyModeCounts [maxPolicyMode + 1]uint64
	cancelRequested  uint64
	cancelFailed     uint64
	queueDrops       uint64
	queueClosed      uint64

	submitLatency   LatencyStats
	cancelLatency   LatencyStats
	riskEvalLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	MessageCounts    map[schema.MessageKind]uint64
	PolicyModeCounts map[schema.PolicyMode]uint64
	CancelRequested  uint64
	CancelFailed     uint64
	QueueDrops       uint64
	QueueClosed      uint64
	SubmitLatency    LatencySnapshot
	CancelLatency    LatencySnapshot
	RiskEvalLatency  LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// ObserveMessage counts one provider message by kind.
func (m *Metrics) ObserveMessage(kind schema.MessageKind) {
	if m == nil {
		return
	}
	idx := int(kind)
	if idx >= 0 && idx < len(m.messageCounts) {
		atomic.AddUint64(&m.messageCounts[idx], 1)
	}
}

// IncPolicyMode counts one risk decision result.
func (m *Metrics) IncPolicyMode(mode schema.PolicyMode) {
	if m == nil {
		return
	}
	idx := int(mode)
	if idx >= 0 && idx < len(m.policyModeCounts) {
		atomic.AddUint64(&m.policyModeCounts[idx], 1)
	}
}

// IncCancelRequested records one cancel request issued to a venue.
func (m *Metrics) IncCancelRequested() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.cancelRequested, 1)
}

// IncCancelFailed records one cancel that exhausted its retry budget.
func (m *Metrics) IncCancelFailed() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.cancelFailed, 1)
}

// IncQueueDrop records a bus drop.
func (m *Metrics) IncQueueDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueDrops, 1)
}

// IncQueueClosed records a closed-queue publish attempt.
func (m *Metrics) IncQueueClosed() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueClosed, 1)
}

// ObserveSubmit measures the place-order round trip.
func (m *Metrics) ObserveSubmit(d time.Duration) {
	if m == nil {
		return
	}
	m.submitLatency.Observe(d)
}

// ObserveCancel measures the cancel-order round trip.
func (m *Metrics) ObserveCancel(d time.Duration) {
	if m == nil {
		return
	}
	m.cancelLatency.Observe(d)
}

// ObserveRiskEval measures risk evaluation latency.
func (m *Metrics) ObserveRiskEval(d time.Duration) {
	if m == nil {
		return
	}
	m.riskEvalLatency.Observe(d)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	messageCounts := make(map[schema.MessageKind]uint64)
	for i := range m.messageCounts {
		if v := atomic.LoadUint64(&m.messageCounts[i]); v > 0 {
			messageCounts[schema.MessageKind(i)] = v
		}
	}
	modeCounts := make(map[schema.PolicyMode]uint64)
	for i := range m.policyModeCounts {
		if v := atomic.LoadUint64(&m.policyModeCounts[i]); v > 0 {
			modeCounts[schema.PolicyMode(i)] = v
		}
	}
	return Snapshot{
		MessageCounts:    messageCounts,
		PolicyModeCounts: modeCounts,
		CancelRequested:  atomic.LoadUint64(&m.cancelRequested),
		CancelFailed:     atomic.LoadUint64(&m.cancelFailed),
		QueueDrops:       atomic.LoadUint64(&m.queueDrops),
		QueueClosed:      atomic.LoadUint64(&m.queueClosed),
		SubmitLatency:    m.submitLatency.Snapshot(),
		CancelLatency:    m.cancelLatency.Snapshot(),
		RiskEvalLatency:  m.riskEvalLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
