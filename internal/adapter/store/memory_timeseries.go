package store

import (
	"context"
	"sync"
	"time"

	"github.com/quantfabric/alert-delivery-service/internal/domain/model"
)

var (
	_ TimeSeriesRepo    = (*MemoryTimeSeries)(nil)
	_ RetentionEnforcer = (*MemoryTimeSeries)(nil)
)

// MemoryTimeSeries is the in-process telemetry store used in tests and
// single-node deployments without an external time-series database.
type MemoryTimeSeries struct {
	mu     sync.RWMutex
	points []model.TimeSeriesPoint
}

func NewMemoryTimeSeries() *MemoryTimeSeries {
	return &MemoryTimeSeries{}
}

func (m *MemoryTimeSeries) WritePoint(_ context.Context, p model.TimeSeriesPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points = append(m.points, p)
	return nil
}

func (m *MemoryTimeSeries) WritePoints(_ context.Context, ps []model.TimeSeriesPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points = append(m.points, ps...)
	return nil
}

// Points returns a copy of everything written so far.
func (m *MemoryTimeSeries) Points() []model.TimeSeriesPoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.TimeSeriesPoint, len(m.points))
	copy(out, m.points)
	return out
}

// PointsSince filters by timestamp; used by the aggregation task.
func (m *MemoryTimeSeries) PointsSince(cutoff time.Time, measurement string) []model.TimeSeriesPoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.TimeSeriesPoint
	for _, p := range m.points {
		if p.Measurement == measurement && !p.Timestamp.Before(cutoff) {
			out = append(out, p)
		}
	}
	return out
}

// DropBefore removes points older than the cutoff and reports how many went.
func (m *MemoryTimeSeries) DropBefore(cutoff time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.points[:0]
	removed := 0
	for _, p := range m.points {
		if p.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, p)
	}
	m.points = kept
	return removed
}
