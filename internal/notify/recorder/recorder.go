// Package recorder persists per-attempt delivery telemetry. Records are
// observability, not the critical path: the recorder never blocks or
// propagates errors back into the dispatcher.
package recorder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/quantfabric/alert-delivery-service/internal/adapter/store"
	"github.com/quantfabric/alert-delivery-service/internal/domain/model"
)

// Config tunes the recorder's batching and housekeeping.
type Config struct {
	BatchSize     int           // flush threshold, default 100
	FlushInterval time.Duration // flush cadence, default 30s
	Retention     time.Duration // cleanup horizon, default 30d
	Immediate     bool          // bypass the queue, write synchronously
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 30 * time.Second
	}
	if c.Retention <= 0 {
		c.Retention = 30 * 24 * time.Hour
	}
	return c
}

// Recorder buffers delivery records in a bounded queue and flushes them to
// the time-series port. Overflow drops the oldest entry and counts it.
type Recorder struct {
	cfg    Config
	repo   store.TimeSeriesRepo
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	queue  []model.TimeSeriesPoint
	window []*model.DeliveryRecord // rolling slice feeding the aggregator

	// recent successful deliveries, keyed notification_id+channel, so a
	// non-idempotent sink retried out-of-band cannot double-record.
	dedup *lru.Cache[string, struct{}]

	droppedRecords prometheus.Counter
	storageErrors  prometheus.Counter
	recordsWritten prometheus.Counter

	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func New(cfg Config, repo store.TimeSeriesRepo, logger *slog.Logger, reg prometheus.Registerer, now func() time.Time) *Recorder {
	if now == nil {
		now = time.Now
	}
	dedup, _ := lru.New[string, struct{}](4096)

	r := &Recorder{
		cfg:    cfg.withDefaults(),
		repo:   repo,
		logger: logger,
		now:    now,
		dedup:  dedup,
		droppedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alert_recorder_dropped_records_total",
			Help: "Delivery records discarded due to queue overflow.",
		}),
		storageErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alert_recorder_storage_errors_total",
			Help: "Failed time-series writes.",
		}),
		recordsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alert_recorder_records_written_total",
			Help: "Delivery records persisted.",
		}),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	if reg != nil {
		reg.MustRegister(r.droppedRecords, r.storageErrors, r.recordsWritten)
	}
	return r
}

// Record accepts one delivery attempt. In batch mode it lands in the
// bounded queue; in immediate mode it is written synchronously.
func (r *Recorder) Record(ctx context.Context, rec *model.DeliveryRecord) {
	if rec == nil {
		return
	}
	if rec.Delivered {
		key := rec.NotificationID + "\x00" + rec.Channel.String()
		if _, seen := r.dedup.Get(key); seen {
			return
		}
		r.dedup.Add(key, struct{}{})
	}

	point := rec.Point()

	r.mu.Lock()
	r.window = append(r.window, rec)
	if r.cfg.Immediate {
		r.mu.Unlock()
		r.write(ctx, []model.TimeSeriesPoint{point})
		return
	}

	if len(r.queue) >= r.cfg.BatchSize {
		// [OVERFLOW] Drop-oldest keeps the queue bounded without pushing
		// back-pressure into the dispatcher.
		r.queue = r.queue[1:]
		r.droppedRecords.Inc()
	}
	r.queue = append(r.queue, point)
	full := len(r.queue) >= r.cfg.BatchSize
	r.mu.Unlock()

	if full {
		r.Flush(ctx)
	}
}

// Flush writes out everything currently queued.
func (r *Recorder) Flush(ctx context.Context) {
	r.mu.Lock()
	if len(r.queue) == 0 {
		r.mu.Unlock()
		return
	}
	batch := r.queue
	r.queue = nil
	r.mu.Unlock()

	r.write(ctx, batch)
}

func (r *Recorder) write(ctx context.Context, points []model.TimeSeriesPoint) {
	var err error
	if len(points) == 1 {
		err = r.repo.WritePoint(ctx, points[0])
	} else {
		err = r.repo.WritePoints(ctx, points)
	}
	if err != nil {
		// Telemetry writes never fail the caller; count and move on.
		r.storageErrors.Inc()
		r.logger.Warn("RECORDER_WRITE_FAILED", "err", err, "points", len(points))
		return
	}
	r.recordsWritten.Add(float64(len(points)))
}

// Run drives the flush timer until Stop. Each iteration's failure is
// isolated; the loop itself never exits on error.
func (r *Recorder) Run(ctx context.Context) {
	defer close(r.done)

	flushTicker := time.NewTicker(r.cfg.FlushInterval)
	defer flushTicker.Stop()
	cleanupTicker := time.NewTicker(10 * time.Minute)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-flushTicker.C:
			r.Flush(ctx)
		case <-cleanupTicker.C:
			r.pruneWindow()
			r.enforceRetention()
		}
	}
}

// Stop signals the loop, waits for it, and drains the queue within the
// caller's deadline.
func (r *Recorder) Stop(ctx context.Context) {
	r.stopOnce.Do(func() { close(r.stopCh) })
	select {
	case <-r.done:
	case <-ctx.Done():
	}
	r.Flush(ctx)
}

// pruneWindow drops aggregation-window records older than retention allows,
// bounding the in-process slice. Stored points are enforceRetention's job.
func (r *Recorder) pruneWindow() {
	cutoff := r.now().Add(-maxWindow(r.cfg.Retention))

	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.window[:0]
	for _, rec := range r.window {
		if rec.CreatedAt.After(cutoff) {
			kept = append(kept, rec)
		}
	}
	r.window = kept
}

// enforceRetention discards stored points older than the configured
// horizon. Backends with a server-side retention policy simply do not
// implement the capability.
func (r *Recorder) enforceRetention() {
	enforcer, ok := r.repo.(store.RetentionEnforcer)
	if !ok {
		return
	}
	cutoff := r.now().Add(-r.cfg.Retention)
	if removed := enforcer.DropBefore(cutoff); removed > 0 {
		r.logger.Info("RETENTION_ENFORCED", "removed", removed, "cutoff", cutoff)
	}
}

// windowSince snapshots records created at or after the cutoff.
func (r *Recorder) windowSince(cutoff time.Time) []*model.DeliveryRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*model.DeliveryRecord, 0, len(r.window))
	for _, rec := range r.window {
		if !rec.CreatedAt.Before(cutoff) {
			out = append(out, rec)
		}
	}
	return out
}

// maxWindow bounds the in-memory slice to what aggregation needs: a full
// day plus slack, never more than retention.
func maxWindow(retention time.Duration) time.Duration {
	w := 25 * time.Hour
	if retention < w {
		return retention
	}
	return w
}
