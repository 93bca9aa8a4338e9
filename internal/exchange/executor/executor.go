// Package executor wraps exchange operations in the circuit breaker and
// the failover controller's fallback order. A terminal failure degrades to
// the caller-provided default value; callers cannot distinguish an open
// circuit from a fully unavailable pool.
package executor

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/quantfabric/alert-delivery-service/internal/domain/model"
	"github.com/quantfabric/alert-delivery-service/internal/exchange"
	"github.com/quantfabric/alert-delivery-service/internal/exchange/circuit"
	"github.com/quantfabric/alert-delivery-service/internal/exchange/failover"
)

// Op is one exchange-bound operation. The executor retries it across
// adapters in fallback order.
type Op[T any] func(ctx context.Context, a exchange.Adapter) (T, error)

// Stats are the executor's atomic counters. After quiescence,
// TotalCalls == SuccessfulCalls + FailedCalls + CircuitOpenCalls.
type Stats struct {
	TotalCalls       int64         `json:"total_calls"`
	SuccessfulCalls  int64         `json:"successful_calls"`
	FailedCalls      int64         `json:"failed_calls"`
	CircuitOpenCalls int64         `json:"circuit_open_calls"`
	TotalLatency     time.Duration `json:"total_latency"`
}

// ExhaustedCallback fires when every adapter in the chain failed.
type ExhaustedCallback func(opName string, lastErr error)

// Executor coordinates circuit check, primary lookup and sequential
// fallback. It is generic-free at the struct level so one instance (and
// one stats block) serves operations of any result type via Execute.
type Executor struct {
	breaker   *circuit.Breaker
	pool      *failover.Controller
	logger    *slog.Logger
	exhausted ExhaustedCallback

	totalCalls       atomic.Int64
	successfulCalls  atomic.Int64
	failedCalls      atomic.Int64
	circuitOpenCalls atomic.Int64
	totalLatencyNs   atomic.Int64
}

func New(breaker *circuit.Breaker, pool *failover.Controller, logger *slog.Logger, exhausted ExhaustedCallback) *Executor {
	return &Executor{
		breaker:   breaker,
		pool:      pool,
		logger:    logger,
		exhausted: exhausted,
	}
}

// Execute runs op with failover: circuit check, then each available
// adapter in order (primary first). Each adapter failure triggers a
// failover hint before moving on. On total failure the circuit records
// one failure and def is returned.
func Execute[T any](ctx context.Context, e *Executor, opName string, op Op[T], def T) T {
	res, _ := execute(ctx, e, opName, op, def)
	return res
}

func execute[T any](ctx context.Context, e *Executor, opName string, op Op[T], def T) (T, bool) {
	e.totalCalls.Add(1)

	if !e.breaker.CanExecute() {
		e.circuitOpenCalls.Add(1)
		return def, false
	}

	adapters := e.pool.Ordered()
	var lastErr error
	for _, a := range adapters {
		start := time.Now()
		res, err := op(ctx, a)
		latency := time.Since(start)

		if err == nil {
			e.totalLatencyNs.Add(int64(latency))
			e.successfulCalls.Add(1)
			e.breaker.RecordSuccess()
			return res, true
		}

		lastErr = err
		e.logger.Warn("EXCHANGE_OP_FAILED",
			"op", opName,
			"exchange_id", a.ID(),
			"latency_ms", latency.Milliseconds(),
			"err", err,
		)
		_ = e.pool.TriggerFailover(a.ID(), model.ReasonAPIError)
	}

	e.failedCalls.Add(1)
	e.breaker.RecordFailure()
	if e.exhausted != nil {
		e.exhausted(opName, lastErr)
	}
	return def, false
}

// ExecuteWithRetry re-runs the whole failover sequence up to maxRetries
// extra times, sleeping delay between attempts.
func ExecuteWithRetry[T any](ctx context.Context, e *Executor, opName string, op Op[T], maxRetries int, delay time.Duration, def T) T {
	for attempt := 0; ; attempt++ {
		res, ok := execute(ctx, e, opName, op, def)
		if ok || attempt >= maxRetries {
			return res
		}
		select {
		case <-ctx.Done():
			return res
		case <-time.After(delay):
		}
	}
}

// Stats snapshots the counters.
func (e *Executor) Stats() Stats {
	return Stats{
		TotalCalls:       e.totalCalls.Load(),
		SuccessfulCalls:  e.successfulCalls.Load(),
		FailedCalls:      e.failedCalls.Load(),
		CircuitOpenCalls: e.circuitOpenCalls.Load(),
		TotalLatency:     time.Duration(e.totalLatencyNs.Load()),
	}
}

// Breaker exposes the guarded circuit for manual controls and status.
func (e *Executor) Breaker() *circuit.Breaker { return e.breaker }
