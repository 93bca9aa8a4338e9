// Package health periodically probes every registered exchange adapter
// and feeds the resulting samples to the failover controller.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/quantfabric/alert-delivery-service/internal/domain/event"
	"github.com/quantfabric/alert-delivery-service/internal/domain/model"
	"github.com/quantfabric/alert-delivery-service/internal/exchange"
)

// Config tunes probing cadence and thresholds.
type Config struct {
	Interval               time.Duration // probe period, default 30s
	ProbeTimeout           time.Duration // per-exchange probe deadline, default 10s
	MaxAcceptableLatency   time.Duration // Healthy/Degraded cutoff, default 500ms
	MaxConsecutiveFailures int           // Unhealthy trip threshold, default 3
	DeepProbe              bool          // also call SupportedSymbols
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 10 * time.Second
	}
	if c.MaxAcceptableLatency <= 0 {
		c.MaxAcceptableLatency = 500 * time.Millisecond
	}
	if c.MaxConsecutiveFailures <= 0 {
		c.MaxConsecutiveFailures = 3
	}
	return c
}

// Pool is the slice of the failover controller the prober needs.
type Pool interface {
	Adapters() []exchange.Adapter
	HealthOf(id string) (model.ExchangeHealth, bool)
	UpdateHealth(id string, h model.ExchangeHealth)
}

// SampleSink optionally receives every health sample as a bus event.
type SampleSink interface {
	PublishHealth(ev *event.HealthEvent)
}

// Prober drives the probe loop. Exchanges are probed concurrently: a
// stalled probe consumes its own timeout without delaying the rest.
type Prober struct {
	cfg    Config
	pool   Pool
	sink   SampleSink
	logger *slog.Logger
	now    func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewProber(cfg Config, pool Pool, sink SampleSink, logger *slog.Logger, now func() time.Time) *Prober {
	if now == nil {
		now = time.Now
	}
	return &Prober{
		cfg:    cfg.withDefaults(),
		pool:   pool,
		sink:   sink,
		logger: logger,
		now:    now,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Run probes on the configured cadence until stopped. A failing iteration
// never stops the loop.
func (p *Prober) Run(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.ProbeAll(ctx)
		}
	}
}

// Stop halts the loop and waits for the in-flight sweep.
func (p *Prober) Stop(ctx context.Context) {
	p.stopOnce.Do(func() { close(p.stopCh) })
	select {
	case <-p.done:
	case <-ctx.Done():
	}
}

// ProbeAll sweeps every adapter concurrently and installs the samples.
func (p *Prober) ProbeAll(ctx context.Context) {
	adapters := p.pool.Adapters()

	var wg sync.WaitGroup
	for _, a := range adapters {
		a := a
		wg.Add(1)
		go func() {
			defer wg.Done()
			sample := p.Probe(ctx, a)
			p.pool.UpdateHealth(a.ID(), sample)
			if p.sink != nil {
				p.sink.PublishHealth(event.NewHealthEvent(a.ID(), sample))
			}
		}()
	}
	wg.Wait()
}

// Probe takes one sample, measuring wall-clock latency across the probe.
// A timed-out probe counts as Unhealthy with a synthetic error.
func (p *Prober) Probe(ctx context.Context, a exchange.Adapter) model.ExchangeHealth {
	prev, _ := p.pool.HealthOf(a.ID())

	probeCtx, cancel := context.WithTimeout(ctx, p.cfg.ProbeTimeout)
	defer cancel()

	start := p.now()
	connected, err := p.runProbe(probeCtx, a)
	latency := p.now().Sub(start)
	now := p.now()

	sample := model.ExchangeHealth{
		Latency:             latency,
		LastCheck:           now,
		LastSuccess:         prev.LastSuccess,
		ConsecutiveFailures: prev.ConsecutiveFailures,
	}

	switch {
	case err != nil:
		sample.Status = model.StatusUnhealthy
		sample.ConsecutiveFailures++
		sample.LastError = err.Error()
	case !connected:
		sample.Status = model.StatusUnhealthy
		sample.ConsecutiveFailures++
		sample.LastError = "probe returned not connected"
	case latency > p.cfg.MaxAcceptableLatency:
		sample.Status = model.StatusDegraded
		sample.ConsecutiveFailures = 0
		sample.LastSuccess = now
	default:
		sample.Status = model.StatusHealthy
		sample.ConsecutiveFailures = 0
		sample.LastSuccess = now
	}

	if sample.Status == model.StatusUnhealthy {
		p.logger.Warn("EXCHANGE_PROBE_FAILED",
			"exchange_id", a.ID(),
			"consecutive_failures", sample.ConsecutiveFailures,
			"err", sample.LastError,
		)
	}
	return sample
}

// runProbe executes the cheap probe (and optionally the deep one) under
// the probe deadline, translating deadline expiry into a synthetic error.
func (p *Prober) runProbe(ctx context.Context, a exchange.Adapter) (bool, error) {
	type result struct {
		connected bool
		err       error
	}
	resCh := make(chan result, 1)

	go func() {
		connected := a.IsConnected(ctx)
		var err error
		if connected && p.cfg.DeepProbe {
			_, err = a.SupportedSymbols(ctx)
		}
		resCh <- result{connected: connected, err: err}
	}()

	select {
	case <-ctx.Done():
		return false, fmt.Errorf("probe timeout after %s", p.cfg.ProbeTimeout)
	case res := <-resCh:
		if res.err != nil {
			return res.connected, fmt.Errorf("probe api call: %w", res.err)
		}
		return res.connected, nil
	}
}
