package health

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfabric/alert-delivery-service/internal/domain/event"
	"github.com/quantfabric/alert-delivery-service/internal/domain/model"
	"github.com/quantfabric/alert-delivery-service/internal/exchange"
)

type probeAdapter struct {
	id        string
	connected bool
	symErr    error
	delay     time.Duration
}

func (a *probeAdapter) ID() string { return a.id }

func (a *probeAdapter) IsConnected(context.Context) bool {
	time.Sleep(a.delay)
	return a.connected
}

func (a *probeAdapter) SupportedSymbols(context.Context) ([]string, error) {
	return []string{"BTC-USD"}, a.symErr
}

// stubPool records UpdateHealth calls and serves HealthOf from a map.
type stubPool struct {
	mu       sync.Mutex
	adapters []exchange.Adapter
	health   map[string]model.ExchangeHealth
}

func newStubPool(adapters ...exchange.Adapter) *stubPool {
	return &stubPool{adapters: adapters, health: map[string]model.ExchangeHealth{}}
}

func (p *stubPool) Adapters() []exchange.Adapter { return p.adapters }

func (p *stubPool) HealthOf(id string) (model.ExchangeHealth, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h, ok := p.health[id]
	return h, ok
}

func (p *stubPool) UpdateHealth(id string, h model.ExchangeHealth) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.health[id] = h
}

type healthCollector struct {
	mu     sync.Mutex
	events []*event.HealthEvent
}

func (c *healthCollector) PublishHealth(ev *event.HealthEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func newTestProber(pool Pool, sink SampleSink) *Prober {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewProber(Config{
		ProbeTimeout:         time.Second,
		MaxAcceptableLatency: 500 * time.Millisecond,
	}, pool, sink, logger, nil)
}

func TestProbe_Healthy(t *testing.T) {
	pool := newStubPool()
	p := newTestProber(pool, nil)

	sample := p.Probe(context.Background(), &probeAdapter{id: "binance", connected: true})

	assert.Equal(t, model.StatusHealthy, sample.Status)
	assert.Equal(t, 0, sample.ConsecutiveFailures)
	assert.False(t, sample.LastSuccess.IsZero())
}

func TestProbe_NotConnectedIncrementsStreak(t *testing.T) {
	pool := newStubPool()
	p := newTestProber(pool, nil)
	a := &probeAdapter{id: "binance", connected: false}

	first := p.Probe(context.Background(), a)
	assert.Equal(t, model.StatusUnhealthy, first.Status)
	assert.Equal(t, 1, first.ConsecutiveFailures)

	pool.UpdateHealth("binance", first)
	second := p.Probe(context.Background(), a)
	assert.Equal(t, 2, second.ConsecutiveFailures)
	assert.Equal(t, "probe returned not connected", second.LastError)
}

func TestProbe_DeepProbeErrorIsUnhealthy(t *testing.T) {
	pool := newStubPool()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := NewProber(Config{DeepProbe: true}, pool, nil, logger, nil)

	sample := p.Probe(context.Background(), &probeAdapter{
		id:        "binance",
		connected: true,
		symErr:    errors.New("rate limited"),
	})

	assert.Equal(t, model.StatusUnhealthy, sample.Status)
	assert.Contains(t, sample.LastError, "rate limited")
}

func TestProbe_RecoveryResetsStreak(t *testing.T) {
	pool := newStubPool()
	pool.UpdateHealth("binance", model.ExchangeHealth{
		Status:              model.StatusUnhealthy,
		ConsecutiveFailures: 2,
	})
	p := newTestProber(pool, nil)

	sample := p.Probe(context.Background(), &probeAdapter{id: "binance", connected: true})

	assert.Equal(t, model.StatusHealthy, sample.Status)
	assert.Equal(t, 0, sample.ConsecutiveFailures)
}

func TestProbe_SlowProbeIsDegraded(t *testing.T) {
	pool := newStubPool()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := NewProber(Config{
		ProbeTimeout:         time.Second,
		MaxAcceptableLatency: time.Millisecond,
	}, pool, nil, logger, nil)

	sample := p.Probe(context.Background(), &probeAdapter{
		id:        "binance",
		connected: true,
		delay:     20 * time.Millisecond,
	})

	assert.Equal(t, model.StatusDegraded, sample.Status)
	assert.Equal(t, 0, sample.ConsecutiveFailures)
}

func TestProbe_TimeoutIsUnhealthy(t *testing.T) {
	pool := newStubPool()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := NewProber(Config{ProbeTimeout: 10 * time.Millisecond}, pool, nil, logger, nil)

	sample := p.Probe(context.Background(), &probeAdapter{
		id:        "binance",
		connected: true,
		delay:     200 * time.Millisecond,
	})

	assert.Equal(t, model.StatusUnhealthy, sample.Status)
	assert.Contains(t, sample.LastError, "probe timeout")
}

func TestProbeAll_SweepsAndPublishes(t *testing.T) {
	pool := newStubPool(
		&probeAdapter{id: "binance", connected: true},
		&probeAdapter{id: "kraken", connected: false},
	)
	sink := &healthCollector{}
	p := newTestProber(pool, sink)

	p.ProbeAll(context.Background())

	h, ok := pool.HealthOf("binance")
	require.True(t, ok)
	assert.Equal(t, model.StatusHealthy, h.Status)

	h, ok = pool.HealthOf("kraken")
	require.True(t, ok)
	assert.Equal(t, model.StatusUnhealthy, h.Status)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Len(t, sink.events, 2)
}

func TestProber_RunStops(t *testing.T) {
	pool := newStubPool()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := NewProber(Config{Interval: time.Hour}, pool, nil, logger, nil)

	go p.Run(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	p.Stop(ctx)

	select {
	case <-p.done:
	default:
		t.Fatal("prober loop did not exit")
	}
}
