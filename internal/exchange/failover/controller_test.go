package failover

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfabric/alert-delivery-service/internal/domain/event"
	"github.com/quantfabric/alert-delivery-service/internal/domain/model"
)

type stubAdapter struct {
	id        string
	connected bool
	symbols   []string
	err       error
}

func (a *stubAdapter) ID() string                       { return a.id }
func (a *stubAdapter) IsConnected(context.Context) bool { return a.connected }
func (a *stubAdapter) SupportedSymbols(context.Context) ([]string, error) {
	return a.symbols, a.err
}

type eventCollector struct {
	events []*event.FailoverEvent
}

func (c *eventCollector) PublishFailover(ev *event.FailoverEvent) {
	c.events = append(c.events, ev)
}

type failoverClock struct {
	t time.Time
}

func (c *failoverClock) Now() time.Time          { return c.t }
func (c *failoverClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestController() (*Controller, *eventCollector, *failoverClock) {
	sink := &eventCollector{}
	clock := &failoverClock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewController(Config{
		FailbackCooldown:       5 * time.Minute,
		MaxConsecutiveFailures: 3,
	}, logger, sink, clock.Now)
	return c, sink, clock
}

func unhealthy(failures int) model.ExchangeHealth {
	return model.ExchangeHealth{Status: model.StatusUnhealthy, ConsecutiveFailures: failures}
}

func healthy() model.ExchangeHealth {
	return model.ExchangeHealth{Status: model.StatusHealthy}
}

func TestController_RegisterElectsHighestPriority(t *testing.T) {
	c, _, _ := newTestController()

	c.Register(&stubAdapter{id: "kraken"}, 5)
	assert.Equal(t, "kraken", c.CurrentPrimary())

	c.Register(&stubAdapter{id: "binance"}, 10)
	assert.Equal(t, "binance", c.CurrentPrimary())

	// A lower-priority late arrival does not displace the incumbent.
	c.Register(&stubAdapter{id: "coinbase"}, 7)
	assert.Equal(t, "binance", c.CurrentPrimary())
}

func TestController_UnregisterPrimaryReelects(t *testing.T) {
	c, _, _ := newTestController()
	c.Register(&stubAdapter{id: "binance"}, 10)
	c.Register(&stubAdapter{id: "kraken"}, 5)

	c.Unregister("binance")
	assert.Equal(t, "kraken", c.CurrentPrimary())

	c.Unregister("kraken")
	assert.Equal(t, "", c.CurrentPrimary())
}

func TestController_TriggerFailover(t *testing.T) {
	c, sink, _ := newTestController()
	c.Register(&stubAdapter{id: "binance"}, 10)
	c.Register(&stubAdapter{id: "kraken"}, 5)

	require.NoError(t, c.TriggerFailover("binance", model.ReasonAPIError))

	assert.Equal(t, "kraken", c.CurrentPrimary())
	require.Len(t, sink.events, 1)
	assert.Equal(t, "binance", sink.events[0].From)
	assert.Equal(t, "kraken", sink.events[0].To)
	assert.Equal(t, model.ReasonAPIError, sink.events[0].Reason)
}

func TestController_TriggerFailoverNonPrimaryIsNoop(t *testing.T) {
	c, sink, _ := newTestController()
	c.Register(&stubAdapter{id: "binance"}, 10)
	c.Register(&stubAdapter{id: "kraken"}, 5)

	require.NoError(t, c.TriggerFailover("kraken", model.ReasonAPIError))

	assert.Equal(t, "binance", c.CurrentPrimary())
	assert.Empty(t, sink.events)
}

func TestController_TriggerFailoverNoReplacement(t *testing.T) {
	c, _, _ := newTestController()
	c.Register(&stubAdapter{id: "binance"}, 10)

	err := c.TriggerFailover("binance", model.ReasonAPIError)
	assert.Error(t, err)
	assert.Equal(t, "binance", c.CurrentPrimary())
}

func TestController_HealthDrivenFailoverWaitsForStreak(t *testing.T) {
	c, _, _ := newTestController()
	c.Register(&stubAdapter{id: "binance"}, 10)
	c.Register(&stubAdapter{id: "kraken"}, 5)

	// Two missed probes are a blip, not a failover.
	c.UpdateHealth("binance", unhealthy(2))
	assert.Equal(t, "binance", c.CurrentPrimary())

	c.UpdateHealth("binance", unhealthy(3))
	assert.Equal(t, "kraken", c.CurrentPrimary())
}

func TestController_ManualFailover(t *testing.T) {
	c, sink, _ := newTestController()
	c.Register(&stubAdapter{id: "binance"}, 10)
	c.Register(&stubAdapter{id: "kraken"}, 5)

	require.NoError(t, c.ManualFailover("kraken"))
	assert.Equal(t, "kraken", c.CurrentPrimary())
	require.Len(t, sink.events, 1)
	assert.Equal(t, model.ReasonManualTrigger, sink.events[0].Reason)

	// Same target again is a no-op.
	require.NoError(t, c.ManualFailover("kraken"))
	assert.Len(t, sink.events, 1)
}

func TestController_ManualFailoverValidation(t *testing.T) {
	c, _, _ := newTestController()
	c.Register(&stubAdapter{id: "binance"}, 10)
	c.Register(&stubAdapter{id: "kraken"}, 5)
	c.UpdateHealth("kraken", unhealthy(1))

	assert.Error(t, c.ManualFailover("bitfinex"))
	assert.Error(t, c.ManualFailover("kraken"))
	assert.Equal(t, "binance", c.CurrentPrimary())
}

func TestController_FailbackAfterCooldown(t *testing.T) {
	c, sink, clock := newTestController()
	c.Register(&stubAdapter{id: "binance"}, 10)
	c.Register(&stubAdapter{id: "kraken"}, 5)

	c.UpdateHealth("binance", unhealthy(3))
	require.Equal(t, "kraken", c.CurrentPrimary())

	// Recovered but still cooling down.
	c.UpdateHealth("binance", healthy())
	assert.Equal(t, "kraken", c.CurrentPrimary())

	clock.Advance(5 * time.Minute)
	c.EvaluateFailback()
	assert.Equal(t, "binance", c.CurrentPrimary())

	last := sink.events[len(sink.events)-1]
	assert.Equal(t, model.ReasonFailback, last.Reason)
	assert.Equal(t, "kraken", last.From)
	assert.Equal(t, "binance", last.To)
}

func TestController_NoFailbackWhileBestIsDown(t *testing.T) {
	c, _, clock := newTestController()
	c.Register(&stubAdapter{id: "binance"}, 10)
	c.Register(&stubAdapter{id: "kraken"}, 5)

	c.UpdateHealth("binance", unhealthy(3))
	clock.Advance(time.Hour)
	c.EvaluateFailback()

	assert.Equal(t, "kraken", c.CurrentPrimary())
}

func TestController_OrderedSequence(t *testing.T) {
	c, _, _ := newTestController()
	c.Register(&stubAdapter{id: "binance"}, 10)
	c.Register(&stubAdapter{id: "kraken"}, 5)
	c.Register(&stubAdapter{id: "coinbase"}, 7)
	c.Register(&stubAdapter{id: "bitfinex"}, 3)
	c.UpdateHealth("bitfinex", unhealthy(1))

	ordered := c.Ordered()

	require.Len(t, ordered, 3)
	assert.Equal(t, "binance", ordered[0].ID())
	assert.Equal(t, "coinbase", ordered[1].ID())
	assert.Equal(t, "kraken", ordered[2].ID())
}

func TestController_DegradedCountsAsAvailable(t *testing.T) {
	c, _, _ := newTestController()
	c.Register(&stubAdapter{id: "binance"}, 10)
	c.Register(&stubAdapter{id: "kraken"}, 5)

	c.UpdateHealth("binance", model.ExchangeHealth{Status: model.StatusDegraded})
	assert.Equal(t, "binance", c.CurrentPrimary())
	assert.Len(t, c.Ordered(), 2)
}

func TestController_Snapshot(t *testing.T) {
	c, _, _ := newTestController()
	c.Register(&stubAdapter{id: "binance"}, 10)
	c.Register(&stubAdapter{id: "kraken"}, 5)

	snap := c.Snapshot()

	assert.Equal(t, "binance", snap.PrimaryID)
	require.Len(t, snap.Exchanges, 2)
	assert.True(t, snap.Exchanges["binance"].IsPrimary)
	assert.False(t, snap.Exchanges["kraken"].IsPrimary)
	assert.Equal(t, 10, snap.Exchanges["binance"].Priority)
}
