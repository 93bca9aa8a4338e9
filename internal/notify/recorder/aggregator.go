package recorder

import (
	"context"
	"math"
	"time"

	"github.com/quantfabric/alert-delivery-service/internal/domain/model"
)

const (
	hourlyMeasurement = "notification_aggregates"
	dailyMeasurement  = "notification_daily_aggregates"
)

// Aggregator periodically rolls the recorder's window up into one hourly
// and one daily point: counts by level and channel, delivery and retry
// totals, and latency min/avg/max.
type Aggregator struct {
	rec      *Recorder
	interval time.Duration

	lastHourly time.Time
	lastDaily  time.Time
}

func NewAggregator(rec *Recorder) *Aggregator {
	return &Aggregator{rec: rec, interval: 10 * time.Minute}
}

// Run checks every interval whether an hourly or daily roll-up is due.
func (a *Aggregator) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.rec.stopCh:
			return
		case <-ticker.C:
			a.tick(ctx, a.rec.now())
		}
	}
}

func (a *Aggregator) tick(ctx context.Context, now time.Time) {
	if now.Sub(a.lastHourly) >= time.Hour {
		a.rollup(ctx, now, time.Hour, hourlyMeasurement)
		a.lastHourly = now
	}
	if now.Sub(a.lastDaily) >= 24*time.Hour {
		a.rollup(ctx, now, 24*time.Hour, dailyMeasurement)
		a.lastDaily = now
	}
}

func (a *Aggregator) rollup(ctx context.Context, now time.Time, span time.Duration, measurement string) {
	records := a.rec.windowSince(now.Add(-span))
	if len(records) == 0 {
		return
	}

	fields := map[string]float64{
		"total": float64(len(records)),
	}

	var (
		delivered float64
		retries   float64
		latencies []float64
	)
	for _, r := range records {
		fields["level_"+r.Level.String()]++
		fields["channel_"+r.Channel.String()]++
		retries += float64(r.RetryCount)
		if r.Delivered {
			delivered++
			latencies = append(latencies, float64(r.DeliveryLatency.Milliseconds()))
		}
	}
	fields["delivered"] = delivered
	fields["retries"] = retries

	if len(latencies) > 0 {
		minL, maxL, sum := math.MaxFloat64, 0.0, 0.0
		for _, l := range latencies {
			minL = math.Min(minL, l)
			maxL = math.Max(maxL, l)
			sum += l
		}
		fields["latency_min_ms"] = minL
		fields["latency_max_ms"] = maxL
		fields["latency_avg_ms"] = sum / float64(len(latencies))
	}

	point := model.TimeSeriesPoint{
		Measurement: measurement,
		Tags:        map[string]string{"span": span.String()},
		Fields:      fields,
		Timestamp:   now,
	}
	a.rec.write(ctx, []model.TimeSeriesPoint{point})
}
