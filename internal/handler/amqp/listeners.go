package amqp

import (
	"context"

	"github.com/quantfabric/alert-delivery-service/internal/domain/event"
)

// [ON_RISK_ALERT]
// Margin calls, liquidation warnings, exposure breaches.
func (h *AlertHandler) OnRiskAlertV1(ctx context.Context, raw *AlertV1) (event.Eventer, error) {
	return h.ingest(ctx, raw, "risk")
}

// [ON_TRADE_ALERT]
// Fills, cancels, order rejections.
func (h *AlertHandler) OnTradeAlertV1(ctx context.Context, raw *AlertV1) (event.Eventer, error) {
	return h.ingest(ctx, raw, "trade")
}

// [ON_SYSTEM_ALERT]
func (h *AlertHandler) OnSystemAlertV1(ctx context.Context, raw *AlertV1) (event.Eventer, error) {
	return h.ingest(ctx, raw, "system")
}

// [ON_MARKET_ALERT]
func (h *AlertHandler) OnMarketAlertV1(ctx context.Context, raw *AlertV1) (event.Eventer, error) {
	return h.ingest(ctx, raw, "market")
}

func (h *AlertHandler) ingest(ctx context.Context, raw *AlertV1, category string) (event.Eventer, error) {
	msg, err := raw.ToDomain()
	if err != nil {
		// Malformed alerts are a terminal state; retrying cannot fix them.
		h.logger.Warn("ALERT_REJECTED", "category", category, "err", err)
		return nil, nil
	}

	h.notify.Process(ctx, msg, category)

	// [EVENT_TRANSFORMATION]
	// Re-emit the accepted alert as an enriched event for downstream
	// consumers (audit, other nodes).
	return event.NewNotificationEvent(category, msg), nil
}
