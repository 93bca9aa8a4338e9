package model

import "time"

// DeliveryRecord captures the telemetry of a single dispatch attempt.
// The core only ever writes these; reads belong to external analytics.
type DeliveryRecord struct {
	NotificationID  string
	UserID          string
	Channel         ChannelKind
	Level           Level
	Category        string
	ExchangeID      string
	DeviceID        string
	Recipient       string
	CreatedAt       time.Time
	SentAt          time.Time
	DeliveredAt     time.Time // zero unless Delivered
	Delivered       bool
	RetryCount      int // prior failed attempts at the moment of outcome; 0 on first-try success
	DeliveryLatency time.Duration
	ErrorCode       string
	ErrorMessage    string
	Tags            map[string]string
	Fields          map[string]float64
}

// MarkDelivered stamps the success outcome and derives the latency from the
// send/delivery timestamps.
func (r *DeliveryRecord) MarkDelivered(at time.Time) {
	r.Delivered = true
	r.DeliveredAt = at
	if !r.SentAt.IsZero() && at.After(r.SentAt) {
		r.DeliveryLatency = at.Sub(r.SentAt)
	}
}

// MarkFailed stamps a terminal failure outcome.
func (r *DeliveryRecord) MarkFailed(code, msg string) {
	r.Delivered = false
	r.ErrorCode = code
	r.ErrorMessage = msg
}

// TimeSeriesPoint is the write-side shape handed to the time-series
// repository port.
type TimeSeriesPoint struct {
	Measurement string
	Tags        map[string]string
	Fields      map[string]float64
	Timestamp   time.Time
}

// Point converts the record to its persisted time-series form.
func (r *DeliveryRecord) Point() TimeSeriesPoint {
	tags := map[string]string{
		"notification_id": r.NotificationID,
		"channel_type":    r.Channel.String(),
		"level":           r.Level.String(),
	}
	if r.UserID != "" {
		tags["user_id"] = r.UserID
	}
	if r.Category != "" {
		tags["category"] = r.Category
	}
	if r.ExchangeID != "" {
		tags["exchange_id"] = r.ExchangeID
	}
	if r.DeviceID != "" {
		tags["device_id"] = r.DeviceID
	}
	if r.ErrorCode != "" {
		tags["error_code"] = r.ErrorCode
	}
	for k, v := range r.Tags {
		tags[k] = v
	}

	delivered := 0.0
	if r.Delivered {
		delivered = 1.0
	}
	fields := map[string]float64{
		"delivered":   delivered,
		"retry_count": float64(r.RetryCount),
	}
	if r.Delivered {
		fields["delivery_time_ms"] = float64(r.DeliveryLatency.Milliseconds())
	}
	for k, v := range r.Fields {
		fields[k] = v
	}

	return TimeSeriesPoint{
		Measurement: "notification_events",
		Tags:        tags,
		Fields:      fields,
		Timestamp:   r.CreatedAt,
	}
}
