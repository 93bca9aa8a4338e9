// Package store defines the persistence ports the core consumes and the
// in-memory implementations used for wiring and tests. Real backends
// (SQL, InfluxDB) live outside the core and only have to satisfy these
// interfaces.
package store

import (
	"context"
	"time"

	"github.com/quantfabric/alert-delivery-service/internal/domain/model"
)

// UserRepo owns user profiles. Implementations must return snapshot
// copies: callers never share live profile references with the repository.
type UserRepo interface {
	LoadAll(ctx context.Context) ([]*model.UserProfile, error)
	Load(ctx context.Context, userID string) (*model.UserProfile, error)
	Save(ctx context.Context, p *model.UserProfile) error
	Delete(ctx context.Context, userID string) error

	RegisterDevice(ctx context.Context, userID string, d *model.Device) error
	DeactivateDevice(ctx context.Context, userID, deviceID string) error
	UpsertRule(ctx context.Context, userID string, r *model.NotificationRule) error
	RemoveRule(ctx context.Context, userID, ruleID string) error
}

// TimeSeriesRepo is the write-only telemetry port used by the delivery
// recorder. Writes are best-effort.
type TimeSeriesRepo interface {
	WritePoint(ctx context.Context, p model.TimeSeriesPoint) error
	WritePoints(ctx context.Context, ps []model.TimeSeriesPoint) error
}

// RetentionEnforcer is the optional capability of telemetry stores that
// can discard points older than a cutoff. Backends with server-side
// retention policies do not implement it.
type RetentionEnforcer interface {
	DropBefore(cutoff time.Time) int
}
