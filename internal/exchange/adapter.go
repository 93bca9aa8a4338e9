// Package exchange defines the adapter capability the resilience layer
// consumes. Concrete exchange clients live outside the core.
package exchange

import "context"

// Adapter is the minimal surface every trading-exchange client exposes.
// IsConnected is the cheap liveness probe; SupportedSymbols doubles as the
// deeper API probe.
type Adapter interface {
	ID() string
	IsConnected(ctx context.Context) bool
	SupportedSymbols(ctx context.Context) ([]string, error)
}
