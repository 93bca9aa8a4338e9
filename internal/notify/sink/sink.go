// Package sink defines the uniform outbound-channel port and the in-core
// channel implementations. Heavy clients (SMTP, FCM, SMS gateways) stay
// behind the per-channel ports; the sinks here adapt them to the shared
// Sink contract and error taxonomy.
package sink

import (
	"context"
	"fmt"
	"sync"

	"github.com/quantfabric/alert-delivery-service/internal/domain/model"
)

// Sink is the single capability the dispatcher needs from any channel.
// Implementations should be idempotent per NotificationID; the recorder's
// deduplication covers those that are not.
type Sink interface {
	Send(ctx context.Context, env *model.Envelope) error
	Kind() model.ChannelKind
}

// Registry holds one sink per channel kind.
type Registry struct {
	mu    sync.RWMutex
	sinks map[model.ChannelKind]Sink
}

func NewRegistry(sinks ...Sink) *Registry {
	r := &Registry{sinks: make(map[model.ChannelKind]Sink, len(sinks))}
	for _, s := range sinks {
		r.sinks[s.Kind()] = s
	}
	return r
}

// Register installs or replaces the sink for its channel kind.
func (r *Registry) Register(s Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[s.Kind()] = s
}

// For returns the sink serving the channel, or an error when the channel
// has no installed implementation.
func (r *Registry) For(ch model.ChannelKind) (Sink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sinks[ch]
	if !ok {
		return nil, fmt.Errorf("sink registry: no sink for channel %s", ch)
	}
	return s, nil
}

// Kinds lists the channels with installed sinks.
func (r *Registry) Kinds() []model.ChannelKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.ChannelKind, 0, len(r.sinks))
	for k := range r.sinks {
		out = append(out, k)
	}
	return out
}
