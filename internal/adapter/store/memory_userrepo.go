package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/quantfabric/alert-delivery-service/internal/domain/model"
)

// ErrNotFound reports a missing profile or sub-entity. Callers map it to
// their transport's 404 equivalent.
var ErrNotFound = errors.New("not found")

var _ UserRepo = (*MemoryUserRepo)(nil)

// MemoryUserRepo keeps profiles under a many-readers/one-writer lock.
// Every read hands out a deep clone, so dispatcher workers operate on
// consistent snapshots while administrative updates proceed.
type MemoryUserRepo struct {
	mu       sync.RWMutex
	profiles map[string]*model.UserProfile
}

func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{profiles: make(map[string]*model.UserProfile)}
}

func (r *MemoryUserRepo) LoadAll(_ context.Context) ([]*model.UserProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.UserProfile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, p.Clone())
	}
	return out, nil
}

func (r *MemoryUserRepo) Load(_ context.Context, userID string) (*model.UserProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[userID]
	if !ok {
		return nil, fmt.Errorf("user repo: profile %q: %w", userID, ErrNotFound)
	}
	return p.Clone(), nil
}

func (r *MemoryUserRepo) Save(_ context.Context, p *model.UserProfile) error {
	if p == nil || p.UserID == "" {
		return fmt.Errorf("user repo: profile must carry a user id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cp := p.Clone()
	cp.UpdatedAt = time.Now()
	r.profiles[cp.UserID] = cp
	return nil
}

func (r *MemoryUserRepo) Delete(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.profiles, userID)
	return nil
}

// RegisterDevice adds the device or, when the DeviceID already exists,
// replaces its push token in place.
func (r *MemoryUserRepo) RegisterDevice(_ context.Context, userID string, d *model.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[userID]
	if !ok {
		return fmt.Errorf("user repo: profile %q: %w", userID, ErrNotFound)
	}
	for _, existing := range p.Devices {
		if existing.DeviceID == d.DeviceID {
			existing.PushToken = d.PushToken
			existing.Platform = d.Platform
			existing.Active = true
			return nil
		}
	}
	cp := *d
	cp.UserID = userID
	if cp.RegisteredAt.IsZero() {
		cp.RegisteredAt = time.Now()
	}
	p.Devices = append(p.Devices, &cp)
	return nil
}

func (r *MemoryUserRepo) DeactivateDevice(_ context.Context, userID, deviceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[userID]
	if !ok {
		return fmt.Errorf("user repo: profile %q: %w", userID, ErrNotFound)
	}
	for _, d := range p.Devices {
		if d.DeviceID == deviceID {
			d.Active = false
			return nil
		}
	}
	return fmt.Errorf("user repo: device %q for %q: %w", deviceID, userID, ErrNotFound)
}

func (r *MemoryUserRepo) UpsertRule(_ context.Context, userID string, rule *model.NotificationRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[userID]
	if !ok {
		return fmt.Errorf("user repo: profile %q: %w", userID, ErrNotFound)
	}
	cp := rule.Clone()
	cp.UserID = userID
	cp.UpdatedAt = time.Now()
	for i, existing := range p.Rules {
		if existing.RuleID == cp.RuleID {
			p.Rules[i] = cp
			return nil
		}
	}
	p.Rules = append(p.Rules, cp)
	return nil
}

func (r *MemoryUserRepo) RemoveRule(_ context.Context, userID, ruleID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[userID]
	if !ok {
		return fmt.Errorf("user repo: profile %q: %w", userID, ErrNotFound)
	}
	for i, existing := range p.Rules {
		if existing.RuleID == ruleID {
			p.Rules = append(p.Rules[:i], p.Rules[i+1:]...)
			return nil
		}
	}
	return nil
}
