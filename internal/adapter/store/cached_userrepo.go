package store

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/quantfabric/alert-delivery-service/internal/domain/model"
	"golang.org/x/sync/singleflight"
)

var _ UserRepo = (*CachedUserRepo)(nil)

// CachedUserRepo decorates a UserRepo with a hot-identity LRU and
// singleflight collapsing, so a burst of dispatcher fan-outs for the same
// user hits the backing store once.
//
// Mutations write through and invalidate, keeping the cache no staler
// than the last administrative change.
type CachedUserRepo struct {
	next  UserRepo
	cache *lru.Cache[string, *model.UserProfile]
	group singleflight.Group
}

func NewCachedUserRepo(next UserRepo, size int) *CachedUserRepo {
	if size <= 0 {
		size = 10000
	}
	cache, _ := lru.New[string, *model.UserProfile](size)
	return &CachedUserRepo{next: next, cache: cache}
}

// LoadAll always goes to the backing store: the full set is the fan-out
// source of truth and must not be served from a partial cache.
func (c *CachedUserRepo) LoadAll(ctx context.Context) ([]*model.UserProfile, error) {
	return c.next.LoadAll(ctx)
}

func (c *CachedUserRepo) Load(ctx context.Context, userID string) (*model.UserProfile, error) {
	if cached, ok := c.cache.Get(userID); ok {
		return cached.Clone(), nil
	}

	v, err, _ := c.group.Do(userID, func() (any, error) {
		p, err := c.next.Load(ctx, userID)
		if err != nil {
			return nil, err
		}
		c.cache.Add(userID, p)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.UserProfile).Clone(), nil
}

func (c *CachedUserRepo) Save(ctx context.Context, p *model.UserProfile) error {
	if err := c.next.Save(ctx, p); err != nil {
		return err
	}
	c.cache.Remove(p.UserID)
	return nil
}

func (c *CachedUserRepo) Delete(ctx context.Context, userID string) error {
	if err := c.next.Delete(ctx, userID); err != nil {
		return err
	}
	c.cache.Remove(userID)
	return nil
}

func (c *CachedUserRepo) RegisterDevice(ctx context.Context, userID string, d *model.Device) error {
	if err := c.next.RegisterDevice(ctx, userID, d); err != nil {
		return err
	}
	c.cache.Remove(userID)
	return nil
}

func (c *CachedUserRepo) DeactivateDevice(ctx context.Context, userID, deviceID string) error {
	if err := c.next.DeactivateDevice(ctx, userID, deviceID); err != nil {
		return err
	}
	c.cache.Remove(userID)
	return nil
}

func (c *CachedUserRepo) UpsertRule(ctx context.Context, userID string, r *model.NotificationRule) error {
	if err := c.next.UpsertRule(ctx, userID, r); err != nil {
		return err
	}
	c.cache.Remove(userID)
	return nil
}

func (c *CachedUserRepo) RemoveRule(ctx context.Context, userID, ruleID string) error {
	if err := c.next.RemoveRule(ctx, userID, ruleID); err != nil {
		return err
	}
	c.cache.Remove(userID)
	return nil
}
