package store

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfabric/alert-delivery-service/internal/domain/model"
)

func seedProfile(t *testing.T, r UserRepo, userID string) {
	t.Helper()
	p := model.NewUserProfile(userID)
	p.Email = userID + "@example.com"
	p.ChannelEnabled[model.ChannelEmail] = true
	require.NoError(t, r.Save(context.Background(), p))
}

func TestMemoryUserRepo_SaveAndLoad(t *testing.T) {
	r := NewMemoryUserRepo()
	seedProfile(t, r, "u1")

	p, err := r.Load(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1@example.com", p.Email)
	assert.True(t, p.ChannelEnabled[model.ChannelEmail])
}

func TestMemoryUserRepo_LoadMissing(t *testing.T) {
	r := NewMemoryUserRepo()

	_, err := r.Load(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryUserRepo_SaveRequiresUserID(t *testing.T) {
	r := NewMemoryUserRepo()
	assert.Error(t, r.Save(context.Background(), &model.UserProfile{}))
	assert.Error(t, r.Save(context.Background(), nil))
}

func TestMemoryUserRepo_LoadReturnsSnapshot(t *testing.T) {
	r := NewMemoryUserRepo()
	seedProfile(t, r, "u1")

	p, err := r.Load(context.Background(), "u1")
	require.NoError(t, err)
	p.Email = "mutated@example.com"
	p.ChannelEnabled[model.ChannelSMS] = true

	again, err := r.Load(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1@example.com", again.Email)
	assert.False(t, again.ChannelEnabled[model.ChannelSMS])
}

func TestMemoryUserRepo_Delete(t *testing.T) {
	r := NewMemoryUserRepo()
	seedProfile(t, r, "u1")

	require.NoError(t, r.Delete(context.Background(), "u1"))
	_, err := r.Load(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting an unknown user is not an error.
	assert.NoError(t, r.Delete(context.Background(), "ghost"))
}

func TestMemoryUserRepo_RegisterDeviceReplacesToken(t *testing.T) {
	r := NewMemoryUserRepo()
	seedProfile(t, r, "u1")

	require.NoError(t, r.RegisterDevice(context.Background(), "u1", &model.Device{
		DeviceID:  "d1",
		PushToken: "tok-old",
		Platform:  model.PlatformIOS,
		Active:    true,
	}))
	require.NoError(t, r.DeactivateDevice(context.Background(), "u1", "d1"))

	// Re-registering the same device installs the new token and revives it.
	require.NoError(t, r.RegisterDevice(context.Background(), "u1", &model.Device{
		DeviceID:  "d1",
		PushToken: "tok-new",
		Platform:  model.PlatformIOS,
	}))

	p, err := r.Load(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, p.Devices, 1)
	assert.Equal(t, "tok-new", p.Devices[0].PushToken)
	assert.True(t, p.Devices[0].Active)
}

func TestMemoryUserRepo_DeactivateMissingDevice(t *testing.T) {
	r := NewMemoryUserRepo()
	seedProfile(t, r, "u1")

	err := r.DeactivateDevice(context.Background(), "u1", "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryUserRepo_UpsertRule(t *testing.T) {
	r := NewMemoryUserRepo()
	seedProfile(t, r, "u1")

	rule := &model.NotificationRule{
		RuleID:    "r1",
		Category:  "risk",
		Channels:  map[model.ChannelKind]bool{model.ChannelEmail: true},
		Frequency: model.FreqImmediate,
		Enabled:   true,
	}
	require.NoError(t, r.UpsertRule(context.Background(), "u1", rule))

	rule.Category = "trade"
	require.NoError(t, r.UpsertRule(context.Background(), "u1", rule))

	p, err := r.Load(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, p.Rules, 1)
	assert.Equal(t, "trade", p.Rules[0].Category)
	assert.Equal(t, "u1", p.Rules[0].UserID)
	assert.False(t, p.Rules[0].UpdatedAt.IsZero())
}

func TestMemoryUserRepo_RemoveRule(t *testing.T) {
	r := NewMemoryUserRepo()
	seedProfile(t, r, "u1")
	require.NoError(t, r.UpsertRule(context.Background(), "u1", &model.NotificationRule{RuleID: "r1"}))

	require.NoError(t, r.RemoveRule(context.Background(), "u1", "r1"))
	require.NoError(t, r.RemoveRule(context.Background(), "u1", "r1")) // idempotent

	p, err := r.Load(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, p.Rules)
}

// countingRepo wraps a UserRepo and counts Load calls.
type countingRepo struct {
	UserRepo
	loads atomic.Int64
}

func (c *countingRepo) Load(ctx context.Context, userID string) (*model.UserProfile, error) {
	c.loads.Add(1)
	return c.UserRepo.Load(ctx, userID)
}

func TestCachedUserRepo_ServesFromCache(t *testing.T) {
	backing := &countingRepo{UserRepo: NewMemoryUserRepo()}
	seedProfile(t, backing, "u1")
	c := NewCachedUserRepo(backing, 16)

	for i := 0; i < 5; i++ {
		_, err := c.Load(context.Background(), "u1")
		require.NoError(t, err)
	}

	assert.Equal(t, int64(1), backing.loads.Load())
}

func TestCachedUserRepo_MutationsInvalidate(t *testing.T) {
	backing := &countingRepo{UserRepo: NewMemoryUserRepo()}
	seedProfile(t, backing, "u1")
	c := NewCachedUserRepo(backing, 16)

	_, err := c.Load(context.Background(), "u1")
	require.NoError(t, err)

	require.NoError(t, c.UpsertRule(context.Background(), "u1", &model.NotificationRule{RuleID: "r1"}))

	p, err := c.Load(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, p.Rules, 1)
	assert.Equal(t, int64(2), backing.loads.Load())
}

func TestCachedUserRepo_CachedLoadsAreSnapshots(t *testing.T) {
	c := NewCachedUserRepo(NewMemoryUserRepo(), 16)
	seedProfile(t, c, "u1")

	p1, err := c.Load(context.Background(), "u1")
	require.NoError(t, err)
	p1.Email = "mutated@example.com"

	p2, err := c.Load(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1@example.com", p2.Email)
}

func TestCachedUserRepo_MissPropagatesNotFound(t *testing.T) {
	c := NewCachedUserRepo(NewMemoryUserRepo(), 16)

	_, err := c.Load(context.Background(), "ghost")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestCachedUserRepo_LoadAllBypassesCache(t *testing.T) {
	backing := NewMemoryUserRepo()
	seedProfile(t, backing, "u1")
	seedProfile(t, backing, "u2")
	c := NewCachedUserRepo(backing, 16)

	all, err := c.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
