package store

import (
	"go.uber.org/fx"
)

const profileCacheSize = 1024

var Module = fx.Module("store",
	fx.Provide(
		fx.Annotate(
			NewMemoryUserRepo,
			fx.As(new(UserRepo)),
		),
		fx.Annotate(
			NewMemoryTimeSeries,
			fx.As(new(TimeSeriesRepo)),
		),
	),

	// [DECORATION_LAYER] Per-user reads go through the LRU + singleflight
	// cache; writes invalidate through it.
	fx.Decorate(func(next UserRepo) UserRepo {
		return NewCachedUserRepo(next, profileCacheSize)
	}),
)
