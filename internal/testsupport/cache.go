package testsupport

import (
	"context"
	"testing"

	"mangabridge/internal/cachestore"
	"mangabridge/internal/config"
)

// MustOpenCache opens the cache database configured in cfg and closes it with
// the test.
func MustOpenCache(t testing.TB, cfg *config.Config, opts ...cachestore.Option) *cachestore.Store {
	t.Helper()
	opts = append([]cachestore.Option{
		cachestore.WithVolumeTTL(cfg.VolumeTTL()),
		cachestore.WithHistoryLimit(cfg.Cache.HistoryLimit),
	}, opts...)
	store, err := cachestore.Open(context.Background(), cfg.CacheDBPath(), opts...)
	if err != nil {
		t.Fatalf("open cache store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}
