package loadercache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/simkiosk/pkg/utils/cache"
)

func TestLoaderCache(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	loads := 0
	fail := false
	c := New(
		WithExpiration[string, string](time.Minute),
		WithClock[string, string](func() time.Time { return now }),
		WithLoader(func(_ context.Context, k string) (*string, error) {
			loads++
			if fail {
				return nil, errors.New("backend down")
			}
			v := "value-" + k
			return &v, nil
		}),
	)
	ctx := context.Background()

	v, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "value-a", *v)
	_, _ = c.Get(ctx, "a")
	assert.Equal(t, 1, loads, "second get is served from cache")

	now = now.Add(2 * time.Minute)
	_, _ = c.Get(ctx, "a")
	assert.Equal(t, 2, loads, "expired entries are reloaded")

	c.Invalidate(ctx, "a")
	fail = true
	_, err = c.Get(ctx, "a")
	assert.Error(t, err)
	_, err = c.Get(ctx, "a")
	assert.Error(t, err)
	assert.Equal(t, 4, loads, "failures are not cached")

	fail = false
	_, _ = c.Get(ctx, "b")
	c.InvalidateAll(ctx)
	_, _ = c.Get(ctx, "b")
	assert.Equal(t, 6, loads)
}

func TestLoaderCache_NoLoader(t *testing.T) {
	c := New[string, int]()
	_, err := c.Get(context.Background(), "x")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}
