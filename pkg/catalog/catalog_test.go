package catalog

import (
	"bytes"
	"context"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/simkiosk/log"
	"github.com/mpapenbr/simkiosk/pkg/backend"
	"github.com/mpapenbr/simkiosk/pkg/backend/memory"
	"github.com/mpapenbr/simkiosk/pkg/model"
)

func TestDaily(t *testing.T) {
	sim := memory.New()
	c := New(sim, sim)
	pick, err := c.Daily(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, model.OriginDaily, pick.Origin)
	assert.Equal(t, "gt3_porsche", pick.Car)
	assert.Equal(t, "spa", pick.Track)
	assert.Equal(t, 10, pick.DurationMinutes)
}

func TestStandard(t *testing.T) {
	sim := memory.New()
	c := New(sim, sim)
	ctx := context.Background()

	pick, err := c.Standard(ctx, "rookie-practice", 20)
	require.NoError(t, err)
	assert.Empty(t, pick.Car, "two cars allowed, nothing prefilled")
	assert.Empty(t, pick.Track)

	pick, err = c.Standard(ctx, "monza-sprint", 15)
	require.NoError(t, err)
	assert.Equal(t, "gt4_bmw", pick.Car)
	assert.Equal(t, "monza", pick.Track)

	_, err = c.Standard(ctx, "nope", 10)
	assert.ErrorIs(t, err, backend.ErrNotFound)
}

func TestSurpriseIsDeterministicWithSeed(t *testing.T) {
	sim := memory.New()
	durations := []int{10, 20}
	a := New(sim, sim, WithRand(rand.New(rand.NewPCG(7, 7))))
	b := New(sim, sim, WithRand(rand.New(rand.NewPCG(7, 7))))

	pa, err := a.Surprise(context.Background(), durations)
	require.NoError(t, err)
	pb, err := b.Surprise(context.Background(), durations)
	require.NoError(t, err)
	assert.Equal(t, pa, pb)
	assert.Equal(t, model.OriginSurprise, pa.Origin)
	assert.NotEmpty(t, pa.Car)
	assert.NotEmpty(t, pa.Track)
	assert.Contains(t, durations, pa.DurationMinutes)

	_, err = a.Surprise(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyCatalog)
}

func TestJoinableLobbies(t *testing.T) {
	sim := memory.New()
	ctx := context.Background()
	open, err := sim.LobbyCreate(ctx, backend.LobbyCreateRequest{StationID: "rig-1", MaxPlayers: 4})
	require.NoError(t, err)
	full, err := sim.LobbyCreate(ctx, backend.LobbyCreateRequest{StationID: "rig-2", MaxPlayers: 2})
	require.NoError(t, err)
	require.NoError(t, sim.AddPlayer(full.ID, "rig-3", false))
	running, err := sim.LobbyCreate(ctx, backend.LobbyCreateRequest{StationID: "rig-4", MaxPlayers: 4})
	require.NoError(t, err)
	require.NoError(t, sim.LobbyStart(ctx, running.ID, "rig-4"))

	got, err := New(sim, sim).JoinableLobbies(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{open.ID}, lo.Map(got, func(l model.LobbyRecord, _ int) string { return l.ID }))
}

// countingCatalog counts the catalog loads reaching the backend.
type countingCatalog struct {
	backend.CatalogService
	mu        sync.Mutex
	scenarios int
	content   int
}

func (c *countingCatalog) Scenario(ctx context.Context, id string) (*model.Scenario, error) {
	c.mu.Lock()
	c.scenarios++
	c.mu.Unlock()
	return c.CatalogService.Scenario(ctx, id)
}

func (c *countingCatalog) Content(ctx context.Context) (*model.Content, error) {
	c.mu.Lock()
	c.content++
	c.mu.Unlock()
	return c.CatalogService.Content(ctx)
}

func TestRefresh(t *testing.T) {
	sim := memory.New()
	counting := &countingCatalog{CatalogService: sim}
	c := New(counting, sim)
	ctx := context.Background()

	for range 2 {
		_, err := c.Standard(ctx, "rookie-practice", 20)
		require.NoError(t, err)
		_, err = c.Content(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, counting.scenarios)
	assert.Equal(t, 1, counting.content)

	c.Refresh(ctx)
	_, err := c.Standard(ctx, "rookie-practice", 20)
	require.NoError(t, err)
	_, err = c.Content(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counting.scenarios)
	assert.Equal(t, 2, counting.content)
}

func TestCachesUseCatalogLogger(t *testing.T) {
	var buf bytes.Buffer
	sim := memory.New()
	c := New(sim, sim, WithLogger(log.New(&buf, log.DebugLevel).Named("catalog")))
	ctx := context.Background()

	_, err := c.Standard(ctx, "rookie-practice", 20)
	require.NoError(t, err)
	_, err = c.Content(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("catalog.cache")))
}
