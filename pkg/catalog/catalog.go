// Package catalog resolves what a customer can pick on the first screen.
package catalog

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/mpapenbr/simkiosk/log"
	"github.com/mpapenbr/simkiosk/pkg/backend"
	"github.com/mpapenbr/simkiosk/pkg/model"
	"github.com/mpapenbr/simkiosk/pkg/utils/cache"
	"github.com/mpapenbr/simkiosk/pkg/utils/cache/loadercache"
)

var ErrEmptyCatalog = errors.New("catalog offers nothing to pick")

// surpriseKinds are the session kinds a surprise pick chooses from.
var surpriseKinds = []model.SessionKind{
	model.KindPractice, model.KindHotlap, model.KindRace, model.KindDrift,
}

type (
	Catalog struct {
		svc       backend.CatalogService
		lobbies   backend.LobbyService
		scenarios cache.Cache[string, model.Scenario]
		content   cache.Cache[string, model.Content]
		l         *log.Logger
		mu        sync.Mutex
		rng       *rand.Rand
	}
	Option func(*Catalog)
)

const contentKey = "content"

//nolint:whitespace // can't make both editor and linter happy
func New(
	svc backend.CatalogService, lobbies backend.LobbyService, opts ...Option,
) *Catalog {
	ret := &Catalog{
		svc:     svc,
		lobbies: lobbies,
		l:       log.Default().Named("kiosk.catalog"),
		//nolint:gosec // picks are not security relevant
		rng: rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
	}
	for _, opt := range opts {
		opt(ret)
	}
	ret.scenarios = loadercache.New(
		loadercache.WithLoader(func(ctx context.Context, id string) (*model.Scenario, error) {
			return svc.Scenario(ctx, id)
		}),
		loadercache.WithLogger[string, model.Scenario](ret.l.Named("cache")),
	)
	ret.content = loadercache.New(
		loadercache.WithLoader(func(ctx context.Context, _ string) (*model.Content, error) {
			return svc.Content(ctx)
		}),
		loadercache.WithExpiration[string, model.Content](time.Hour),
		loadercache.WithLogger[string, model.Content](ret.l.Named("cache")),
	)
	return ret
}

func WithLogger(l *log.Logger) Option {
	return func(c *Catalog) {
		c.l = l
	}
}

// WithRand replaces the random source of surprise picks.
func WithRand(r *rand.Rand) Option {
	return func(c *Catalog) {
		c.rng = r
	}
}

func (c *Catalog) Scenarios(ctx context.Context) ([]model.Scenario, error) {
	return c.svc.Scenarios(ctx)
}

// Scenario resolves a scenario by id. Results are cached.
func (c *Catalog) Scenario(ctx context.Context, id string) (*model.Scenario, error) {
	return c.scenarios.Get(ctx, id)
}

// Standard builds the pick for a scenario chosen from the list.
//
//nolint:whitespace // can't make both editor and linter happy
func (c *Catalog) Standard(
	ctx context.Context, id string, minutes int,
) (model.ScenarioPick, error) {
	s, err := c.Scenario(ctx, id)
	if err != nil {
		return model.ScenarioPick{}, err
	}
	return pickFor(model.OriginStandard, s, minutes), nil
}

// Daily builds the pick for today's challenge.
func (c *Catalog) Daily(ctx context.Context, minutes int) (model.ScenarioPick, error) {
	s, err := c.svc.DailyChallenge(ctx)
	if err != nil {
		return model.ScenarioPick{}, err
	}
	return pickFor(model.OriginDaily, s, minutes), nil
}

// Surprise picks car, track, kind and duration at random. durations are the
// offered session lengths of the venue.
//
//nolint:whitespace // can't make both editor and linter happy
func (c *Catalog) Surprise(
	ctx context.Context, durations []int,
) (model.ScenarioPick, error) {
	content, err := c.content.Get(ctx, contentKey)
	if err != nil {
		return model.ScenarioPick{}, err
	}
	if len(content.Cars) == 0 || len(content.Tracks) == 0 || len(durations) == 0 {
		return model.ScenarioPick{}, ErrEmptyCatalog
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return model.ScenarioPick{
		Origin:          model.OriginSurprise,
		Car:             content.Cars[c.rng.IntN(len(content.Cars))],
		Track:           content.Tracks[c.rng.IntN(len(content.Tracks))],
		SessionKind:     surpriseKinds[c.rng.IntN(len(surpriseKinds))],
		DurationMinutes: durations[c.rng.IntN(len(durations))],
	}, nil
}

func (c *Catalog) Content(ctx context.Context) (*model.Content, error) {
	return c.content.Get(ctx, contentKey)
}

// JoinableLobbies lists rooms that are waiting and not full.
func (c *Catalog) JoinableLobbies(ctx context.Context) ([]model.LobbyRecord, error) {
	all, err := c.lobbies.Lobbies(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Filter(all, func(l model.LobbyRecord, _ int) bool {
		return l.Joinable()
	}), nil
}

// Refresh drops cached scenarios and content, e.g. after the venue settings
// changed.
func (c *Catalog) Refresh(ctx context.Context) {
	c.scenarios.InvalidateAll(ctx)
	c.content.InvalidateAll(ctx)
}

func pickFor(origin model.PickOrigin, s *model.Scenario, minutes int) model.ScenarioPick {
	car, track := s.Prefill()
	return model.ScenarioPick{
		Origin:          origin,
		Scenario:        s,
		Car:             car,
		Track:           track,
		SessionKind:     s.SessionKind,
		DurationMinutes: minutes,
	}
}
