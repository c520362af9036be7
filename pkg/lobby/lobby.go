// Package lobby creates and joins multiplayer waiting rooms and keeps a
// mirror of the room the kiosk is in.
//
// Blocking calls run off the event loop, all other methods must only be
// called from the loop.
package lobby

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mpapenbr/simkiosk/log"
	"github.com/mpapenbr/simkiosk/pkg/backend"
	"github.com/mpapenbr/simkiosk/pkg/model"
)

type (
	// UnavailableError means the room is full, already running or gone. The
	// visit cannot continue with this selection.
	UnavailableError struct {
		LobbyID string
		Cause   error
	}

	Synchronizer struct {
		svc       backend.LobbyService
		feed      backend.LobbyFeed
		stationID string
		l         *log.Logger

		mirror      *model.LobbyRecord
		isHost      bool
		autoStarted bool
		unsubscribe func()
	}
	Option func(*Synchronizer)

	Outcome int
)

const (
	OutcomeStale Outcome = iota
	OutcomeUnchanged
	OutcomeUpdated
	// OutcomeRunning is reported for every response seeing the room running.
	OutcomeRunning
)

func (e *UnavailableError) Error() string {
	if e.LobbyID == "" {
		return fmt.Sprintf("lobby unavailable: %v", e.Cause)
	}
	return fmt.Sprintf("lobby %s unavailable: %v", e.LobbyID, e.Cause)
}

func (e *UnavailableError) Unwrap() error {
	return e.Cause
}

func NewSynchronizer(svc backend.LobbyService, stationID string, opts ...Option) *Synchronizer {
	ret := &Synchronizer{
		svc:       svc,
		stationID: stationID,
		l:         log.Default().Named("kiosk.lobby"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func WithLogger(l *log.Logger) Option {
	return func(s *Synchronizer) {
		s.l = l
	}
}

// WithFeed enables push notifications in addition to polling.
func WithFeed(feed backend.LobbyFeed) Option {
	return func(s *Synchronizer) {
		s.feed = feed
	}
}

// ShouldAutoStart tells whether the host has to start a room that waited
// long enough with company.
//
//nolint:whitespace // can't make both editor and linter happy
func ShouldAutoStart(
	rec *model.LobbyRecord, now time.Time, grace time.Duration, isHost bool,
) bool {
	return isHost &&
		rec != nil &&
		rec.Status == model.LobbyWaiting &&
		len(rec.Players) >= 2 &&
		rec.Age(now) >= grace
}

func (s *Synchronizer) wrap(lobbyID string, err error) error {
	if errors.Is(err, backend.ErrLobbyUnavailable) || errors.Is(err, backend.ErrNotFound) {
		return &UnavailableError{LobbyID: lobbyID, Cause: err}
	}
	return err
}

// Create opens a room as host. Blocking.
//
//nolint:whitespace // can't make both editor and linter happy
func (s *Synchronizer) Create(
	ctx context.Context,
	sel model.Selection,
	driver *model.Driver,
	maxPlayers int,
) (*model.LobbyRecord, error) {
	name := ""
	if sel.Lobby != nil {
		name = sel.Lobby.Name
	}
	if name == "" && driver != nil {
		name = fmt.Sprintf("%s's room", driver.Name)
	}
	rec, err := s.svc.LobbyCreate(ctx, backend.LobbyCreateRequest{
		StationID:       s.stationID,
		Name:            name,
		Track:           sel.Track,
		Car:             sel.Car,
		DurationMinutes: sel.DurationMinutes,
		SessionKind:     sel.SessionKind,
		MaxPlayers:      maxPlayers,
	})
	if err != nil {
		return nil, s.wrap("", err)
	}
	s.l.Info("lobby created", log.String("lobby", rec.ID), log.String("name", rec.Name))
	return rec, nil
}

// Join enters an existing room and returns its current record. Blocking.
func (s *Synchronizer) Join(ctx context.Context, lobbyID string) (*model.LobbyRecord, error) {
	if err := s.svc.LobbyJoin(ctx, lobbyID, s.stationID); err != nil {
		return nil, s.wrap(lobbyID, err)
	}
	s.l.Info("lobby joined", log.String("lobby", lobbyID))
	return s.Fetch(ctx, lobbyID)
}

// Fetch reads the current record of a room. Blocking.
func (s *Synchronizer) Fetch(ctx context.Context, lobbyID string) (*model.LobbyRecord, error) {
	rec, err := s.svc.Lobby(ctx, lobbyID)
	if err != nil {
		return nil, s.wrap(lobbyID, err)
	}
	return rec, nil
}

// Ready toggles the readiness of this station. Blocking and idempotent.
func (s *Synchronizer) Ready(ctx context.Context, lobbyID string, ready bool) error {
	return s.wrap(lobbyID, s.svc.LobbyReady(ctx, lobbyID, s.stationID, ready))
}

// Start asks the backend to start the room. Only the host may do so. Blocking.
func (s *Synchronizer) Start(ctx context.Context, lobbyID string) error {
	return s.wrap(lobbyID, s.svc.LobbyStart(ctx, lobbyID, s.stationID))
}

// Attach makes rec the mirrored room of this visit.
func (s *Synchronizer) Attach(rec *model.LobbyRecord, isHost bool) {
	s.detach()
	s.mirror = rec.Clone()
	s.isHost = isHost
	s.autoStarted = false
}

// Subscribe registers fn for push notifications of room lobbyID and returns
// the cancel function. Blocking, fn is called on a foreign goroutine. Without
// a feed or when the feed fails it returns nil.
//
//nolint:whitespace // can't make both editor and linter happy
func (s *Synchronizer) Subscribe(
	lobbyID string, fn func(lobbyID string, status model.LobbyStatus),
) func() {
	if s.feed == nil {
		return nil
	}
	unsubscribe, err := s.feed.SubscribeLobby(lobbyID, func(status model.LobbyStatus) {
		fn(lobbyID, status)
	})
	if err != nil {
		s.l.Warn("push notifications unavailable, polling only",
			log.String("lobby", lobbyID), log.ErrorField(err))
		return nil
	}
	return unsubscribe
}

// Bind ties a subscription to the mirrored room. It is cancelled with the
// next Attach or Reset, or right away if lobbyID is not the mirrored room.
func (s *Synchronizer) Bind(lobbyID string, unsubscribe func()) {
	if unsubscribe == nil {
		return
	}
	if s.mirror == nil || s.mirror.ID != lobbyID {
		unsubscribe()
		return
	}
	s.detach()
	s.unsubscribe = unsubscribe
}

func (s *Synchronizer) ID() string {
	if s.mirror == nil {
		return ""
	}
	return s.mirror.ID
}

func (s *Synchronizer) IsHost() bool {
	return s.mirror != nil && s.isHost
}

// Mirror returns a copy of the mirrored room.
func (s *Synchronizer) Mirror() *model.LobbyRecord {
	return s.mirror.Clone()
}

// Accept merges a polled record into the mirror.
func (s *Synchronizer) Accept(rec *model.LobbyRecord) Outcome {
	if s.mirror == nil || rec == nil || rec.ID != s.mirror.ID {
		return OutcomeStale
	}
	// running is one-way, an older poll must not move the mirror back
	if s.mirror.Status != model.LobbyWaiting && rec.Status == model.LobbyWaiting {
		return OutcomeUnchanged
	}
	s.mirror = rec.Clone()
	if rec.Status == model.LobbyRunning {
		return OutcomeRunning
	}
	return OutcomeUpdated
}

// AcceptStatus merges a pushed status into the mirror.
func (s *Synchronizer) AcceptStatus(lobbyID string, status model.LobbyStatus) Outcome {
	if s.mirror == nil || lobbyID != s.mirror.ID {
		return OutcomeStale
	}
	if status == model.LobbyWaiting {
		return OutcomeUnchanged
	}
	s.mirror.Status = status
	if status == model.LobbyRunning {
		return OutcomeRunning
	}
	return OutcomeUpdated
}

// ClaimAutoStart returns true exactly once per room if the host has to start
// it now.
func (s *Synchronizer) ClaimAutoStart(now time.Time, grace time.Duration) bool {
	if s.autoStarted || !ShouldAutoStart(s.mirror, now, grace, s.isHost) {
		return false
	}
	s.autoStarted = true
	return true
}

func (s *Synchronizer) detach() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

func (s *Synchronizer) Reset() {
	s.detach()
	s.mirror = nil
	s.isHost = false
	s.autoStarted = false
}
