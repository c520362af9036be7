// Package memory simulates the venue backend in process. It is used by the
// simulate and backend-sim commands and by tests.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mpapenbr/simkiosk/log"
	"github.com/mpapenbr/simkiosk/pkg/backend"
	"github.com/mpapenbr/simkiosk/pkg/model"
)

type Operation string

const (
	OpCheckout       Operation = "checkout"
	OpPaymentStatus  Operation = "paymentStatus"
	OpSessionStart   Operation = "sessionStart"
	OpSessionResult  Operation = "sessionResult"
	OpStationLaunch  Operation = "stationLaunch"
	OpStationStop    Operation = "stationStop"
	OpHardwareStatus Operation = "hardwareStatus"
	OpLobbyCreate    Operation = "lobbyCreate"
	OpLobbyJoin      Operation = "lobbyJoin"
	OpLobbyReady     Operation = "lobbyReady"
	OpLobbyStart     Operation = "lobbyStart"
	OpLobby          Operation = "lobby"
)

type (
	Backend struct {
		mu       sync.Mutex
		l        *log.Logger
		now      func() time.Time
		version  string
		currency string
		perMin   decimal.Decimal

		settleAfter int
		outcome     model.PaymentStatus
		payments    map[string]*payment
		sessions    map[string]*model.SessionRecord
		lobbies     map[string]*model.LobbyRecord
		hardware    map[string]model.HardwareStatus

		scenarios []model.Scenario
		daily     string
		content   model.Content

		launches    []model.LaunchPayload
		stops       []string
		calls       map[Operation]int
		failures    map[Operation][]error
		subscribers map[string]map[int]func(model.LobbyStatus)
		subSeq      int
		notifier    func(lobbyID string, status model.LobbyStatus)
	}
	Option func(*Backend)

	payment struct {
		state model.PaymentState
		polls int
	}
)

var (
	_ backend.Backend   = (*Backend)(nil)
	_ backend.LobbyFeed = (*Backend)(nil)
)

func New(opts ...Option) *Backend {
	ret := &Backend{
		l:           log.Default().Named("backend.memory"),
		now:         time.Now,
		version:     backend.RequiredBackendVersion,
		currency:    "EUR",
		perMin:      decimal.RequireFromString("0.50"),
		settleAfter: 2,
		outcome:     model.PaymentPaid,
		payments:    make(map[string]*payment),
		sessions:    make(map[string]*model.SessionRecord),
		lobbies:     make(map[string]*model.LobbyRecord),
		hardware:    make(map[string]model.HardwareStatus),
		calls:       make(map[Operation]int),
		failures:    make(map[Operation][]error),
		subscribers: make(map[string]map[int]func(model.LobbyStatus)),
		content:     defaultContent(),
		scenarios:   defaultScenarios(),
		daily:       "daily-challenge",
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func WithLogger(l *log.Logger) Option {
	return func(b *Backend) { b.l = l }
}

func WithClock(now func() time.Time) Option {
	return func(b *Backend) { b.now = now }
}

func WithVersion(v string) Option {
	return func(b *Backend) { b.version = v }
}

// WithPaymentSettlement sets after how many status polls a payment reaches
// the given terminal status. Zero settles on the first poll.
func WithPaymentSettlement(polls int, outcome model.PaymentStatus) Option {
	return func(b *Backend) {
		b.settleAfter = polls
		b.outcome = outcome
	}
}

func WithPricePerMinute(price decimal.Decimal, currency string) Option {
	return func(b *Backend) {
		b.perMin = price
		b.currency = currency
	}
}

func WithScenarios(daily string, scenarios ...model.Scenario) Option {
	return func(b *Backend) {
		b.daily = daily
		b.scenarios = scenarios
	}
}

func WithContent(c model.Content) Option {
	return func(b *Backend) { b.content = c }
}

// WithNotifier registers a function receiving every lobby status change,
// e.g. a publisher to the NATS push channel.
func WithNotifier(fn func(lobbyID string, status model.LobbyStatus)) Option {
	return func(b *Backend) { b.notifier = fn }
}

func defaultContent() model.Content {
	return model.Content{
		Cars:   []string{"mx5_cup", "gt3_porsche", "f4_tatuus", "gt4_bmw"},
		Tracks: []string{"spa", "monza", "nordschleife", "suzuka", "laguna_seca"},
	}
}

func defaultScenarios() []model.Scenario {
	return []model.Scenario{
		{
			ID: "daily-challenge", Name: "Daily Challenge", SessionKind: model.KindHotlap,
			Cars: []string{"gt3_porsche"}, Tracks: []string{"spa"}, Durations: []int{10, 15},
		},
		{
			ID: "rookie-practice", Name: "Rookie Practice", SessionKind: model.KindPractice,
			Cars: []string{"mx5_cup", "f4_tatuus"}, Durations: []int{10, 20, 30},
		},
		{
			ID: "monza-sprint", Name: "Monza Sprint", SessionKind: model.KindRace,
			DefaultCar: "gt4_bmw", DefaultTrack: "monza", Durations: []int{15, 30},
		},
	}
}

// SetHardware replaces the reported hardware status of a station.
func (b *Backend) SetHardware(stationID string, status model.HardwareStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hardware[stationID] = status
}

// SetPaymentStatus forces the status of an existing payment.
func (b *Backend) SetPaymentStatus(id string, status model.PaymentStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.payments[id]; ok {
		p.state.Status = status
	}
}

// FailNext makes the next call of op return err.
func (b *Backend) FailNext(op Operation, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[op] = append(b.failures[op], err)
}

func (b *Backend) Calls(op Operation) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

func (b *Backend) Launches() []model.LaunchPayload {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.LaunchPayload(nil), b.launches...)
}

func (b *Backend) Stops() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.stops...)
}

// AddPlayer lets a simulated remote station enter a lobby.
func (b *Backend) AddPlayer(lobbyID, stationID string, ready bool) error {
	if err := b.LobbyJoin(context.Background(), lobbyID, stationID); err != nil {
		return err
	}
	return b.LobbyReady(context.Background(), lobbyID, stationID, ready)
}

// record must be called with the lock held
func (b *Backend) record(op Operation) error {
	b.calls[op]++
	if pending := b.failures[op]; len(pending) > 0 {
		err := pending[0]
		b.failures[op] = pending[1:]
		return err
	}
	return nil
}

func (b *Backend) Version(ctx context.Context) (string, error) {
	return b.version, nil
}

//nolint:whitespace // can't make both editor and linter happy
func (b *Backend) Checkout(
	ctx context.Context, req backend.CheckoutRequest,
) (*model.PaymentState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(OpCheckout); err != nil {
		return nil, err
	}
	if !req.Provider.Valid() {
		return nil, fmt.Errorf("%w: provider %q not configured", backend.ErrRejected, req.Provider)
	}
	if req.DurationMinutes <= 0 || req.StationID == "" {
		return nil, fmt.Errorf("%w: invalid checkout request", backend.ErrRejected)
	}
	id := uuid.NewString()
	state := model.PaymentState{
		ID:       id,
		Provider: req.Provider,
		Status:   model.PaymentPending,
		Amount:   b.perMin.Mul(decimal.NewFromInt(int64(req.DurationMinutes))),
		Currency: b.currency,
	}
	switch req.Provider {
	case model.ProviderGatewayQR:
		state.CheckoutURL = "https://pay.example.com/checkout/" + id
	case model.ProviderDirectTransfer:
		state.Reference = "KIOSK-" + strings.ToUpper(id[:8])
		state.Instructions = "Transfer the amount using the reference shown on screen."
	}
	b.payments[id] = &payment{state: state}
	b.l.Debug("checkout created",
		log.String("id", id),
		log.String("provider", string(req.Provider)),
		log.String("amount", state.Amount.String()))
	ret := state
	return &ret, nil
}

//nolint:whitespace // can't make both editor and linter happy
func (b *Backend) PaymentStatus(
	ctx context.Context, id string,
) (*model.PaymentState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(OpPaymentStatus); err != nil {
		return nil, err
	}
	p, ok := b.payments[id]
	if !ok {
		return nil, fmt.Errorf("%w: payment %s", backend.ErrNotFound, id)
	}
	p.polls++
	if p.state.Status == model.PaymentPending && p.polls > b.settleAfter {
		p.state.Status = b.outcome
	}
	ret := p.state
	return &ret, nil
}

//nolint:whitespace // can't make both editor and linter happy
func (b *Backend) SessionStart(
	ctx context.Context, req backend.SessionStartRequest,
) (*model.SessionRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(OpSessionStart); err != nil {
		return nil, err
	}
	rec := &model.SessionRecord{
		ID:              uuid.NewString(),
		StationID:       req.StationID,
		DriverName:      req.DriverName,
		DurationMinutes: req.DurationMinutes,
		Price:           req.Price,
		PaymentMethod:   req.PaymentMethod,
		StartedAt:       b.now(),
	}
	b.sessions[rec.ID] = rec
	ret := *rec
	return &ret, nil
}

//nolint:whitespace // can't make both editor and linter happy
func (b *Backend) SessionResult(
	ctx context.Context, sessionID string,
) (*model.SessionResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(OpSessionResult); err != nil {
		return nil, err
	}
	rec, ok := b.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: session %s", backend.ErrNotFound, sessionID)
	}
	// roughly one lap every two minutes
	return &model.SessionResult{
		SessionID:     rec.ID,
		Laps:          rec.DurationMinutes / 2,
		BestLapMillis: 138_412,
	}, nil
}

//nolint:whitespace // can't make both editor and linter happy
func (b *Backend) StationLaunch(
	ctx context.Context, stationID string, payload model.LaunchPayload,
) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(OpStationLaunch); err != nil {
		return err
	}
	if hw, ok := b.hardware[stationID]; ok && !hw.IsOnline {
		return fmt.Errorf("%w: station %s offline", backend.ErrUnavailable, stationID)
	}
	b.launches = append(b.launches, payload)
	return nil
}

func (b *Backend) StationStop(ctx context.Context, stationID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(OpStationStop); err != nil {
		return err
	}
	b.stops = append(b.stops, stationID)
	return nil
}

//nolint:whitespace // can't make both editor and linter happy
func (b *Backend) HardwareStatus(
	ctx context.Context, stationID string,
) (*model.HardwareStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(OpHardwareStatus); err != nil {
		return nil, err
	}
	hw, ok := b.hardware[stationID]
	if !ok {
		hw = model.HardwareStatus{IsOnline: true, WheelConnected: true, PedalsConnected: true}
	}
	return &hw, nil
}

//nolint:whitespace // can't make both editor and linter happy
func (b *Backend) LobbyCreate(
	ctx context.Context, req backend.LobbyCreateRequest,
) (*model.LobbyRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(OpLobbyCreate); err != nil {
		return nil, err
	}
	if req.MaxPlayers < 2 {
		return nil, fmt.Errorf("%w: a lobby needs room for two players", backend.ErrRejected)
	}
	rec := &model.LobbyRecord{
		ID:              uuid.NewString(),
		Name:            req.Name,
		HostStationID:   req.StationID,
		Status:          model.LobbyWaiting,
		Players:         []model.LobbyPlayer{{StationID: req.StationID, Slot: 0}},
		CreatedAt:       b.now(),
		MaxPlayers:      req.MaxPlayers,
		Car:             req.Car,
		Track:           req.Track,
		DurationMinutes: req.DurationMinutes,
		SessionKind:     req.SessionKind,
	}
	b.lobbies[rec.ID] = rec
	return rec.Clone(), nil
}

func (b *Backend) LobbyJoin(ctx context.Context, lobbyID, stationID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(OpLobbyJoin); err != nil {
		return err
	}
	rec, ok := b.lobbies[lobbyID]
	if !ok {
		return fmt.Errorf("%w: lobby %s is gone", backend.ErrLobbyUnavailable, lobbyID)
	}
	if rec.HasPlayer(stationID) {
		return nil
	}
	if !rec.Joinable() {
		return fmt.Errorf("%w: lobby %s is %s with %d/%d players",
			backend.ErrLobbyUnavailable, lobbyID, rec.Status, len(rec.Players), rec.MaxPlayers)
	}
	slot := lo.MaxBy(rec.Players, func(a, b model.LobbyPlayer) bool { return a.Slot > b.Slot })
	rec.Players = append(rec.Players, model.LobbyPlayer{StationID: stationID, Slot: slot.Slot + 1})
	return nil
}

//nolint:whitespace // can't make both editor and linter happy
func (b *Backend) LobbyReady(
	ctx context.Context, lobbyID, stationID string, ready bool,
) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(OpLobbyReady); err != nil {
		return err
	}
	rec, ok := b.lobbies[lobbyID]
	if !ok {
		return fmt.Errorf("%w: lobby %s is gone", backend.ErrLobbyUnavailable, lobbyID)
	}
	for i := range rec.Players {
		if rec.Players[i].StationID == stationID {
			rec.Players[i].Ready = ready
			return nil
		}
	}
	return fmt.Errorf("%w: station %s not in lobby %s", backend.ErrNotFound, stationID, lobbyID)
}

//nolint:whitespace // can't make both editor and linter happy
func (b *Backend) LobbyStart(
	ctx context.Context, lobbyID, requestingStationID string,
) error {
	b.mu.Lock()
	if err := b.record(OpLobbyStart); err != nil {
		b.mu.Unlock()
		return err
	}
	rec, ok := b.lobbies[lobbyID]
	if !ok {
		b.mu.Unlock()
		return fmt.Errorf("%w: lobby %s is gone", backend.ErrLobbyUnavailable, lobbyID)
	}
	if rec.HostStationID != requestingStationID {
		b.mu.Unlock()
		return fmt.Errorf("%w: only the host may start lobby %s", backend.ErrRejected, lobbyID)
	}
	if rec.Status != model.LobbyWaiting {
		b.mu.Unlock()
		return nil
	}
	rec.Status = model.LobbyRunning
	b.mu.Unlock()
	b.notify(lobbyID, model.LobbyRunning)
	return nil
}

//nolint:whitespace // can't make both editor and linter happy
func (b *Backend) Lobby(
	ctx context.Context, lobbyID string,
) (*model.LobbyRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(OpLobby); err != nil {
		return nil, err
	}
	rec, ok := b.lobbies[lobbyID]
	if !ok {
		return nil, fmt.Errorf("%w: lobby %s is gone", backend.ErrLobbyUnavailable, lobbyID)
	}
	return rec.Clone(), nil
}

func (b *Backend) Lobbies(ctx context.Context) ([]model.LobbyRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ret := make([]model.LobbyRecord, 0, len(b.lobbies))
	for _, rec := range b.lobbies {
		ret = append(ret, *rec.Clone())
	}
	return ret, nil
}

// FinishLobby marks a running lobby as finished.
func (b *Backend) FinishLobby(lobbyID string) {
	b.mu.Lock()
	rec, ok := b.lobbies[lobbyID]
	if ok {
		rec.Status = model.LobbyFinished
	}
	b.mu.Unlock()
	if ok {
		b.notify(lobbyID, model.LobbyFinished)
	}
}

// RemoveLobby simulates a room that vanished at the backend.
func (b *Backend) RemoveLobby(lobbyID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.lobbies, lobbyID)
}

//nolint:whitespace // can't make both editor and linter happy
func (b *Backend) SubscribeLobby(
	lobbyID string, fn func(model.LobbyStatus),
) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subSeq++
	id := b.subSeq
	if b.subscribers[lobbyID] == nil {
		b.subscribers[lobbyID] = make(map[int]func(model.LobbyStatus))
	}
	b.subscribers[lobbyID][id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subscribers[lobbyID], id)
	}, nil
}

// notify must be called without holding the lock
func (b *Backend) notify(lobbyID string, status model.LobbyStatus) {
	b.mu.Lock()
	subs := lo.Values(b.subscribers[lobbyID])
	notifier := b.notifier
	b.mu.Unlock()
	for _, fn := range subs {
		fn(status)
	}
	if notifier != nil {
		notifier(lobbyID, status)
	}
}

func (b *Backend) Scenarios(ctx context.Context) ([]model.Scenario, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.Scenario(nil), b.scenarios...), nil
}

//nolint:whitespace // can't make both editor and linter happy
func (b *Backend) Scenario(
	ctx context.Context, id string,
) (*model.Scenario, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := lo.Find(b.scenarios, func(s model.Scenario) bool { return s.ID == id })
	if !ok {
		return nil, fmt.Errorf("%w: scenario %s", backend.ErrNotFound, id)
	}
	return &s, nil
}

func (b *Backend) DailyChallenge(ctx context.Context) (*model.Scenario, error) {
	return b.Scenario(ctx, b.daily)
}

func (b *Backend) Content(ctx context.Context) (*model.Content, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.content
	return &c, nil
}
