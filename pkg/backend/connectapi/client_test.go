package connectapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/simkiosk/pkg/backend"
	"github.com/mpapenbr/simkiosk/pkg/backend/memory"
	"github.com/mpapenbr/simkiosk/pkg/model"
)

type headerRecorder struct {
	mu      sync.Mutex
	station []string
}

//nolint:whitespace // better readability
func (h *headerRecorder) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		h.mu.Lock()
		h.station = append(h.station, req.Header().Get(stationHeader))
		h.mu.Unlock()
		return next(ctx, req)
	}
}

//nolint:whitespace // editor/linter
func (h *headerRecorder) WrapStreamingClient(
	next connect.StreamingClientFunc,
) connect.StreamingClientFunc {
	return next
}

//nolint:whitespace // editor/linter
func (h *headerRecorder) WrapStreamingHandler(
	next connect.StreamingHandlerFunc,
) connect.StreamingHandlerFunc {
	return next
}

func setup(t *testing.T) (*Client, *memory.Backend, *headerRecorder) {
	t.Helper()
	sim := memory.New(memory.WithPaymentSettlement(0, model.PaymentPaid))
	rec := &headerRecorder{}
	mux := http.NewServeMux()
	Register(mux, sim, connect.WithInterceptors(rec))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, WithHTTPClient(srv.Client()), WithStation("rig-7")), sim, rec
}

func TestClient_PaymentRoundTrip(t *testing.T) {
	c, _, rec := setup(t)
	ctx := context.Background()

	p, err := c.Checkout(ctx, backend.CheckoutRequest{
		Provider: model.ProviderDirectTransfer, StationID: "rig-7", DurationMinutes: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPending, p.Status)
	assert.Equal(t, "10", p.Amount.String())
	assert.NotEmpty(t, p.Reference)

	s, err := c.PaymentStatus(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, s.Settled())
	assert.Equal(t, []string{"rig-7", "rig-7"}, rec.station)
}

func TestClient_ErrorMapping(t *testing.T) {
	c, _, _ := setup(t)
	ctx := context.Background()

	_, err := c.PaymentStatus(ctx, "missing")
	assert.ErrorIs(t, err, backend.ErrNotFound)

	_, err = c.Checkout(ctx, backend.CheckoutRequest{Provider: "cash", StationID: "rig-7"})
	assert.ErrorIs(t, err, backend.ErrRejected)

	err = c.LobbyJoin(ctx, "gone", "rig-7")
	assert.ErrorIs(t, err, backend.ErrLobbyUnavailable)
}

func TestClient_LobbyAndCatalog(t *testing.T) {
	c, sim, _ := setup(t)
	ctx := context.Background()

	v, err := c.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, backend.RequiredBackendVersion, v)
	require.NoError(t, backend.VerifyVersion(ctx, c))

	l, err := c.LobbyCreate(ctx, backend.LobbyCreateRequest{
		StationID: "rig-7", Name: "friday", Car: "gt3", Track: "spa",
		DurationMinutes: 10, SessionKind: model.KindRace, MaxPlayers: 4,
	})
	require.NoError(t, err)
	require.NoError(t, sim.AddPlayer(l.ID, "rig-8", true))
	require.NoError(t, c.LobbyReady(ctx, l.ID, "rig-7", true))

	got, err := c.Lobby(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ReadyCount())

	all, err := c.Lobbies(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, c.LobbyStart(ctx, l.ID, "rig-7"))
	got, err = c.Lobby(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LobbyRunning, got.Status)

	scenarios, err := c.Scenarios(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, scenarios)
	daily, err := c.DailyChallenge(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.KindHotlap, daily.SessionKind)
}

func TestClient_Station(t *testing.T) {
	c, sim, _ := setup(t)
	ctx := context.Background()

	payload := model.LaunchPayload{StationID: "rig-7", DriverName: "Ayrton", Car: "gt3"}
	require.NoError(t, c.StationLaunch(ctx, "rig-7", payload))
	assert.Equal(t, []model.LaunchPayload{payload}, sim.Launches())

	require.NoError(t, c.StationStop(ctx, "rig-7"))
	assert.Equal(t, []string{"rig-7"}, sim.Stops())

	hw, err := c.HardwareStatus(ctx, "rig-7")
	require.NoError(t, err)
	assert.True(t, hw.IsOnline)
}
