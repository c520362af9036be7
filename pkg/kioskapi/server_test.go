package kioskapi

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/simkiosk/log"
	"github.com/mpapenbr/simkiosk/pkg/backend"
	"github.com/mpapenbr/simkiosk/pkg/backend/memory"
	"github.com/mpapenbr/simkiosk/pkg/catalog"
	"github.com/mpapenbr/simkiosk/pkg/eventloop"
	"github.com/mpapenbr/simkiosk/pkg/kiosk"
	"github.com/mpapenbr/simkiosk/pkg/model"
	"github.com/mpapenbr/simkiosk/pkg/venue"
)

var t0 = time.Date(2026, 6, 5, 18, 0, 0, 0, time.UTC)

func testLogger() *log.Logger {
	return log.New(io.Discard, log.DebugLevel)
}

// newServer wires a server to a kiosk running on a manual loop. Requests
// must be served from the test goroutine.
func newServer(t *testing.T, opts ...kiosk.Option) (*Server, *memory.Backend) {
	t.Helper()
	loop := eventloop.NewManual(t0)
	sim := memory.New(
		memory.WithClock(loop.Now),
		memory.WithPaymentSettlement(0, model.PaymentPaid),
		memory.WithLogger(testLogger()),
	)
	k := kiosk.New(sim, "rig-1", append([]kiosk.Option{
		kiosk.WithLoop(loop),
		kiosk.WithLogger(testLogger()),
	}, opts...)...)
	k.Start()
	t.Cleanup(func() { _ = k.Close(context.Background()) })
	cat := catalog.New(sim, sim, catalog.WithRand(rand.New(rand.NewPCG(1, 2))))
	return New(k, cat, WithLogger(testLogger())), sim
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func viewOf(t *testing.T, rec *httptest.ResponseRecorder) kiosk.View {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var v kiosk.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestActionFlow(t *testing.T) {
	free := venue.Default()
	free.PaymentEnabled = false
	s, _ := newServer(t, kiosk.WithVenue(free))
	h := s.Handler()

	steps := []struct {
		action string
		body   string
		want   model.Step
	}{
		{"select-scenario", `{"origin":"daily","durationMinutes":10}`, model.StepDriver},
		{"submit-driver", `{"name":"Ada"}`, model.StepDifficulty},
		{"back", "", model.StepDriver},
		{"submit-driver", `{"name":"Ada","email":"ada@example.com"}`, model.StepDifficulty},
		{"configure-session", `{"weather":"rain"}`, model.StepDifficulty},
	}
	for _, st := range steps {
		v := viewOf(t, do(t, h, http.MethodPost, "/v1/actions/"+st.action, st.body))
		assert.Equal(t, st.want, v.Step, st.action)
	}

	v := viewOf(t, do(t, h, http.MethodPost, "/v1/actions/confirm-difficulty", ""))
	assert.True(t, v.Launched)
	assert.Equal(t, "rain", v.Selection.Weather)
	assert.Equal(t, 600, v.RemainingSeconds)

	rec := do(t, h, http.MethodPost, "/v1/actions/exit-session", `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	v = viewOf(t, do(t, h, http.MethodPost, "/v1/actions/exit-session", `{"confirmed":true}`))
	assert.Equal(t, model.StepResults, v.Step)

	v = viewOf(t, do(t, h, http.MethodPost, "/v1/actions/finish", ""))
	assert.Equal(t, model.StepScenario, v.Step)
}

func TestActionErrors(t *testing.T) {
	tests := []struct {
		name   string
		action string
		body   string
		want   int
	}{
		{"unknown action", "fly", "", http.StatusNotFound},
		{"malformed body", "submit-driver", `{"name":`, http.StatusBadRequest},
		{"unknown field", "submit-driver", `{"nick":"Ada"}`, http.StatusBadRequest},
		{"unknown origin", "select-scenario", `{"origin":"lucky"}`, http.StatusBadRequest},
		{"wrong step", "confirm-content", "", http.StatusConflict},
		{"force start outside waiting room", "force-start", "", http.StatusConflict},
		{"unknown scenario", "select-scenario",
			`{"origin":"standard","scenarioId":"nope","durationMinutes":10}`,
			http.StatusNotFound},
		{"missing scenario id", "select-scenario", `{"origin":"standard"}`,
			http.StatusUnprocessableEntity},
		{"duration not offered", "select-scenario",
			`{"origin":"daily","durationMinutes":11}`,
			http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newServer(t)
			rec := do(t, s.Handler(), http.MethodPost, "/v1/actions/"+tt.action, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())

			var body errorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusForbidden, statusOf(kiosk.ErrNotHost))
	assert.Equal(t, http.StatusServiceUnavailable, statusOf(catalog.ErrEmptyCatalog))
	assert.Equal(t, http.StatusGatewayTimeout, statusOf(context.DeadlineExceeded))
	assert.Equal(t, http.StatusInternalServerError, statusOf(io.ErrUnexpectedEOF))
}

func TestReadEndpoints(t *testing.T) {
	s, sim := newServer(t)
	h := s.Handler()
	_, err := sim.LobbyCreate(context.Background(),
		backend.LobbyCreateRequest{StationID: "rig-7", MaxPlayers: 4})
	require.NoError(t, err)

	v := viewOf(t, do(t, h, http.MethodGet, "/v1/view", ""))
	assert.Equal(t, "rig-1", v.Station)
	assert.Equal(t, model.StepScenario, v.Step)

	rec := do(t, h, http.MethodGet, "/v1/scenarios", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var scenarios []model.Scenario
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &scenarios))
	assert.Contains(t,
		lo.Map(scenarios, func(s model.Scenario, _ int) string { return s.ID }),
		"monza-sprint")

	rec = do(t, h, http.MethodGet, "/v1/content", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var content model.Content
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &content))
	assert.NotEmpty(t, content.Cars)

	rec = do(t, h, http.MethodGet, "/v1/lobbies", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var lobbies []model.LobbyRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lobbies))
	require.Len(t, lobbies, 1)
	assert.Equal(t, "rig-7", lobbies[0].HostStationID)
}

func TestHealth(t *testing.T) {
	s, _ := newServer(t)
	rec := do(t, s.Handler(), http.MethodPost, "/grpc.health.v1.Health/Check", `{}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "SERVING")
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/v1/actions/back", nil)
	req.Header.Set("Origin", "http://kiosk.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "http://kiosk.local", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestViewStream(t *testing.T) {
	sim := memory.New(memory.WithLogger(testLogger()))
	k := kiosk.New(sim, "rig-1", kiosk.WithLogger(testLogger()))
	k.Start()
	t.Cleanup(func() { _ = k.Close(context.Background()) })
	s := New(k, catalog.New(sim, sim), WithLogger(testLogger()))
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/view/stream", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan kiosk.View)
	go func() {
		defer close(events)
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			data, ok := strings.CutPrefix(sc.Text(), "data: ")
			if !ok {
				continue
			}
			var v kiosk.View
			if json.Unmarshal([]byte(data), &v) == nil {
				select {
				case events <- v:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	next := func() kiosk.View {
		select {
		case v, ok := <-events:
			require.True(t, ok, "stream closed")
			return v
		case <-ctx.Done():
			require.FailNow(t, "no view received")
		}
		return kiosk.View{}
	}
	assert.Equal(t, model.StepScenario, next().Step)

	post, err := http.NewRequestWithContext(ctx, http.MethodPost,
		srv.URL+"/v1/actions/select-scenario",
		strings.NewReader(`{"origin":"daily","durationMinutes":10}`))
	require.NoError(t, err)
	presp, err := srv.Client().Do(post)
	require.NoError(t, err)
	presp.Body.Close()
	require.Equal(t, http.StatusOK, presp.StatusCode)

	// intermediate views may arrive before the selection
	for next().Step != model.StepDriver {
	}
}
