package connectapi

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"connectrpc.com/otelconnect"

	"github.com/mpapenbr/simkiosk/log"
	"github.com/mpapenbr/simkiosk/pkg/backend"
	"github.com/mpapenbr/simkiosk/pkg/model"
)

// Register mounts every backend procedure on mux.
//
//nolint:funlen // one line per procedure
func Register(mux *http.ServeMux, b backend.Backend, opts ...connect.HandlerOption) {
	myOtel, err := otelconnect.NewInterceptor()
	if err != nil {
		log.Warn("could not create otel interceptor", log.ErrorField(err))
	}
	base := []connect.HandlerOption{connect.WithCodec(jsonCodec{})}
	if myOtel != nil {
		base = append(base, connect.WithInterceptors(myOtel, newTraceIDInterceptor()))
	}
	opts = append(base, opts...)

	unary(mux, ProcVersion, opts, func(ctx context.Context, _ *empty) (*versionResponse, error) {
		v, err := b.Version(ctx)
		if err != nil {
			return nil, err
		}
		return &versionResponse{Version: v}, nil
	})
	unary(mux, ProcCheckout, opts,
		func(ctx context.Context, req *backend.CheckoutRequest) (*model.PaymentState, error) {
			return b.Checkout(ctx, *req)
		})
	unary(mux, ProcPaymentStatus, opts,
		func(ctx context.Context, req *idRequest) (*model.PaymentState, error) {
			return b.PaymentStatus(ctx, req.ID)
		})
	unary(mux, ProcSessionStart, opts,
		func(ctx context.Context, req *backend.SessionStartRequest) (*model.SessionRecord, error) {
			return b.SessionStart(ctx, *req)
		})
	unary(mux, ProcSessionResult, opts,
		func(ctx context.Context, req *idRequest) (*model.SessionResult, error) {
			return b.SessionResult(ctx, req.ID)
		})
	unary(mux, ProcStationLaunch, opts,
		func(ctx context.Context, req *launchRequest) (*empty, error) {
			return &empty{}, b.StationLaunch(ctx, req.StationID, req.Payload)
		})
	unary(mux, ProcStationStop, opts,
		func(ctx context.Context, req *stationRequest) (*empty, error) {
			return &empty{}, b.StationStop(ctx, req.StationID)
		})
	unary(mux, ProcHardwareStatus, opts,
		func(ctx context.Context, req *stationRequest) (*model.HardwareStatus, error) {
			return b.HardwareStatus(ctx, req.StationID)
		})
	unary(mux, ProcLobbyCreate, opts,
		func(ctx context.Context, req *backend.LobbyCreateRequest) (*model.LobbyRecord, error) {
			return b.LobbyCreate(ctx, *req)
		})
	unary(mux, ProcLobbyJoin, opts,
		func(ctx context.Context, req *lobbyRequest) (*empty, error) {
			return &empty{}, b.LobbyJoin(ctx, req.LobbyID, req.StationID)
		})
	unary(mux, ProcLobbyReady, opts,
		func(ctx context.Context, req *lobbyRequest) (*empty, error) {
			return &empty{}, b.LobbyReady(ctx, req.LobbyID, req.StationID, req.Ready)
		})
	unary(mux, ProcLobbyStart, opts,
		func(ctx context.Context, req *lobbyRequest) (*empty, error) {
			return &empty{}, b.LobbyStart(ctx, req.LobbyID, req.StationID)
		})
	unary(mux, ProcLobby, opts,
		func(ctx context.Context, req *idRequest) (*model.LobbyRecord, error) {
			return b.Lobby(ctx, req.ID)
		})
	unary(mux, ProcLobbies, opts,
		func(ctx context.Context, _ *empty) (*lobbiesResponse, error) {
			l, err := b.Lobbies(ctx)
			if err != nil {
				return nil, err
			}
			return &lobbiesResponse{Lobbies: l}, nil
		})
	unary(mux, ProcScenarios, opts,
		func(ctx context.Context, _ *empty) (*scenariosResponse, error) {
			s, err := b.Scenarios(ctx)
			if err != nil {
				return nil, err
			}
			return &scenariosResponse{Scenarios: s}, nil
		})
	unary(mux, ProcScenario, opts,
		func(ctx context.Context, req *idRequest) (*model.Scenario, error) {
			return b.Scenario(ctx, req.ID)
		})
	unary(mux, ProcDailyChallenge, opts,
		func(ctx context.Context, _ *empty) (*model.Scenario, error) {
			return b.DailyChallenge(ctx)
		})
	unary(mux, ProcContent, opts,
		func(ctx context.Context, _ *empty) (*model.Content, error) {
			return b.Content(ctx)
		})
}

//nolint:whitespace // can't make both editor and linter happy
func unary[Req, Res any](
	mux *http.ServeMux,
	procedure string,
	opts []connect.HandlerOption,
	fn func(context.Context, *Req) (*Res, error),
) {
	mux.Handle(procedure, connect.NewUnaryHandler(procedure,
		func(ctx context.Context, req *connect.Request[Req]) (*connect.Response[Res], error) {
			res, err := fn(ctx, req.Msg)
			if err != nil {
				return nil, toConnectError(err)
			}
			return connect.NewResponse(res), nil
		},
		opts...))
}
