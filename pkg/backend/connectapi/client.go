package connectapi

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"connectrpc.com/otelconnect"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/mpapenbr/simkiosk/log"
	"github.com/mpapenbr/simkiosk/pkg/backend"
	"github.com/mpapenbr/simkiosk/pkg/model"
)

type (
	// Client talks to the venue backend. It satisfies backend.Backend.
	Client struct {
		version        *connect.Client[empty, versionResponse]
		checkout       *connect.Client[backend.CheckoutRequest, model.PaymentState]
		paymentStatus  *connect.Client[idRequest, model.PaymentState]
		sessionStart   *connect.Client[backend.SessionStartRequest, model.SessionRecord]
		sessionResult  *connect.Client[idRequest, model.SessionResult]
		stationLaunch  *connect.Client[launchRequest, empty]
		stationStop    *connect.Client[stationRequest, empty]
		hardwareStatus *connect.Client[stationRequest, model.HardwareStatus]
		lobbyCreate    *connect.Client[backend.LobbyCreateRequest, model.LobbyRecord]
		lobbyJoin      *connect.Client[lobbyRequest, empty]
		lobbyReady     *connect.Client[lobbyRequest, empty]
		lobbyStart     *connect.Client[lobbyRequest, empty]
		lobby          *connect.Client[idRequest, model.LobbyRecord]
		lobbies        *connect.Client[empty, lobbiesResponse]
		scenarios      *connect.Client[empty, scenariosResponse]
		scenario       *connect.Client[idRequest, model.Scenario]
		dailyChallenge *connect.Client[empty, model.Scenario]
		content        *connect.Client[empty, model.Content]
	}
	Option func(*clientConfig)

	clientConfig struct {
		httpClient   connect.HTTPClient
		stationID    string
		interceptors []connect.Interceptor
		tokenURL     string
		clientID     string
		clientSecret string
	}
)

var _ backend.Backend = (*Client)(nil)

func WithHTTPClient(c connect.HTTPClient) Option {
	return func(cfg *clientConfig) { cfg.httpClient = c }
}

// WithStation adds the station id header to every request.
func WithStation(stationID string) Option {
	return func(cfg *clientConfig) { cfg.stationID = stationID }
}

func WithInterceptors(i ...connect.Interceptor) Option {
	return func(cfg *clientConfig) { cfg.interceptors = append(cfg.interceptors, i...) }
}

// WithClientCredentials authenticates using the oauth2 client credentials
// flow. An empty tokenURL leaves the client unauthenticated.
func WithClientCredentials(tokenURL, clientID, secret string) Option {
	return func(cfg *clientConfig) {
		cfg.tokenURL = tokenURL
		cfg.clientID = clientID
		cfg.clientSecret = secret
	}
}

//nolint:funlen // one client per procedure
func NewClient(baseURL string, opts ...Option) *Client {
	cfg := &clientConfig{httpClient: http.DefaultClient}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.tokenURL != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.clientID,
			ClientSecret: cfg.clientSecret,
			TokenURL:     cfg.tokenURL,
		}
		cfg.httpClient = cc.Client(context.Background())
	}
	interceptors := []connect.Interceptor{}
	if myOtel, err := otelconnect.NewInterceptor(); err == nil {
		interceptors = append(interceptors, myOtel)
	} else {
		log.Warn("could not create otel interceptor", log.ErrorField(err))
	}
	if cfg.stationID != "" {
		interceptors = append(interceptors, newStationInterceptor(cfg.stationID))
	}
	interceptors = append(interceptors, cfg.interceptors...)
	copts := []connect.ClientOption{
		connect.WithCodec(jsonCodec{}),
		connect.WithInterceptors(interceptors...),
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	h := cfg.httpClient
	return &Client{
		version:        connect.NewClient[empty, versionResponse](h, baseURL+ProcVersion, copts...),
		checkout:       connect.NewClient[backend.CheckoutRequest, model.PaymentState](h, baseURL+ProcCheckout, copts...),
		paymentStatus:  connect.NewClient[idRequest, model.PaymentState](h, baseURL+ProcPaymentStatus, copts...),
		sessionStart:   connect.NewClient[backend.SessionStartRequest, model.SessionRecord](h, baseURL+ProcSessionStart, copts...),
		sessionResult:  connect.NewClient[idRequest, model.SessionResult](h, baseURL+ProcSessionResult, copts...),
		stationLaunch:  connect.NewClient[launchRequest, empty](h, baseURL+ProcStationLaunch, copts...),
		stationStop:    connect.NewClient[stationRequest, empty](h, baseURL+ProcStationStop, copts...),
		hardwareStatus: connect.NewClient[stationRequest, model.HardwareStatus](h, baseURL+ProcHardwareStatus, copts...),
		lobbyCreate:    connect.NewClient[backend.LobbyCreateRequest, model.LobbyRecord](h, baseURL+ProcLobbyCreate, copts...),
		lobbyJoin:      connect.NewClient[lobbyRequest, empty](h, baseURL+ProcLobbyJoin, copts...),
		lobbyReady:     connect.NewClient[lobbyRequest, empty](h, baseURL+ProcLobbyReady, copts...),
		lobbyStart:     connect.NewClient[lobbyRequest, empty](h, baseURL+ProcLobbyStart, copts...),
		lobby:          connect.NewClient[idRequest, model.LobbyRecord](h, baseURL+ProcLobby, copts...),
		lobbies:        connect.NewClient[empty, lobbiesResponse](h, baseURL+ProcLobbies, copts...),
		scenarios:      connect.NewClient[empty, scenariosResponse](h, baseURL+ProcScenarios, copts...),
		scenario:       connect.NewClient[idRequest, model.Scenario](h, baseURL+ProcScenario, copts...),
		dailyChallenge: connect.NewClient[empty, model.Scenario](h, baseURL+ProcDailyChallenge, copts...),
		content:        connect.NewClient[empty, model.Content](h, baseURL+ProcContent, copts...),
	}
}

//nolint:whitespace // can't make both editor and linter happy
func call[Req, Res any](
	ctx context.Context, c *connect.Client[Req, Res], req *Req,
) (*Res, error) {
	res, err := c.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, fromConnectError(err)
	}
	return res.Msg, nil
}

func (c *Client) Version(ctx context.Context) (string, error) {
	res, err := call(ctx, c.version, &empty{})
	if err != nil {
		return "", err
	}
	return res.Version, nil
}

//nolint:whitespace // can't make both editor and linter happy
func (c *Client) Checkout(
	ctx context.Context, req backend.CheckoutRequest,
) (*model.PaymentState, error) {
	return call(ctx, c.checkout, &req)
}

//nolint:whitespace // can't make both editor and linter happy
func (c *Client) PaymentStatus(
	ctx context.Context, id string,
) (*model.PaymentState, error) {
	return call(ctx, c.paymentStatus, &idRequest{ID: id})
}

//nolint:whitespace // can't make both editor and linter happy
func (c *Client) SessionStart(
	ctx context.Context, req backend.SessionStartRequest,
) (*model.SessionRecord, error) {
	return call(ctx, c.sessionStart, &req)
}

//nolint:whitespace // can't make both editor and linter happy
func (c *Client) SessionResult(
	ctx context.Context, sessionID string,
) (*model.SessionResult, error) {
	return call(ctx, c.sessionResult, &idRequest{ID: sessionID})
}

//nolint:whitespace // can't make both editor and linter happy
func (c *Client) StationLaunch(
	ctx context.Context, stationID string, payload model.LaunchPayload,
) error {
	_, err := call(ctx, c.stationLaunch, &launchRequest{StationID: stationID, Payload: payload})
	return err
}

func (c *Client) StationStop(ctx context.Context, stationID string) error {
	_, err := call(ctx, c.stationStop, &stationRequest{StationID: stationID})
	return err
}

//nolint:whitespace // can't make both editor and linter happy
func (c *Client) HardwareStatus(
	ctx context.Context, stationID string,
) (*model.HardwareStatus, error) {
	return call(ctx, c.hardwareStatus, &stationRequest{StationID: stationID})
}

//nolint:whitespace // can't make both editor and linter happy
func (c *Client) LobbyCreate(
	ctx context.Context, req backend.LobbyCreateRequest,
) (*model.LobbyRecord, error) {
	return call(ctx, c.lobbyCreate, &req)
}

func (c *Client) LobbyJoin(ctx context.Context, lobbyID, stationID string) error {
	_, err := call(ctx, c.lobbyJoin, &lobbyRequest{LobbyID: lobbyID, StationID: stationID})
	return err
}

//nolint:whitespace // can't make both editor and linter happy
func (c *Client) LobbyReady(
	ctx context.Context, lobbyID, stationID string, ready bool,
) error {
	_, err := call(ctx, c.lobbyReady,
		&lobbyRequest{LobbyID: lobbyID, StationID: stationID, Ready: ready})
	return err
}

//nolint:whitespace // can't make both editor and linter happy
func (c *Client) LobbyStart(
	ctx context.Context, lobbyID, requestingStationID string,
) error {
	_, err := call(ctx, c.lobbyStart,
		&lobbyRequest{LobbyID: lobbyID, StationID: requestingStationID})
	return err
}

//nolint:whitespace // can't make both editor and linter happy
func (c *Client) Lobby(
	ctx context.Context, lobbyID string,
) (*model.LobbyRecord, error) {
	return call(ctx, c.lobby, &idRequest{ID: lobbyID})
}

func (c *Client) Lobbies(ctx context.Context) ([]model.LobbyRecord, error) {
	res, err := call(ctx, c.lobbies, &empty{})
	if err != nil {
		return nil, err
	}
	return res.Lobbies, nil
}

func (c *Client) Scenarios(ctx context.Context) ([]model.Scenario, error) {
	res, err := call(ctx, c.scenarios, &empty{})
	if err != nil {
		return nil, err
	}
	return res.Scenarios, nil
}

//nolint:whitespace // can't make both editor and linter happy
func (c *Client) Scenario(
	ctx context.Context, id string,
) (*model.Scenario, error) {
	return call(ctx, c.scenario, &idRequest{ID: id})
}

func (c *Client) DailyChallenge(ctx context.Context) (*model.Scenario, error) {
	return call(ctx, c.dailyChallenge, &empty{})
}

func (c *Client) Content(ctx context.Context) (*model.Content, error) {
	return call(ctx, c.content, &empty{})
}
