package config

// this holds the resolved configuration values from CLI
//
//nolint:lll // readablity
var (
	StationID         string // identifier of the physical station this kiosk controls
	BackendURL        string // base URL of the venue backend (connect protocol)
	BackendTokenURL   string // oauth2 token endpoint, empty disables client credentials
	BackendClientID   string // oauth2 client id
	BackendSecret     string // oauth2 client secret
	NatsURL           string // URL of the NATS server delivering lobby notifications, empty disables push
	VenueFile         string // path to the venue settings file
	WaitForServices   string // duration to wait for other services to be ready
	LogLevel          string // sets the log level (zap log level values)
	LogFormat         string // text vs json
	LogFilter         string // zapfilter rules, e.g. "debug:kiosk.* info:*"
	EnableTelemetry   bool   // enable telemetry
	TelemetryEndpoint string // endpoint for telemetry, "stdout" writes to stdout
	APIAddr           string // listen addr of the presentation API
	PaymentPoll       string // interval for payment status polling
	LobbyPoll         string // interval for lobby polling
	HardwarePoll      string // interval for hardware status polling
)

// Config holds the configuration values which are used by the application
type Config struct {
	StationID string
	Intervals Intervals
}

// Intervals controls how often the orchestrator polls external resources.
type Intervals struct {
	Payment  string
	Lobby    string
	Hardware string
}
