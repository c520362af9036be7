package backendsim

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"connectrpc.com/grpchealth"
	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mpapenbr/simkiosk/log"
	"github.com/mpapenbr/simkiosk/pkg/backend/connectapi"
	"github.com/mpapenbr/simkiosk/pkg/backend/memory"
	"github.com/mpapenbr/simkiosk/pkg/backend/natspush"
	"github.com/mpapenbr/simkiosk/pkg/cmd/cmdutil"
	"github.com/mpapenbr/simkiosk/pkg/config"
	"github.com/mpapenbr/simkiosk/pkg/kioskapi"
	"github.com/mpapenbr/simkiosk/pkg/model"
	"github.com/mpapenbr/simkiosk/pkg/utils"
)

const healthService = "simkiosk.v1.BackendService"

var (
	addr          string
	settleAfter   int
	outcome       string
	pricePerMin   string
	priceCurrency string
	oidcIssuer    string
	oidcAudience  string
)

func NewBackendSimCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backend-sim",
		Short: "serves a simulated venue backend",
		Long: `Serves an in-memory venue backend over the connect protocol.
Payments settle after a configurable number of status polls. Lobby status
changes are published to NATS if a server is configured.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return startBackend()
		},
	}
	cmd.Flags().StringVarP(&addr,
		"addr",
		"a",
		"localhost:8090",
		"listen address of the simulated backend")
	cmd.Flags().StringVar(&config.NatsURL,
		"nats-url",
		"",
		"NATS server receiving lobby status changes (empty: no push)")
	cmd.Flags().IntVar(&settleAfter,
		"settle-after",
		2,
		"number of payment status polls until a payment settles")
	cmd.Flags().StringVar(&outcome,
		"payment-outcome",
		string(model.PaymentPaid),
		"terminal payment status (paid, failed, expired)")
	cmd.Flags().StringVar(&pricePerMin,
		"price-per-minute",
		"0.50",
		"session price per minute")
	cmd.Flags().StringVar(&priceCurrency,
		"currency",
		"EUR",
		"currency of the session price")
	cmd.Flags().StringVar(&oidcIssuer,
		"oidc-issuer",
		"",
		"issuer whose bearer tokens are accepted (empty: no authentication)")
	cmd.Flags().StringVar(&oidcAudience,
		"oidc-audience",
		"",
		"required token audience (empty: any)")
	return cmd
}

func memoryOptions() ([]memory.Option, error) {
	status := model.PaymentStatus(outcome)
	if !status.Terminal() {
		return nil, fmt.Errorf("payment-outcome %q is not a terminal status", outcome)
	}
	price, err := decimal.NewFromString(pricePerMin)
	if err != nil {
		return nil, fmt.Errorf("price-per-minute: %w", err)
	}
	return []memory.Option{
		memory.WithPaymentSettlement(settleAfter, status),
		memory.WithPricePerMinute(price, priceCurrency),
	}, nil
}

//nolint:funlen,cyclop // by design
func startBackend() error {
	logger := cmdutil.SetupLogger()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts, err := memoryOptions()
	if err != nil {
		return err
	}
	opts = append(opts, memory.WithLogger(logger.Named("backend")))

	cmdutil.WaitForServices(
		utils.ExtractFromNatsURL(config.NatsURL),
		utils.ExtractFromHTTPURL(oidcIssuer))
	telemetry := cmdutil.SetupTelemetry(ctx)

	if config.NatsURL != "" {
		conn, err := nats.Connect(config.NatsURL, nats.Name("kiosk-backend-sim"))
		if err != nil {
			log.Error("could not connect to NATS", log.ErrorField(err))
			return err
		}
		defer conn.Close()
		feed, err := natspush.NewFeed(conn,
			natspush.WithContext(ctx),
			natspush.WithLogger(logger.Named("nats")))
		if err != nil {
			log.Error("could not setup lobby feed", log.ErrorField(err))
			return err
		}
		defer feed.Close()
		opts = append(opts, memory.WithNotifier(feed.Notifier()))
	}

	var handlerOpts []connect.HandlerOption
	if oidcIssuer != "" {
		verifier, err := connectapi.NewOIDCVerifier(ctx, oidcIssuer, oidcAudience)
		if err != nil {
			log.Error("could not setup token verification", log.ErrorField(err))
			return err
		}
		handlerOpts = append(handlerOpts,
			connect.WithInterceptors(connectapi.NewTokenInterceptor(verifier)))
	}

	sim := memory.New(opts...)
	mux := http.NewServeMux()
	connectapi.Register(mux, sim, handlerOpts...)
	mux.Handle(grpchealth.NewHandler(grpchealth.NewStaticChecker(healthService)))

	//nolint:gosec // by design
	server := &http.Server{
		Addr:    addr,
		Handler: h2c.NewHandler(kioskapi.NewCORS().Handler(mux), &http2.Server{}),
	}
	go func() {
		log.Info("Starting simulated backend", log.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("simulated backend could not be started", log.ErrorField(err))
		}
	}()
	cmdutil.SetupGoRoutinesDump()

	cmdutil.WaitForInterrupt()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("backend shutdown", log.ErrorField(err))
	}
	if telemetry != nil {
		telemetry.Shutdown()
	}
	log.Info("Simulated backend terminated")
	return nil
}
