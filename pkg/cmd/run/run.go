package run

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/mpapenbr/simkiosk/log"
	"github.com/mpapenbr/simkiosk/pkg/backend"
	"github.com/mpapenbr/simkiosk/pkg/backend/connectapi"
	"github.com/mpapenbr/simkiosk/pkg/backend/natspush"
	"github.com/mpapenbr/simkiosk/pkg/catalog"
	"github.com/mpapenbr/simkiosk/pkg/cmd/cmdutil"
	"github.com/mpapenbr/simkiosk/pkg/config"
	"github.com/mpapenbr/simkiosk/pkg/kiosk"
	"github.com/mpapenbr/simkiosk/pkg/kioskapi"
	"github.com/mpapenbr/simkiosk/pkg/utils"
	"github.com/mpapenbr/simkiosk/pkg/venue"
)

var appConfig config.Config // holds processed config values

//nolint:funlen // by design
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "runs the kiosk orchestrator for one station",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if config.StationID == "" {
				return errors.New("station-id is required")
			}
			appConfig = config.Config{
				StationID: config.StationID,
				Intervals: config.Intervals{
					Payment:  config.PaymentPoll,
					Lobby:    config.LobbyPoll,
					Hardware: config.HardwarePoll,
				},
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return startKiosk()
		},
	}
	cmd.Flags().StringVar(&config.BackendURL,
		"backend-url",
		"http://localhost:8090",
		"base URL of the venue backend")
	cmd.Flags().StringVar(&config.BackendTokenURL,
		"backend-token-url",
		"",
		"oauth2 token endpoint for the backend (empty: no authentication)")
	cmd.Flags().StringVar(&config.BackendClientID,
		"backend-client-id",
		"",
		"oauth2 client id")
	cmd.Flags().StringVar(&config.BackendSecret,
		"backend-secret",
		"",
		"oauth2 client secret")
	cmd.Flags().StringVar(&config.NatsURL,
		"nats-url",
		"",
		"NATS server delivering lobby status changes (empty: polling only)")
	cmd.Flags().StringVar(&config.VenueFile,
		"venue-file",
		"",
		"venue settings file, reloaded on change")
	cmd.Flags().StringVarP(&config.APIAddr,
		"api-addr",
		"a",
		"localhost:8080",
		"listen address of the kiosk API")
	cmd.Flags().StringVar(&config.PaymentPoll,
		"payment-poll",
		"2s",
		"interval for payment status polling")
	cmd.Flags().StringVar(&config.LobbyPoll,
		"lobby-poll",
		"1s",
		"interval for lobby polling")
	cmd.Flags().StringVar(&config.HardwarePoll,
		"hardware-poll",
		"2s",
		"interval for hardware status polling")
	return cmd
}

func intervals() kiosk.Intervals {
	def := kiosk.DefaultIntervals()
	return kiosk.Intervals{
		Payment:  cmdutil.ParseDuration("payment-poll", appConfig.Intervals.Payment, def.Payment),
		Lobby:    cmdutil.ParseDuration("lobby-poll", appConfig.Intervals.Lobby, def.Lobby),
		Hardware: cmdutil.ParseDuration("hardware-poll", appConfig.Intervals.Hardware, def.Hardware),
	}
}

//nolint:funlen,cyclop // by design
func startKiosk() error {
	logger := cmdutil.SetupLogger()
	ctx, cancel := context.WithCancel(log.AddToContext(context.Background(), logger))
	defer cancel()

	log.Debug("Config:",
		log.String("station", appConfig.StationID),
		log.String("backend", config.BackendURL),
		log.String("nats", config.NatsURL),
		log.String("venueFile", config.VenueFile),
	)

	cmdutil.WaitForServices(
		utils.ExtractFromHTTPURL(config.BackendURL),
		utils.ExtractFromNatsURL(config.NatsURL))
	telemetry := cmdutil.SetupTelemetry(ctx)

	client := connectapi.NewClient(config.BackendURL,
		connectapi.WithStation(appConfig.StationID),
		connectapi.WithClientCredentials(
			config.BackendTokenURL, config.BackendClientID, config.BackendSecret))
	if err := backend.VerifyVersion(ctx, client); err != nil {
		log.Error("backend not usable", log.ErrorField(err))
		return err
	}

	settings := venue.Default()
	if config.VenueFile != "" {
		var err error
		if settings, err = venue.Load(config.VenueFile); err != nil {
			log.Error("could not read venue settings", log.ErrorField(err))
			return err
		}
	}

	opts := []kiosk.Option{
		kiosk.WithLogger(logger.Named("kiosk")),
		kiosk.WithVenue(settings),
		kiosk.WithIntervals(intervals()),
	}
	if config.NatsURL != "" {
		conn, err := nats.Connect(config.NatsURL,
			nats.Name("kiosk-"+appConfig.StationID))
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
		opts = append(opts, kiosk.WithFeed(feed))
	}

	k := kiosk.New(client, appConfig.StationID, opts...)
	k.Start()

	cat := catalog.New(client, client, catalog.WithLogger(logger.Named("catalog")))
	if config.VenueFile != "" {
		_, err := venue.Watch(ctx, config.VenueFile, func(s venue.Settings) {
			if err := k.UpdateVenue(ctx, s); err != nil {
				log.Warn("venue settings not applied", log.ErrorField(err))
				return
			}
			cat.Refresh(ctx)
		})
		if err != nil {
			log.Warn("venue settings are not watched", log.ErrorField(err))
		}
	}

	api := kioskapi.New(k, cat,
		kioskapi.WithLogger(logger.Named("api")))
	server := &http.Server{
		Addr:              config.APIAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("Starting kiosk API", log.String("addr", config.APIAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("kiosk API could not be started", log.ErrorField(err))
		}
	}()
	cmdutil.SetupGoRoutinesDump()

	cmdutil.WaitForInterrupt()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	// closing the kiosk ends the view streams
	if err := k.Close(shutdownCtx); err != nil {
		log.Warn("kiosk shutdown", log.ErrorField(err))
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("kiosk API shutdown", log.ErrorField(err))
	}
	if telemetry != nil {
		telemetry.Shutdown()
	}
	log.Info("Kiosk terminated")
	return nil
}
