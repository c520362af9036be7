package simulate

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/simkiosk/log"
	"github.com/mpapenbr/simkiosk/pkg/backend/memory"
	"github.com/mpapenbr/simkiosk/pkg/catalog"
	"github.com/mpapenbr/simkiosk/pkg/cmd/cmdutil"
	"github.com/mpapenbr/simkiosk/pkg/config"
	"github.com/mpapenbr/simkiosk/pkg/kiosk"
	"github.com/mpapenbr/simkiosk/pkg/model"
	"github.com/mpapenbr/simkiosk/pkg/venue"
)

var appScript = script{}

func NewSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "runs one scripted visit against a simulated backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return startSimulation()
		},
	}
	cmd.Flags().StringVar((*string)(&appScript.Origin),
		"origin",
		string(model.OriginDaily),
		"how the scenario is picked (standard, daily, surprise)")
	cmd.Flags().StringVar(&appScript.ScenarioID,
		"scenario",
		"rookie-practice",
		"scenario id for standard picks")
	cmd.Flags().IntVar(&appScript.DurationMinutes,
		"duration",
		10,
		"session length in minutes")
	cmd.Flags().StringVar(&appScript.DriverName,
		"driver",
		"Sim Driver",
		"name of the simulated driver")
	cmd.Flags().StringVar(&appScript.DriverEmail,
		"email",
		"",
		"email of the simulated driver")
	cmd.Flags().DurationVar(&appScript.ExitAfter,
		"exit-after",
		3*time.Second,
		"how long the session runs before the driver exits")
	cmd.Flags().DurationVar(&appScript.Timeout,
		"timeout",
		time.Minute,
		"maximum duration of the simulation")
	cmd.Flags().StringVar(&config.VenueFile,
		"venue-file",
		"",
		"venue settings file")
	return cmd
}

func startSimulation() error {
	logger := cmdutil.SetupLogger()
	stationID := config.StationID
	if stationID == "" {
		stationID = "sim-rig"
	}
	settings := venue.Default()
	if config.VenueFile != "" {
		var err error
		if settings, err = venue.Load(config.VenueFile); err != nil {
			return err
		}
	}

	sim := memory.New(
		memory.WithPaymentSettlement(1, model.PaymentPaid),
		memory.WithLogger(logger.Named("backend")))
	k := kiosk.New(sim, stationID,
		kiosk.WithLogger(logger.Named("kiosk")),
		kiosk.WithVenue(settings),
		kiosk.WithIntervals(kiosk.Intervals{Payment: 500 * time.Millisecond}),
		kiosk.WithOnChange(logChange(logger.Named("view"))))
	k.Start()
	defer func() {
		if err := k.Close(context.Background()); err != nil {
			log.Warn("kiosk shutdown", log.ErrorField(err))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), appScript.Timeout)
	defer cancel()
	res, err := appScript.run(ctx, k, catalog.New(sim, sim))
	if err != nil {
		log.Error("simulation failed", log.ErrorField(err))
		return err
	}
	fmt.Printf("session %s: %d laps, best lap %s, %d incidents\n",
		res.SessionID, res.Laps,
		(time.Duration(res.BestLapMillis) * time.Millisecond).String(),
		res.Incidents)
	return nil
}

// logChange logs step and banner changes of the published views.
func logChange(l *log.Logger) func(kiosk.View) {
	var last model.Step
	var launched bool
	return func(v kiosk.View) {
		if v.Step != last || v.Launched != launched {
			l.Info("step",
				log.String("step", v.Step.String()),
				log.Bool("launched", v.Launched))
			last, launched = v.Step, v.Launched
		}
		for _, b := range v.Banners {
			l.Debug("banner", log.String("kind", string(b.Kind)), log.String("msg", b.Message))
		}
	}
}
