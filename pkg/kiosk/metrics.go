package kiosk

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/mpapenbr/simkiosk/log"
	"github.com/mpapenbr/simkiosk/pkg/model"
)

type metrics struct {
	station        attribute.KeyValue
	checkouts      metric.Int64Counter
	settlements    metric.Int64Counter
	launches       metric.Int64Counter
	launchFailures metric.Int64Counter
	autostarts     metric.Int64Counter
	resets         metric.Int64Counter
	stale          metric.Int64Counter
}

func newMetrics(stationID string, l *log.Logger) *metrics {
	meter := otel.GetMeterProvider().Meter("kiosk")
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			l.Warn("could not create counter", log.String("name", name), log.ErrorField(err))
			return noop.Int64Counter{}
		}
		return c
	}
	return &metrics{
		station:        attribute.String("station", stationID),
		checkouts:      counter("kiosk.checkouts", "checkouts requested"),
		settlements:    counter("kiosk.settlements", "payments settled"),
		launches:       counter("kiosk.launches", "session launches attempted"),
		launchFailures: counter("kiosk.launch_failures", "session launches failed"),
		autostarts:     counter("kiosk.lobby_autostarts", "lobbies started after the grace window"),
		resets:         counter("kiosk.resets", "visits reset"),
		stale:          counter("kiosk.stale_responses", "responses dropped as superseded"),
	}
}

func (m *metrics) checkout(ctx context.Context, p model.Provider) {
	m.checkouts.Add(ctx, 1, metric.WithAttributes(m.station, attribute.String("provider", string(p))))
}

func (m *metrics) settled(ctx context.Context, p model.Provider) {
	m.settlements.Add(ctx, 1, metric.WithAttributes(m.station, attribute.String("provider", string(p))))
}

func (m *metrics) launch(ctx context.Context) {
	m.launches.Add(ctx, 1, metric.WithAttributes(m.station))
}

func (m *metrics) launchFailure(ctx context.Context, stage string) {
	m.launchFailures.Add(ctx, 1, metric.WithAttributes(m.station, attribute.String("stage", stage)))
}

func (m *metrics) autostart(ctx context.Context) {
	m.autostarts.Add(ctx, 1, metric.WithAttributes(m.station))
}

func (m *metrics) reset(ctx context.Context, reason string) {
	m.resets.Add(ctx, 1, metric.WithAttributes(m.station, attribute.String("reason", reason)))
}

func (m *metrics) staleDropped(ctx context.Context, kind string) {
	m.stale.Add(ctx, 1, metric.WithAttributes(m.station, attribute.String("kind", kind)))
}
