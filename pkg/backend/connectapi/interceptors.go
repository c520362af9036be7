package connectapi

import (
	"context"

	"connectrpc.com/connect"
	"go.opentelemetry.io/otel/trace"
)

const (
	stationHeader = "X-Kiosk-Station"
	traceIDHeader = "X-Trace-ID"
)

type (
	stationInjector struct {
		stationID string
	}
	traceIDInjector struct{}
)

// newStationInterceptor tags every client request with the station id.
func newStationInterceptor(stationID string) connect.Interceptor {
	return &stationInjector{stationID: stationID}
}

//nolint:whitespace // better readability
func (i *stationInjector) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return connect.UnaryFunc(func(
		ctx context.Context,
		req connect.AnyRequest,
	) (connect.AnyResponse, error) {
		if req.Spec().IsClient {
			req.Header().Set(stationHeader, i.stationID)
		}
		return next(ctx, req)
	})
}

//nolint:whitespace // editor/linter
func (i *stationInjector) WrapStreamingClient(
	next connect.StreamingClientFunc,
) connect.StreamingClientFunc {
	return next
}

//nolint:whitespace // editor/linter
func (i *stationInjector) WrapStreamingHandler(
	next connect.StreamingHandlerFunc,
) connect.StreamingHandlerFunc {
	return next
}

func newTraceIDInterceptor() connect.Interceptor {
	return &traceIDInjector{}
}

//nolint:whitespace // better readability
func (i *traceIDInjector) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return connect.UnaryFunc(func(
		ctx context.Context,
		req connect.AnyRequest,
	) (connect.AnyResponse, error) {
		span := trace.SpanFromContext(ctx)
		if span != nil && span.SpanContext().IsValid() {
			traceID := span.SpanContext().TraceID().String()
			res, err := next(ctx, req)
			if err != nil {
				return nil, err
			}
			res.Header().Set(traceIDHeader, traceID)
			return res, nil
		}
		return next(ctx, req)
	})
}

//nolint:whitespace // editor/linter
func (i *traceIDInjector) WrapStreamingClient(
	next connect.StreamingClientFunc,
) connect.StreamingClientFunc {
	return next
}

//nolint:whitespace // editor/linter
func (i *traceIDInjector) WrapStreamingHandler(
	next connect.StreamingHandlerFunc,
) connect.StreamingHandlerFunc {
	return next
}
