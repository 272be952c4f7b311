package interceptors

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/stats"
)

// TracingOptions customises server-side tracing.
type TracingOptions struct {
	TracerProvider trace.TracerProvider
	Propagators    propagation.TextMapPropagator
	Additional     []otelgrpc.Option
}

// NewTracingHandler returns an otelgrpc stats handler. Unset fields fall back
// to the global provider and propagator.
func NewTracingHandler(opts TracingOptions) stats.Handler {
	provider := opts.TracerProvider
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	propagators := opts.Propagators
	if propagators == nil {
		propagators = otel.GetTextMapPropagator()
	}

	options := make([]otelgrpc.Option, 0, len(opts.Additional)+2)
	options = append(options, otelgrpc.WithTracerProvider(provider), otelgrpc.WithPropagators(propagators))
	options = append(options, opts.Additional...)
	return otelgrpc.NewServerHandler(options...)
}

// TracingServerOption installs the tracing handler on a server.
func TracingServerOption(opts TracingOptions) grpc.ServerOption {
	return grpc.StatsHandler(NewTracingHandler(opts))
}
