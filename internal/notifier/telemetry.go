package notifier

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"snsnotify/internal/build"
)

const instrumentationName = "snsnotify/notifier"

type telemetry struct {
	tracer        trace.Tracer
	notifications metric.Int64Counter
}

func newTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) telemetry {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	t := telemetry{tracer: tp.Tracer(instrumentationName)}
	counter, err := mp.Meter(instrumentationName).Int64Counter("snsnotify.notifications",
		metric.WithDescription("Dispatch outcomes by kind"))
	if err == nil {
		t.notifications = counter
	}
	return t
}

func (t telemetry) start(ctx context.Context, ev build.Event, correlationID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "notifier.dispatch",
		trace.WithAttributes(
			attribute.String("build.job", ev.Job),
			attribute.Int64("build.number", ev.Number),
			attribute.String("build.phase", string(ev.Phase)),
			attribute.String("correlation.id", correlationID),
		),
	)
}

func (t telemetry) finish(ctx context.Context, span trace.Span, out Outcome) {
	span.SetAttributes(attribute.String("notifier.outcome", string(out.Kind)))
	if out.Topic != "" {
		span.SetAttributes(attribute.String("sns.topic_arn", out.Topic))
	}
	switch out.Kind {
	case KindSkipped:
		span.SetAttributes(attribute.String("notifier.reason", out.Reason))
	case KindFailed:
		span.SetStatus(codes.Error, out.Error)
	}
	span.End()
	if t.notifications != nil {
		t.notifications.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(out.Kind))))
	}
}
