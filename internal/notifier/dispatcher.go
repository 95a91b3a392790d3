package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"snsnotify/internal/build"
	"snsnotify/internal/logging"
	"snsnotify/internal/render"
	"snsnotify/internal/settings"
	"snsnotify/internal/topic"
)

// Dispatcher turns one build event into at most one SNS publish. It never
// returns an error: every problem becomes a Skipped or Failed outcome that is
// reported to the sink.
type Dispatcher struct {
	factory  ClientFactory
	renderer *render.Renderer
	logger   *slog.Logger
	tel      telemetry
	newID    func() string
}

// Option customizes a Dispatcher.
type Option func(*dispatcherOptions)

type dispatcherOptions struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	newID          func() string
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *dispatcherOptions) { o.tracerProvider = tp }
}

// WithMeterProvider overrides the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *dispatcherOptions) { o.meterProvider = mp }
}

// WithIDGenerator overrides the correlation id generator.
func WithIDGenerator(fn func() string) Option {
	return func(o *dispatcherOptions) { o.newID = fn }
}

// NewDispatcher builds a dispatcher. A nil renderer renders against the event
// environment only.
func NewDispatcher(factory ClientFactory, renderer *render.Renderer, logger *slog.Logger, opts ...Option) *Dispatcher {
	o := dispatcherOptions{newID: uuid.NewString}
	for _, opt := range opts {
		opt(&o)
	}
	if renderer == nil {
		renderer = render.New(nil, logger)
	}
	return &Dispatcher{
		factory:  factory,
		renderer: renderer,
		logger:   logging.NewComponentLogger(logger, "notifier"),
		tel:      newTelemetry(o.tracerProvider, o.meterProvider),
		newID:    o.newID,
	}
}

// Dispatch publishes the notification for ev. The caller's cancellation is
// not propagated: once started, a dispatch runs to completion or failure.
func (d *Dispatcher) Dispatch(ctx context.Context, job build.JobConfig, g settings.Global, ev build.Event, sink Sink) (out Outcome) {
	if sink == nil {
		sink = Discard
	}
	ctx = context.WithoutCancel(ctx)
	correlationID := d.newID()
	ctx = logging.WithCorrelationID(ctx, correlationID)
	logger := logging.WithContext(ctx, d.logger).With(
		logging.Job(ev.Job),
		logging.BuildNumber(ev.Number),
		logging.String(logging.FieldPhase, string(ev.Phase)),
	)

	ctx, span := d.tel.start(ctx, ev, correlationID)
	defer func() {
		if rec := recover(); rec != nil {
			out = Failed(fmt.Sprintf("internal error: %v", rec))
			sink.Warnf("Failed to send SNS notification: %s", out.Error)
			logging.ErrorWithContext(logger, "dispatch panicked", "notification_panic", logging.String("panic", fmt.Sprint(rec)))
		}
		out.CorrelationID = correlationID
		d.tel.finish(ctx, span, out)
	}()

	return d.dispatch(ctx, logger, job, g, ev, sink)
}

func (d *Dispatcher) dispatch(ctx context.Context, logger *slog.Logger, job build.JobConfig, g settings.Global, ev build.Event, sink Sink) Outcome {
	topicARN := strings.TrimSpace(job.TopicARN)
	if topicARN == "" {
		topicARN = strings.TrimSpace(g.DefaultTopicARN)
	}
	if topicARN == "" {
		sink.Warnf("No global or project topic ARN set; cannot send SNS notification")
		logging.WarnWithContext(logger, "notification skipped", "notification_skipped",
			logging.String("reason", ReasonNoTopic),
			logging.String(logging.FieldErrorHint, "set a job topic_arn or notifications.default_topic_arn"),
		)
		return Skipped(ReasonNoTopic)
	}
	logger = logger.With(logging.String(logging.FieldTopicARN, topicARN))

	if !g.UseAmbientCredentials && !g.HasStaticCredentials() {
		sink.Warnf("AWS credentials not configured; cannot send SNS notification")
		logging.WarnWithContext(logger, "notification skipped", "notification_skipped",
			logging.String("reason", ReasonNoCredentials),
			logging.String(logging.FieldErrorHint, "set aws.access_key and aws.secret_key or enable aws.use_ambient_credentials"),
		)
		return Skipped(ReasonNoCredentials)
	}

	resolved, err := topic.Resolve(topicARN)
	if err != nil {
		sink.Warnf("Could not determine SNS API endpoint from topic ARN: %s", topicARN)
		logging.WarnWithContext(logger, "notification skipped", "notification_skipped",
			logging.String("reason", ReasonNoEndpoint),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "topic must look like arn:aws:sns:<region>:<account>:<name>"),
		)
		return Skipped(ReasonNoEndpoint)
	}

	extra := map[string]string{render.VarBuildURL: render.BuildURL(g.RootURL, ev.URL)}
	subject := d.renderer.Subject(job.SubjectTemplate, ev, extra)
	message := d.renderer.Message(job.MessageTemplate, g.MessageTemplate(), ev, extra)

	opts := ClientOptions{
		Region:                resolved.Region,
		Endpoint:              resolved.URL(),
		AccessKey:             g.AccessKey,
		SecretKey:             g.SecretKey,
		UseAmbientCredentials: g.UseAmbientCredentials,
	}
	if custom := strings.TrimSpace(g.Endpoint); custom != "" {
		opts.Endpoint = custom
	}
	logger.Debug("setting up sns client", logging.String("endpoint", opts.Endpoint), logging.String("region", opts.Region))

	client, err := d.factory.NewClient(ctx, opts)
	if err != nil {
		return d.failed(logger, sink, err)
	}
	defer func() {
		if cerr := client.Close(); cerr != nil {
			logger.Debug("close sns client", logging.Error(cerr))
		}
	}()

	logger.Info("publishing sns notification", logging.String("subject", subject))
	messageID, err := client.Publish(ctx, PublishInput{TopicARN: topicARN, Subject: subject, Message: message})
	if err != nil {
		return d.failed(logger, sink, err)
	}

	sink.Infof("Published SNS notification: subject=%s topic=%s", subject, topicARN)
	logger.Info("published sns notification",
		logging.String("subject", subject),
		logging.String("message_id", messageID),
		logging.String(logging.FieldOutcome, string(KindPublished)),
	)
	return Published(subject, topicARN, messageID)
}

func (d *Dispatcher) failed(logger *slog.Logger, sink Sink, err error) Outcome {
	msg := err.Error()
	sink.Warnf("Failed to send SNS notification: %s", msg)
	logging.WarnWithContext(logger, "sns publish failed", "notification_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check credentials, topic permissions, and network access to the endpoint"),
		logging.String(logging.FieldImpact, "subscribers were not notified; the build result is unaffected"),
	)
	return Failed(msg)
}
