package logging

import (
	"context"
	"log/slog"
	"strings"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldJob is the standardized key for the build job name.
	FieldJob = "job"
	// FieldBuildNumber is the standardized key for the build number.
	FieldBuildNumber = "build_number"
	// FieldPhase is the standardized key for the build lifecycle phase.
	FieldPhase = "phase"
	// FieldTopicARN is the standardized key for the SNS topic.
	FieldTopicARN = "topic_arn"
	// FieldOutcome is the standardized key for dispatch outcomes.
	FieldOutcome = "outcome"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies warnings and errors.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step to the operator.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
)

type contextKey string

const (
	correlationIDKey contextKey = "correlation_id"
	jobKey           contextKey = "job"
)

// WithCorrelationID stores a correlation id on the context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if strings.TrimSpace(id) == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationIDFromContext returns the correlation id, if any.
func CorrelationIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(correlationIDKey).(string)
	return id, ok && id != ""
}

// WithJob stores the job name on the context.
func WithJob(ctx context.Context, job string) context.Context {
	if strings.TrimSpace(job) == "" {
		return ctx
	}
	return context.WithValue(ctx, jobKey, job)
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 2)
	if job, ok := ctx.Value(jobKey).(string); ok && job != "" {
		fields = append(fields, slog.String(FieldJob, job))
	}
	if id, ok := CorrelationIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, id))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
