package notifier

import (
	"context"
	"fmt"
	"log/slog"

	"snsnotify/internal/build"
	"snsnotify/internal/logging"
	"snsnotify/internal/policy"
	"snsnotify/internal/settings"
)

// ReasonJobLookupFailed is reported when the job attachment cannot be read.
const ReasonJobLookupFailed = "job configuration unavailable"

// historyDepth bounds the walk back through prior builds.
const historyDepth = 50

// JobLookup returns the notifier attachment for a job.
type JobLookup interface {
	JobConfig(ctx context.Context, job string) (build.JobConfig, bool, error)
}

// History records builds and answers previous-build queries. PriorBuilds
// returns builds numbered below before, newest first.
type History interface {
	RecordStarted(ctx context.Context, ev build.Event) error
	RecordCompleted(ctx context.Context, ev build.Event) error
	PriorBuilds(ctx context.Context, job string, before int64, limit int) ([]build.Record, error)
}

// Service is the inbound surface for build lifecycle events: it records the
// build, applies the notification policy, and dispatches.
type Service struct {
	dispatcher *Dispatcher
	settings   settings.Provider
	jobs       JobLookup
	history    History
	logger     *slog.Logger
}

// NewService wires a service. history may be nil, in which case only the
// previous result carried on the event is used.
func NewService(dispatcher *Dispatcher, provider settings.Provider, jobs JobLookup, history History, logger *slog.Logger) *Service {
	return &Service{
		dispatcher: dispatcher,
		settings:   provider,
		jobs:       jobs,
		history:    history,
		logger:     logging.NewComponentLogger(logger, "notifier"),
	}
}

// OnBuildStarted handles a STARTED event.
func (s *Service) OnBuildStarted(ctx context.Context, ev build.Event, sink Sink) (Outcome, error) {
	ev.Phase = build.PhaseStarted
	return s.Handle(ctx, ev, sink)
}

// OnBuildCompleted handles a COMPLETED event.
func (s *Service) OnBuildCompleted(ctx context.Context, ev build.Event, sink Sink) (Outcome, error) {
	ev.Phase = build.PhaseCompleted
	return s.Handle(ctx, ev, sink)
}

// Handle processes one lifecycle event. The error return is reserved for
// malformed events; notification problems are reported through the Outcome.
func (s *Service) Handle(ctx context.Context, ev build.Event, sink Sink) (Outcome, error) {
	ev, err := ev.Normalize()
	if err != nil {
		return Outcome{}, err
	}
	if sink == nil {
		sink = Discard
	}
	logger := s.logger.With(
		logging.Job(ev.Job),
		logging.BuildNumber(ev.Number),
		logging.String(logging.FieldPhase, string(ev.Phase)),
	)

	g := s.settings.Snapshot()
	previous := s.previousResult(ctx, logger, ev)
	s.record(ctx, logger, ev)

	job, attached, err := s.jobs.JobConfig(ctx, ev.Job)
	if err != nil {
		logging.WarnWithContext(logger, "job configuration lookup failed", "job_lookup_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the state database"),
		)
		return Skipped(ReasonJobLookupFailed), nil
	}
	if !attached {
		logger.Debug("notifier not attached to job")
		return Skipped(ReasonNotAttached), nil
	}

	in := policy.Input{
		Phase:                        ev.Phase,
		Current:                      ev.Result,
		Previous:                     previous,
		SendOnStart:                  g.SendOnStart,
		NotifyOnConsecutiveSuccesses: g.NotifyOnConsecutiveSuccesses,
	}
	if !policy.ShouldNotify(in) {
		reason := policy.Reason(in)
		logger.Info("notification suppressed",
			logging.String("reason", reason),
			logging.String("result", string(ev.Result)),
			logging.String("previous_result", string(previous)),
		)
		return Skipped(reason), nil
	}

	if ev.Phase == build.PhaseStarted {
		logger.Info("preparing sns notification for build started")
	} else {
		logger.Info("preparing sns notification for build completed")
	}
	return s.dispatcher.Dispatch(ctx, job, g, ev, sink), nil
}

func (s *Service) previousResult(ctx context.Context, logger *slog.Logger, ev build.Event) build.Result {
	if ev.Phase != build.PhaseCompleted {
		return ""
	}
	if ev.PreviousResult.Present() || s.history == nil {
		return ev.PreviousResult
	}
	prior, err := s.history.PriorBuilds(ctx, ev.Job, ev.Number, historyDepth)
	if err != nil {
		logging.WarnWithContext(logger, "build history lookup failed", "history_lookup_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "previous result treated as absent"),
		)
		return ""
	}
	return policy.PreviousResult(prior)
}

func (s *Service) record(ctx context.Context, logger *slog.Logger, ev build.Event) {
	if s.history == nil {
		return
	}
	var err error
	switch ev.Phase {
	case build.PhaseStarted:
		err = s.history.RecordStarted(ctx, ev)
	case build.PhaseCompleted:
		err = s.history.RecordCompleted(ctx, ev)
	default:
		err = fmt.Errorf("unknown phase %q", ev.Phase)
	}
	if err != nil {
		logging.WarnWithContext(logger, "failed to record build", "history_record_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "later builds may not see this result"),
		)
	}
}
