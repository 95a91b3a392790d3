// Package build defines the build lifecycle values exchanged between event
// sources, the history store, and the notifier.
package build

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidEvent marks events that cannot be handled.
var ErrInvalidEvent = errors.New("invalid build event")

// Phase is the lifecycle stage at which a notification may fire.
type Phase string

const (
	PhaseStarted   Phase = "STARTED"
	PhaseCompleted Phase = "COMPLETED"
)

// ParsePhase accepts phase names case-insensitively.
func ParsePhase(value string) (Phase, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case string(PhaseStarted):
		return PhaseStarted, nil
	case string(PhaseCompleted):
		return PhaseCompleted, nil
	default:
		return "", fmt.Errorf("%w: unknown phase %q", ErrInvalidEvent, value)
	}
}

// Result is the outcome of a finished build. The zero value means absent.
type Result string

const (
	ResultSuccess  Result = "SUCCESS"
	ResultUnstable Result = "UNSTABLE"
	ResultFailure  Result = "FAILURE"
	ResultAborted  Result = "ABORTED"
	ResultNotBuilt Result = "NOT_BUILT"
)

// ParseResult accepts result names case-insensitively. Dashes are read as
// underscores so "not-built" works from shell scripts. An empty value parses
// to the absent result.
func ParseResult(value string) (Result, error) {
	normalized := strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(value)), "-", "_")
	switch Result(normalized) {
	case "":
		return "", nil
	case ResultSuccess, ResultUnstable, ResultFailure, ResultAborted, ResultNotBuilt:
		return Result(normalized), nil
	default:
		return "", fmt.Errorf("%w: unknown result %q", ErrInvalidEvent, value)
	}
}

// Present reports whether the result carries a value.
func (r Result) Present() bool {
	return r != ""
}

// Event describes one lifecycle occurrence of a build.
type Event struct {
	Job            string            `json:"job"`
	Number         int64             `json:"number"`
	Phase          Phase             `json:"phase"`
	Result         Result            `json:"result,omitempty"`
	DisplayName    string            `json:"display_name,omitempty"`
	URL            string            `json:"url,omitempty"`
	DurationMillis int64             `json:"duration_ms,omitempty"`
	ArtifactPaths  []string          `json:"artifact_paths,omitempty"`
	Variables      map[string]string `json:"variables,omitempty"`
	Environment    map[string]string `json:"environment,omitempty"`
	PreviousResult Result            `json:"previous_result,omitempty"`
}

// Validate checks the structural invariants of an event.
func (e Event) Validate() error {
	if strings.TrimSpace(e.Job) == "" {
		return fmt.Errorf("%w: job is required", ErrInvalidEvent)
	}
	if e.Number < 0 {
		return fmt.Errorf("%w: build number must be >= 0", ErrInvalidEvent)
	}
	if _, err := ParsePhase(string(e.Phase)); err != nil {
		return err
	}
	if e.Phase == PhaseStarted && e.Result.Present() {
		return fmt.Errorf("%w: started builds cannot carry a result", ErrInvalidEvent)
	}
	if _, err := ParseResult(string(e.Result)); err != nil {
		return err
	}
	if _, err := ParseResult(string(e.PreviousResult)); err != nil {
		return err
	}
	if e.DurationMillis < 0 {
		return fmt.Errorf("%w: duration must be >= 0", ErrInvalidEvent)
	}
	return nil
}

// Normalize returns a copy with phase and result names in canonical form,
// then validates it.
func (e Event) Normalize() (Event, error) {
	if phase, err := ParsePhase(string(e.Phase)); err == nil {
		e.Phase = phase
	}
	if result, err := ParseResult(string(e.Result)); err == nil {
		e.Result = result
	}
	if prev, err := ParseResult(string(e.PreviousResult)); err == nil {
		e.PreviousResult = prev
	}
	e.Job = strings.TrimSpace(e.Job)
	if err := e.Validate(); err != nil {
		return Event{}, err
	}
	return e, nil
}

// FullDisplayName returns the human label of the build, "<job> #<number>"
// unless the source supplied its own.
func (e Event) FullDisplayName() string {
	if name := strings.TrimSpace(e.DisplayName); name != "" {
		return name
	}
	return fmt.Sprintf("%s #%d", e.Job, e.Number)
}

// ResultLabel is "STARTED" while the build runs or has no result, and the
// result name otherwise.
func (e Event) ResultLabel() string {
	if e.Phase == PhaseStarted || !e.Result.Present() {
		return string(PhaseStarted)
	}
	return string(e.Result)
}

// Record is a build as remembered by the history store.
type Record struct {
	Job            string    `json:"job"`
	Number         int64     `json:"number"`
	DisplayName    string    `json:"display_name,omitempty"`
	URL            string    `json:"url,omitempty"`
	Result         Result    `json:"result,omitempty"`
	DurationMillis int64     `json:"duration_ms,omitempty"`
	Building       bool      `json:"building"`
	StartedAt      time.Time `json:"started_at,omitzero"`
	CompletedAt    time.Time `json:"completed_at,omitzero"`
}

// JobConfig is the per-job notifier attachment. Empty fields fall back to the
// global defaults.
type JobConfig struct {
	Job             string `json:"job" yaml:"job"`
	TopicARN        string `json:"topic_arn,omitempty" yaml:"topic_arn,omitempty"`
	SubjectTemplate string `json:"subject_template,omitempty" yaml:"subject_template,omitempty"`
	MessageTemplate string `json:"message_template,omitempty" yaml:"message_template,omitempty"`
}
