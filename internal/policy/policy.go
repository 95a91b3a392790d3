// Package policy decides whether a build lifecycle event warrants a
// notification. Everything here is pure so callers can table-test it.
package policy

import "snsnotify/internal/build"

// Input gathers the facts the decision depends on.
type Input struct {
	Phase                        build.Phase
	Current                      build.Result
	Previous                     build.Result
	SendOnStart                  bool
	NotifyOnConsecutiveSuccesses bool
}

// ShouldNotify gates STARTED events on SendOnStart and suppresses a SUCCESS
// that follows a SUCCESS unless NotifyOnConsecutiveSuccesses is set.
func ShouldNotify(in Input) bool {
	switch in.Phase {
	case build.PhaseStarted:
		return in.SendOnStart
	case build.PhaseCompleted:
		return in.NotifyOnConsecutiveSuccesses || !IsConsecutiveSuccess(in.Current, in.Previous)
	default:
		return false
	}
}

// IsConsecutiveSuccess reports whether both adjacent results are SUCCESS.
func IsConsecutiveSuccess(current, previous build.Result) bool {
	return current == build.ResultSuccess && previous == build.ResultSuccess
}

// PreviousResult walks prior builds newest first. Aborted and not-built
// builds are skipped. A build that is still running ends the walk with no
// result, as does running out of history.
func PreviousResult(prior []build.Record) build.Result {
	for _, rec := range prior {
		if rec.Building {
			return ""
		}
		switch rec.Result {
		case build.ResultAborted, build.ResultNotBuilt:
			continue
		}
		return rec.Result
	}
	return ""
}

// Reason describes why ShouldNotify returned false. It is empty when the
// event should notify.
func Reason(in Input) string {
	if ShouldNotify(in) {
		return ""
	}
	switch in.Phase {
	case build.PhaseStarted:
		return "start notifications disabled"
	case build.PhaseCompleted:
		return "consecutive success suppressed"
	default:
		return "unknown phase"
	}
}
