package notifier

import "fmt"

// Kind tags a dispatch outcome.
type Kind string

const (
	KindPublished Kind = "published"
	KindSkipped   Kind = "skipped"
	KindFailed    Kind = "failed"
)

// Skip reasons reported by the dispatcher and the service.
const (
	ReasonNoTopic       = "no topic configured"
	ReasonNoCredentials = "credentials not configured"
	ReasonNoEndpoint    = "cannot resolve endpoint"
	ReasonNotAttached   = "notifier not attached to job"
)

// Outcome is the result of one dispatch. Exactly one of the variant fields is
// meaningful for a given Kind.
type Outcome struct {
	Kind          Kind   `json:"kind"`
	Subject       string `json:"subject,omitempty"`
	Topic         string `json:"topic,omitempty"`
	MessageID     string `json:"message_id,omitempty"`
	Reason        string `json:"reason,omitempty"`
	Error         string `json:"error,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// Published reports a successful publish.
func Published(subject, topic, messageID string) Outcome {
	return Outcome{Kind: KindPublished, Subject: subject, Topic: topic, MessageID: messageID}
}

// Skipped reports a notification that was deliberately not sent.
func Skipped(reason string) Outcome {
	return Outcome{Kind: KindSkipped, Reason: reason}
}

// Failed reports a publish attempt that did not succeed.
func Failed(err string) Outcome {
	return Outcome{Kind: KindFailed, Error: err}
}

func (o Outcome) String() string {
	switch o.Kind {
	case KindPublished:
		return fmt.Sprintf("published subject=%q topic=%s", o.Subject, o.Topic)
	case KindSkipped:
		return "skipped: " + o.Reason
	case KindFailed:
		return "failed: " + o.Error
	default:
		return string(o.Kind)
	}
}
