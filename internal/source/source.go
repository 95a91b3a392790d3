// Package source feeds build lifecycle events from message brokers into the
// notifier.
//
// Every source carries the same JSON envelope:
//
//	{"phase": "COMPLETED", "event": {"job": "api", "number": 42, "result": "FAILURE"}}
//
// Messages that fail to decode are logged and dropped; they are never
// redelivered.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"snsnotify/internal/build"
)

// Handler consumes one decoded event. Returned errors are logged by the
// source; they do not stop it.
type Handler func(ctx context.Context, ev build.Event) error

// Source delivers events to a handler until ctx is cancelled.
type Source interface {
	Name() string
	Run(ctx context.Context, handle Handler) error
}

// ErrEnvelope marks messages that are not valid build event envelopes.
var ErrEnvelope = errors.New("invalid build event envelope")

// Envelope is the wire form shared by the broker sources.
type Envelope struct {
	Phase string      `json:"phase"`
	Event build.Event `json:"event"`
}

// Decode parses an envelope and returns the validated event with its phase
// set from the envelope.
func Decode(data []byte) (build.Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return build.Event{}, fmt.Errorf("%w: %v", ErrEnvelope, err)
	}
	phase, err := build.ParsePhase(env.Phase)
	if err != nil {
		return build.Event{}, fmt.Errorf("%w: %v", ErrEnvelope, err)
	}
	ev := env.Event
	if ev.Phase != "" && !strings.EqualFold(string(ev.Phase), string(phase)) {
		return build.Event{}, fmt.Errorf("%w: envelope phase %s does not match event phase %s", ErrEnvelope, phase, ev.Phase)
	}
	ev.Phase = phase
	ev, err = ev.Normalize()
	if err != nil {
		return build.Event{}, fmt.Errorf("%w: %v", ErrEnvelope, err)
	}
	return ev, nil
}

// Encode builds the envelope for ev.
func Encode(ev build.Event) ([]byte, error) {
	return json.Marshal(Envelope{Phase: string(ev.Phase), Event: ev})
}
