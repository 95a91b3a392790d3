// Package notifier decides whether a build lifecycle event is worth a
// notification and publishes it.
//
// Dispatcher is the outbound half: it picks the topic, checks credentials,
// resolves the endpoint, renders subject and message, and performs a single
// publish attempt through a ClientFactory. Service is the inbound half used by
// the CLI, the HTTP API, and the queue sources: it records the build, derives
// the previous result, and applies the notification policy before calling the
// dispatcher.
//
// Nothing in this package fails a build. Problems surface as Skipped or
// Failed outcomes and as warnings on the supplied Sink.
package notifier
