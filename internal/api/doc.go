// Package api serves the HTTP surface of the daemon.
//
// Build servers post lifecycle events to /api/v1/builds/started and
// /api/v1/builds/completed and receive the dispatch outcome together with the
// lines that would have gone to the build log. Operators attach notifiers to
// jobs under /api/v1/jobs, browse recorded history, and read or patch the
// global settings under /api/v1/settings. Secrets are never echoed back.
//
// When a token is configured every route except /healthz requires
// "Authorization: Bearer <token>".
package api
