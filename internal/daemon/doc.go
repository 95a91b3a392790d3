// Package daemon coordinates the long-running snsnotify process.
//
// It wires the settings manager, the SQLite store, the notifier service, the
// HTTP API, and the broker sources into a single lifecycle with flock-based
// locking to prevent multiple instances. Reload requests swap the global
// settings snapshot without restarting listeners.
//
// Keep orchestration here: event handling lives in notifier, transport in
// api and source.
package daemon
