// Package log provides structured logging for oversync using zerolog.
//
// It wraps a single global zerolog.Logger configured once via Init, and
// exposes per-component child loggers (WithComponent, WithPeerID,
// WithPath) so every log line carries enough context to trace a file or
// peer through the watcher → indexer → publisher → mirror pipeline.
package log
