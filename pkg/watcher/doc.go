// Package watcher recursively watches a vault directory with fsnotify
// and classifies raw filesystem events into the three kinds the sync
// engine cares about: content changed, removed, and ignored. Delivery
// to the engine is lossless — events a slow consumer has not yet read
// are buffered in an unbounded internal queue, never dropped.
package watcher
