// Package dglog provides the structured logging used across the
// analysis components, plus a "log once per key" helper for
// diagnostics that would otherwise repeat once per call site visited
// (call-incompatibility, missing-node-mapping, empty-reaching-
// definitions warnings).
package dglog

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// For a given component, logs are emitted with a "component" field so
// a single run's aggregated log can be filtered per subsystem without
// maintaining a separate logger instance per file.
func For(component string) *logrus.Entry {
	return logrus.WithField("component", component)
}

// onceKeys deduplicates "log once per key" diagnostics process-wide.
// Keys are component-qualified so two components never collide on an
// identical underlying key.
var (
	onceMu   sync.Mutex
	onceSeen = make(map[string]bool)
)

// Once logs msg at Warn level the first time (component, key) is seen,
// and is a silent no-op on every subsequent call with the same pair.
func Once(component, key, msg string, fields logrus.Fields) {
	full := component + "\x00" + key
	onceMu.Lock()
	seen := onceSeen[full]
	if !seen {
		onceSeen[full] = true
	}
	onceMu.Unlock()
	if seen {
		return
	}
	entry := For(component)
	if fields != nil {
		entry = entry.WithFields(fields)
	}
	entry.Warn(msg)
}

// ResetOnce clears the dedup table. Intended for tests only: each
// analysis run in production is a fresh process, so the table never
// needs clearing outside of a test binary that runs many scenarios.
func ResetOnce() {
	onceMu.Lock()
	defer onceMu.Unlock()
	onceSeen = make(map[string]bool)
}
