package metrics

import (
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
)

// Metrics tracks operational counters of the session service.
type Metrics struct {
	SessionsCreated     atomic.Int64
	SessionCreateErrors atomic.Int64
	SessionsDeleted     atomic.Int64
	TranscriptRequests  atomic.Int64
	TranscriptErrors    atomic.Int64
	Questions           atomic.Int64
	GenerationErrors    atomic.Int64
	ArchiveErrors       atomic.Int64
}

func New() *Metrics {
	return &Metrics{}
}

var keys = []string{
	"sessions_created", "session_create_errors", "sessions_deleted",
	"transcript_requests", "transcript_errors",
	"questions", "generation_errors",
	"archive_errors",
}

// Snapshot returns the current value of every counter.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"sessions_created":      m.SessionsCreated.Load(),
		"session_create_errors": m.SessionCreateErrors.Load(),
		"sessions_deleted":      m.SessionsDeleted.Load(),
		"transcript_requests":   m.TranscriptRequests.Load(),
		"transcript_errors":     m.TranscriptErrors.Load(),
		"questions":             m.Questions.Load(),
		"generation_errors":     m.GenerationErrors.Load(),
		"archive_errors":        m.ArchiveErrors.Load(),
	}
}

// Format returns the counters as "name value" lines, followed by any extra gauges.
func (m *Metrics) Format(extra map[string]int64) string {
	snap := m.Snapshot()
	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s %d\n", k, snap[k])
	}
	for _, k := range sortedKeys(extra) {
		fmt.Fprintf(&sb, "%s %d\n", k, extra[k])
	}
	return sb.String()
}

func sortedKeys(m map[string]int64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
