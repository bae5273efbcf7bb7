// Package tracing records a trace per archive load: one root span for the
// load and one child span per decoding stage.
package tracing

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// TraceID identifies a trace. 128-bit random, hex encoded.
type TraceID string

// SpanID identifies a span within a trace. 64-bit random, hex encoded.
type SpanID string

// SpanStatus indicates the status of a span
type SpanStatus string

const (
	SpanStatusOK    SpanStatus = "ok"
	SpanStatusError SpanStatus = "error"
)

// Span is one timed operation of a load.
type Span struct {
	TraceID  TraceID `json:"trace_id"`
	SpanID   SpanID  `json:"span_id"`
	ParentID SpanID  `json:"parent_id,omitempty"`

	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`

	Operation string            `json:"operation"`
	Status    SpanStatus        `json:"status"`
	Tags      map[string]string `json:"tags,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// Trace is the complete record of one load.
type Trace struct {
	TraceID   TraceID       `json:"trace_id"`
	Session   string        `json:"session"`
	RootSpan  *Span         `json:"root_span"`
	Spans     []*Span       `json:"spans"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
}

// Slowest returns the child span with the longest duration, or nil.
func (t *Trace) Slowest() *Span {
	var out *Span
	for _, s := range t.Spans {
		if s.ParentID == "" {
			continue
		}
		if out == nil || s.Duration > out.Duration {
			out = s
		}
	}
	return out
}

// NewTraceID generates a new random 128-bit trace ID.
func NewTraceID() (TraceID, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("failed to generate trace ID: %w", err)
	}
	return TraceID(hex.EncodeToString(b[:])), nil
}

// NewSpanID generates a new random 64-bit span ID.
func NewSpanID() (SpanID, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("failed to generate span ID: %w", err)
	}
	return SpanID(hex.EncodeToString(b[:])), nil
}
