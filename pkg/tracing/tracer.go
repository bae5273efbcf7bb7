package tracing

import (
	"fmt"
	"sync"
	"time"

	"github.com/nicktill/energyview/pkg/results"
)

// Tracer starts load traces and keeps the finished ones in its storage.
type Tracer struct {
	storage *Storage
	now     func() time.Time
}

// NewTracer creates a tracer writing to storage.
func NewTracer(storage *Storage) *Tracer {
	return &Tracer{storage: storage, now: time.Now}
}

// LoadTrace records the stages of one load. It implements results.Observer.
type LoadTrace struct {
	tracer *Tracer
	root   *Span

	mu    sync.Mutex
	spans []*Span
}

// Start begins the trace of a load of source for session.
func (t *Tracer) Start(session, source string) (*LoadTrace, error) {
	traceID, err := NewTraceID()
	if err != nil {
		return nil, err
	}
	spanID, err := NewSpanID()
	if err != nil {
		return nil, err
	}
	root := &Span{
		TraceID:   traceID,
		SpanID:    spanID,
		StartTime: t.now(),
		Operation: "load",
		Status:    SpanStatusOK,
		Tags:      map[string]string{"session": session, "source": source},
	}
	return &LoadTrace{tracer: t, root: root}, nil
}

// StageDone records a finished stage as a child span ending now.
func (lt *LoadTrace) StageDone(stage results.Stage, elapsed time.Duration, err error) {
	spanID, idErr := NewSpanID()
	if idErr != nil {
		return
	}
	end := lt.tracer.now()
	span := &Span{
		TraceID:   lt.root.TraceID,
		SpanID:    spanID,
		ParentID:  lt.root.SpanID,
		StartTime: end.Add(-elapsed),
		EndTime:   end,
		Duration:  elapsed,
		Operation: string(stage),
		Status:    SpanStatusOK,
	}
	if err != nil {
		span.Status = SpanStatusError
		span.Error = err.Error()
	}
	lt.mu.Lock()
	lt.spans = append(lt.spans, span)
	lt.mu.Unlock()
}

// Finish closes the root span and stores the trace.
func (lt *LoadTrace) Finish(err error) (*Trace, error) {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	root := lt.root
	root.EndTime = lt.tracer.now()
	root.Duration = root.EndTime.Sub(root.StartTime)
	if err != nil {
		root.Status = SpanStatusError
		root.Error = err.Error()
	}

	tr := &Trace{
		TraceID:   root.TraceID,
		Session:   root.Tags["session"],
		RootSpan:  root,
		Spans:     append([]*Span{root}, lt.spans...),
		StartTime: root.StartTime,
		EndTime:   root.EndTime,
		Duration:  root.Duration,
	}
	if tr.Session == "" {
		return nil, fmt.Errorf("trace %s has no session", tr.TraceID)
	}
	lt.tracer.storage.Store(tr)
	return tr, nil
}
