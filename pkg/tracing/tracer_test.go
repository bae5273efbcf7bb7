package tracing

import (
	"errors"
	"testing"
	"time"

	"github.com/nicktill/energyview/pkg/results"
)

var _ results.Observer = (*LoadTrace)(nil)

func fakeClock(start time.Time) (*time.Time, func() time.Time) {
	now := start
	return &now, func() time.Time { return now }
}

func TestTracer_LoadTrace(t *testing.T) {
	now, clock := fakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	store := NewStorage(0)
	tracer := NewTracer(store)
	tracer.now = clock

	lt, err := tracer.Start("s1", "run.h5")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	*now = now.Add(100 * time.Millisecond)
	lt.StageDone(results.StageTopology, 100*time.Millisecond, nil)
	*now = now.Add(2 * time.Second)
	lt.StageDone(results.StageEnergyBalance, 2*time.Second, nil)

	tr, err := lt.Finish(nil)
	if err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	if len(tr.Spans) != 3 {
		t.Fatalf("Expected 3 spans, got %d", len(tr.Spans))
	}
	if tr.Duration != 2100*time.Millisecond {
		t.Errorf("Duration = %v, want 2.1s", tr.Duration)
	}
	for _, s := range tr.Spans[1:] {
		if s.ParentID != tr.RootSpan.SpanID || s.TraceID != tr.TraceID {
			t.Errorf("span %s not linked to root", s.Operation)
		}
	}
	if got := tr.Slowest(); got == nil || got.Operation != string(results.StageEnergyBalance) {
		t.Errorf("Slowest() = %+v", got)
	}
	if !tr.Spans[2].StartTime.Equal(tr.Spans[1].EndTime) {
		t.Errorf("stage spans should be contiguous: %v vs %v", tr.Spans[2].StartTime, tr.Spans[1].EndTime)
	}

	stored, ok := store.Get("s1")
	if !ok || stored != tr {
		t.Fatal("trace not stored under its session")
	}
}

func TestTracer_FailedLoad(t *testing.T) {
	tracer := NewTracer(NewStorage(0))
	lt, err := tracer.Start("s1", "run.h5")
	if err != nil {
		t.Fatal(err)
	}
	boom := errors.New("ragged series")
	lt.StageDone(results.StageEnergyBalance, time.Millisecond, boom)
	tr, err := lt.Finish(boom)
	if err != nil {
		t.Fatal(err)
	}
	if tr.RootSpan.Status != SpanStatusError || tr.Spans[1].Error != "ragged series" {
		t.Errorf("error not recorded: %+v", tr.Spans)
	}
}

func TestStorage_Eviction(t *testing.T) {
	store := NewStorage(2)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		store.Store(&Trace{Session: id, StartTime: base.Add(time.Duration(i) * time.Minute)})
	}
	if store.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", store.Len())
	}
	if _, ok := store.Get("a"); ok {
		t.Error("oldest trace should be evicted")
	}
	store.Delete("b")
	if _, ok := store.Get("b"); ok {
		t.Error("Delete() did not remove the trace")
	}
}

func TestNewIDs(t *testing.T) {
	tid, err := NewTraceID()
	if err != nil || len(tid) != 32 {
		t.Errorf("NewTraceID() = %q, %v", tid, err)
	}
	sid, err := NewSpanID()
	if err != nil || len(sid) != 16 {
		t.Errorf("NewSpanID() = %q, %v", sid, err)
	}
}
