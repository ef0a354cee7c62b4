package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vitalink/teleconsult/internal/providers/ai"
)

// fakeClock steps time manually so elapsed-time assertions are exact.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// eventRecorder collects machine events for assertion.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) sink(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *eventRecorder) ofType(t EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func newTestMachine(t *testing.T, clk *fakeClock, rec *eventRecorder) *Machine {
	t.Helper()
	cfg := Config{
		SessionID: "sess-1",
		DoctorID:  "doc-1",
		PatientID: "pat-1",
		Language:  "en-US",
	}
	if rec != nil {
		cfg.Notify = rec.sink
	}
	m := New(cfg)
	if clk != nil {
		m.now = clk.Now
	}
	return m
}

func TestMachineStart(t *testing.T) {
	m := newTestMachine(t, nil, nil)

	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if m.Phase() != PhaseRecording {
		t.Errorf("phase = %q, want recording", m.Phase())
	}
	if err := m.Start(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second Start err = %v, want ErrInvalidTransition", err)
	}
}

func TestMachineStartWithoutPatient(t *testing.T) {
	m := New(Config{SessionID: "sess-1", DoctorID: "doc-1"})
	if err := m.Start(); !errors.Is(err, ErrNoPatientBound) {
		t.Errorf("Start err = %v, want ErrNoPatientBound", err)
	}
	if m.Phase() != PhaseIdle {
		t.Errorf("phase = %q, want idle after rejected start", m.Phase())
	}
}

func TestMachinePauseFromIdle(t *testing.T) {
	m := newTestMachine(t, nil, nil)
	if err := m.Pause(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Pause from idle err = %v, want ErrInvalidTransition", err)
	}
}

func TestMachineDoubleStop(t *testing.T) {
	m := newTestMachine(t, nil, nil)
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := m.Stop(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second Stop err = %v, want ErrInvalidTransition", err)
	}
}

func TestMachinePauseResumeElapsed(t *testing.T) {
	clk := newFakeClock()
	m := newTestMachine(t, clk, nil)

	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	m.HandleSegment(context.Background(), Segment{Text: "I feel tired all the time", Confidence: 0.55})
	m.HandleSegment(context.Background(), Segment{Text: "my sleep has been bad", Confidence: 0.6})
	m.HandleSegment(context.Background(), Segment{Text: "Let us review your symptoms in detail", Confidence: 0.9})

	clk.Advance(60 * time.Second)
	if err := m.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}

	clk.Advance(30 * time.Second)
	if err := m.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}

	clk.Advance(90 * time.Second)
	if err := m.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	st := m.Snapshot()
	if got := st.StoppedAt.Sub(st.StartedAt); got != 180*time.Second {
		t.Errorf("wall time = %v, want 180s", got)
	}
	if got := st.Elapsed(st.StoppedAt); got != 150*time.Second {
		t.Errorf("elapsed = %v, want 150s", got)
	}
	if len(st.Transcript) != 3 {
		t.Errorf("transcript len = %d, want 3", len(st.Transcript))
	}
	if len(st.PausedIntervals) != 1 {
		t.Fatalf("paused intervals = %d, want 1", len(st.PausedIntervals))
	}
	if st.PausedIntervals[0].End.IsZero() {
		t.Error("resume must close the pause interval")
	}

	// 150s elapsed rounds down to 2 stored minutes
	rep, err := m.Finish(context.Background(), NewReportSynthesizer(nil, nil))
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	store := &fakeConsultationStore{}
	if _, err := NewCommitter(store, nil, nil).Commit(context.Background(), m.Snapshot(), rep); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if store.last.DurationMinutes != 2 {
		t.Errorf("stored minutes = %d, want 2", store.last.DurationMinutes)
	}
}

func TestMachineStopClosesOpenPause(t *testing.T) {
	clk := newFakeClock()
	m := newTestMachine(t, clk, nil)

	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	clk.Advance(40 * time.Second)
	if err := m.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	clk.Advance(20 * time.Second)
	if err := m.Stop(); err != nil {
		t.Fatalf("Stop from paused: %v", err)
	}

	st := m.Snapshot()
	if st.PausedIntervals[0].End.IsZero() {
		t.Error("Stop must close the open pause interval")
	}
	if got := st.Elapsed(st.StoppedAt); got != 40*time.Second {
		t.Errorf("elapsed = %v, want 40s", got)
	}
}

func TestStateElapsedOpenPause(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	st := State{
		StartedAt:       start,
		PausedIntervals: []PausedInterval{{Start: start.Add(60 * time.Second)}},
	}

	// 90s in with an open pause since 60s: only the first 60s count
	if got := st.Elapsed(start.Add(90 * time.Second)); got != 60*time.Second {
		t.Errorf("elapsed with open pause = %v, want 60s", got)
	}
	// before start is clamped to zero
	if got := st.Elapsed(start.Add(-time.Minute)); got != 0 {
		t.Errorf("elapsed before start = %v, want 0", got)
	}
}

func TestMachineHandleSegment(t *testing.T) {
	rec := &eventRecorder{}
	m := newTestMachine(t, nil, rec)
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	m.HandleSegment(context.Background(), Segment{Text: "my throat hurts", Confidence: 0.6})
	m.HandleSegment(context.Background(), Segment{Text: "The diagnosis is pharyngitis", Confidence: 0.95})

	st := m.Snapshot()
	if len(st.Transcript) != 2 {
		t.Fatalf("transcript len = %d, want 2", len(st.Transcript))
	}
	if st.Transcript[0].Speaker != SpeakerPatient {
		t.Errorf("first segment speaker = %q, want patient", st.Transcript[0].Speaker)
	}
	if st.Transcript[1].Speaker != SpeakerDoctor {
		t.Errorf("second segment speaker = %q, want doctor", st.Transcript[1].Speaker)
	}
	if st.Transcript[0].ID == st.Transcript[1].ID {
		t.Error("entries must get distinct ids")
	}
	if got := rec.ofType(EventTranscript); len(got) != 2 {
		t.Errorf("transcript events = %d, want 2", len(got))
	}
}

func TestMachineDropsLateSegments(t *testing.T) {
	m := newTestMachine(t, nil, nil)

	// before start
	m.HandleSegment(context.Background(), Segment{Text: "too early", Confidence: 0.9})

	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	m.HandleSegment(context.Background(), Segment{Text: "while paused", Confidence: 0.9})

	if err := m.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if err := m.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	m.HandleSegment(context.Background(), Segment{Text: "after stop", Confidence: 0.9})

	if got := m.Snapshot().Transcript; len(got) != 0 {
		t.Errorf("transcript len = %d, want 0: segments outside recording must be dropped", len(got))
	}
}

func TestMachineDropsInvalidSegments(t *testing.T) {
	m := newTestMachine(t, nil, nil)
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	m.HandleSegment(context.Background(), Segment{Text: "   ", Confidence: 0.9})
	m.HandleSegment(context.Background(), Segment{Text: "bad confidence", Confidence: 1.5})

	if got := m.Snapshot().Transcript; len(got) != 0 {
		t.Errorf("transcript len = %d, want 0", len(got))
	}
}

func TestMachineDiscardsInsightsAfterStop(t *testing.T) {
	svc := &fakeInsightService{resp: &ai.AnalyzeResponse{
		DiagnosticSuggestions: []string{"possible strep throat"},
		Confidence:            0.9,
	}}
	m := New(Config{
		SessionID: "sess-1",
		DoctorID:  "doc-1",
		PatientID: "pat-1",
		Insights:  NewInsightGenerator(svc, nil),
	})

	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	// simulate an analysis dispatched while recording but arriving after stop
	e := TranscriptEntry{ID: "e1", Speaker: SpeakerPatient, Text: "my throat hurts", Confidence: 0.6}
	m.analyze(context.Background(), e, []TranscriptEntry{e}, ContextRange{Start: 0, End: 0})

	if got := m.Snapshot().Insights; len(got) != 0 {
		t.Errorf("insights len = %d, want 0: late results must be discarded", len(got))
	}
}

func TestMachineCollectsInsightsWhileRecording(t *testing.T) {
	svc := &fakeInsightService{resp: &ai.AnalyzeResponse{
		DiagnosticSuggestions: []string{"possible strep throat"},
		RecommendedTests:      []string{"rapid antigen test"},
		Confidence:            0.9,
	}}
	rec := &eventRecorder{}
	m := New(Config{
		SessionID: "sess-1",
		DoctorID:  "doc-1",
		PatientID: "pat-1",
		Insights:  NewInsightGenerator(svc, nil),
		Notify:    rec.sink,
	})

	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	e := TranscriptEntry{ID: "e1", Speaker: SpeakerPatient, Text: "my throat hurts", Confidence: 0.6}
	m.analyze(context.Background(), e, []TranscriptEntry{e}, ContextRange{Start: 0, End: 0})

	st := m.Snapshot()
	if len(st.Insights) != 2 {
		t.Fatalf("insights len = %d, want 2", len(st.Insights))
	}
	if got := rec.ofType(EventInsight); len(got) != 2 {
		t.Errorf("insight events = %d, want 2", len(got))
	}
}

func TestMachineReportsDespiteAIFailures(t *testing.T) {
	failing := &fakeInsightService{err: errors.New("model overloaded")}
	m := New(Config{
		SessionID: "sess-1",
		DoctorID:  "doc-1",
		PatientID: "pat-1",
		Insights:  NewInsightGenerator(failing, nil),
	})

	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	m.HandleSegment(context.Background(), Segment{Text: "my chest feels tight", Confidence: 0.6})
	m.HandleSegment(context.Background(), Segment{Text: "it started yesterday", Confidence: 0.7})
	if err := m.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	rep, err := m.Finish(context.Background(), NewReportSynthesizer(&fakeReportService{err: errors.New("down")}, nil))
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if m.Phase() != PhaseReported {
		t.Errorf("phase = %q, want reported", m.Phase())
	}
	if rep.DoctorSummary == "" || rep.Diagnosis == "" {
		t.Errorf("baseline report incomplete: %+v", rep)
	}
	if got := m.Snapshot().Insights; len(got) != 0 {
		t.Errorf("insights len = %d, want 0 when every analysis fails", len(got))
	}
}

func TestMachineAddNote(t *testing.T) {
	m := newTestMachine(t, nil, nil)
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := m.AddNote("  patient appears fatigued  "); err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	if err := m.AddNote(""); err != nil {
		t.Errorf("empty note err = %v, want nil no-op", err)
	}
	if err := m.AddNote("follow up on labs"); err != nil {
		t.Fatalf("AddNote: %v", err)
	}

	want := "patient appears fatigued\nfollow up on labs"
	if got := m.Snapshot().DoctorNotes; got != want {
		t.Errorf("DoctorNotes = %q, want %q", got, want)
	}

	if err := m.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := m.AddNote("still allowed while stopped"); err != nil {
		t.Errorf("AddNote while stopped err = %v, want nil", err)
	}

	if _, err := m.Finish(context.Background(), NewReportSynthesizer(nil, nil)); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if err := m.AddNote("too late"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("AddNote after report err = %v, want ErrInvalidTransition", err)
	}
}

func TestMachineFinish(t *testing.T) {
	clk := newFakeClock()
	rec := &eventRecorder{}
	m := newTestMachine(t, clk, rec)

	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	clk.Advance(10 * time.Minute)
	if err := m.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	synth := NewReportSynthesizer(nil, nil)
	rep, err := m.Finish(context.Background(), synth)
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if m.Phase() != PhaseReported {
		t.Errorf("phase = %q, want reported", m.Phase())
	}
	if rep.Duration != 10*time.Minute {
		t.Errorf("report duration = %v, want 10m", rep.Duration)
	}

	// second Finish serves the cached report for a commit retry
	again, err := m.Finish(context.Background(), synth)
	if err != nil {
		t.Fatalf("second Finish: %v", err)
	}
	if again.DoctorSummary != rep.DoctorSummary || again.Duration != rep.Duration {
		t.Errorf("second Finish returned a different report")
	}
}

// slowReportService holds Reduce open until released so tests can overlap
// Finish calls.
type slowReportService struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
	release chan struct{}
}

func (s *slowReportService) Reduce(ctx context.Context, req ai.ReduceRequest) (*ai.ReduceResponse, error) {
	s.mu.Lock()
	s.calls++
	first := s.calls == 1
	s.mu.Unlock()
	if first {
		close(s.started)
	}
	<-s.release
	return nil, errors.New("model timeout")
}

func TestMachineConcurrentFinish(t *testing.T) {
	m := newTestMachine(t, nil, nil)
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	svc := &slowReportService{started: make(chan struct{}), release: make(chan struct{})}
	synth := NewReportSynthesizer(svc, nil)

	type result struct {
		rep ConsultationReport
		err error
	}
	first := make(chan result, 1)
	go func() {
		rep, err := m.Finish(context.Background(), synth)
		first <- result{rep, err}
	}()

	<-svc.started

	// A Finish that arrives while synthesis is still running must wait and
	// then serve the cached report, never ErrInvalidTransition.
	second := make(chan result, 1)
	go func() {
		rep, err := m.Finish(context.Background(), synth)
		second <- result{rep, err}
	}()

	time.Sleep(10 * time.Millisecond)
	close(svc.release)

	r1 := <-first
	if r1.err != nil {
		t.Fatalf("first Finish: %v", r1.err)
	}
	r2 := <-second
	if r2.err != nil {
		t.Fatalf("concurrent Finish err = %v, want cached report", r2.err)
	}
	if r2.rep.DoctorSummary != r1.rep.DoctorSummary || r2.rep.Duration != r1.rep.Duration {
		t.Errorf("concurrent Finish returned a different report")
	}

	svc.mu.Lock()
	calls := svc.calls
	svc.mu.Unlock()
	if calls != 1 {
		t.Errorf("Reduce called %d times, want 1", calls)
	}
}

func TestMachineFinishBeforeStop(t *testing.T) {
	m := newTestMachine(t, nil, nil)
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := m.Finish(context.Background(), NewReportSynthesizer(nil, nil)); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Finish while recording err = %v, want ErrInvalidTransition", err)
	}
}

func TestMachineSnapshotIsACopy(t *testing.T) {
	m := newTestMachine(t, nil, nil)
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	m.HandleSegment(context.Background(), Segment{Text: "hello there", Confidence: 0.9})

	st := m.Snapshot()
	st.Transcript[0].Text = "mutated"

	if got := m.Snapshot().Transcript[0].Text; got != "hello there" {
		t.Errorf("machine state mutated through snapshot: %q", got)
	}
}

func TestMachinePhaseEvents(t *testing.T) {
	rec := &eventRecorder{}
	m := newTestMachine(t, nil, rec)

	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if err := m.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if err := m.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	want := []Phase{PhaseRecording, PhasePaused, PhaseRecording, PhaseStopped}
	got := rec.ofType(EventPhase)
	if len(got) != len(want) {
		t.Fatalf("phase events = %d, want %d", len(got), len(want))
	}
	for i, ev := range got {
		if ev.Phase != want[i] {
			t.Errorf("phase event %d = %q, want %q", i, ev.Phase, want[i])
		}
	}
}
