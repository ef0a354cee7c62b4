package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type EventType string

const (
	EventPhase      EventType = "phase"
	EventTranscript EventType = "transcript"
	EventInsight    EventType = "insight"
)

// Event is what the machine emits to its subscriber (the live socket layer).
// The machine never calls back into any presentation code beyond this hook.
type Event struct {
	Type      EventType        `json:"type"`
	SessionID string           `json:"session_id"`
	Phase     Phase            `json:"phase,omitempty"`
	Entry     *TranscriptEntry `json:"entry,omitempty"`
	Insight   *Insight         `json:"insight,omitempty"`
}

type Config struct {
	SessionID string
	DoctorID  string
	PatientID string
	Language  string

	Classifier SpeakerClassifier
	Insights   *InsightGenerator
	Logger     *logrus.Logger

	// Notify receives machine events. Optional; called outside the machine
	// lock and must not block for long.
	Notify func(Event)
}

// Machine owns one consultation's lifecycle. All transitions and appends are
// serialized behind one mutex; the only async work is insight generation,
// which is dispatched fire-and-forget and re-checked against the phase on
// arrival.
type Machine struct {
	mu sync.Mutex

	// finishMu serializes Finish so a concurrent caller waits for the
	// in-flight synthesis and then receives the cached report.
	finishMu sync.Mutex

	sessionID string
	doctorID  string
	patientID string
	language  string

	phase     Phase
	startedAt time.Time
	stoppedAt time.Time
	paused    []PausedInterval

	buffer   *TranscriptBuffer
	insights []Insight
	notes    []string

	report    *ConsultationReport
	committed bool

	classifier SpeakerClassifier
	gen        *InsightGenerator
	notify     func(Event)
	log        *logrus.Entry

	now func() time.Time
}

func New(cfg Config) *Machine {
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
	}
	var classifier SpeakerClassifier = cfg.Classifier
	if classifier == nil {
		classifier = NewHeuristicClassifier()
	}

	return &Machine{
		sessionID:  cfg.SessionID,
		doctorID:   cfg.DoctorID,
		patientID:  cfg.PatientID,
		language:   cfg.Language,
		phase:      PhaseIdle,
		buffer:     NewTranscriptBuffer(),
		classifier: classifier,
		gen:        cfg.Insights,
		notify:     cfg.Notify,
		log:        logger.WithField("session_id", cfg.SessionID),
		now:        time.Now,
	}
}

func (m *Machine) SessionID() string { return m.sessionID }
func (m *Machine) DoctorID() string  { return m.doctorID }

func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Start moves Idle to Recording. A patient must be bound at creation time.
func (m *Machine) Start() error {
	m.mu.Lock()
	if m.phase != PhaseIdle {
		m.mu.Unlock()
		return ErrInvalidTransition
	}
	if m.patientID == "" {
		m.mu.Unlock()
		return ErrNoPatientBound
	}
	m.phase = PhaseRecording
	m.startedAt = m.now().UTC()
	m.mu.Unlock()

	m.log.Info("consultation recording started")
	m.emitPhase(PhaseRecording)
	return nil
}

func (m *Machine) Pause() error {
	m.mu.Lock()
	if m.phase != PhaseRecording {
		m.mu.Unlock()
		return ErrInvalidTransition
	}
	m.phase = PhasePaused
	m.paused = append(m.paused, PausedInterval{Start: m.now().UTC()})
	m.mu.Unlock()

	m.emitPhase(PhasePaused)
	return nil
}

func (m *Machine) Resume() error {
	m.mu.Lock()
	if m.phase != PhasePaused {
		m.mu.Unlock()
		return ErrInvalidTransition
	}
	m.phase = PhaseRecording
	m.paused[len(m.paused)-1].End = m.now().UTC()
	m.mu.Unlock()

	m.emitPhase(PhaseRecording)
	return nil
}

// Stop finalizes the elapsed duration. Late-arriving segments and in-flight
// insight results are dropped from here on.
func (m *Machine) Stop() error {
	m.mu.Lock()
	if m.phase != PhaseRecording && m.phase != PhasePaused {
		m.mu.Unlock()
		return ErrInvalidTransition
	}
	now := m.now().UTC()
	if m.phase == PhasePaused {
		m.paused[len(m.paused)-1].End = now
	}
	m.phase = PhaseStopped
	m.stoppedAt = now
	m.mu.Unlock()

	m.log.WithField("transcript_len", m.buffer.Len()).Info("consultation recording stopped")
	m.emitPhase(PhaseStopped)
	return nil
}

// AddNote appends to the doctor's free-text notes. Rejected once terminal.
func (m *Machine) AddNote(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase == PhaseReported {
		return ErrInvalidTransition
	}
	m.notes = append(m.notes, text)
	return nil
}

// HandleSegment processes one finalized speech segment: attribute, append,
// dispatch for analysis. Segments outside Recording are dropped and logged,
// never queued. Invalid segments are likewise dropped.
func (m *Machine) HandleSegment(ctx context.Context, seg Segment) {
	m.mu.Lock()
	if m.phase != PhaseRecording {
		phase := m.phase
		m.mu.Unlock()
		m.log.WithFields(logrus.Fields{"phase": phase, "text_len": len(seg.Text)}).
			Info("segment dropped outside recording")
		return
	}

	entry := TranscriptEntry{
		ID:         uuid.NewString(),
		Speaker:    m.classifier.Classify(seg.Text, seg.Confidence),
		Text:       seg.Text,
		Confidence: seg.Confidence,
		CapturedAt: m.now().UTC(),
		AudioRef:   seg.AudioRef,
	}

	idx, err := m.buffer.Append(entry)
	if err != nil {
		m.mu.Unlock()
		m.log.WithError(err).Warn("transcript entry rejected")
		return
	}

	recent := m.buffer.Tail(contextWindow)
	span := ContextRange{Start: idx - len(recent) + 1, End: idx}
	m.mu.Unlock()

	m.emit(Event{Type: EventTranscript, SessionID: m.sessionID, Entry: &entry})

	if m.gen != nil {
		// Detached from the caller so a closed request cannot abort an
		// in-flight analysis; stale results are filtered on arrival.
		go m.analyze(context.WithoutCancel(ctx), entry, recent, span)
	}
}

func (m *Machine) analyze(ctx context.Context, entry TranscriptEntry, recent []TranscriptEntry, span ContextRange) {
	insights := m.gen.Analyze(ctx, entry, m.language, recent, span)
	if len(insights) == 0 {
		return
	}

	m.mu.Lock()
	if m.phase != PhaseRecording {
		m.mu.Unlock()
		m.log.WithField("count", len(insights)).Info("insights discarded after recording ended")
		return
	}
	m.insights = append(m.insights, insights...)
	m.mu.Unlock()

	for i := range insights {
		m.emit(Event{Type: EventInsight, SessionID: m.sessionID, Insight: &insights[i]})
	}
}

// Finish reports a stopped session: synthesize once, then serve the cached
// report on any later call so a failed commit can be retried without
// re-synthesizing.
func (m *Machine) Finish(ctx context.Context, synth *ReportSynthesizer) (ConsultationReport, error) {
	m.finishMu.Lock()
	defer m.finishMu.Unlock()

	m.mu.Lock()
	if m.phase == PhaseReported && m.report != nil {
		rep := *m.report
		m.mu.Unlock()
		return rep, nil
	}
	if m.phase != PhaseStopped {
		m.mu.Unlock()
		return ConsultationReport{}, ErrInvalidTransition
	}
	snap := m.snapshotLocked()
	m.mu.Unlock()

	rep := synth.Synthesize(ctx, snap)

	// Phase and report advance together so no observer can see Reported
	// without a cached report.
	m.mu.Lock()
	m.phase = PhaseReported
	m.report = &rep
	m.mu.Unlock()

	m.emitPhase(PhaseReported)
	return rep, nil
}

// MarkCommitted records a successful persistence commit; the registry drops
// the machine afterwards.
func (m *Machine) MarkCommitted() {
	m.mu.Lock()
	m.committed = true
	m.mu.Unlock()
}

func (m *Machine) Committed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.committed
}

// Snapshot copies the current session state for read-only consumers.
func (m *Machine) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Machine) snapshotLocked() State {
	paused := make([]PausedInterval, len(m.paused))
	copy(paused, m.paused)
	insights := make([]Insight, len(m.insights))
	copy(insights, m.insights)

	return State{
		SessionID:       m.sessionID,
		DoctorID:        m.doctorID,
		PatientID:       m.patientID,
		Language:        m.language,
		Phase:           m.phase,
		StartedAt:       m.startedAt,
		StoppedAt:       m.stoppedAt,
		PausedIntervals: paused,
		Transcript:      m.buffer.All(),
		Insights:        insights,
		DoctorNotes:     strings.Join(m.notes, "\n"),
	}
}

func (m *Machine) emitPhase(p Phase) {
	m.emit(Event{Type: EventPhase, SessionID: m.sessionID, Phase: p})
}

func (m *Machine) emit(ev Event) {
	if m.notify != nil {
		m.notify(ev)
	}
}
