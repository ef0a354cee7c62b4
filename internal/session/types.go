package session

import (
	"errors"
	"time"
)

// Sentinel errors for the consultation lifecycle. Handlers translate these
// into API error codes; everything else stays internal to the package.
var (
	ErrInvalidTransition = errors.New("invalid phase transition")
	ErrNoPatientBound    = errors.New("no patient bound to session")
	ErrInvalidEntry      = errors.New("invalid transcript entry")
	ErrPersistenceFailed = errors.New("consultation persistence failed")
)

type Speaker string

const (
	SpeakerDoctor  Speaker = "doctor"
	SpeakerPatient Speaker = "patient"
)

type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseRecording Phase = "recording"
	PhasePaused    Phase = "paused"
	PhaseStopped   Phase = "stopped"
	PhaseReported  Phase = "reported"
)

// Segment is one finalized unit of recognized speech as delivered by the
// capture source (worker pool or websocket), before attribution.
type Segment struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	AudioRef   string  `json:"audio_ref,omitempty"` // storage object of the source chunk, when archived
}

// TranscriptEntry is immutable once appended to the buffer.
type TranscriptEntry struct {
	ID         string    `json:"id"`
	Speaker    Speaker   `json:"speaker"`
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence"`
	CapturedAt time.Time `json:"captured_at"`
	AudioRef   string    `json:"audio_ref,omitempty"`
}

type InsightKind string

const (
	InsightDiagnostic   InsightKind = "diagnostic"
	InsightTreatment    InsightKind = "treatment"
	InsightClinicalNote InsightKind = "clinical_note"
	InsightWarning      InsightKind = "warning"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ContextRange is the inclusive span of transcript indexes that produced an
// insight. Kept for auditability; never points past the buffer length at
// generation time.
type ContextRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Insight is an AI-derived suggestion tied to a point in the transcript.
// Arrival order is not correlated with transcript order; consumers sort by
// GeneratedAt for display.
type Insight struct {
	ID           string       `json:"id"`
	Kind         InsightKind  `json:"kind"`
	Content      string       `json:"content"`
	Confidence   float64      `json:"confidence"`
	Priority     Priority     `json:"priority"`
	GeneratedAt  time.Time    `json:"generated_at"`
	ContextRange ContextRange `json:"context_range"`
}

// PausedInterval records one pause window. End is zero while the pause is
// still open.
type PausedInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// State is a point-in-time copy of a consultation session, safe to read
// without holding the machine's lock. The machine owns the live state; this
// snapshot is what the report synthesizer and persistence layer consume.
type State struct {
	SessionID       string            `json:"session_id"`
	DoctorID        string            `json:"doctor_id"`
	PatientID       string            `json:"patient_id"`
	Language        string            `json:"language"`
	Phase           Phase             `json:"phase"`
	StartedAt       time.Time         `json:"started_at"`
	StoppedAt       time.Time         `json:"stopped_at"`
	PausedIntervals []PausedInterval  `json:"paused_intervals"`
	Transcript      []TranscriptEntry `json:"transcript"`
	Insights        []Insight         `json:"insights"`
	DoctorNotes     string            `json:"doctor_notes"`
}

// Elapsed is wall time from start to the given instant minus completed pause
// windows. An open pause is counted up to the given instant. Never negative.
func (s State) Elapsed(at time.Time) time.Duration {
	if s.StartedAt.IsZero() || at.Before(s.StartedAt) {
		return 0
	}
	total := at.Sub(s.StartedAt)
	for _, p := range s.PausedIntervals {
		end := p.End
		if end.IsZero() || end.After(at) {
			end = at
		}
		if end.After(p.Start) {
			total -= end.Sub(p.Start)
		}
	}
	if total < 0 {
		return 0
	}
	return total
}

// ConsultationReport is the write-once output of a terminal session.
type ConsultationReport struct {
	PatientSummary  string        `json:"patient_summary"`
	DoctorSummary   string        `json:"doctor_summary"`
	Diagnosis       string        `json:"diagnosis"`
	Prescriptions   []string      `json:"prescriptions"`
	Recommendations []string      `json:"recommendations"`
	FollowUpDate    time.Time     `json:"follow_up_date"`
	Duration        time.Duration `json:"duration"`
}
