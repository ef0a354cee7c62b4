package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vitalink/teleconsult/internal/providers/ai"
)

// followUpDefault applies when the model omits a follow-up date.
const followUpDefault = 7 * 24 * time.Hour

// ReportSynthesizer reduces a terminal session into a ConsultationReport.
// The baseline is computed before the AI reducer is attempted, so a
// consultation always ends with a usable report even when the model is down.
type ReportSynthesizer struct {
	svc     ai.ReportService
	log     *logrus.Logger
	timeout time.Duration
}

func NewReportSynthesizer(svc ai.ReportService, log *logrus.Logger) *ReportSynthesizer {
	if log == nil {
		log = logrus.New()
	}
	return &ReportSynthesizer{svc: svc, log: log, timeout: defaultAITimeout}
}

// Synthesize never fails. A well-formed AI response replaces the baseline
// summary fields wholesale; a failed or partial response keeps the baseline
// untouched, with no field-by-field merging.
func (s *ReportSynthesizer) Synthesize(ctx context.Context, st State) ConsultationReport {
	elapsed := st.Elapsed(st.StoppedAt)
	rep := s.baseline(st, elapsed)

	if s.svc == nil {
		return rep
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	insights := make([]string, 0, len(st.Insights))
	for _, in := range st.Insights {
		insights = append(insights, in.Content)
	}

	resp, err := s.svc.Reduce(ctx, ai.ReduceRequest{
		Transcript: RenderLines(st.Transcript),
		Insights:   insights,
		Notes:      st.DoctorNotes,
	})
	if err != nil {
		s.log.WithError(err).WithField("session_id", st.SessionID).
			Warn("report reducer unavailable, keeping baseline report")
		return rep
	}
	if resp == nil || resp.PatientSummary == "" || resp.DoctorSummary == "" || resp.Diagnosis == "" {
		s.log.WithField("session_id", st.SessionID).
			Warn("report reducer returned partial response, keeping baseline report")
		return rep
	}

	rep.PatientSummary = resp.PatientSummary
	rep.DoctorSummary = resp.DoctorSummary
	rep.Diagnosis = resp.Diagnosis
	rep.Prescriptions = resp.Prescriptions
	rep.Recommendations = resp.Recommendations
	if t, perr := time.Parse("2006-01-02", resp.FollowUpDate); perr == nil {
		rep.FollowUpDate = t
	}
	return rep
}

func (s *ReportSynthesizer) baseline(st State, elapsed time.Duration) ConsultationReport {
	minutes := int(elapsed.Minutes())

	doctorSummary := fmt.Sprintf(
		"Consultation of %d minute(s) with %d transcript segment(s) and %d recorded insight(s).",
		minutes, len(st.Transcript), len(st.Insights),
	)
	if notes := strings.TrimSpace(st.DoctorNotes); notes != "" {
		doctorSummary += " Doctor notes: " + notes
	}

	return ConsultationReport{
		PatientSummary: fmt.Sprintf(
			"You had a %d minute consultation with your doctor. A full summary will follow after review.",
			minutes,
		),
		DoctorSummary:   doctorSummary,
		Diagnosis:       "Pending doctor review of consultation transcript.",
		Prescriptions:   []string{},
		Recommendations: []string{"Schedule a follow-up visit if symptoms persist or worsen."},
		FollowUpDate:    st.StoppedAt.Add(followUpDefault),
		Duration:        elapsed,
	}
}
