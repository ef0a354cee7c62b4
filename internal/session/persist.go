package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vitalink/teleconsult/internal/models"
)

// perConsultationRevenue is the flat amount credited to a doctor's weekly
// analytics per committed consultation.
const perConsultationRevenue = 150.0

// ConsultationStore is the slice of the repository layer the committer needs.
type ConsultationStore interface {
	Create(ctx context.Context, c *models.Consultation) error
}

// AnalyticsStore upserts per-week doctor aggregates. Failures here are
// best-effort and never block a commit.
type AnalyticsStore interface {
	UpsertWeek(ctx context.Context, doctorID string, weekStart time.Time, delta models.AnalyticsDelta) error
}

// Committer maps a reported session plus its report into a durable
// consultation record. It does not retry: the caller resubmits on
// ErrPersistenceFailed, so a flaky store cannot silently duplicate records.
type Committer struct {
	consultations ConsultationStore
	analytics     AnalyticsStore
	log           *logrus.Logger
}

func NewCommitter(consultations ConsultationStore, analytics AnalyticsStore, log *logrus.Logger) *Committer {
	if log == nil {
		log = logrus.New()
	}
	return &Committer{consultations: consultations, analytics: analytics, log: log}
}

func (c *Committer) Commit(ctx context.Context, st State, rep ConsultationReport) (*models.Consultation, error) {
	insights := make([]string, 0, len(st.Insights))
	for _, in := range st.Insights {
		insights = append(insights, in.Content)
	}

	prescriptions, _ := json.Marshal(emptyIfNil(rep.Prescriptions))
	recommendations, _ := json.Marshal(emptyIfNil(rep.Recommendations))

	followUp := rep.FollowUpDate
	record := &models.Consultation{
		ID:        uuid.NewString(),
		SessionID: st.SessionID,
		DoctorID:  st.DoctorID,
		PatientID: st.PatientID,

		Transcript:  RenderLines(st.Transcript),
		DoctorNotes: st.DoctorNotes,
		Insights:    strings.Join(insights, "\n"),

		PatientSummary:  rep.PatientSummary,
		DoctorSummary:   rep.DoctorSummary,
		Diagnosis:       rep.Diagnosis,
		Prescriptions:   prescriptions,
		Recommendations: recommendations,

		FollowUpDate:    &followUp,
		DurationMinutes: int(rep.Duration.Minutes()),
		Status:          models.ConsultationCompleted,
		CreatedAt:       time.Now().UTC(),
	}

	if err := c.consultations.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}

	if c.analytics != nil {
		week := models.WeekStart(st.StoppedAt)
		delta := models.AnalyticsDelta{
			PatientsSeen:      1,
			ConsultationHours: rep.Duration.Hours(),
			Revenue:           perConsultationRevenue,
		}
		if err := c.analytics.UpsertWeek(ctx, st.DoctorID, week, delta); err != nil {
			c.log.WithError(err).WithField("doctor_id", st.DoctorID).
				Warn("weekly analytics update failed")
		}
	}

	return record, nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
