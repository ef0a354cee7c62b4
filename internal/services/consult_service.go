package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/vitalink/teleconsult/internal/models"
	"github.com/vitalink/teleconsult/internal/notify"
	mongorepo "github.com/vitalink/teleconsult/internal/repositories/mongo"
	pgrepo "github.com/vitalink/teleconsult/internal/repositories/postgres"
	"github.com/vitalink/teleconsult/internal/session"
	"github.com/vitalink/teleconsult/internal/utils"
)

// EventChannel is the pub/sub channel carrying machine events for one
// session; the websocket layer subscribes to it.
func EventChannel(sessionID string) string { return "consult:" + sessionID + ":events" }

type ConsultService interface {
	StartSession(ctx context.Context, doctorID, patientID, language string) (session.State, error)
	Pause(ctx context.Context, sessionID, doctorID string) error
	Resume(ctx context.Context, sessionID, doctorID string) error
	Stop(ctx context.Context, sessionID, doctorID string) error
	AddNote(ctx context.Context, sessionID, doctorID, text string) error
	Snapshot(ctx context.Context, sessionID, doctorID string) (session.State, error)
	IngestSegment(ctx context.Context, sessionID string, seg session.Segment) error
	Finish(ctx context.Context, sessionID, doctorID string) (*models.Consultation, error)
}

type consultService struct {
	registry    *session.Registry
	insights    *session.InsightGenerator
	synth       *session.ReportSynthesizer
	committer   *session.Committer
	patients    pgrepo.PatientRepo
	transcripts mongorepo.TranscriptRepository
	rdb         *redis.Client
	notifier    notify.Notifier
	log         *logrus.Logger
	archiveTTL  time.Duration
}

type ConsultDeps struct {
	Registry    *session.Registry
	Insights    *session.InsightGenerator
	Synthesizer *session.ReportSynthesizer
	Committer   *session.Committer
	Patients    pgrepo.PatientRepo
	Transcripts mongorepo.TranscriptRepository
	Redis       *redis.Client
	Notifier    notify.Notifier
	Logger      *logrus.Logger
	ArchiveTTL  time.Duration
}

func NewConsultService(d ConsultDeps) ConsultService {
	if d.Logger == nil {
		d.Logger = logrus.New()
	}
	if d.ArchiveTTL <= 0 {
		d.ArchiveTTL = 72 * time.Hour
	}
	return &consultService{
		registry:    d.Registry,
		insights:    d.Insights,
		synth:       d.Synthesizer,
		committer:   d.Committer,
		patients:    d.Patients,
		transcripts: d.Transcripts,
		rdb:         d.Redis,
		notifier:    d.Notifier,
		log:         d.Logger,
		archiveTTL:  d.ArchiveTTL,
	}
}

func (s *consultService) StartSession(ctx context.Context, doctorID, patientID, language string) (session.State, error) {
	const op = "ConsultService.StartSession"

	if doctorID == "" || patientID == "" {
		return session.State{}, utils.E(utils.CodeInvalidArgument, op, "doctor_id and patient_id are required", nil)
	}

	patient, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return session.State{}, utils.E(utils.CodeNotFound, op, "patient not found", err)
		}
		return session.State{}, utils.E(utils.CodeInternal, op, "failed to load patient", err)
	}
	if patient.DoctorID != doctorID {
		return session.State{}, utils.E(utils.CodeForbidden, op, "patient belongs to another doctor", nil)
	}

	sessionID := uuid.NewString()
	m := session.New(session.Config{
		SessionID:  sessionID,
		DoctorID:   doctorID,
		PatientID:  patientID,
		Language:   language,
		Classifier: session.NewHeuristicClassifier(),
		Insights:   s.insights,
		Logger:     s.log,
		Notify:     s.eventSink(sessionID),
	})

	s.registry.Add(m)
	if err := m.Start(); err != nil {
		s.registry.Remove(sessionID)
		return session.State{}, s.sessionErr(op, err)
	}

	return m.Snapshot(), nil
}

func (s *consultService) Pause(ctx context.Context, sessionID, doctorID string) error {
	const op = "ConsultService.Pause"
	m, err := s.lookup(op, sessionID, doctorID)
	if err != nil {
		return err
	}
	return s.sessionErr(op, m.Pause())
}

func (s *consultService) Resume(ctx context.Context, sessionID, doctorID string) error {
	const op = "ConsultService.Resume"
	m, err := s.lookup(op, sessionID, doctorID)
	if err != nil {
		return err
	}
	return s.sessionErr(op, m.Resume())
}

func (s *consultService) Stop(ctx context.Context, sessionID, doctorID string) error {
	const op = "ConsultService.Stop"
	m, err := s.lookup(op, sessionID, doctorID)
	if err != nil {
		return err
	}
	return s.sessionErr(op, m.Stop())
}

func (s *consultService) AddNote(ctx context.Context, sessionID, doctorID, text string) error {
	const op = "ConsultService.AddNote"
	m, err := s.lookup(op, sessionID, doctorID)
	if err != nil {
		return err
	}
	return s.sessionErr(op, m.AddNote(text))
}

func (s *consultService) Snapshot(ctx context.Context, sessionID, doctorID string) (session.State, error) {
	const op = "ConsultService.Snapshot"
	m, err := s.lookup(op, sessionID, doctorID)
	if err != nil {
		return session.State{}, err
	}
	return m.Snapshot(), nil
}

// IngestSegment is the worker-pool entry point for finalized speech. The
// machine drops segments outside Recording on its own.
func (s *consultService) IngestSegment(ctx context.Context, sessionID string, seg session.Segment) error {
	const op = "ConsultService.IngestSegment"

	m, ok := s.registry.Get(sessionID)
	if !ok {
		return utils.E(utils.CodeNotFound, op, "session not found", nil)
	}
	m.HandleSegment(ctx, seg)
	return nil
}

// Finish reports a stopped session and commits it. On a persistence failure
// the machine stays registered with its cached report so the doctor can
// resubmit; nothing is discarded.
func (s *consultService) Finish(ctx context.Context, sessionID, doctorID string) (*models.Consultation, error) {
	const op = "ConsultService.Finish"

	m, err := s.lookup(op, sessionID, doctorID)
	if err != nil {
		return nil, err
	}

	rep, ferr := m.Finish(ctx, s.synth)
	if ferr != nil {
		return nil, s.sessionErr(op, ferr)
	}

	record, cerr := s.committer.Commit(ctx, m.Snapshot(), rep)
	if cerr != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to save consultation, please retry", cerr)
	}

	m.MarkCommitted()
	s.registry.Remove(sessionID)

	s.sendSummary(record, rep)
	return record, nil
}

// sendSummary delivers the patient-facing WhatsApp summary in the
// background. Best-effort only.
func (s *consultService) sendSummary(record *models.Consultation, rep session.ConsultationReport) {
	if s.notifier == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()

		patient, err := s.patients.GetByID(ctx, record.PatientID)
		if err != nil || patient.Phone == "" {
			return
		}

		text := notify.FormatConsultationSummary(
			patient.FullName, rep.PatientSummary, rep.Diagnosis, rep.Recommendations, rep.FollowUpDate)
		if err := s.notifier.SendText(ctx, patient.Phone, text); err != nil {
			s.log.WithError(err).WithField("consultation_id", record.ID).
				Warn("whatsapp summary delivery failed")
		}
	}()
}

// eventSink publishes machine events to Redis pub/sub and mirrors transcript
// entries into the Mongo archive. Both paths are best-effort; the machine is
// never blocked on them.
func (s *consultService) eventSink(sessionID string) func(session.Event) {
	channel := EventChannel(sessionID)

	return func(ev session.Event) {
		payload, err := json.Marshal(ev)
		if err != nil {
			return
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if s.rdb != nil {
				if err := s.rdb.Publish(ctx, channel, payload).Err(); err != nil {
					s.log.WithError(err).WithField("session_id", sessionID).
						Debug("event publish failed")
				}
			}

			if ev.Type == session.EventTranscript && ev.Entry != nil && s.transcripts != nil {
				doc := &models.TranscriptArchive{
					SessionID:  sessionID,
					EntryID:    ev.Entry.ID,
					Speaker:    string(ev.Entry.Speaker),
					Text:       ev.Entry.Text,
					Confidence: ev.Entry.Confidence,
					CapturedAt: ev.Entry.CapturedAt,
					ExpiresAt:  time.Now().UTC().Add(s.archiveTTL),
				}
				if ev.Entry.AudioRef != "" {
					doc.AudioPath = &ev.Entry.AudioRef
				}
				if err := s.transcripts.InsertEntry(ctx, doc); err != nil {
					s.log.WithError(err).WithField("session_id", sessionID).
						Warn("transcript archive insert failed")
				}
			}
		}()
	}
}

func (s *consultService) lookup(op, sessionID, doctorID string) (*session.Machine, error) {
	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	m, ok := s.registry.Get(sessionID)
	if !ok {
		return nil, utils.E(utils.CodeNotFound, op, "session not found", nil)
	}
	if doctorID != "" && m.DoctorID() != doctorID {
		return nil, utils.E(utils.CodeForbidden, op, "forbidden", nil)
	}
	return m, nil
}

func (s *consultService) sessionErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, session.ErrInvalidTransition):
		return utils.E(utils.CodeConflict, op, "action not allowed in current phase", err)
	case errors.Is(err, session.ErrNoPatientBound):
		return utils.E(utils.CodeInvalidArgument, op, "a patient must be bound before starting", err)
	default:
		return utils.E(utils.CodeInternal, op, "session error", err)
	}
}
