package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/sirupsen/logrus"

	"github.com/vitalink/teleconsult/internal/models"
	"github.com/vitalink/teleconsult/internal/providers/ai"
	"github.com/vitalink/teleconsult/internal/providers/tts"
	pgrepo "github.com/vitalink/teleconsult/internal/repositories/postgres"
	"github.com/vitalink/teleconsult/internal/utils"
)

// portalFallbackReply is the single deterministic answer used when the model
// is unavailable. Patients always get a response, never an error page.
const portalFallbackReply = "I could not process your message right now. " +
	"Your care team has been notified; please try again shortly or contact your doctor directly if this is urgent."

// recallLimit caps how many semantically similar past messages are folded
// into the reply prompt.
const recallLimit = 3

type PortalService interface {
	SendMessage(ctx context.Context, patientID, content string) (*models.PortalMessage, *models.PortalMessage, error)
	History(ctx context.Context, patientID string, limit int) ([]models.PortalMessage, error)
}

type portalService struct {
	messages      pgrepo.PortalRepo
	consultations pgrepo.ConsultationRepo
	chat          ai.ChatService
	embed         ai.EmbeddingService
	voice         tts.Provider
	log           *logrus.Logger
}

func NewPortalService(messages pgrepo.PortalRepo, consultations pgrepo.ConsultationRepo, chat ai.ChatService, embed ai.EmbeddingService, voice tts.Provider, log *logrus.Logger) PortalService {
	if log == nil {
		log = logrus.New()
	}
	return &portalService{
		messages:      messages,
		consultations: consultations,
		chat:          chat,
		embed:         embed,
		voice:         voice,
		log:           log,
	}
}

// SendMessage stores the patient's message, generates the assistant reply
// grounded on the latest completed consultation and semantically similar
// past messages, and stores that too. The patient message and the reply are
// both returned. Embedding is best-effort: a failed embed never blocks the
// exchange, the rows are simply stored without a vector.
func (s *portalService) SendMessage(ctx context.Context, patientID, content string) (*models.PortalMessage, *models.PortalMessage, error) {
	const op = "PortalService.SendMessage"

	if patientID == "" || content == "" {
		return nil, nil, utils.E(utils.CodeInvalidArgument, op, "patient_id and content are required", nil)
	}

	// Recall runs before the patient message is stored so the query cannot
	// match itself.
	queryVec := s.embedText(ctx, content)
	replyText := s.generateReply(ctx, patientID, content, queryVec)

	in := &models.PortalMessage{
		ID:        uuid.NewString(),
		PatientID: patientID,
		Role:      "patient",
		Content:   content,
		Embedding: queryVec,
		Timestamp: time.Now().UTC(),
	}
	if err := s.messages.Insert(ctx, in); err != nil {
		return nil, nil, utils.E(utils.CodeInternal, op, "failed to store message", err)
	}

	out := &models.PortalMessage{
		ID:        uuid.NewString(),
		PatientID: patientID,
		Role:      "assistant",
		Content:   replyText,
		Embedding: s.embedText(ctx, replyText),
		Timestamp: time.Now().UTC(),
	}

	if s.voice != nil {
		if ref, err := s.voice.Synthesize(ctx, replyText, "", ""); err == nil {
			out.AudioRef = ref
		} else {
			s.log.WithError(err).Debug("portal voice synthesis failed")
		}
	}

	if err := s.messages.Insert(ctx, out); err != nil {
		return nil, nil, utils.E(utils.CodeInternal, op, "failed to store reply", err)
	}
	return in, out, nil
}

func (s *portalService) History(ctx context.Context, patientID string, limit int) ([]models.PortalMessage, error) {
	const op = "PortalService.History"

	if patientID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "patient_id is required", nil)
	}
	rows, err := s.messages.LatestN(ctx, patientID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list messages", err)
	}
	return rows, nil
}

// embedText returns nil when no embedder is configured or the call fails,
// so the column stays NULL instead of receiving a zero-length vector.
func (s *portalService) embedText(ctx context.Context, text string) *pgvector.Vector {
	if s.embed == nil || text == "" {
		return nil
	}
	vals, err := s.embed.Embed(ctx, text)
	if err != nil || len(vals) == 0 {
		if err != nil {
			s.log.WithError(err).Debug("portal embedding failed")
		}
		return nil
	}
	v := pgvector.NewVector(vals)
	return &v
}

func (s *portalService) generateReply(ctx context.Context, patientID, content string, queryVec *pgvector.Vector) string {
	if s.chat == nil {
		return portalFallbackReply
	}

	prompt := "You are a patient-portal health assistant. Answer briefly and kindly. " +
		"Do not give new diagnoses; refer clinical questions to the doctor.\n\n"

	if latest, err := s.consultations.LatestByPatient(ctx, patientID); err == nil {
		var recs []string
		_ = json.Unmarshal(latest.Recommendations, &recs)
		prompt += fmt.Sprintf("Latest consultation context:\nDiagnosis: %s\nRecommendations: %v\n\n",
			latest.Diagnosis, recs)
	} else if !errors.Is(err, utils.ErrNotFound) {
		s.log.WithError(err).Debug("portal context lookup failed")
	}

	if queryVec != nil {
		if related, err := s.messages.SearchSimilar(ctx, patientID, queryVec.Slice(), recallLimit); err == nil && len(related) > 0 {
			prompt += "Related earlier portal messages:\n"
			for _, r := range related {
				prompt += fmt.Sprintf("- [%s] %s\n", r.Role, r.Content)
			}
			prompt += "\n"
		} else if err != nil {
			s.log.WithError(err).Debug("portal similarity recall failed")
		}
	}

	prompt += "Patient says: " + content

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	reply, err := s.chat.Reply(ctx, prompt)
	if err != nil {
		s.log.WithError(err).WithField("patient_id", patientID).
			Warn("portal reply generation failed, using fallback")
		return portalFallbackReply
	}
	return reply
}
