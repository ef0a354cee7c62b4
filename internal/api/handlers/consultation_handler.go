package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	mongorepo "github.com/vitalink/teleconsult/internal/repositories/mongo"
	pgrepo "github.com/vitalink/teleconsult/internal/repositories/postgres"
	"github.com/vitalink/teleconsult/internal/services"
	"github.com/vitalink/teleconsult/internal/storage"
	"github.com/vitalink/teleconsult/internal/utils"
)

type ConsultationHandler struct {
	consultations pgrepo.ConsultationRepo
	doctors       services.DoctorService
	transcripts   mongorepo.TranscriptRepository
	signer        storage.Signer
}

func NewConsultationHandler(
	consultations pgrepo.ConsultationRepo,
	doctors services.DoctorService,
	transcripts mongorepo.TranscriptRepository,
	signer storage.Signer,
) *ConsultationHandler {
	return &ConsultationHandler{
		consultations: consultations,
		doctors:       doctors,
		transcripts:   transcripts,
		signer:        signer,
	}
}

func (h *ConsultationHandler) List(c *gin.Context) {
	doctorID, ok := requireUserID(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	rows, err := h.consultations.ListByDoctor(c.Request.Context(), doctorID, limit)
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, "ConsultationHandler.List", "failed to list consultations", err))
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *ConsultationHandler) Get(c *gin.Context) {
	doctorID, ok := requireUserID(c)
	if !ok {
		return
	}

	row, err := h.consultations.GetByID(c.Request.Context(), c.Param("consultation_id"))
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			writeError(c, utils.E(utils.CodeNotFound, "ConsultationHandler.Get", "consultation not found", err))
			return
		}
		writeError(c, utils.E(utils.CodeInternal, "ConsultationHandler.Get", "failed to load consultation", err))
		return
	}
	if row.DoctorID != doctorID {
		writeError(c, utils.E(utils.CodeForbidden, "ConsultationHandler.Get", "forbidden", nil))
		return
	}
	c.JSON(http.StatusOK, row)
}

type transcriptEntryResponse struct {
	EntryID    string    `json:"entry_id"`
	Speaker    string    `json:"speaker"`
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence"`
	CapturedAt time.Time `json:"captured_at"`
	AudioURL   string    `json:"audio_url,omitempty"`
}

// Transcript returns the archived transcript of a finished consultation.
// Audio links are short-lived signed URLs; entries past the archive TTL
// are gone and the transcript may be empty.
func (h *ConsultationHandler) Transcript(c *gin.Context) {
	const op = "ConsultationHandler.Transcript"

	doctorID, ok := requireUserID(c)
	if !ok {
		return
	}

	row, err := h.consultations.GetByID(c.Request.Context(), c.Param("consultation_id"))
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			writeError(c, utils.E(utils.CodeNotFound, op, "consultation not found", err))
			return
		}
		writeError(c, utils.E(utils.CodeInternal, op, "failed to load consultation", err))
		return
	}
	if row.DoctorID != doctorID {
		writeError(c, utils.E(utils.CodeForbidden, op, "forbidden", nil))
		return
	}

	entries, err := h.transcripts.ListBySession(c.Request.Context(), row.SessionID, 0)
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, op, "failed to load transcript archive", err))
		return
	}

	out := make([]transcriptEntryResponse, 0, len(entries))
	for _, e := range entries {
		item := transcriptEntryResponse{
			EntryID:    e.EntryID,
			Speaker:    e.Speaker,
			Text:       e.Text,
			Confidence: e.Confidence,
			CapturedAt: e.CapturedAt,
		}
		if e.AudioPath != nil && h.signer != nil {
			if object := gcsObjectName(*e.AudioPath); object != "" {
				if url, serr := h.signer.SignedGetURL(c.Request.Context(), object, 15*time.Minute); serr == nil {
					item.AudioURL = url
				}
			}
		}
		out = append(out, item)
	}
	c.JSON(http.StatusOK, gin.H{"session_id": row.SessionID, "entries": out})
}

// gcsObjectName extracts the object name from a gs://bucket/object path.
func gcsObjectName(path string) string {
	rest, ok := strings.CutPrefix(path, "gs://")
	if !ok {
		return ""
	}
	_, object, ok := strings.Cut(rest, "/")
	if !ok {
		return ""
	}
	return object
}

// WeeklyStats returns the authenticated doctor's analytics for the week
// containing ?date=YYYY-MM-DD (default: current week).
func (h *ConsultationHandler) WeeklyStats(c *gin.Context) {
	doctorID, ok := requireUserID(c)
	if !ok {
		return
	}

	week := time.Now().UTC()
	if d := c.Query("date"); d != "" {
		parsed, err := time.Parse("2006-01-02", d)
		if err != nil {
			writeError(c, utils.E(utils.CodeInvalidArgument, "ConsultationHandler.WeeklyStats", "invalid date, want YYYY-MM-DD", err))
			return
		}
		week = parsed
	}

	stats, err := h.doctors.WeeklyStats(c.Request.Context(), doctorID, week)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
