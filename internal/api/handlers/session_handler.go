package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vitalink/teleconsult/internal/services"
	"github.com/vitalink/teleconsult/internal/utils"
)

// SessionHandler drives a live consultation's lifecycle over HTTP. Audio
// flows through the websocket; these endpoints only move the state machine.
type SessionHandler struct {
	svc services.ConsultService
}

func NewSessionHandler(svc services.ConsultService) *SessionHandler {
	return &SessionHandler{svc: svc}
}

type StartSessionRequest struct {
	PatientID string `json:"patient_id" binding:"required"`
	Language  string `json:"language"`
}

func (h *SessionHandler) Start(c *gin.Context) {
	doctorID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "SessionHandler.Start", "invalid request body", err))
		return
	}

	state, err := h.svc.StartSession(c.Request.Context(), doctorID, req.PatientID, req.Language)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": state.SessionID,
		"phase":      state.Phase,
		"started_at": state.StartedAt,
	})
}

func (h *SessionHandler) Pause(c *gin.Context) {
	h.transition(c, h.svc.Pause)
}

func (h *SessionHandler) Resume(c *gin.Context) {
	h.transition(c, h.svc.Resume)
}

func (h *SessionHandler) Stop(c *gin.Context) {
	h.transition(c, h.svc.Stop)
}

type NoteRequest struct {
	Text string `json:"text" binding:"required"`
}

func (h *SessionHandler) AddNote(c *gin.Context) {
	doctorID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "SessionHandler.AddNote", "invalid request body", err))
		return
	}

	if err := h.svc.AddNote(c.Request.Context(), c.Param("session_id"), doctorID, req.Text); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *SessionHandler) Get(c *gin.Context) {
	doctorID, ok := requireUserID(c)
	if !ok {
		return
	}

	state, err := h.svc.Snapshot(c.Request.Context(), c.Param("session_id"), doctorID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// Finish reports a stopped session and persists the consultation record.
// On a 503 the client resubmits; session data survives until commit succeeds.
func (h *SessionHandler) Finish(c *gin.Context) {
	doctorID, ok := requireUserID(c)
	if !ok {
		return
	}

	record, err := h.svc.Finish(c.Request.Context(), c.Param("session_id"), doctorID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *SessionHandler) transition(c *gin.Context, fn func(ctx context.Context, sessionID, doctorID string) error) {
	doctorID, ok := requireUserID(c)
	if !ok {
		return
	}

	if err := fn(c.Request.Context(), c.Param("session_id"), doctorID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
