package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/vitalink/teleconsult/internal/services"
	"github.com/vitalink/teleconsult/internal/utils"
)

// PortalHandler serves the patient-facing chat. The token subject is the
// patient id; patients only ever see their own thread.
type PortalHandler struct {
	svc services.PortalService
}

func NewPortalHandler(svc services.PortalService) *PortalHandler {
	return &PortalHandler{svc: svc}
}

type PortalMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

func (h *PortalHandler) Send(c *gin.Context) {
	patientID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req PortalMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "PortalHandler.Send", "invalid request body", err))
		return
	}

	msg, reply, err := h.svc.SendMessage(c.Request.Context(), patientID, req.Content)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": msg, "reply": reply})
}

func (h *PortalHandler) History(c *gin.Context) {
	patientID, ok := requireUserID(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	rows, err := h.svc.History(c.Request.Context(), patientID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}
