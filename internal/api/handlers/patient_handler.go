package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vitalink/teleconsult/internal/services"
	"github.com/vitalink/teleconsult/internal/utils"
)

type PatientHandler struct {
	svc services.PatientService
}

func NewPatientHandler(svc services.PatientService) *PatientHandler {
	return &PatientHandler{svc: svc}
}

type CreatePatientRequest struct {
	FullName    string `json:"full_name" binding:"required"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	DateOfBirth string `json:"date_of_birth"` // YYYY-MM-DD
}

func (h *PatientHandler) Create(c *gin.Context) {
	doctorID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req CreatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "PatientHandler.Create", "invalid request body", err))
		return
	}

	var dob *time.Time
	if req.DateOfBirth != "" {
		parsed, err := time.Parse("2006-01-02", req.DateOfBirth)
		if err != nil {
			writeError(c, utils.E(utils.CodeInvalidArgument, "PatientHandler.Create", "invalid date_of_birth, want YYYY-MM-DD", err))
			return
		}
		dob = &parsed
	}

	patient, err := h.svc.Create(c.Request.Context(), doctorID, req.FullName, req.Phone, req.Email, dob)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, patient)
}

func (h *PatientHandler) List(c *gin.Context) {
	doctorID, ok := requireUserID(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	rows, err := h.svc.ListByDoctor(c.Request.Context(), doctorID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// PortalToken issues a portal access token for one of the doctor's patients.
func (h *PatientHandler) PortalToken(c *gin.Context) {
	doctorID, ok := requireUserID(c)
	if !ok {
		return
	}

	token, err := h.svc.PortalToken(c.Request.Context(), doctorID, c.Param("patient_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (h *PatientHandler) Get(c *gin.Context) {
	doctorID, ok := requireUserID(c)
	if !ok {
		return
	}

	patient, err := h.svc.Get(c.Request.Context(), c.Param("patient_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if patient.DoctorID != doctorID {
		writeError(c, utils.E(utils.CodeForbidden, "PatientHandler.Get", "forbidden", nil))
		return
	}
	c.JSON(http.StatusOK, patient)
}
