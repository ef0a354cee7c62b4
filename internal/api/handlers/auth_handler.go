package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vitalink/teleconsult/internal/services"
	"github.com/vitalink/teleconsult/internal/utils"
)

type AuthHandler struct {
	doctors services.DoctorService
}

func NewAuthHandler(doctors services.DoctorService) *AuthHandler {
	return &AuthHandler{doctors: doctors}
}

type RegisterRequest struct {
	Email     string `json:"email" binding:"required"`
	Password  string `json:"password" binding:"required"`
	FullName  string `json:"full_name" binding:"required"`
	Specialty string `json:"specialty"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "AuthHandler.Register", "invalid request body", err))
		return
	}

	doctor, err := h.doctors.Register(c.Request.Context(), req.Email, req.Password, req.FullName, req.Specialty)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, doctor)
}

// Me returns the authenticated doctor's profile.
func (h *AuthHandler) Me(c *gin.Context) {
	doctorID, ok := requireUserID(c)
	if !ok {
		return
	}

	doctor, err := h.doctors.Get(c.Request.Context(), doctorID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doctor)
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token    string `json:"token"`
	DoctorID string `json:"doctor_id"`
	FullName string `json:"full_name"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "AuthHandler.Login", "invalid request body", err))
		return
	}

	token, doctor, err := h.doctors.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Token:    token,
		DoctorID: doctor.ID,
		FullName: doctor.FullName,
	})
}
