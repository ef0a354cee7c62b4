package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/vitalink/teleconsult/internal/api/handlers"
	"github.com/vitalink/teleconsult/internal/api/middleware"
)

type Deps struct {
	Auth         *handlers.AuthHandler
	Session      *handlers.SessionHandler
	Consultation *handlers.ConsultationHandler
	Patient      *handlers.PatientHandler
	Portal       *handlers.PortalHandler
	WS           *handlers.WSHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	// Public auth
	r.POST("/auth/register", d.Auth.Register)
	r.POST("/auth/login", d.Auth.Login)

	// Protected routes (JWT)
	auth := r.Group("/")
	auth.Use(middleware.JWTAuth())

	// Doctor-side consultation flow
	doctor := auth.Group("/")
	doctor.Use(middleware.RequireRole("doctor", "admin"))

	doctor.GET("/me", d.Auth.Me)

	doctor.POST("/session/start", d.Session.Start)
	doctor.GET("/session/:session_id", d.Session.Get)
	doctor.POST("/session/:session_id/pause", d.Session.Pause)
	doctor.POST("/session/:session_id/resume", d.Session.Resume)
	doctor.POST("/session/:session_id/stop", d.Session.Stop)
	doctor.POST("/session/:session_id/note", d.Session.AddNote)
	doctor.POST("/session/:session_id/finish", d.Session.Finish)

	doctor.GET("/consultations", d.Consultation.List)
	doctor.GET("/consultations/:consultation_id", d.Consultation.Get)
	doctor.GET("/consultations/:consultation_id/transcript", d.Consultation.Transcript)
	doctor.GET("/analytics/week", d.Consultation.WeeklyStats)

	doctor.POST("/patients", d.Patient.Create)
	doctor.GET("/patients", d.Patient.List)
	doctor.GET("/patients/:patient_id", d.Patient.Get)
	doctor.POST("/patients/:patient_id/portal-token", d.Patient.PortalToken)

	// WebSocket (doctor streams audio in, events out)
	doctor.GET("/ws/session/:session_id", d.WS.ConsultWS)

	// Patient portal
	portal := auth.Group("/portal")
	portal.Use(middleware.RequireRole("patient"))
	portal.POST("/messages", d.Portal.Send)
	portal.GET("/messages", d.Portal.History)
}
