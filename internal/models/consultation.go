package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	ConsultationCompleted = "completed"
)

// Consultation is the durable record produced when a session commits.
type Consultation struct {
	ID        string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	SessionID string `gorm:"column:session_id;type:uuid;uniqueIndex" json:"session_id"`
	DoctorID  string `gorm:"column:doctor_id;type:uuid;index" json:"doctor_id"`
	PatientID string `gorm:"column:patient_id;type:uuid;index" json:"patient_id"`

	Transcript  string `gorm:"column:transcript;type:text" json:"transcript"`
	DoctorNotes string `gorm:"column:doctor_notes;type:text" json:"doctor_notes"`
	Insights    string `gorm:"column:insights;type:text" json:"insights"`

	PatientSummary  string         `gorm:"column:patient_summary;type:text" json:"patient_summary"`
	DoctorSummary   string         `gorm:"column:doctor_summary;type:text" json:"doctor_summary"`
	Diagnosis       string         `gorm:"column:diagnosis;type:text" json:"diagnosis"`
	Prescriptions   datatypes.JSON `gorm:"column:prescriptions;type:jsonb" json:"prescriptions"`
	Recommendations datatypes.JSON `gorm:"column:recommendations;type:jsonb" json:"recommendations"`

	FollowUpDate    *time.Time `gorm:"column:follow_up_date;type:date" json:"follow_up_date,omitempty"`
	DurationMinutes int        `gorm:"column:duration_minutes" json:"duration_minutes"`
	Status          string     `gorm:"column:status;type:text;index" json:"status"`
	CreatedAt       time.Time  `gorm:"column:created_at;type:timestamptz;index" json:"created_at"`
}

func (Consultation) TableName() string { return "consultations" }
