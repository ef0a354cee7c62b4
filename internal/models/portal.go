package models

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// PortalMessage is one patient-portal chat turn.
type PortalMessage struct {
	ID        string           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	PatientID string           `gorm:"column:patient_id;type:uuid;index" json:"patient_id"`
	Role      string           `gorm:"column:role;type:text" json:"role"` // "patient" | "assistant"
	Content   string           `gorm:"column:content;type:text" json:"content"`
	AudioRef  string           `gorm:"column:audio_ref;type:text" json:"audio_ref,omitempty"`
	Embedding *pgvector.Vector `gorm:"column:embedding;type:vector(768)" json:"-"`
	Metadata  datatypes.JSON   `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	Timestamp time.Time        `gorm:"column:timestamp;type:timestamptz;index" json:"timestamp"`
}

func (PortalMessage) TableName() string { return "portal_messages" }
