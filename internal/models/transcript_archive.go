package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TranscriptArchive is the per-entry Mongo mirror of a live session's
// transcript, written best-effort as the machine emits entries. Rows expire
// via TTL once the durable consultation record exists.
type TranscriptArchive struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID string             `bson:"session_id" json:"session_id"`
	EntryID   string             `bson:"entry_id" json:"entry_id"`

	Speaker    string  `bson:"speaker" json:"speaker"`
	Text       string  `bson:"text" json:"text"`
	Confidence float64 `bson:"confidence" json:"confidence"`

	AudioPath *string `bson:"audio_path,omitempty" json:"audio_path,omitempty"` // GCS object of the source chunk

	CapturedAt time.Time `bson:"captured_at" json:"captured_at"`
	ExpiresAt  time.Time `bson:"expires_at" json:"expires_at"` // for TTL index
}
