package mongo

import (
	"context"
	"time"

	"github.com/vitalink/teleconsult/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type TranscriptRepository interface {
	InsertEntry(ctx context.Context, e *models.TranscriptArchive) error
	ListBySession(ctx context.Context, sessionID string, limit int64) ([]models.TranscriptArchive, error)
}

type transcriptRepo struct {
	col *mongo.Collection
}

func NewTranscriptRepo(db *mongo.Database) TranscriptRepository {
	return &transcriptRepo{col: db.Collection("transcript_archive")}
}

func (r *transcriptRepo) InsertEntry(ctx context.Context, e *models.TranscriptArchive) error {
	if e.CapturedAt.IsZero() {
		e.CapturedAt = time.Now().UTC()
	}
	_, err := r.col.InsertOne(ctx, e)
	return err
}

func (r *transcriptRepo) ListBySession(ctx context.Context, sessionID string, limit int64) ([]models.TranscriptArchive, error) {
	if limit <= 0 {
		limit = 500
	}

	cur, err := r.col.Find(ctx,
		bson.M{"session_id": sessionID},
		options.Find().
			SetSort(bson.D{{Key: "captured_at", Value: 1}}).
			SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.TranscriptArchive
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
