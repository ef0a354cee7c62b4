package config

import (
	"context"
	"errors"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func EnsureMongoIndexes() error {
	if MongoClient == nil {
		return errors.New("MongoClient is nil; call InitMongo() first")
	}

	dbName := os.Getenv("MONGO_DB")
	if dbName == "" {
		dbName = "teleconsult"
	}
	db := MongoClient.Database(dbName)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// transcript_archive indexes
	archive := db.Collection("transcript_archive")
	_, err := archive.Indexes().CreateMany(ctx, []mongo.IndexModel{
		// 1) TTL index: expire at ExpiresAt (must be Date)
		{
			Keys: bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().
				SetName("ttl_expires_at").
				SetExpireAfterSeconds(0),
		},
		// 2) One archive row per transcript entry
		{
			Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "entry_id", Value: 1}},
			Options: options.Index().
				SetName("uniq_session_entry").
				SetUnique(true),
		},
		// 3) Chronological reads per session
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}, {Key: "captured_at", Value: 1}},
			Options: options.Index().SetName("by_session_captured"),
		},
	})
	return err
}
