package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore keeps sessions in a collection with a TTL index on expires_at.
type MongoStore struct {
	col *mongo.Collection
}

type mongoSession struct {
	ID        string    `bson:"_id"`
	UserID    int64     `bson:"user_id,omitempty"`
	Flashes   []string  `bson:"flashes,omitempty"`
	ExpiresAt time.Time `bson:"expires_at"`
}

// NewMongoStore uses the "sessions" collection of db and makes sure the TTL
// index exists.
func NewMongoStore(ctx context.Context, db *mongo.Database) (*MongoStore, error) {
	col := db.Collection("sessions")
	_, err := col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		return nil, fmt.Errorf("mongo session index: %w", err)
	}
	return &MongoStore{col: col}, nil
}

// Load filters on expires_at as well because the TTL monitor only sweeps
// about once a minute.
func (s *MongoStore) Load(ctx context.Context, id string) (*Data, error) {
	var doc mongoSession
	err := s.col.FindOne(ctx, bson.M{
		"_id":        id,
		"expires_at": bson.M{"$gt": time.Now()},
	}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mongo find session: %w", err)
	}
	return &Data{UserID: doc.UserID, Flashes: doc.Flashes}, nil
}

func (s *MongoStore) Save(ctx context.Context, id string, data Data, ttl time.Duration) error {
	doc := mongoSession{
		ID:        id,
		UserID:    data.UserID,
		Flashes:   data.Flashes,
		ExpiresAt: time.Now().Add(ttl),
	}
	_, err := s.col.ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo save session: %w", err)
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	if _, err := s.col.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("mongo delete session: %w", err)
	}
	return nil
}
