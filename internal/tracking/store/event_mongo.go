package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"caskhouse/internal/tracking/models"
	"caskhouse/pkg/platform/sentinel"
)

// EventsCollection is the archive collection for tracking events.
const EventsCollection = "tracking_events"

type eventDocument struct {
	ID              string    `bson:"_id"`
	VisitorID       string    `bson:"visitor_id"`
	SessionID       string    `bson:"session_id,omitempty"`
	Category        string    `bson:"category"`
	Action          string    `bson:"action"`
	Label           string    `bson:"label,omitempty"`
	Value           *float64  `bson:"value,omitempty"`
	PageURL         string    `bson:"page_url,omitempty"`
	IPPrefix        string    `bson:"ip_prefix,omitempty"`
	ClientTimestamp time.Time `bson:"client_timestamp"`
	ReceivedAt      time.Time `bson:"received_at"`
}

// MongoEventStore archives events in MongoDB.
type MongoEventStore struct {
	collection *mongo.Collection
}

func NewMongoEventStore(db *mongo.Database) *MongoEventStore {
	return &MongoEventStore{collection: db.Collection(EventsCollection)}
}

// EnsureIndexes creates the visitor lookup index.
func (s *MongoEventStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "visitor_id", Value: 1}, {Key: "received_at", Value: -1}},
		Options: options.Index().SetName("visitor_received"),
	})
	if err != nil {
		return fmt.Errorf("create event index: %w", err)
	}
	return nil
}

func (s *MongoEventStore) Append(ctx context.Context, e *models.Event) error {
	doc := eventDocument{
		ID:              e.ID.String(),
		VisitorID:       e.VisitorID,
		SessionID:       e.SessionID,
		Category:        e.Category,
		Action:          e.Action,
		Label:           e.Label,
		Value:           e.Value,
		PageURL:         e.PageURL,
		IPPrefix:        e.IPPrefix,
		ClientTimestamp: e.ClientTimestamp,
		ReceivedAt:      e.ReceivedAt,
	}
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *MongoEventStore) CountByVisitor(ctx context.Context, visitorID string) (int, error) {
	n, err := s.collection.CountDocuments(ctx, bson.M{"visitor_id": visitorID})
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return int(n), nil
}

func (s *MongoEventStore) DeleteByVisitor(ctx context.Context, visitorID string) (int, error) {
	res, err := s.collection.DeleteMany(ctx, bson.M{"visitor_id": visitorID})
	if err != nil {
		return 0, fmt.Errorf("delete events: %w", err)
	}
	return int(res.DeletedCount), nil
}

// ListByVisitor returns up to limit events, newest first.
func (s *MongoEventStore) ListByVisitor(ctx context.Context, visitorID string, limit int) ([]*models.Event, error) {
	opts := options.Find().SetSort(bson.D{{Key: "received_at", Value: -1}}).SetLimit(int64(limit))
	cur, err := s.collection.Find(ctx, bson.M{"visitor_id": visitorID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find events: %w", err)
	}
	defer cur.Close(ctx)

	var out []*models.Event
	for cur.Next(ctx) {
		var doc eventDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		id, err := uuid.Parse(doc.ID)
		if err != nil {
			return nil, fmt.Errorf("parse event id: %w", err)
		}
		out = append(out, &models.Event{
			ID:              id,
			VisitorID:       doc.VisitorID,
			SessionID:       doc.SessionID,
			Category:        doc.Category,
			Action:          doc.Action,
			Label:           doc.Label,
			Value:           doc.Value,
			PageURL:         doc.PageURL,
			IPPrefix:        doc.IPPrefix,
			ClientTimestamp: doc.ClientTimestamp,
			ReceivedAt:      doc.ReceivedAt,
		})
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}
