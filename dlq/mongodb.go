package dlq

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

/*
MongoDB Schema:

Collection: wamp_dlq

{
    "_id": string (DLQ message ID),
    "peer_id": string,
    "codec": string,
    "msg_id": string (optional),
    "frame": Binary,
    "kind": string,
    "error": string,
    "created_at": ISODate,
    "retried_at": ISODate (optional)
}
*/

// mongoMessage is the stored document form of Message
type mongoMessage struct {
	ID        string     `bson:"_id"`
	PeerID    string     `bson:"peer_id"`
	Codec     string     `bson:"codec"`
	MsgID     string     `bson:"msg_id,omitempty"`
	Frame     []byte     `bson:"frame"`
	Kind      string     `bson:"kind"`
	Error     string     `bson:"error"`
	CreatedAt time.Time  `bson:"created_at"`
	RetriedAt *time.Time `bson:"retried_at,omitempty"`
}

func (m *mongoMessage) toMessage() *Message {
	return &Message{
		ID:        m.ID,
		PeerID:    m.PeerID,
		Codec:     m.Codec,
		MsgID:     m.MsgID,
		Frame:     m.Frame,
		Kind:      m.Kind,
		Error:     m.Error,
		CreatedAt: m.CreatedAt,
		RetriedAt: m.RetriedAt,
	}
}

func toMongoMessage(m *Message) *mongoMessage {
	return &mongoMessage{
		ID:        m.ID,
		PeerID:    m.PeerID,
		Codec:     m.Codec,
		MsgID:     m.MsgID,
		Frame:     m.Frame,
		Kind:      m.Kind,
		Error:     m.Error,
		CreatedAt: m.CreatedAt,
		RetriedAt: m.RetriedAt,
	}
}

// MongoStore is a MongoDB-based DLQ store
type MongoStore struct {
	collection *mongo.Collection
}

// NewMongoStore creates a new MongoDB DLQ store
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		collection: db.Collection("wamp_dlq"),
	}
}

// WithCollection sets a custom collection name
func (s *MongoStore) WithCollection(name string) *MongoStore {
	s.collection = s.collection.Database().Collection(name)
	return s
}

// Indexes returns the indexes the store's queries rely on.
//
//	_, err := collection.Indexes().CreateMany(ctx, store.Indexes())
func (s *MongoStore) Indexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "codec", Value: 1}, {Key: "created_at", Value: 1}}},
		{
			Keys:    bson.D{{Key: "retried_at", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	}
}

// EnsureIndexes creates the required indexes
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, s.Indexes())
	return err
}

// Store adds a message to the DLQ
func (s *MongoStore) Store(ctx context.Context, msg *Message) error {
	_, err := s.collection.InsertOne(ctx, toMongoMessage(msg))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("message already exists: %s", msg.ID)
		}
		return fmt.Errorf("insert: %w", err)
	}
	return nil
}

// Get retrieves a single message by ID
func (s *MongoStore) Get(ctx context.Context, id string) (*Message, error) {
	var doc mongoMessage
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	return doc.toMessage(), nil
}

// List returns messages matching the filter, oldest first
func (s *MongoStore) List(ctx context.Context, filter Filter) ([]*Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}

	cursor, err := s.collection.Find(ctx, buildMongoFilter(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	defer cursor.Close(ctx)

	var messages []*Message
	for cursor.Next(ctx) {
		var doc mongoMessage
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		messages = append(messages, doc.toMessage())
	}
	return messages, cursor.Err()
}

// Count returns the number of messages matching the filter
func (s *MongoStore) Count(ctx context.Context, filter Filter) (int64, error) {
	return s.collection.CountDocuments(ctx, buildMongoFilter(filter))
}

// buildMongoFilter translates a Filter into a query document
func buildMongoFilter(filter Filter) bson.M {
	q := bson.M{}

	if filter.PeerID != "" {
		q["peer_id"] = filter.PeerID
	}
	if filter.Codec != "" {
		q["codec"] = filter.Codec
	}
	if filter.Kind != "" {
		q["kind"] = filter.Kind
	}

	created := bson.M{}
	if !filter.StartTime.IsZero() {
		created["$gte"] = filter.StartTime
	}
	if !filter.EndTime.IsZero() {
		created["$lte"] = filter.EndTime
	}
	if len(created) > 0 {
		q["created_at"] = created
	}

	if filter.Error != "" {
		q["error"] = primitive.Regex{Pattern: regexp.QuoteMeta(filter.Error), Options: "i"}
	}
	if filter.ExcludeRetried {
		q["retried_at"] = nil
	}
	return q
}

// MarkRetried marks a message as replayed
func (s *MongoStore) MarkRetried(ctx context.Context, id string) error {
	update := bson.M{"$set": bson.M{"retried_at": time.Now()}}

	result, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Delete removes a message from the DLQ
func (s *MongoStore) Delete(ctx context.Context, id string) error {
	result, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// DeleteOlderThan removes messages older than the specified age
func (s *MongoStore) DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := time.Now().Add(-age)
	result, err := s.collection.DeleteMany(ctx, bson.M{"created_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, fmt.Errorf("delete: %w", err)
	}
	return result.DeletedCount, nil
}

// Stats returns DLQ statistics
func (s *MongoStore) Stats(ctx context.Context) (*Stats, error) {
	stats := newStats()

	total, err := s.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("count total: %w", err)
	}
	pending, err := s.collection.CountDocuments(ctx, bson.M{"retried_at": nil})
	if err != nil {
		return nil, fmt.Errorf("count pending: %w", err)
	}
	stats.TotalMessages = total
	stats.PendingMessages = pending
	stats.RetriedMessages = total - pending

	if err := s.countBy(ctx, "$codec", stats.MessagesByCodec); err != nil {
		return nil, err
	}
	if err := s.countBy(ctx, "$kind", stats.MessagesByKind); err != nil {
		return nil, err
	}

	var oldest, newest mongoMessage
	if err := s.collection.FindOne(ctx, bson.M{},
		options.FindOne().SetSort(bson.D{{Key: "created_at", Value: 1}})).Decode(&oldest); err == nil {
		stats.OldestMessage = &oldest.CreatedAt
	}
	if err := s.collection.FindOne(ctx, bson.M{},
		options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})).Decode(&newest); err == nil {
		stats.NewestMessage = &newest.CreatedAt
	}

	return stats, nil
}

func (s *MongoStore) countBy(ctx context.Context, field string, into map[string]int64) error {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":   field,
			"count": bson.M{"$sum": 1},
		}}},
	}

	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return fmt.Errorf("aggregate by %s: %w", field, err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var result struct {
			Key   string `bson:"_id"`
			Count int64  `bson:"count"`
		}
		if err := cursor.Decode(&result); err != nil {
			return fmt.Errorf("decode: %w", err)
		}
		into[result.Key] = result.Count
	}
	return cursor.Err()
}

// Compile-time checks
var _ Store = (*MongoStore)(nil)
var _ StatsProvider = (*MongoStore)(nil)
