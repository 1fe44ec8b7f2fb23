package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wuwenbin0122/wellbeing-chat/internal/auth"
	"github.com/wuwenbin0122/wellbeing-chat/internal/models"
)

// MongoUserStore keeps users in the "users" collection.
type MongoUserStore struct {
	users *mongo.Collection
}

func NewMongoUserStore(m *Mongo) *MongoUserStore {
	return &MongoUserStore{users: m.Users}
}

func (s *MongoUserStore) InsertUser(ctx context.Context, user models.User) error {
	if _, err := s.users.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return auth.ErrDuplicateEmail
		}
		return fmt.Errorf("mongo: insert user: %w", err)
	}
	return nil
}

func (s *MongoUserStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.users.FindOne(ctx, bson.M{"email": email}).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("mongo: find user: %w", err)
	}
	return &user, nil
}

// messageDocument is the stored shape of models.Message. ObjectIDs grow
// monotonically per process, so (timestamp, _id) sorts in insertion order.
type messageDocument struct {
	ID             primitive.ObjectID `bson:"_id"`
	UserID         string             `bson:"user_id"`
	ConversationID string             `bson:"conversation_id"`
	Role           string             `bson:"role"`
	Text           string             `bson:"text"`
	Timestamp      time.Time          `bson:"timestamp"`
}

func (d messageDocument) toModel() models.Message {
	return models.Message{
		ID:             d.ID.Hex(),
		UserID:         d.UserID,
		ConversationID: d.ConversationID,
		Role:           d.Role,
		Text:           d.Text,
		Timestamp:      d.Timestamp.UTC(),
	}
}

var chronological = bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}}

// MongoMessageStore keeps turns in the "messages" collection.
type MongoMessageStore struct {
	messages *mongo.Collection
	now      func() time.Time
}

func NewMongoMessageStore(m *Mongo) *MongoMessageStore {
	return &MongoMessageStore{messages: m.Messages, now: time.Now}
}

func (s *MongoMessageStore) SaveMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	normalized, err := msg.Normalize(s.now())
	if err != nil {
		return models.Message{}, err
	}

	doc := messageDocument{
		ID:             primitive.NewObjectID(),
		UserID:         normalized.UserID,
		ConversationID: normalized.ConversationID,
		Role:           normalized.Role,
		Text:           normalized.Text,
		Timestamp:      normalized.Timestamp,
	}
	if _, err := s.messages.InsertOne(ctx, doc); err != nil {
		return models.Message{}, fmt.Errorf("mongo: insert message: %w", err)
	}

	return doc.toModel(), nil
}

func (s *MongoMessageStore) GetMessagesByUser(ctx context.Context, userID, conversationID string) ([]models.Message, error) {
	filter := bson.M{"user_id": userID}
	if conversationID != "" {
		filter["conversation_id"] = conversationID
	}

	cursor, err := s.messages.Find(ctx, filter, options.Find().SetSort(chronological))
	if err != nil {
		return nil, fmt.Errorf("mongo: find messages: %w", err)
	}
	defer cursor.Close(ctx)

	result := make([]models.Message, 0)
	for cursor.Next(ctx) {
		var doc messageDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongo: decode message: %w", err)
		}
		result = append(result, doc.toModel())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("mongo: iterate messages: %w", err)
	}

	return result, nil
}

func (s *MongoMessageStore) LatestMessage(ctx context.Context, userID string) (*models.Message, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}})

	var doc messageDocument
	if err := s.messages.FindOne(ctx, bson.M{"user_id": userID}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("mongo: latest message: %w", err)
	}

	msg := doc.toModel()
	return &msg, nil
}
