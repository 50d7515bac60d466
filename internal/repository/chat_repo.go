package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"guruchat-backend/internal/database"
	"guruchat-backend/internal/models"
)

type ChatRepo struct {
	db *database.Mongo
}

func NewChatRepo(db *database.Mongo) *ChatRepo {
	return &ChatRepo{db: db}
}

// AppendTurns pushes turns onto the (user, guru) conversation in one atomic
// update, creating the document if it does not exist. A nil guruID addresses
// the user's persona-less conversation.
func (r *ChatRepo) AppendTurns(ctx context.Context, userID bson.ObjectID, guruID *bson.ObjectID, turns []models.Message) (*models.Chat, error) {
	coll, err := r.db.Collection(ctx, database.ChatsCollection)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	filter := bson.M{"user_id": userID, "guru_id": guruID}
	update := bson.M{
		"$push":        bson.M{"messages": bson.M{"$each": turns}},
		"$set":         bson.M{"updated_at": now},
		"$setOnInsert": bson.M{"created_at": now},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var chat models.Chat
	err = coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&chat)
	if mongo.IsDuplicateKeyError(err) {
		// Lost an upsert race on the unique (user_id, guru_id) key; the document exists now.
		err = coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&chat)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to append chat turns: %w", err)
	}
	return &chat, nil
}

func (r *ChatRepo) ListByUser(ctx context.Context, userID bson.ObjectID) ([]models.Chat, error) {
	coll, err := r.db.Collection(ctx, database.ChatsCollection)
	if err != nil {
		return nil, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cursor, err := coll.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	defer cursor.Close(ctx)

	chats := make([]models.Chat, 0)
	if err := cursor.All(ctx, &chats); err != nil {
		return nil, fmt.Errorf("failed to decode chats: %w", err)
	}
	return chats, nil
}

func (r *ChatRepo) GetByID(ctx context.Context, userID, chatID bson.ObjectID) (*models.Chat, error) {
	return r.findOne(ctx, bson.M{"_id": chatID, "user_id": userID})
}

func (r *ChatRepo) GetByGuru(ctx context.Context, userID bson.ObjectID, guruID *bson.ObjectID) (*models.Chat, error) {
	return r.findOne(ctx, bson.M{"user_id": userID, "guru_id": guruID})
}

func (r *ChatRepo) findOne(ctx context.Context, filter bson.M) (*models.Chat, error) {
	coll, err := r.db.Collection(ctx, database.ChatsCollection)
	if err != nil {
		return nil, err
	}

	var chat models.Chat
	if err := coll.FindOne(ctx, filter).Decode(&chat); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find chat: %w", err)
	}
	return &chat, nil
}
