package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is a single turn in a conversation.
type Message struct {
	Role    string `bson:"role" json:"role" validate:"required,oneof=user assistant system"`
	Content string `bson:"content" json:"content" validate:"required"`
}

// Chat is the persisted conversation document, one per (user, guru) pair.
type Chat struct {
	ID        bson.ObjectID  `bson:"_id,omitempty" json:"_id"`
	UserID    bson.ObjectID  `bson:"user_id" json:"userId"`
	GuruID    *bson.ObjectID `bson:"guru_id" json:"guruId"`
	Messages  []Message      `bson:"messages" json:"messages"`
	CreatedAt time.Time      `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time      `bson:"updated_at" json:"updatedAt"`
}

// ChatRequest is the payload of POST /api/chat.
type ChatRequest struct {
	Messages []Message `json:"messages" validate:"required,min=1,dive"`
	GuruID   string    `json:"guruId"`
}

// Conversation is a transcript with its persona populated.
type Conversation struct {
	ID        bson.ObjectID `json:"_id"`
	UserID    bson.ObjectID `json:"userId"`
	Guru      *GuruRef      `json:"guruId"`
	Messages  []Message     `json:"messages"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// ChatSummary is one conversation entry in the history sidebar.
type ChatSummary struct {
	ConversationID string    `json:"conversationId"`
	Summary        string    `json:"summary"`
	LastUpdated    time.Time `json:"lastUpdated"`
}

// GuruHistory groups a user's conversations by persona.
type GuruHistory struct {
	GuruID        string        `json:"guruId"`
	GuruName      string        `json:"guruName"`
	Conversations []ChatSummary `json:"conversations"`
}
