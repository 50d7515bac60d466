package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Guru is a persona definition. Gurus are seeded out-of-band and read-only at runtime.
type Guru struct {
	ID           bson.ObjectID `bson:"_id,omitempty" json:"_id"`
	Name         string        `bson:"name" json:"name" toml:"name"`
	Description  string        `bson:"description" json:"description" toml:"description"`
	SystemPrompt string        `bson:"system_prompt" json:"systemPrompt" toml:"system_prompt"`
	CreatedAt    time.Time     `bson:"created_at" json:"createdAt" toml:"-"`
	UpdatedAt    time.Time     `bson:"updated_at" json:"updatedAt" toml:"-"`
}

// GuruRef is the populated persona reference embedded in a conversation response.
type GuruRef struct {
	ID   bson.ObjectID `json:"_id"`
	Name string        `json:"name"`
}
