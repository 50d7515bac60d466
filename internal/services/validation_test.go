package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guruchat-backend/internal/models"
)

func TestValidateStruct_FieldKeys(t *testing.T) {
	err := ValidateStruct(models.ChatRequest{
		Messages: []models.Message{
			{Role: "user", Content: "hi"},
			{Role: "robot", Content: ""},
		},
	})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "role must be one of: user assistant system", verr.Fields["messages[1].role"])
	assert.Equal(t, "content is required", verr.Fields["messages[1].content"])
	assert.NotContains(t, verr.Fields, "messages[0].role")
}

func TestValidateStruct_EmptyMessages(t *testing.T) {
	err := ValidateStruct(models.ChatRequest{Messages: []models.Message{}})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "messages must contain at least 1 item(s)", verr.Fields["messages"])
}

func TestValidateStruct_Valid(t *testing.T) {
	assert.NoError(t, ValidateStruct(models.LoginRequest{Email: "a@b.co", Password: "x"}))
}
