package models

type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

type ErrorResponse struct {
	Success bool     `json:"success"`
	Error   APIError `json:"error"`
}

type DataResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Message string      `json:"message,omitempty"`
	Type    string      `json:"type,omitempty"`
}

// WSConversationUpdated tells open tabs to refresh the history sidebar.
const WSConversationUpdated = "conversation_updated"

// WebSocket message types
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ConversationUpdate is pushed to a user's open tabs after a chat is persisted.
type ConversationUpdate struct {
	ConversationID string `json:"conversationId"`
	GuruID         string `json:"guruId"`
}
