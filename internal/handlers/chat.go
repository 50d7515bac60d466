package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"guruchat-backend/internal/middleware"
	"guruchat-backend/internal/models"
	"guruchat-backend/internal/services"
	"guruchat-backend/internal/stream"
)

type ChatHandler struct {
	chatService *services.ChatService
	log         *zap.Logger
}

func NewChatHandler(chatService *services.ChatService, log *zap.Logger) *ChatHandler {
	return &ChatHandler{chatService: chatService, log: log}
}

// Chat streams the model reply as data-stream parts and persists the exchange
// once the finish part has been delivered.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	if err := h.chatService.Available(); err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	var req models.ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	userID := middleware.GetUserID(r.Context())
	prepared, err := h.chatService.Prepare(r.Context(), userID, req)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	sw := stream.NewWriter(w)
	reply, err := h.chatService.Stream(r.Context(), prepared, sw.Text)
	if err != nil {
		if r.Context().Err() != nil {
			h.log.Info("client went away mid-stream", zap.String("user_id", userID.Hex()))
			return
		}
		h.log.Error("chat stream failed", zap.String("user_id", userID.Hex()), zap.String("request_id", requestID(r)), zap.Error(err))
		sw.Error(streamErrorMessage(err))
		return
	}

	if err := sw.Finish(); err != nil {
		return
	}
	h.chatService.Persist(prepared, reply)
}

func streamErrorMessage(err error) string {
	switch {
	case errors.Is(err, services.ErrProviderUnavailable):
		return "The assistant is temporarily unavailable. Please try again shortly."
	case errors.Is(err, context.DeadlineExceeded):
		return "The response took too long and was stopped."
	default:
		return "An error occurred while generating the response."
	}
}
