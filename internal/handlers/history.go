package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"guruchat-backend/internal/middleware"
	"guruchat-backend/internal/models"
	"guruchat-backend/internal/services"
)

type HistoryHandler struct {
	history *services.HistoryService
	log     *zap.Logger
}

func NewHistoryHandler(history *services.HistoryService, log *zap.Logger) *HistoryHandler {
	return &HistoryHandler{history: history, log: log}
}

// Get serves GET /api/chats: one transcript by conversationId, the transcript
// with a guru by guruId, or the grouped summaries when neither is given,
// optionally narrowed by q.
func (h *HistoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	q := r.URL.Query()

	switch {
	case q.Has("conversationId"):
		conv, err := h.history.GetConversation(r.Context(), userID, q.Get("conversationId"))
		if err != nil {
			handleServiceError(w, r, h.log, err)
			return
		}
		writeJSON(w, http.StatusOK, models.DataResponse{Success: true, Data: conv})

	case q.Has("guruId"):
		conv, err := h.history.GetConversationByGuru(r.Context(), userID, q.Get("guruId"))
		if err != nil {
			handleServiceError(w, r, h.log, err)
			return
		}
		if conv == nil {
			writeJSON(w, http.StatusOK, models.DataResponse{Success: true, Data: nil, Message: "No existing conversation"})
			return
		}
		writeJSON(w, http.StatusOK, models.DataResponse{Success: true, Data: conv})

	default:
		summaries, err := h.history.ListSummaries(r.Context(), userID, q.Get("q"))
		if err != nil {
			handleServiceError(w, r, h.log, err)
			return
		}
		writeJSON(w, http.StatusOK, models.DataResponse{Success: true, Data: summaries, Type: "summary"})
	}
}
