package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"guruchat-backend/internal/models"
	"guruchat-backend/internal/services"
)

type GuruHandler struct {
	guruService *services.GuruService
	log         *zap.Logger
}

func NewGuruHandler(guruService *services.GuruService, log *zap.Logger) *GuruHandler {
	return &GuruHandler{guruService: guruService, log: log}
}

func (h *GuruHandler) List(w http.ResponseWriter, r *http.Request) {
	gurus, err := h.guruService.List(r.Context())
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, models.DataResponse{Success: true, Data: gurus})
}

func (h *GuruHandler) Get(w http.ResponseWriter, r *http.Request) {
	guru, err := h.guruService.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, models.DataResponse{Success: true, Data: guru})
}
