package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"guruchat-backend/internal/middleware"
	"guruchat-backend/internal/models"
	"guruchat-backend/internal/services"
)

type AuthHandler struct {
	authService *services.AuthService
	jwt         *middleware.JWTAuth
	log         *zap.Logger
}

func NewAuthHandler(authService *services.AuthService, jwt *middleware.JWTAuth, log *zap.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, jwt: jwt, log: log}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.authService.Register(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "User registered successfully",
		"userId":  user.ID.Hex(),
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.authService.Login(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	h.jwt.SetSessionCookie(w, result.Token)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Login successful",
		"user":    result.User.Public(),
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.authService.Logout(r.Context(), middleware.GetSession(r.Context())); err != nil {
		// The cookie is cleared regardless; the token just stays valid until expiry.
		h.log.Warn("logout revoke failed", zap.Error(err))
	}

	h.jwt.ClearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}
