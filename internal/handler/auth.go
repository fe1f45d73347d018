package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"crm-backend/internal/service"

	"github.com/go-chi/chi/v5"
)

// AuthHandler issues sessions when the service runs its own identity table.
type AuthHandler struct {
	Service service.AuthService
}

func (h AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/login", h.login)
	r.Post("/auth/refresh", h.refresh)
}

func (h AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	res, err := h.Service.Login(r.Context(), service.LoginInput{Email: req.Email, Password: req.Password})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeAuthResponse(w, res)
}

func (h AuthHandler) refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}
	res, err := h.Service.Refresh(r.Context(), service.RefreshInput{RefreshToken: req.RefreshToken})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeAuthResponse(w, res)
}

func writeAuthResponse(w http.ResponseWriter, res *service.AuthResult) {
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  res.AccessToken,
		"refresh_token": res.RefreshToken,
		"token_type":    "bearer",
		"expires_at":    res.ExpiresAt.UTC().Format(time.RFC3339),
		"user": map[string]any{
			"id":    res.User.ID,
			"email": res.User.Email,
		},
	})
}
