package handler

import (
	"encoding/json"
	"net/http"

	"crm-backend/internal/service"

	"github.com/go-chi/chi/v5"
)

type ProfileHandler struct {
	Service service.ProfileService
}

func (h ProfileHandler) RegisterRoutes(r chi.Router) {
	r.Get("/profile", h.get)
	r.Put("/profile", h.update)
}

func (h ProfileHandler) get(w http.ResponseWriter, r *http.Request) {
	view, err := h.Service.Get(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfilePayload(view.Profile, view.Email))
}

func (h ProfileHandler) update(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FullName string `json:"full_name"`
		Phone    string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	view, err := h.Service.Update(r.Context(), req.FullName, req.Phone)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfilePayload(view.Profile, view.Email))
}
