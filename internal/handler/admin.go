package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"crm-backend/internal/domain"
	"crm-backend/internal/service"

	"github.com/go-chi/chi/v5"
)

type AdminHandler struct {
	Service   service.AdminService
	Analytics service.AnalyticsService
}

func (h AdminHandler) RegisterRoutes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Get("/users", h.listUsers)
		r.Post("/users", h.createUser)
		r.Put("/users/{id}/ban", h.setBanned)
		r.Put("/users/{id}/role", h.updateRole)
		r.Put("/users/{id}/password", h.resetPassword)
		r.Delete("/users/{id}", h.deleteUser)
		r.Get("/dashboard", h.dashboard)
		r.Get("/customers", h.listAssignments)
		r.Put("/customers/{id}/assignment", h.assign)
		r.Delete("/customers/{id}/assignment", h.unassign)
	})
}

func (h AdminHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Service.ListUsers(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if users == nil {
		users = []domain.UserSummary{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (h AdminHandler) createUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		FullName string `json:"full_name"`
		Role     string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	created, err := h.Service.CreateUser(r.Context(), service.CreateUserInput{
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
		FullName: strings.TrimSpace(req.FullName),
		Role:     domain.UserRole(strings.TrimSpace(req.Role)),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":    created.ID,
		"email": created.Email,
	})
}

func (h AdminHandler) setBanned(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Banned *bool `json:"banned"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Banned == nil {
		writeError(w, http.StatusBadRequest, "banned is required")
		return
	}
	if err := h.Service.SetBanned(r.Context(), chi.URLParam(r, "id"), *req.Banned); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"banned": *req.Banned})
}

func (h AdminHandler) updateRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	role := domain.UserRole(strings.TrimSpace(req.Role))
	if err := h.Service.UpdateRole(r.Context(), chi.URLParam(r, "id"), role); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"role": string(role)})
}

func (h AdminHandler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := h.Service.ResetPassword(r.Context(), chi.URLParam(r, "id"), req.Password); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h AdminHandler) deleteUser(w http.ResponseWriter, r *http.Request) {
	report, err := h.Service.DeleteUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	warnings := report.Warnings()
	if warnings == nil {
		warnings = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "warnings": warnings})
}

func (h AdminHandler) dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Analytics.AdminDashboard(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h AdminHandler) listAssignments(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.ListAssignments(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAssignmentList(items))
}

func (h AdminHandler) assign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	assignee, err := h.Service.AssignCustomer(r.Context(), chi.URLParam(r, "id"), strings.TrimSpace(req.UserID))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfilePayload(*assignee, ""))
}

func (h AdminHandler) unassign(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.UnassignCustomer(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
