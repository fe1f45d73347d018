package handler

import (
	"net/http"

	"crm-backend/internal/service"

	"github.com/go-chi/chi/v5"
)

type DashboardHandler struct {
	Service service.DashboardService
}

func (h DashboardHandler) RegisterRoutes(r chi.Router) {
	r.Get("/dashboard", h.get)
}

func (h DashboardHandler) get(w http.ResponseWriter, r *http.Request) {
	d, err := h.Service.Get(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pending_tasks": toTaskList(d.PendingTasks),
		"today_visits":  toVisitEntries(d.TodayVisits),
		"customers":     toCustomerList(d.Customers),
	})
}
