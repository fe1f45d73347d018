package handler

import (
	"net/http"

	"crm-backend/internal/service"

	"github.com/go-chi/chi/v5"
)

type AnalyticsHandler struct {
	Service service.AnalyticsService
}

func (h AnalyticsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/analytics/visits", h.visits)
	r.Get("/analytics/customers", h.customers)
	r.Get("/analytics/top-bdms", h.topBDMs)
}

func (h AnalyticsHandler) visits(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.VisitStats(r.Context(), r.URL.Query().Get("period"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h AnalyticsHandler) customers(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Service.CustomerStats(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h AnalyticsHandler) topBDMs(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.TopBDMs(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}
