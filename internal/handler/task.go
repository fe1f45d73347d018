package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"crm-backend/internal/domain"
	"crm-backend/internal/service"

	"github.com/go-chi/chi/v5"
)

type TaskHandler struct {
	Service service.TaskService
	Now     func() time.Time
}

func (h TaskHandler) RegisterRoutes(r chi.Router) {
	r.Get("/tasks", h.list)
	r.Post("/tasks", h.create)
}

// list returns open tasks due on ?date=, defaulting to today.
func (h TaskHandler) list(w http.ResponseWriter, r *http.Request) {
	day, err := parseDateQuery(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date")
		return
	}
	if day == nil {
		now := time.Now
		if h.Now != nil {
			now = h.Now
		}
		y, m, d := now().UTC().Date()
		today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		day = &today
	}
	items, err := h.Service.ListForDate(r.Context(), *day)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskList(items))
}

func (h TaskHandler) create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Description string `json:"description"`
		DueDate     string `json:"due_date"`
		Priority    string `json:"priority"`
		CustomerID  string `json:"customer_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	in := service.CreateTaskInput{
		Description: req.Description,
		Priority:    domain.TaskPriority(req.Priority),
		CustomerID:  req.CustomerID,
	}
	if req.DueDate != "" {
		due, err := time.Parse(dateLayout, req.DueDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid due_date")
			return
		}
		in.DueDate = &due
	}
	created, err := h.Service.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTaskPayload(*created))
}
