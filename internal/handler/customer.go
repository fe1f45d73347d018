package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"crm-backend/internal/domain"
	"crm-backend/internal/ports"
	"crm-backend/internal/service"

	"github.com/go-chi/chi/v5"
)

type CustomerHandler struct {
	Service        service.CustomerService
	Pipeline       service.PipelineService
	MaxUploadBytes int64
}

func (h CustomerHandler) RegisterRoutes(r chi.Router) {
	r.Get("/customers", h.list)
	r.Post("/customers", h.create)
	r.Get("/customers/{id}", h.get)
	r.Put("/customers/{id}", h.update)
	r.Get("/customers/{id}/visits", h.visits)
	r.Put("/customers/{id}/stage", h.advance)
	r.Post("/customers/{id}/meetings", h.meetings)
	r.Post("/customers/{id}/close", h.close)
}

func (h CustomerHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.Service.ListMine(r.Context(), ports.CustomerFilter{
		Type:   domain.CustomerType(strings.TrimSpace(q.Get("type"))),
		Bucket: domain.PipelineStage(strings.TrimSpace(q.Get("stage"))),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerList(items))
}

func (h CustomerHandler) create(w http.ResponseWriter, r *http.Request) {
	form, err := readForm(r, h.MaxUploadBytes)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer form.cleanup()

	in := service.CreateCustomerInput{
		Name:            form.String("name"),
		Type:            domain.CustomerType(form.String("type")),
		ContactPerson:   form.String("contact_person"),
		Phone:           form.String("phone"),
		Address:         form.String("address"),
		City:            form.String("city"),
		SiteDescription: form.String("site_description"),
		Profession:      form.String("profession"),
		ArchitectID:     form.String("architect_id"),
		BuilderID:       form.String("builder_id"),
		DealerID:        form.String("dealer_id"),
	}
	if in.Latitude, err = form.Float("latitude"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.Longitude, err = form.Float("longitude"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.SitePhoto, err = form.File("site_photo"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.Service.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCustomerPayload(*created))
}

func (h CustomerHandler) get(w http.ResponseWriter, r *http.Request) {
	view, err := h.Service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerView(view))
}

func (h CustomerHandler) update(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name          string `json:"name"`
		ContactPerson string `json:"contact_person"`
		Phone         string `json:"phone"`
		Address       string `json:"address"`
		City          string `json:"city"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	updated, err := h.Service.Update(r.Context(), chi.URLParam(r, "id"), ports.CustomerDetails{
		Name:          strings.TrimSpace(req.Name),
		ContactPerson: req.ContactPerson,
		Phone:         req.Phone,
		Address:       req.Address,
		City:          req.City,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerPayload(*updated))
}

func (h CustomerHandler) visits(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.ListVisits(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVisitEntries(items))
}

func (h CustomerHandler) advance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Stage string `json:"stage"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	updated, err := h.Pipeline.Advance(r.Context(), chi.URLParam(r, "id"), req.Stage)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerPayload(*updated))
}

func (h CustomerHandler) meetings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Delta int `json:"delta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	updated, err := h.Pipeline.AdjustMeetingCount(r.Context(), chi.URLParam(r, "id"), req.Delta)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerPayload(*updated))
}

func (h CustomerHandler) close(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Outcome string `json:"outcome"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	outcome, err := domain.ParseClosingOutcome(req.Outcome)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	updated, err := h.Pipeline.Close(r.Context(), chi.URLParam(r, "id"), outcome)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerPayload(*updated))
}
