package handler

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"crm-backend/internal/domain"
	"crm-backend/internal/ports"
	"crm-backend/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/xuri/excelize/v2"
)

type VisitHandler struct {
	Service        service.VisitService
	MaxUploadBytes int64
	Now            func() time.Time
}

func (h VisitHandler) RegisterRoutes(r chi.Router) {
	r.Get("/visits", h.list)
	r.Post("/visits", h.record)
	r.Get("/visits/export", h.export)
	r.Get("/geo/reverse", h.reverse)
}

func (h VisitHandler) filter(r *http.Request) (ports.VisitFilter, error) {
	start, end, err := parseDateRange(r, "start", "end")
	if err != nil {
		return ports.VisitFilter{}, err
	}
	return ports.VisitFilter{
		CustomerID: strings.TrimSpace(r.URL.Query().Get("customer_id")),
		Start:      start,
		End:        end,
	}, nil
}

func (h VisitHandler) list(w http.ResponseWriter, r *http.Request) {
	f, err := h.filter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, err := h.Service.List(r.Context(), f)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVisitEntries(items))
}

func (h VisitHandler) record(w http.ResponseWriter, r *http.Request) {
	form, err := readForm(r, h.MaxUploadBytes)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer form.cleanup()

	in := service.RecordVisitInput{
		CustomerID:   form.String("customer_id", "customer"),
		Purpose:      form.String("purpose"),
		Outcome:      form.String("outcome"),
		Notes:        form.String("notes"),
		LocationName: form.String("location_name"),
		NewStage:     form.String("new_stage"),
		NextStep:     form.String("next_step"),
		TaskID:       form.String("task_id"),
	}
	if in.Latitude, err = form.Float("latitude", "location_lat"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.Longitude, err = form.Float("longitude", "location_lng"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.NextStepDate, err = form.Date("next_step_date"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.Photo, err = form.File("photo"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.Service.Record(r.Context(), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	warnings := res.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	writeMessage(w, http.StatusCreated, res.Message, map[string]any{
		"visit":    toVisitPayload(*res.Visit),
		"warnings": warnings,
	})
}

func (h VisitHandler) reverse(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(q.Get("lng"), 64)
	if errLat != nil || errLng != nil {
		writeError(w, http.StatusBadRequest, "lat and lng are required")
		return
	}
	name, err := h.Service.ResolvePlace(r.Context(), lat, lng)
	payload := map[string]any{"location_name": name, "resolved": err == nil}
	if err != nil {
		writeMessage(w, http.StatusOK, err.Error(), payload)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (h VisitHandler) export(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" {
		format = "csv"
	}
	f, err := h.filter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, err := h.Service.List(r.Context(), f)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	filenameSuffix := now().Format("20060102_150405")

	switch format {
	case "csv":
		data, err := exportVisitsCSV(items)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"visits_%s.csv\"", filenameSuffix))
		_, _ = w.Write(data)
	case "xlsx", "excel":
		data, err := exportVisitsXLSX(items)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"visits_%s.xlsx\"", filenameSuffix))
		_, _ = w.Write(data)
	default:
		writeError(w, http.StatusBadRequest, "invalid format (use csv or xlsx)")
	}
}

var visitExportHeader = []string{"Timestamp", "Customer", "User", "Purpose", "Outcome", "Notes", "Location", "Latitude", "Longitude", "Photo"}

func visitExportRow(e domain.VisitEntry) []string {
	return []string{
		e.Timestamp.UTC().Format(time.RFC3339),
		e.CustomerName,
		e.UserName,
		e.Purpose,
		e.Outcome,
		e.Notes,
		derefString(e.LocationName),
		formatCoord(e.LocationLat),
		formatCoord(e.LocationLng),
		derefString(e.PhotoURL),
	}
}

func exportVisitsCSV(items []domain.VisitEntry) ([]byte, error) {
	buf := new(bytes.Buffer)
	w := csv.NewWriter(buf)
	_ = w.Write(visitExportHeader)
	for _, e := range items {
		_ = w.Write(visitExportRow(e))
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func exportVisitsXLSX(items []domain.VisitEntry) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := "Visits"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	_ = f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	for c, v := range visitExportHeader {
		cell, _ := excelize.CoordinatesToCellName(c+1, 1)
		_ = f.SetCellValue(sheet, cell, v)
	}
	for r, e := range items {
		for c, v := range visitExportRow(e) {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	_ = f.SetColWidth(sheet, "A", "A", 22)
	_ = f.SetColWidth(sheet, "B", "C", 24)
	_ = f.SetColWidth(sheet, "D", "F", 30)
	_ = f.SetColWidth(sheet, "G", "G", 36)
	_ = f.SetColWidth(sheet, "H", "I", 12)
	_ = f.SetColWidth(sheet, "J", "J", 40)

	style, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#1F2937"}, Pattern: 1},
	})
	_ = f.SetCellStyle(sheet, "A1", "J1", style)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatCoord(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 6, 64)
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
