package handler

import (
	"errors"
	"net/http"
	"time"
)

const dateLayout = "2006-01-02"

func parseDateQuery(r *http.Request, key string) (*time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// parseDateRange reads two inclusive calendar days and returns a half-open
// [start, end) range. Either bound may be nil.
func parseDateRange(r *http.Request, startKey, endKey string) (*time.Time, *time.Time, error) {
	start, err := parseDateQuery(r, startKey)
	if err != nil {
		return nil, nil, errors.New("invalid " + startKey)
	}
	end, err := parseDateQuery(r, endKey)
	if err != nil {
		return nil, nil, errors.New("invalid " + endKey)
	}
	if start != nil && end != nil && start.After(*end) {
		return nil, nil, errors.New(startKey + " must be before " + endKey)
	}
	if end != nil {
		next := end.AddDate(0, 0, 1)
		end = &next
	}
	return start, end, nil
}
