package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"crm-backend/internal/service"
)

const defaultMaxUpload = 10 << 20

// formRequest reads a body that is either JSON or multipart/form-data.
// Multipart fields are looked up by the same names as the JSON keys.
type formRequest struct {
	r         *http.Request
	multipart bool
	fields    map[string]json.RawMessage
	opened    []io.Closer
}

func readForm(r *http.Request, maxBytes int64) (*formRequest, error) {
	if maxBytes <= 0 {
		maxBytes = defaultMaxUpload
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			return nil, fmt.Errorf("invalid form: %w", err)
		}
		return &formRequest{r: r, multipart: true}, nil
	}
	fields := map[string]json.RawMessage{}
	if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBytes)).Decode(&fields); err != nil {
		return nil, errors.New("invalid payload")
	}
	return &formRequest{r: r, fields: fields}, nil
}

// String returns the first non-empty value among key and its aliases.
func (f *formRequest) String(key string, aliases ...string) string {
	for _, k := range append([]string{key}, aliases...) {
		if v := f.value(k); v != "" {
			return v
		}
	}
	return ""
}

func (f *formRequest) value(key string) string {
	if f.multipart {
		return strings.TrimSpace(f.r.FormValue(key))
	}
	raw, ok := f.fields[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	// numbers and booleans keep their literal text
	text := strings.TrimSpace(string(raw))
	if text == "null" {
		return ""
	}
	return text
}

func (f *formRequest) Float(key string, aliases ...string) (*float64, error) {
	s := f.String(key, aliases...)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s", key)
	}
	return &v, nil
}

func (f *formRequest) Date(key string) (*time.Time, error) {
	s := f.String(key)
	if s == "" {
		return nil, nil
	}
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	v, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, fmt.Errorf("invalid %s", key)
	}
	return &v, nil
}

// File returns the uploaded file under key, or nil when none was sent.
// It stays open until cleanup.
func (f *formRequest) File(key string) (*service.Upload, error) {
	if !f.multipart {
		return nil, nil
	}
	file, header, err := f.r.FormFile(key)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, fmt.Errorf("invalid %s: %w", key, err)
	}
	f.opened = append(f.opened, file)
	return &service.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}, nil
}

func (f *formRequest) cleanup() {
	for _, c := range f.opened {
		_ = c.Close()
	}
	if f.multipart && f.r.MultipartForm != nil {
		_ = f.r.MultipartForm.RemoveAll()
	}
}
