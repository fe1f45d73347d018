// Package geo resolves visit coordinates to place names.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"crm-backend/internal/domain"
	"crm-backend/internal/observability"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	geocoderService = "geocoder"

	preciseZoom = 18
	relaxedZoom = 14
)

var tracer = otel.Tracer("geo")

// Nominatim reverse-geocodes through an OpenStreetMap Nominatim endpoint.
// The first lookup asks for street-level detail under a tight deadline. A
// timeout triggers one more lookup at neighbourhood level with a longer
// deadline. Any other failure ends the attempt.
type Nominatim struct {
	BaseURL        string
	UserAgent      string
	HTTPClient     *http.Client
	PreciseTimeout time.Duration
	RelaxedTimeout time.Duration
	Metrics        *observability.Metrics
}

type nominatimResponse struct {
	DisplayName string `json:"display_name"`
	Address     struct {
		Road          string `json:"road"`
		Suburb        string `json:"suburb"`
		Neighbourhood string `json:"neighbourhood"`
		City          string `json:"city"`
		Town          string `json:"town"`
		Village       string `json:"village"`
		State         string `json:"state"`
	} `json:"address"`
}

func (n Nominatim) Resolve(ctx context.Context, lat, lng float64) (string, error) {
	ctx, span := tracer.Start(ctx, "Nominatim.Reverse")
	defer span.End()

	name, err := n.lookup(ctx, lat, lng, preciseZoom, n.PreciseTimeout)
	if err == nil {
		return name, nil
	}
	if isTimeout(err) && ctx.Err() == nil {
		span.SetAttributes(attribute.Bool("geo.relaxed", true))
		name, err = n.lookup(ctx, lat, lng, relaxedZoom, n.RelaxedTimeout)
		if err == nil {
			return name, nil
		}
	}
	if n.Metrics != nil {
		n.Metrics.IncrExternalError(geocoderService)
	}
	return "", fmt.Errorf("%w (%v)", domain.ErrLocationUnavailable, err)
}

func (n Nominatim) lookup(ctx context.Context, lat, lng float64, zoom int, timeout time.Duration) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	q := url.Values{}
	q.Set("format", "json")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lng, 'f', -1, 64))
	q.Set("zoom", strconv.Itoa(zoom))
	q.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(n.BaseURL, "/")+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", n.UserAgent)
	req.Header.Set("Accept", "application/json")

	client := n.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("geocoder returned status %d", resp.StatusCode)
	}

	var body nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode geocoder response: %w", err)
	}
	name := body.placeName()
	if name == "" {
		return "", errors.New("geocoder returned no address")
	}
	return name, nil
}

func (r nominatimResponse) placeName() string {
	a := r.Address
	var parts []string
	for _, p := range []string{
		a.Road,
		firstNonEmpty(a.Suburb, a.Neighbourhood),
		firstNonEmpty(a.City, a.Town, a.Village),
		a.State,
	} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, ", ")
	}
	return r.DisplayName
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// CoordinatesName is the place name used when no lookup succeeded.
func CoordinatesName(lat, lng float64) string {
	return fmt.Sprintf("%.6f, %.6f", lat, lng)
}
