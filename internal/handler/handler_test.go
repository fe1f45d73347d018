package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"crm-backend/internal/domain"
	"crm-backend/internal/handler"
	"crm-backend/internal/observability"
	"crm-backend/internal/service"
	"crm-backend/internal/testutil"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	bdmID        = "bdm-1"
	otherBDMID   = "bdm-2"
	adminID      = "admin-1"
	superAdminID = "super-1"

	userHeader = "X-Test-User"
)

var testNow = time.Date(2024, 5, 20, 9, 30, 0, 0, time.UTC)

type env struct {
	store    *testutil.MemStore
	registry *testutil.Registry
	objects  *testutil.Objects
	router   http.Handler
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code int `json:"code"`
	} `json:"error"`
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := testutil.NewMemStore()
	store.Now = testutil.FixedClock(testNow)
	store.AddProfile(bdmID, "Budi", domain.RoleBDM)
	store.AddProfile(otherBDMID, "Sari", domain.RoleBDM)
	store.AddProfile(adminID, "Ayu", domain.RoleAdmin)
	store.AddProfile(superAdminID, "Rudi", domain.RoleSuperAdmin)

	e := &env{store: store, registry: testutil.NewRegistry(), objects: testutil.NewObjects()}
	log := zap.NewNop()
	metrics := observability.NewMetrics()
	clock := testutil.FixedClock(testNow)

	customers := testutil.CustomerStore{MemStore: store}
	visits := testutil.VisitStore{MemStore: store}
	tasks := testutil.TaskStore{MemStore: store}
	profiles := testutil.ProfileStore{MemStore: store}

	gate := service.AccessGate{Profiles: profiles, Policy: service.DefaultPolicy(nil), Logger: log, Metrics: metrics}
	pipeline := service.PipelineService{Customers: customers, Gate: gate}
	analytics := service.AnalyticsService{Stats: testutil.StatsStore{MemStore: store}, Profiles: profiles, Gate: gate, Now: clock}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if id := req.Header.Get(userHeader); id != "" {
				req = req.WithContext(testutil.AsUser(req.Context(), id))
			}
			next.ServeHTTP(w, req)
		})
	})
	handler.CustomerHandler{
		Service: service.CustomerService{
			Customers: customers, Visits: visits, Photos: e.objects, Gate: gate, Logger: log, Metrics: metrics, Now: clock,
		},
		Pipeline: pipeline,
	}.RegisterRoutes(r)
	handler.VisitHandler{
		Service: service.VisitService{
			Visits: visits, Tasks: tasks, Pipeline: pipeline, Photos: e.objects,
			Places: testutil.Places{Name: "Jl. Sudirman, Jakarta"},
			Gate:   gate, Logger: log, Metrics: metrics, Now: clock,
		},
		Now: clock,
	}.RegisterRoutes(r)
	handler.TaskHandler{Service: service.TaskService{Tasks: tasks}, Now: clock}.RegisterRoutes(r)
	handler.ProfileHandler{Service: service.ProfileService{Profiles: profiles, Identities: e.registry, Logger: log, Metrics: metrics}}.RegisterRoutes(r)
	handler.DashboardHandler{Service: service.DashboardService{Tasks: tasks, Visits: visits, Customers: customers, Now: clock}}.RegisterRoutes(r)
	handler.AnalyticsHandler{Service: analytics}.RegisterRoutes(r)
	handler.AdminHandler{
		Service: service.AdminService{
			Gate: gate, Identities: e.registry, Profiles: profiles, Customers: customers,
			Tasks: tasks, Visits: visits, Logger: log, Metrics: metrics,
		},
		Analytics: analytics,
	}.RegisterRoutes(r)
	e.router = r
	return e
}

func (e *env) addLead(owner string) string {
	return e.store.AddCustomer(domain.Customer{
		Name:       "PT Maju Jaya",
		Type:       domain.CustomerProspectDealer,
		Stage:      domain.NewStage(domain.StageNewLead),
		AssignedTo: &owner,
		CreatedBy:  &owner,
	})
}

func (e *env) do(t *testing.T, user, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(userHeader, user)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *env) doMultipart(t *testing.T, user, path string, fields map[string]string, fileField, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	buf := new(bytes.Buffer)
	mw := multipart.NewWriter(buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(userHeader, user)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}
