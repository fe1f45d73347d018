package service_test

import (
	"time"

	"crm-backend/internal/domain"
	"crm-backend/internal/observability"
	"crm-backend/internal/service"
	"crm-backend/internal/testutil"

	"go.uber.org/zap"
)

const (
	bdmID        = "bdm-1"
	otherBDMID   = "bdm-2"
	adminID      = "admin-1"
	superAdminID = "super-1"
)

var testNow = time.Date(2024, 5, 20, 9, 30, 0, 0, time.UTC)

type harness struct {
	store    *testutil.MemStore
	registry *testutil.Registry
	objects  *testutil.Objects
	metrics  *observability.Metrics

	gate      service.AccessGate
	pipeline  service.PipelineService
	visits    service.VisitService
	customers service.CustomerService
	tasks     service.TaskService
	profiles  service.ProfileService
	dashboard service.DashboardService
	analytics service.AnalyticsService
	admin     service.AdminService
}

func newHarness() *harness {
	store := testutil.NewMemStore()
	store.Now = testutil.FixedClock(testNow)
	store.AddProfile(bdmID, "Budi", domain.RoleBDM)
	store.AddProfile(otherBDMID, "Sari", domain.RoleBDM)
	store.AddProfile(adminID, "Ayu", domain.RoleAdmin)
	store.AddProfile(superAdminID, "Rudi", domain.RoleSuperAdmin)

	h := &harness{
		store:    store,
		registry: testutil.NewRegistry(),
		objects:  testutil.NewObjects(),
		metrics:  observability.NewMetrics(),
	}
	log := zap.NewNop()
	customers := testutil.CustomerStore{MemStore: store}
	visits := testutil.VisitStore{MemStore: store}
	tasks := testutil.TaskStore{MemStore: store}
	profiles := testutil.ProfileStore{MemStore: store}

	h.gate = service.AccessGate{
		Profiles: profiles,
		Policy:   service.DefaultPolicy(nil),
		Logger:   log,
		Metrics:  h.metrics,
	}
	h.pipeline = service.PipelineService{Customers: customers, Gate: h.gate}
	h.visits = service.VisitService{
		Visits:   visits,
		Tasks:    tasks,
		Pipeline: h.pipeline,
		Photos:   h.objects,
		Places:   testutil.Places{Name: "Jl. Sudirman, Jakarta"},
		Gate:     h.gate,
		Logger:   log,
		Metrics:  h.metrics,
		Now:      testutil.FixedClock(testNow),
	}
	h.customers = service.CustomerService{
		Customers: customers,
		Visits:    visits,
		Photos:    h.objects,
		Gate:      h.gate,
		Logger:    log,
		Metrics:   h.metrics,
		Now:       testutil.FixedClock(testNow),
	}
	h.tasks = service.TaskService{Tasks: tasks}
	h.profiles = service.ProfileService{Profiles: profiles, Identities: h.registry, Logger: log, Metrics: h.metrics}
	h.dashboard = service.DashboardService{Tasks: tasks, Visits: visits, Customers: customers, Now: testutil.FixedClock(testNow)}
	h.analytics = service.AnalyticsService{
		Stats:    testutil.StatsStore{MemStore: store},
		Profiles: profiles,
		Gate:     h.gate,
		Now:      testutil.FixedClock(testNow),
	}
	h.admin = service.AdminService{
		Gate:       h.gate,
		Identities: h.registry,
		Profiles:   profiles,
		Customers:  customers,
		Tasks:      tasks,
		Visits:     visits,
		Logger:     log,
		Metrics:    h.metrics,
	}
	return h
}

func (h *harness) addLead(owner string, stage domain.Stage) string {
	return h.store.AddCustomer(domain.Customer{
		Name:       "PT Maju Jaya",
		Type:       domain.CustomerProspectDealer,
		Stage:      stage,
		AssignedTo: &owner,
		CreatedBy:  &owner,
	})
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}
