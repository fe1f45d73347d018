package service

import (
	"context"
	"math"
	"sort"
	"strconv"
	"time"

	"crm-backend/internal/domain"
	"crm-backend/internal/ports"

	"golang.org/x/sync/errgroup"
)

const (
	topBDMLimit    = 5
	growthWindow   = 30
	unknownBDMName = "Unknown"
)

type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type CustomerStats struct {
	Total  int `json:"total"`
	Growth int `json:"growth"`
}

type BDMVisits struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type KPIs struct {
	TotalCustomers int    `json:"totalCustomers"`
	ClosedDeals    int    `json:"closedDeals"`
	OpenDeals      int    `json:"openDeals"`
	WinRate        string `json:"winRate"`
	TotalVisits    int    `json:"totalVisits"`
}

type StageBucket struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

type AgentStats struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	TotalLeads   int    `json:"totalLeads"`
	ClosedDeals  int    `json:"closedDeals"`
	ActiveLeads  int    `json:"activeLeads"`
	TotalVisits  int    `json:"totalVisits"`
	PendingTasks int    `json:"pendingTasks"`
	WinRate      int    `json:"winRate"`
}

type AdminStats struct {
	KPI      KPIs          `json:"kpi"`
	Pipeline []StageBucket `json:"pipeline"`
	Agents   []AgentStats  `json:"agents"`
}

// AnalyticsService serves the chart data and the admin dashboard.
type AnalyticsService struct {
	Stats    ports.StatsStore
	Profiles ports.ProfileStore
	Gate     AccessGate
	Now      func() time.Time
}

// VisitStats returns one count per UTC day over the last week or month,
// oldest first, including days without visits.
func (s AnalyticsService) VisitStats(ctx context.Context, period string) ([]DailyCount, error) {
	if _, err := currentUser(ctx); err != nil {
		return nil, err
	}
	days := 7
	switch period {
	case "", "week":
	case "month":
		days = 30
	default:
		return nil, &domain.ValidationError{Field: "period", Message: "must be week or month"}
	}
	today, _ := dayBounds(nowUTC(s.Now))
	start := today.AddDate(0, 0, -(days - 1))

	counts, err := s.Stats.DailyVisitCounts(ctx, start)
	if err != nil {
		return nil, err
	}
	out := make([]DailyCount, 0, days)
	for d := start; !d.After(today); d = d.AddDate(0, 0, 1) {
		key := d.Format(dateKeyLayout)
		out = append(out, DailyCount{Date: key, Count: counts[key]})
	}
	return out, nil
}

const dateKeyLayout = "2006-01-02"

func (s AnalyticsService) CustomerStats(ctx context.Context) (*CustomerStats, error) {
	if _, err := currentUser(ctx); err != nil {
		return nil, err
	}
	since := nowUTC(s.Now).AddDate(0, 0, -growthWindow)
	var out CustomerStats
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.Stats.CountCustomers(gCtx, nil)
		out.Total = n
		return err
	})
	g.Go(func() error {
		n, err := s.Stats.CountCustomers(gCtx, &since)
		out.Growth = n
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &out, nil
}

// TopBDMs ranks users by visit count. Callers without dashboard access get
// an empty list rather than an error.
func (s AnalyticsService) TopBDMs(ctx context.Context) ([]BDMVisits, error) {
	if !s.Gate.Allowed(ctx, ActionAdminDashboard) {
		return []BDMVisits{}, nil
	}
	var (
		counts   map[string]int
		profiles []domain.Profile
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		counts, err = s.Stats.VisitCountsByUser(gCtx)
		return err
	})
	g.Go(func() error {
		var err error
		profiles, err = s.Profiles.List(gCtx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	names := make(map[string]string, len(profiles))
	for _, p := range profiles {
		names[p.ID] = p.FullName
	}
	out := make([]BDMVisits, 0, len(counts))
	for id, n := range counts {
		name := names[id]
		if name == "" {
			name = unknownBDMName
		}
		out = append(out, BDMVisits{ID: id, Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > topBDMLimit {
		out = out[:topBDMLimit]
	}
	return out, nil
}

// AdminDashboard aggregates KPIs, the pipeline distribution and per-BDM
// performance. Stages are counted by bucket, so an outcome-qualified
// Closed stage counts as Closed.
func (s AnalyticsService) AdminDashboard(ctx context.Context) (*AdminStats, error) {
	if _, err := s.Gate.Authorize(ctx, ActionAdminDashboard); err != nil {
		return nil, err
	}

	var (
		profiles    []domain.Profile
		stages      []ports.StageCount
		totalVisits int
		visitsBy    map[string]int
		pendingBy   map[string]int
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		profiles, err = s.Profiles.List(gCtx)
		return err
	})
	g.Go(func() (err error) {
		stages, err = s.Stats.StageCounts(gCtx)
		return err
	})
	g.Go(func() (err error) {
		totalVisits, err = s.Stats.CountVisits(gCtx)
		return err
	})
	g.Go(func() (err error) {
		visitsBy, err = s.Stats.VisitCountsByUser(gCtx)
		return err
	})
	g.Go(func() (err error) {
		pendingBy, err = s.Stats.PendingTasksByUser(gCtx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	type tally struct{ total, closed, won int }
	perAssignee := make(map[string]*tally)
	buckets := make([]int, len(domain.Pipeline))
	var all tally
	for _, sc := range stages {
		stage := domain.ParseStage(sc.Stage)
		closed := stage.IsClosed()
		// A bare "Closed" predates outcomes and was always a win.
		won := stage.Converted() || stage.String() == string(domain.StageClosed)
		all.total += sc.Count
		if closed {
			all.closed += sc.Count
		}
		if won {
			all.won += sc.Count
		}
		if i := stage.Index(); i >= 0 {
			buckets[i] += sc.Count
		}
		if sc.AssigneeID == nil {
			continue
		}
		t := perAssignee[*sc.AssigneeID]
		if t == nil {
			t = &tally{}
			perAssignee[*sc.AssigneeID] = t
		}
		t.total += sc.Count
		if closed {
			t.closed += sc.Count
		}
		if won {
			t.won += sc.Count
		}
	}

	out := &AdminStats{
		KPI: KPIs{
			TotalCustomers: all.total,
			ClosedDeals:    all.closed,
			OpenDeals:      all.total - all.closed,
			WinRate:        "0.0",
			TotalVisits:    totalVisits,
		},
		Pipeline: make([]StageBucket, 0, len(domain.Pipeline)),
		Agents:   []AgentStats{},
	}
	if all.total > 0 {
		out.KPI.WinRate = formatOneDecimal(float64(all.won) / float64(all.total) * 100)
	}
	for i, p := range domain.Pipeline {
		out.Pipeline = append(out.Pipeline, StageBucket{Name: string(p), Value: buckets[i]})
	}
	for _, p := range profiles {
		if p.Role != domain.RoleBDM {
			continue
		}
		a := AgentStats{ID: p.ID, Name: p.FullName, TotalVisits: visitsBy[p.ID], PendingTasks: pendingBy[p.ID]}
		if a.Name == "" {
			a.Name = unknownBDMName
		}
		if t := perAssignee[p.ID]; t != nil {
			a.TotalLeads = t.total
			a.ClosedDeals = t.closed
			a.ActiveLeads = t.total - t.closed
			a.WinRate = int(math.Round(float64(t.won) / float64(t.total) * 100))
		}
		out.Agents = append(out.Agents, a)
	}
	return out, nil
}

func formatOneDecimal(v float64) string {
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', 1, 64)
}
