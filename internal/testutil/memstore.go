// Package testutil holds in-memory stores and fakes for service and handler
// tests.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"crm-backend/internal/domain"
	"crm-backend/internal/ports"
)

// Operation names accepted by MemStore.FailOn.
const (
	OpCustomerCreate       = "customers.create"
	OpCustomerGet          = "customers.get"
	OpCustomerUpdateStage  = "customers.update_stage"
	OpCustomerMeetings     = "customers.adjust_meetings"
	OpCustomerUnassignAll  = "customers.unassign_all"
	OpCustomerDetachAuthor = "customers.detach_author"
	OpCustomerAssign       = "customers.set_assignee"
	OpVisitCreate          = "visits.create"
	OpVisitList            = "visits.list"
	OpVisitDetach          = "visits.detach"
	OpTaskCreate           = "tasks.create"
	OpTaskComplete         = "tasks.complete"
	OpTaskDeleteByUser     = "tasks.delete_by_user"
	OpProfileGet           = "profiles.get"
	OpProfileUpdate        = "profiles.update"
	OpProfileInsert        = "profiles.insert"
	OpProfileUpdateRole    = "profiles.update_role"
	OpProfileContact       = "profiles.update_contact"
	OpProfileDelete        = "profiles.delete"
	OpStats                = "stats"
)

// MemStore implements the customer, visit, task, profile and stats stores
// in memory. Any operation can be made to fail with FailOn.
type MemStore struct {
	mu        sync.Mutex
	seq       int
	fail      map[string]error
	calls     map[string]int
	Customers map[string]*domain.Customer
	Visits    []domain.Visit
	Tasks     map[string]*domain.Task
	Profiles  map[string]*domain.Profile
	Now       func() time.Time
}

func NewMemStore() *MemStore {
	return &MemStore{
		fail:      map[string]error{},
		calls:     map[string]int{},
		Customers: map[string]*domain.Customer{},
		Tasks:     map[string]*domain.Task{},
		Profiles:  map[string]*domain.Profile{},
	}
}

// FailOn makes every later call of op return err.
func (m *MemStore) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[op] = err
}

// Calls returns how many times op was invoked.
func (m *MemStore) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *MemStore) enter(op string) error {
	m.calls[op]++
	if err, ok := m.fail[op]; ok {
		return &domain.PersistenceError{Op: op, Err: err}
	}
	return nil
}

func (m *MemStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *MemStore) now() time.Time {
	if m.Now != nil {
		return m.Now().UTC()
	}
	return time.Now().UTC()
}

// AddProfile seeds a profile row.
func (m *MemStore) AddProfile(id, name string, role domain.UserRole) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Profiles[id] = &domain.Profile{ID: id, FullName: name, Role: role}
}

// AddCustomer seeds a customer and returns its id.
func (m *MemStore) AddCustomer(c domain.Customer) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = m.nextID("cust")
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = m.now()
	}
	m.Customers[c.ID] = &c
	return c.ID
}

// AddTask seeds a task and returns its id.
func (m *MemStore) AddTask(t domain.Task) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == "" {
		t.ID = m.nextID("task")
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = m.now()
	}
	m.Tasks[t.ID] = &t
	return t.ID
}

// Customer returns a copy of the stored customer.
func (m *MemStore) Customer(id string) (domain.Customer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.Customers[id]
	if !ok {
		return domain.Customer{}, false
	}
	return *c, true
}

// Task returns a copy of the stored task.
func (m *MemStore) Task(id string) (domain.Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.Tasks[id]
	if !ok {
		return domain.Task{}, false
	}
	return *t, true
}

// TasksOf returns the stored tasks of a user.
func (m *MemStore) TasksOf(userID string) []domain.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Task
	for _, t := range m.Tasks {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	return out
}

// Store views over one MemStore.
type CustomerStore struct{ *MemStore }
type VisitStore struct{ *MemStore }
type TaskStore struct{ *MemStore }
type ProfileStore struct{ *MemStore }
type StatsStore struct{ *MemStore }

var (
	_ ports.CustomerStore = CustomerStore{}
	_ ports.VisitStore    = VisitStore{}
	_ ports.TaskStore     = TaskStore{}
	_ ports.ProfileStore  = ProfileStore{}
	_ ports.StatsStore    = StatsStore{}
)

func (s CustomerStore) Create(_ context.Context, c domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpCustomerCreate); err != nil {
		return nil, err
	}
	c.ID = s.nextID("cust")
	c.CreatedAt = s.now()
	s.Customers[c.ID] = &c
	out := c
	return &out, nil
}

func (s CustomerStore) Get(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpCustomerGet); err != nil {
		return nil, err
	}
	c, ok := s.Customers[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *c
	return &out, nil
}

func (s CustomerStore) GetDetail(ctx context.Context, id string) (*domain.CustomerDetail, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d := &domain.CustomerDetail{Customer: *c}
	if c.CreatedBy != nil {
		if p, ok := s.Profiles[*c.CreatedBy]; ok {
			d.CreatedByName = p.FullName
		}
	}
	if c.LastEditedBy != nil {
		if p, ok := s.Profiles[*c.LastEditedBy]; ok {
			d.LastEditedByName = p.FullName
		}
	}
	return d, nil
}

func (s CustomerStore) ListAssignedTo(_ context.Context, userID string, f ports.CustomerFilter) ([]domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Customer
	for _, c := range s.Customers {
		if c.AssignedTo == nil || *c.AssignedTo != userID {
			continue
		}
		if f.Type != "" && c.Type != f.Type {
			continue
		}
		if f.Bucket != "" && !c.Stage.InBucket(f.Bucket) {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s CustomerStore) ListAssignments(_ context.Context) ([]domain.CustomerAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.CustomerAssignment, 0, len(s.Customers))
	for _, c := range s.Customers {
		a := domain.CustomerAssignment{Customer: *c}
		if c.AssignedTo != nil {
			if p, ok := s.Profiles[*c.AssignedTo]; ok {
				a.AssigneeName = p.FullName
				a.AssigneeRole = p.Role
			}
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s CustomerStore) UpdateDetails(_ context.Context, id string, d ports.CustomerDetails, editorID string) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.Customers[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	now := s.now()
	c.Name, c.ContactPerson, c.Phone, c.Address, c.City = d.Name, d.ContactPerson, d.Phone, d.Address, d.City
	c.LastEditedBy = &editorID
	c.LastEditedAt = &now
	out := *c
	return &out, nil
}

func (s CustomerStore) UpdateStage(_ context.Context, id string, stage domain.Stage, promoteProspect bool) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpCustomerUpdateStage); err != nil {
		return nil, err
	}
	c, ok := s.Customers[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c.Stage = stage
	if promoteProspect && c.Type == domain.CustomerProspectDealer {
		c.Type = domain.CustomerDealer
	}
	out := *c
	return &out, nil
}

func (s CustomerStore) AdjustMeetingCount(_ context.Context, id string, delta int) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpCustomerMeetings); err != nil {
		return nil, err
	}
	c, ok := s.Customers[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c.MeetingCount = domain.ApplyMeetingDelta(c.MeetingCount, delta)
	out := *c
	return &out, nil
}

func (s CustomerStore) SetAssignee(_ context.Context, id string, userID *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpCustomerAssign); err != nil {
		return err
	}
	c, ok := s.Customers[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.AssignedTo = userID
	return nil
}

func (s CustomerStore) UnassignAllFrom(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpCustomerUnassignAll); err != nil {
		return 0, err
	}
	var n int64
	for _, c := range s.Customers {
		if c.AssignedTo != nil && *c.AssignedTo == userID {
			c.AssignedTo = nil
			n++
		}
	}
	return n, nil
}

func (s CustomerStore) DetachAuthor(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpCustomerDetachAuthor); err != nil {
		return 0, err
	}
	var n int64
	for _, c := range s.Customers {
		touched := false
		if c.CreatedBy != nil && *c.CreatedBy == userID {
			c.CreatedBy = nil
			touched = true
		}
		if c.LastEditedBy != nil && *c.LastEditedBy == userID {
			c.LastEditedBy = nil
			touched = true
		}
		if touched {
			n++
		}
	}
	return n, nil
}

func (s VisitStore) Create(_ context.Context, v domain.Visit) (*domain.Visit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpVisitCreate); err != nil {
		return nil, err
	}
	if _, ok := s.Customers[v.CustomerID]; !ok {
		return nil, &domain.ValidationError{Field: "customer_id", Message: "customer does not exist"}
	}
	v.ID = s.nextID("visit")
	if v.Timestamp.IsZero() {
		v.Timestamp = s.now()
	}
	s.Visits = append(s.Visits, v)
	out := v
	return &out, nil
}

func (s VisitStore) List(_ context.Context, f ports.VisitFilter) ([]domain.VisitEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpVisitList); err != nil {
		return nil, err
	}
	var out []domain.VisitEntry
	for _, v := range s.Visits {
		if f.CustomerID != "" && v.CustomerID != f.CustomerID {
			continue
		}
		if f.UserID != "" && (v.UserID == nil || *v.UserID != f.UserID) {
			continue
		}
		if f.Start != nil && v.Timestamp.Before(*f.Start) {
			continue
		}
		if f.End != nil && !v.Timestamp.Before(*f.End) {
			continue
		}
		e := domain.VisitEntry{Visit: v}
		if c, ok := s.Customers[v.CustomerID]; ok {
			e.CustomerName = c.Name
		}
		if v.UserID != nil {
			if p, ok := s.Profiles[*v.UserID]; ok {
				e.UserName = p.FullName
			}
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (s VisitStore) DetachUser(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpVisitDetach); err != nil {
		return 0, err
	}
	var n int64
	for i := range s.Visits {
		if u := s.Visits[i].UserID; u != nil && *u == userID {
			s.Visits[i].UserID = nil
			n++
		}
	}
	return n, nil
}

func (s TaskStore) Create(_ context.Context, t domain.Task) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpTaskCreate); err != nil {
		return nil, err
	}
	t.ID = s.nextID("task")
	t.CreatedAt = s.now()
	s.Tasks[t.ID] = &t
	out := t
	return &out, nil
}

func (s TaskStore) ListOpenDueOn(_ context.Context, userID string, day time.Time) ([]domain.Task, error) {
	want := day.Format("2006-01-02")
	return s.filter(func(t *domain.Task) bool {
		return t.UserID == userID && !t.IsCompleted && t.DueDate != nil && t.DueDate.Format("2006-01-02") == want
	}, func(a, b domain.Task) bool { return a.CreatedAt.After(b.CreatedAt) }), nil
}

func (s TaskStore) ListPending(_ context.Context, userID string) ([]domain.Task, error) {
	return s.filter(func(t *domain.Task) bool {
		return t.UserID == userID && !t.IsCompleted
	}, func(a, b domain.Task) bool {
		if a.DueDate == nil || b.DueDate == nil {
			return b.DueDate == nil && a.DueDate != nil
		}
		return a.DueDate.Before(*b.DueDate)
	}), nil
}

func (s TaskStore) filter(keep func(*domain.Task) bool, less func(a, b domain.Task) bool) []domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Task
	for _, t := range s.Tasks {
		if keep(t) {
			out = append(out, *t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func (s TaskStore) CompleteForUser(_ context.Context, id, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpTaskComplete); err != nil {
		return false, err
	}
	t, ok := s.Tasks[id]
	if !ok || t.UserID != userID {
		return false, nil
	}
	t.IsCompleted = true
	return true, nil
}

func (s TaskStore) DeleteByUser(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpTaskDeleteByUser); err != nil {
		return 0, err
	}
	var n int64
	for id, t := range s.Tasks {
		if t.UserID == userID {
			delete(s.Tasks, id)
			n++
		}
	}
	return n, nil
}

func (s ProfileStore) Get(_ context.Context, id string) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpProfileGet); err != nil {
		return nil, err
	}
	p, ok := s.Profiles[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *p
	return &out, nil
}

func (s ProfileStore) List(_ context.Context) ([]domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Profile, 0, len(s.Profiles))
	for _, p := range s.Profiles {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (s ProfileStore) Insert(_ context.Context, p domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpProfileInsert); err != nil {
		return err
	}
	if _, ok := s.Profiles[p.ID]; ok {
		return &domain.PersistenceError{Op: OpProfileInsert, Err: fmt.Errorf("duplicate key %s", p.ID)}
	}
	s.Profiles[p.ID] = &p
	return nil
}

func (s ProfileStore) Update(_ context.Context, p domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpProfileUpdate); err != nil {
		return err
	}
	cur, ok := s.Profiles[p.ID]
	if !ok {
		return domain.ErrNotFound
	}
	cur.FullName, cur.Phone, cur.Role = p.FullName, p.Phone, p.Role
	return nil
}

func (s ProfileStore) UpdateContact(_ context.Context, id, fullName, phone string) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpProfileContact); err != nil {
		return nil, err
	}
	p, ok := s.Profiles[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	now := s.now()
	p.FullName, p.Phone, p.UpdatedAt = fullName, phone, &now
	out := *p
	return &out, nil
}

func (s ProfileStore) UpdateRole(_ context.Context, id string, role domain.UserRole) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpProfileUpdateRole); err != nil {
		return err
	}
	p, ok := s.Profiles[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Role = role
	return nil
}

func (s ProfileStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpProfileDelete); err != nil {
		return err
	}
	if _, ok := s.Profiles[id]; !ok {
		return domain.ErrNotFound
	}
	if ref := s.referenceTo(id); ref != "" {
		return &domain.PersistenceError{Op: OpProfileDelete, Err: fmt.Errorf("foreign key violation: %s still references profile %s", ref, id)}
	}
	delete(s.Profiles, id)
	return nil
}

// referenceTo names the first column still pointing at profile id, the
// way the foreign keys in the schema would reject the delete.
func (m *MemStore) referenceTo(id string) string {
	is := func(p *string) bool { return p != nil && *p == id }
	for _, c := range m.Customers {
		switch {
		case is(c.AssignedTo):
			return "customers.assigned_to"
		case is(c.CreatedBy):
			return "customers.created_by"
		case is(c.LastEditedBy):
			return "customers.last_edited_by"
		}
	}
	for _, v := range m.Visits {
		if is(v.UserID) {
			return "visits.user_id"
		}
	}
	for _, t := range m.Tasks {
		if t.UserID == id {
			return "tasks.user_id"
		}
	}
	return ""
}

func (s StatsStore) CountCustomers(_ context.Context, createdSince *time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpStats); err != nil {
		return 0, err
	}
	n := 0
	for _, c := range s.Customers {
		if createdSince == nil || !c.CreatedAt.Before(*createdSince) {
			n++
		}
	}
	return n, nil
}

func (s StatsStore) StageCounts(_ context.Context) ([]ports.StageCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpStats); err != nil {
		return nil, err
	}
	type key struct{ assignee, stage string }
	counts := map[key]int{}
	for _, c := range s.Customers {
		k := key{stage: c.Stage.String()}
		if c.AssignedTo != nil {
			k.assignee = *c.AssignedTo
		}
		counts[k]++
	}
	out := make([]ports.StageCount, 0, len(counts))
	for k, n := range counts {
		sc := ports.StageCount{Stage: k.stage, Count: n}
		if k.assignee != "" {
			id := k.assignee
			sc.AssigneeID = &id
		}
		out = append(out, sc)
	}
	return out, nil
}

func (s StatsStore) CountVisits(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpStats); err != nil {
		return 0, err
	}
	return len(s.Visits), nil
}

func (s StatsStore) DailyVisitCounts(_ context.Context, since time.Time) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpStats); err != nil {
		return nil, err
	}
	out := map[string]int{}
	for _, v := range s.Visits {
		if !v.Timestamp.Before(since) {
			out[v.Timestamp.UTC().Format("2006-01-02")]++
		}
	}
	return out, nil
}

func (s StatsStore) VisitCountsByUser(_ context.Context) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpStats); err != nil {
		return nil, err
	}
	out := map[string]int{}
	for _, v := range s.Visits {
		if v.UserID != nil {
			out[*v.UserID]++
		}
	}
	return out, nil
}

func (s StatsStore) PendingTasksByUser(_ context.Context) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpStats); err != nil {
		return nil, err
	}
	out := map[string]int{}
	for _, t := range s.Tasks {
		if !t.IsCompleted {
			out[t.UserID]++
		}
	}
	return out, nil
}
