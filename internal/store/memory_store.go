package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ajitpratap0/facultyhub/internal/models"
)

// MemoryStore is an in-memory implementation of Store. It backs the "memory" driver
// and the package tests of every consumer.
//
// A MemoryStore built with WithReplicaSet(true) reports transaction support and runs
// RunInTx against a private copy of its state that replaces the live state on commit.
// Transactions hold the store's write lock for their whole duration.
type MemoryStore struct {
	mu         sync.RWMutex
	state      *memoryState
	replicaSet bool
}

var (
	_ Store      = (*MemoryStore)(nil)
	_ Transactor = (*MemoryStore)(nil)
)

type memoryState struct {
	professors  map[string]models.Professor // by ID
	emails      map[string]string           // email -> professor ID
	branches    map[string]models.Branch
	departments map[string]models.Department
	companies   map[string]struct{}
	news        map[string]models.NewsItem // by dedup key
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithReplicaSet makes the store advertise multi-record transactions.
func WithReplicaSet(enabled bool) MemoryOption {
	return func(m *MemoryStore) { m.replicaSet = enabled }
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{state: newMemoryState()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func newMemoryState() *memoryState {
	return &memoryState{
		professors:  make(map[string]models.Professor),
		emails:      make(map[string]string),
		branches:    make(map[string]models.Branch),
		departments: make(map[string]models.Department),
		companies:   make(map[string]struct{}),
		news:        make(map[string]models.NewsItem),
	}
}

func (s *memoryState) clone() *memoryState {
	c := newMemoryState()
	for k, v := range s.professors {
		c.professors[k] = v.Clone()
	}
	for k, v := range s.emails {
		c.emails[k] = v
	}
	for k, v := range s.branches {
		c.branches[k] = v
	}
	for k, v := range s.departments {
		v.Branches = models.CloneStrings(v.Branches)
		c.departments[k] = v
	}
	for k := range s.companies {
		c.companies[k] = struct{}{}
	}
	for k, v := range s.news {
		c.news[k] = v
	}
	return c
}

// EnsureSchema is a no-op for the memory store.
func (m *MemoryStore) EnsureSchema(_ context.Context) error {
	return nil
}

// ProbeTransactions reports the configured topology.
func (m *MemoryStore) ProbeTransactions(_ context.Context) (bool, error) {
	return m.replicaSet, nil
}

// RunInTx runs fn against a copy of the current state and publishes the copy when fn
// succeeds. Without replica-set mode it refuses to run.
func (m *MemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	if !m.replicaSet {
		return fmt.Errorf("%w: transactions require replica-set mode", ErrStorage)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &MemoryStore{state: m.state.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.state = tx.state
	return nil
}

// UpsertProfessor inserts or partially updates the professor keyed by email.
func (m *MemoryStore) UpsertProfessor(_ context.Context, email string, patch models.ProfessorPatch) (*models.Professor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var prof models.Professor
	if id, ok := m.state.emails[email]; ok {
		prof = m.state.professors[id].Clone()
	} else {
		prof = models.NewProfessor(uuid.NewString(), email)
	}
	patch.Apply(&prof)
	m.state.professors[prof.ID] = prof
	m.state.emails[email] = prof.ID

	out := prof.Clone()
	return &out, nil
}

// GetProfessor retrieves a professor by ID.
func (m *MemoryStore) GetProfessor(_ context.Context, id string) (*models.Professor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.state.professors[id]
	if !ok {
		return nil, fmt.Errorf("%w: professor %s", ErrNotFound, id)
	}
	out := p.Clone()
	return &out, nil
}

// DeleteProfessor removes a professor by ID.
func (m *MemoryStore) DeleteProfessor(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.state.professors[id]
	if !ok {
		return fmt.Errorf("%w: professor %s", ErrNotFound, id)
	}
	delete(m.state.professors, id)
	delete(m.state.emails, p.Email)
	return nil
}

func (m *MemoryStore) CountProfessors(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.state.professors), nil
}

func (m *MemoryStore) CountProfessorsByBranch(_ context.Context, branchID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, p := range m.state.professors {
		if p.Branch == branchID {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) DeleteProfessorsByBranches(_ context.Context, branchIDs []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := toSet(branchRefs(branchIDs))
	n := 0
	for id, p := range m.state.professors {
		if _, ok := set[p.Branch]; ok {
			delete(m.state.professors, id)
			delete(m.state.emails, p.Email)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) ListProfessors(_ context.Context) ([]models.Professor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Professor, 0, len(m.state.professors))
	for _, p := range m.state.professors {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (m *MemoryStore) GetBranch(_ context.Context, id string) (*models.Branch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.state.branches[id]
	if !ok {
		return nil, fmt.Errorf("%w: branch %s", ErrNotFound, id)
	}
	return &b, nil
}

func (m *MemoryStore) CreateBranch(_ context.Context, b models.Branch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.branches[b.ID]; ok {
		return fmt.Errorf("%w: branch %s", ErrConflict, b.ID)
	}
	m.state.branches[b.ID] = b
	return nil
}

func (m *MemoryStore) RenameBranch(_ context.Context, id, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.state.branches[id]
	if !ok {
		return fmt.Errorf("%w: branch %s", ErrNotFound, id)
	}
	b.Name = name
	m.state.branches[id] = b
	return nil
}

func (m *MemoryStore) UpsertBranch(_ context.Context, b models.Branch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.branches[b.ID] = b
	return nil
}

func (m *MemoryStore) DeleteBranches(_ context.Context, ids []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, id := range branchRefs(ids) {
		if _, ok := m.state.branches[id]; ok {
			delete(m.state.branches, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) ListBranches(_ context.Context) ([]models.Branch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Branch, 0, len(m.state.branches))
	for _, b := range m.state.branches {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) GetDepartment(_ context.Context, id string) (*models.Department, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.state.departments[id]
	if !ok {
		return nil, fmt.Errorf("%w: department %s", ErrNotFound, id)
	}
	d.Branches = models.CloneStrings(d.Branches)
	return &d, nil
}

func (m *MemoryStore) FindDepartmentByName(_ context.Context, name string) (*models.Department, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.state.departments))
	for id := range m.state.departments {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		d := m.state.departments[id]
		if d.Name == name {
			d.Branches = models.CloneStrings(d.Branches)
			return &d, nil
		}
	}
	return nil, fmt.Errorf("%w: department named %q", ErrNotFound, name)
}

func (m *MemoryStore) CreateDepartment(_ context.Context, d models.Department) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.departments[d.ID]; ok {
		return fmt.Errorf("%w: department %s", ErrConflict, d.ID)
	}
	d.Branches = branchRefs(d.Branches)
	m.state.departments[d.ID] = d
	return nil
}

func (m *MemoryStore) AddDepartmentBranch(_ context.Context, departmentID, branchID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.state.departments[departmentID]
	if !ok {
		return fmt.Errorf("%w: department %s", ErrNotFound, departmentID)
	}
	if !d.HasBranch(branchID) {
		d.Branches = append(models.CloneStrings(d.Branches), branchID)
		m.state.departments[departmentID] = d
	}
	return nil
}

func (m *MemoryStore) MergeDepartment(_ context.Context, d models.Department) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.state.departments[d.ID]
	if !ok {
		existing = models.Department{ID: d.ID}
	}
	existing.Name = d.Name
	existing.Branches = branchRefs(append(models.CloneStrings(existing.Branches), d.Branches...))
	m.state.departments[d.ID] = existing
	return nil
}

func (m *MemoryStore) PullBranchFromDepartments(_ context.Context, branchID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, d := range m.state.departments {
		if !d.HasBranch(branchID) {
			continue
		}
		kept := make([]string, 0, len(d.Branches))
		for _, b := range d.Branches {
			if b != branchID {
				kept = append(kept, b)
			}
		}
		d.Branches = kept
		m.state.departments[id] = d
	}
	return nil
}

func (m *MemoryStore) DeleteDepartment(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.departments[id]; !ok {
		return fmt.Errorf("%w: department %s", ErrNotFound, id)
	}
	delete(m.state.departments, id)
	return nil
}

func (m *MemoryStore) ListDepartments(_ context.Context) ([]models.Department, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Department, 0, len(m.state.departments))
	for _, d := range m.state.departments {
		d.Branches = models.CloneStrings(d.Branches)
		if d.Branches == nil {
			d.Branches = []string{}
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) InsertCompanies(_ context.Context, names []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, name := range names {
		if _, ok := m.state.companies[name]; ok {
			continue
		}
		m.state.companies[name] = struct{}{}
		n++
	}
	return n, nil
}

func (m *MemoryStore) ListCompanies(_ context.Context) ([]models.Company, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Company, 0, len(m.state.companies))
	for name := range m.state.companies {
		out = append(out, models.Company{Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryStore) InsertNewsIfAbsent(_ context.Context, items []models.NewsItem) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inserted := 0
	var errs []error
	for _, item := range items {
		if item.Title == "" {
			errs = append(errs, fmt.Errorf("news item %q: title is required", item.Link))
			continue
		}
		key := item.DedupKey()
		if _, ok := m.state.news[key]; ok {
			continue
		}
		item.ID = uuid.NewString()
		m.state.news[key] = item
		inserted++
	}
	return inserted, errors.Join(errs...)
}

func (m *MemoryStore) ListNews(_ context.Context, limit int) ([]models.NewsItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.NewsItem, 0, len(m.state.news))
	for _, n := range m.state.news {
		out = append(out, n)
	}
	models.SortNewsNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) DeleteExpiredNews(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for key, item := range m.state.news {
		if item.Expired(now) {
			delete(m.state.news, key)
			n++
		}
	}
	return n, nil
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error {
	return nil
}

// --- helpers ---

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// branchRefs dedupes branch IDs and drops the empty ID, which marks a
// professor without a branch and never names a stored branch.
func branchRefs(ids []string) []string {
	out := dedupe(ids)
	kept := out[:0]
	for _, id := range out {
		if id != "" {
			kept = append(kept, id)
		}
	}
	return kept
}
