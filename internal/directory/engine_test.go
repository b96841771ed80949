package directory_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/facultyhub/internal/directory"
	"github.com/ajitpratap0/facultyhub/internal/models"
	"github.com/ajitpratap0/facultyhub/internal/store"
)

var errInjected = errors.New("injected failure")

func newTestLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strPtr(s string) *string { return &s }

func newEngine(t *testing.T, s store.Store) *directory.Engine {
	t.Helper()
	logger := newTestLogger(t)
	return directory.NewEngine(s, directory.NewTxDetector(s, false, logger), logger)
}

func newSQLiteStore(t *testing.T) store.Store {
	t.Helper()
	ctx := context.Background()
	s, err := store.OpenSQL(ctx, store.DialectSQLite, filepath.Join(t.TempDir(), "directory.db"))
	require.NoError(t, err)
	require.NoError(t, s.EnsureSchema(ctx))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// faultyStore fails the named methods and wraps transaction-scoped stores the same way.
type faultyStore struct {
	store.Store
	fail map[string]bool
}

func (f *faultyStore) check(method string) error {
	if f.fail[method] {
		return errInjected
	}
	return nil
}

func (f *faultyStore) CreateBranch(ctx context.Context, b models.Branch) error {
	if err := f.check("CreateBranch"); err != nil {
		return err
	}
	return f.Store.CreateBranch(ctx, b)
}

func (f *faultyStore) CreateDepartment(ctx context.Context, d models.Department) error {
	if err := f.check("CreateDepartment"); err != nil {
		return err
	}
	return f.Store.CreateDepartment(ctx, d)
}

func (f *faultyStore) PullBranchFromDepartments(ctx context.Context, branchID string) error {
	if err := f.check("PullBranchFromDepartments"); err != nil {
		return err
	}
	return f.Store.PullBranchFromDepartments(ctx, branchID)
}

func (f *faultyStore) DeleteDepartment(ctx context.Context, id string) error {
	if err := f.check("DeleteDepartment"); err != nil {
		return err
	}
	return f.Store.DeleteDepartment(ctx, id)
}

func (f *faultyStore) ProbeTransactions(ctx context.Context) (bool, error) {
	tr, ok := f.Store.(store.Transactor)
	if !ok {
		return false, nil
	}
	return tr.ProbeTransactions(ctx)
}

func (f *faultyStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	tr, ok := f.Store.(store.Transactor)
	if !ok {
		return store.ErrStorage
	}
	return tr.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		return fn(ctx, &faultyStore{Store: tx, fail: f.fail})
	})
}

func upsert(t *testing.T, e *directory.Engine, body string) *models.Professor {
	t.Helper()
	payload, err := directory.DecodeProfessorPayload(strings.NewReader(body))
	require.NoError(t, err)
	p, err := e.UpsertProfessor(context.Background(), payload)
	require.NoError(t, err)
	return p
}

func TestUpsertProfessor_CreatesBranchWithIDAsName(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	e := newEngine(t, s)

	p := upsert(t, e, `{"email":"ada@uni.edu","name":"Ada","branch":"branch-ai"}`)
	assert.Equal(t, "branch-ai", p.Branch)

	b, err := s.GetBranch(ctx, "branch-ai")
	require.NoError(t, err)
	assert.Equal(t, "branch-ai", b.Name)
}

func TestUpsertProfessor_RenamesBranchLastWriterWins(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	e := newEngine(t, s)

	upsert(t, e, `{"email":"a@uni.edu","branch":"br-rob","branchName":"Robotics"}`)
	b, err := s.GetBranch(ctx, "br-rob")
	require.NoError(t, err)
	assert.Equal(t, "Robotics", b.Name)

	upsert(t, e, `{"email":"b@uni.edu","branch":"br-rob","branchName":"  Robotics Lab  "}`)
	b, err = s.GetBranch(ctx, "br-rob")
	require.NoError(t, err)
	assert.Equal(t, "Robotics Lab", b.Name)

	upsert(t, e, `{"email":"c@uni.edu","branch":"br-rob","branchName":"   "}`)
	b, err = s.GetBranch(ctx, "br-rob")
	require.NoError(t, err)
	assert.Equal(t, "Robotics Lab", b.Name)
}

func TestUpsertProfessor_DepartmentBookkeeping(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	e := newEngine(t, s)

	upsert(t, e, `{"email":"a@uni.edu","branch":"br-ai","departmentId":"d-cs","departmentName":"Computer Science"}`)
	d, err := s.GetDepartment(ctx, "d-cs")
	require.NoError(t, err)
	assert.Equal(t, "Computer Science", d.Name)
	assert.Equal(t, []string{"br-ai"}, d.Branches)

	upsert(t, e, `{"email":"b@uni.edu","branch":"br-sec","departmentId":"d-cs","departmentName":"Ignored"}`)
	upsert(t, e, `{"email":"c@uni.edu","branch":"br-ai","departmentId":"d-cs"}`)
	d, err = s.GetDepartment(ctx, "d-cs")
	require.NoError(t, err)
	assert.Equal(t, "Computer Science", d.Name)
	assert.ElementsMatch(t, []string{"br-ai", "br-sec"}, d.Branches)

	upsert(t, e, `{"email":"d@uni.edu","departmentId":"d-math"}`)
	d, err = s.GetDepartment(ctx, "d-math")
	require.NoError(t, err)
	assert.Equal(t, "d-math", d.Name)
	assert.Empty(t, d.Branches)
}

func TestUpsertProfessor_PartialUpdatePreservesOmittedFields(t *testing.T) {
	s := store.NewMemoryStore()
	e := newEngine(t, s)

	first := upsert(t, e, `{"email":"a@uni.edu","name":"Ada","research":["robotics"],"links":{"webpage":"https://a"}}`)
	second := upsert(t, e, `{"id":"ignored","email":"a@uni.edu","position":"Professor"}`)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Ada", second.Name)
	assert.Equal(t, "Professor", second.Position)
	assert.Equal(t, []string{"robotics"}, second.Research)
	assert.Equal(t, "https://a", second.Links.Webpage)

	third := upsert(t, e, `{"email":"a@uni.edu","research":[]}`)
	assert.Empty(t, third.Research)
}

func TestUpsertProfessor_Validation(t *testing.T) {
	e := newEngine(t, store.NewMemoryStore())

	_, err := e.UpsertProfessor(context.Background(), directory.ProfessorPayload{Email: "   "})
	assert.ErrorIs(t, err, directory.ErrValidation)

	_, err = directory.DecodeProfessorPayload(strings.NewReader(`{"name":"No Email"}`))
	assert.ErrorIs(t, err, directory.ErrValidation)

	_, err = directory.DecodeProfessorPayload(strings.NewReader(`{"email":"a@uni.edu","salary":1}`))
	assert.ErrorIs(t, err, directory.ErrValidation)

	_, err = directory.DecodeProfessorPayload(strings.NewReader(`{"email":"a@uni.edu","links":{"twitter":"x"}}`))
	assert.ErrorIs(t, err, directory.ErrValidation)

	_, err = directory.DecodeProfessorPayload(strings.NewReader(`not json`))
	assert.ErrorIs(t, err, directory.ErrValidation)
}

func TestUpsertProfessor_BookkeepingFailureDoesNotFailUpsert(t *testing.T) {
	ctx := context.Background()
	inner := store.NewMemoryStore()
	s := &faultyStore{Store: inner, fail: map[string]bool{"CreateBranch": true, "CreateDepartment": true}}
	e := newEngine(t, s)

	p := upsert(t, e, `{"email":"a@uni.edu","branch":"br-x","departmentId":"d-x"}`)
	assert.Equal(t, "br-x", p.Branch)

	stored, err := inner.GetProfessor(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@uni.edu", stored.Email)

	_, err = inner.GetBranch(ctx, "br-x")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteProfessor_RemovesLastReferencedBranch(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	e := newEngine(t, s)

	p := upsert(t, e, `{"email":"a@uni.edu","branch":"br-solo","departmentId":"d-1"}`)
	upsert(t, e, `{"email":"b@uni.edu","branch":"br-keep","departmentId":"d-1"}`)

	res, err := e.DeleteProfessor(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "br-solo", res.RemovedBranch)
	assert.False(t, res.Atomic)

	_, err = s.GetBranch(ctx, "br-solo")
	assert.ErrorIs(t, err, store.ErrNotFound)
	d, err := s.GetDepartment(ctx, "d-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"br-keep"}, d.Branches)
}

func TestDeleteProfessor_SharedBranchSurvives(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	e := newEngine(t, s)

	p := upsert(t, e, `{"email":"a@uni.edu","branch":"br-shared","departmentId":"d-1"}`)
	upsert(t, e, `{"email":"b@uni.edu","branch":"br-shared"}`)

	res, err := e.DeleteProfessor(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, res.RemovedBranch)

	_, err = s.GetBranch(ctx, "br-shared")
	require.NoError(t, err)
	d, err := s.GetDepartment(ctx, "d-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"br-shared"}, d.Branches)
}

func TestDeleteProfessor_NotFound(t *testing.T) {
	e := newEngine(t, store.NewMemoryStore())

	_, err := e.DeleteProfessor(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteDepartment_CascadeByIDAndName(t *testing.T) {
	for _, lookup := range []string{"d-eng", "Engineering"} {
		t.Run(lookup, func(t *testing.T) {
			ctx := context.Background()
			s := store.NewMemoryStore(store.WithReplicaSet(true))
			e := newEngine(t, s)

			upsert(t, e, `{"email":"a@uni.edu","branch":"br-ai","departmentId":"d-eng","departmentName":"Engineering"}`)
			upsert(t, e, `{"email":"b@uni.edu","branch":"br-ml","departmentId":"d-eng"}`)
			survivor := upsert(t, e, `{"email":"c@uni.edu","branch":"br-bio","departmentId":"d-life"}`)

			res, err := e.DeleteDepartment(ctx, lookup)
			require.NoError(t, err)
			assert.Equal(t, "d-eng", res.DepartmentID)
			assert.Equal(t, 2, res.ProfessorsDeleted)
			assert.Equal(t, 2, res.BranchesDeleted)
			assert.True(t, res.Atomic)

			profs, err := s.ListProfessors(ctx)
			require.NoError(t, err)
			require.Len(t, profs, 1)
			assert.Equal(t, survivor.ID, profs[0].ID)

			branches, err := s.ListBranches(ctx)
			require.NoError(t, err)
			assert.Equal(t, []models.Branch{{ID: "br-bio", Name: "br-bio"}}, branches)

			_, err = s.GetDepartment(ctx, "d-eng")
			assert.ErrorIs(t, err, store.ErrNotFound)
		})
	}
}

func TestDeleteDepartment_KeepsBranchlessProfessors(t *testing.T) {
	backends := map[string]func(t *testing.T) store.Store{
		"memory": func(*testing.T) store.Store { return store.NewMemoryStore(store.WithReplicaSet(true)) },
		"sqlite": newSQLiteStore,
	}
	for name, newStore := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)
			e := newEngine(t, s)

			require.NoError(t, s.MergeDepartment(ctx, models.Department{ID: "d1", Name: "D1", Branches: []string{""}}))
			loose := upsert(t, e, `{"email":"loose@uni.edu","name":"Loose"}`)

			res, err := e.DeleteDepartment(ctx, "d1")
			require.NoError(t, err)
			assert.Zero(t, res.ProfessorsDeleted)

			profs, err := s.ListProfessors(ctx)
			require.NoError(t, err)
			require.Len(t, profs, 1)
			assert.Equal(t, loose.ID, profs[0].ID)
		})
	}
}

func TestDeleteDepartment_NotFound(t *testing.T) {
	e := newEngine(t, store.NewMemoryStore())

	_, err := e.DeleteDepartment(context.Background(), "nowhere")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteProfessor_AtomicRollback(t *testing.T) {
	backends := map[string]func(t *testing.T) store.Store{
		"memory": func(*testing.T) store.Store { return store.NewMemoryStore(store.WithReplicaSet(true)) },
		"sqlite": newSQLiteStore,
	}
	for name, newStore := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			inner := newStore(t)
			seed := newEngine(t, inner)
			p := upsert(t, seed, `{"email":"a@uni.edu","branch":"br-solo","departmentId":"d-1"}`)

			e := newEngine(t, &faultyStore{Store: inner, fail: map[string]bool{"PullBranchFromDepartments": true}})
			_, err := e.DeleteProfessor(ctx, p.ID)
			require.ErrorIs(t, err, errInjected)

			_, err = inner.GetProfessor(ctx, p.ID)
			require.NoError(t, err, "professor delete must roll back")
			_, err = inner.GetBranch(ctx, "br-solo")
			require.NoError(t, err, "branch delete must roll back")
		})
	}
}

func TestDeleteDepartment_AtomicRollback(t *testing.T) {
	ctx := context.Background()
	inner := newSQLiteStore(t)
	seed := newEngine(t, inner)
	upsert(t, seed, `{"email":"a@uni.edu","branch":"br-ai","departmentId":"d-eng"}`)

	e := newEngine(t, &faultyStore{Store: inner, fail: map[string]bool{"DeleteDepartment": true}})
	_, err := e.DeleteDepartment(ctx, "d-eng")
	require.ErrorIs(t, err, errInjected)

	n, err := inner.CountProfessors(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = inner.GetBranch(ctx, "br-ai")
	assert.NoError(t, err)
}

func TestDeleteProfessor_BestEffortLeavesPartialState(t *testing.T) {
	ctx := context.Background()
	inner := store.NewMemoryStore()
	seed := newEngine(t, inner)
	p := upsert(t, seed, `{"email":"a@uni.edu","branch":"br-solo","departmentId":"d-1"}`)

	e := newEngine(t, &faultyStore{Store: inner, fail: map[string]bool{"PullBranchFromDepartments": true}})
	_, err := e.DeleteProfessor(ctx, p.ID)
	require.ErrorIs(t, err, errInjected)

	_, err = inner.GetProfessor(ctx, p.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = inner.GetBranch(ctx, "br-solo")
	assert.ErrorIs(t, err, store.ErrNotFound)
	d, err := inner.GetDepartment(ctx, "d-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"br-solo"}, d.Branches, "best-effort mode leaves the dangling reference")
}

func TestDirectory_ConsolidatedRead(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)
	e := newEngine(t, s)

	p := upsert(t, e, `{"email":"a@uni.edu","branch":"br-ai","branchName":"AI","departmentId":"d-cs"}`)

	dir, err := e.Directory(ctx)
	require.NoError(t, err)
	require.Len(t, dir.Departments, 1)
	assert.Equal(t, []string{"br-ai"}, dir.Departments[0].Branches)
	assert.Equal(t, "AI", dir.Branches["br-ai"].Name)
	assert.Equal(t, "a@uni.edu", dir.Professors[p.ID].Email)
	assert.Empty(t, dir.News)
}

// countingStore counts transaction probes.
type countingStore struct {
	*store.MemoryStore
	probes atomic.Int32
	err    error
}

func (c *countingStore) ProbeTransactions(ctx context.Context) (bool, error) {
	c.probes.Add(1)
	if c.err != nil {
		return false, c.err
	}
	return c.MemoryStore.ProbeTransactions(ctx)
}

func TestTxDetector_ProbesEveryCallUnlessCached(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger(t)

	s := &countingStore{MemoryStore: store.NewMemoryStore(store.WithReplicaSet(true))}
	d := directory.NewTxDetector(s, false, logger)
	assert.True(t, d.CanUseTransactions(ctx))
	assert.True(t, d.CanUseTransactions(ctx))
	assert.Equal(t, int32(2), s.probes.Load())

	cached := &countingStore{MemoryStore: store.NewMemoryStore(store.WithReplicaSet(true))}
	d = directory.NewTxDetector(cached, true, logger)
	assert.True(t, d.CanUseTransactions(ctx))
	assert.True(t, d.CanUseTransactions(ctx))
	assert.Equal(t, int32(1), cached.probes.Load())
	assert.True(t, d.UnitOfWork(ctx).Atomic())
}

func TestTxDetector_ProbeErrorMeansNoTransactions(t *testing.T) {
	ctx := context.Background()
	s := &countingStore{MemoryStore: store.NewMemoryStore(store.WithReplicaSet(true)), err: errInjected}
	d := directory.NewTxDetector(s, true, newTestLogger(t))

	assert.False(t, d.CanUseTransactions(ctx))
	assert.False(t, d.CanUseTransactions(ctx))
	assert.Equal(t, int32(2), s.probes.Load(), "failed probes are not cached")
	assert.False(t, d.UnitOfWork(ctx).Atomic())
}

func TestTxDetector_StoreWithoutTransactor(t *testing.T) {
	type plain struct{ store.Store }
	d := directory.NewTxDetector(plain{store.NewMemoryStore(store.WithReplicaSet(true))}, false, newTestLogger(t))
	assert.False(t, d.CanUseTransactions(context.Background()))
}
