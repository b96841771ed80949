// Package directory keeps professors, branches and departments consistent with
// each other as records are upserted and deleted.
package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/facultyhub/internal/metrics"
	"github.com/ajitpratap0/facultyhub/internal/models"
	"github.com/ajitpratap0/facultyhub/internal/store"
)

// Engine applies directory mutations.
type Engine struct {
	store    store.Store
	detector *TxDetector
	logger   *slog.Logger
}

// NewEngine creates an engine over a ready store.
func NewEngine(s store.Store, detector *TxDetector, logger *slog.Logger) *Engine {
	return &Engine{
		store:    s,
		detector: detector,
		logger:   logger.With("component", "directory"),
	}
}

// ProfessorDeletion describes the effects of DeleteProfessor.
type ProfessorDeletion struct {
	ProfessorID   string `json:"professorId"`
	RemovedBranch string `json:"removedBranch,omitempty"`
	Atomic        bool   `json:"atomic"`
}

// DepartmentDeletion describes the effects of DeleteDepartment.
type DepartmentDeletion struct {
	DepartmentID      string `json:"departmentId"`
	ProfessorsDeleted int    `json:"professorsDeleted"`
	BranchesDeleted   int    `json:"branchesDeleted"`
	Atomic            bool   `json:"atomic"`
}

// UpsertProfessor writes the supplied professor fields keyed by email and then makes
// sure the referenced branch and department exist. Branch and department bookkeeping
// failures are logged and never fail the upsert.
func (e *Engine) UpsertProfessor(ctx context.Context, payload ProfessorPayload) (*models.Professor, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	prof, err := e.store.UpsertProfessor(ctx, payload.Email, payload.Patch())
	if err != nil {
		return nil, fmt.Errorf("upserting professor %s: %w", payload.Email, err)
	}
	metrics.Inc(metrics.ProfessorsUpserted)

	if err := e.ensureBranch(ctx, payload); err != nil {
		metrics.Inc(metrics.BookkeepingFailures)
		e.logger.Error("branch bookkeeping failed", "email", payload.Email, "branch", payload.branchID(), "error", err)
	}
	if err := e.ensureDepartment(ctx, payload); err != nil {
		metrics.Inc(metrics.BookkeepingFailures)
		e.logger.Error("department bookkeeping failed", "email", payload.Email, "department", payload.departmentID(), "error", err)
	}
	return prof, nil
}

func (e *Engine) ensureBranch(ctx context.Context, payload ProfessorPayload) error {
	branchID := payload.branchID()
	if branchID == "" {
		return nil
	}
	newName := derefTrim(payload.BranchName)

	existing, err := e.store.GetBranch(ctx, branchID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		name := newName
		if name == "" {
			name = branchID
		}
		err = e.store.CreateBranch(ctx, models.Branch{ID: branchID, Name: name})
		if !errors.Is(err, store.ErrConflict) {
			return err
		}
		// A concurrent upsert created it first; fall through to the rename check.
		existing, err = e.store.GetBranch(ctx, branchID)
		if err != nil {
			return err
		}
	case err != nil:
		return err
	}

	if newName != "" && newName != existing.Name {
		return e.store.RenameBranch(ctx, branchID, newName)
	}
	return nil
}

func (e *Engine) ensureDepartment(ctx context.Context, payload ProfessorPayload) error {
	deptID := payload.departmentID()
	if deptID == "" {
		return nil
	}
	branchID := payload.branchID()

	_, err := e.store.GetDepartment(ctx, deptID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		name := derefTrim(payload.DepartmentName)
		if name == "" {
			name = deptID
		}
		dept := models.Department{ID: deptID, Name: name, Branches: []string{}}
		if branchID != "" {
			dept.Branches = []string{branchID}
		}
		err = e.store.CreateDepartment(ctx, dept)
		if !errors.Is(err, store.ErrConflict) {
			return err
		}
	case err != nil:
		return err
	}

	if branchID == "" {
		return nil
	}
	return e.store.AddDepartmentBranch(ctx, deptID, branchID)
}

// DeleteProfessor removes a professor. When it was the last professor of its branch,
// the branch is deleted and pulled from every department.
func (e *Engine) DeleteProfessor(ctx context.Context, id string) (*ProfessorDeletion, error) {
	uow := e.detector.UnitOfWork(ctx)
	result := &ProfessorDeletion{ProfessorID: id, Atomic: uow.Atomic()}

	err := uow.Do(ctx, func(ctx context.Context, s store.Store) error {
		prof, err := s.GetProfessor(ctx, id)
		if err != nil {
			return err
		}
		if err := s.DeleteProfessor(ctx, id); err != nil {
			return err
		}
		if prof.Branch == "" {
			return nil
		}

		remaining, err := s.CountProfessorsByBranch(ctx, prof.Branch)
		if err != nil {
			return err
		}
		if remaining > 0 {
			return nil
		}
		if _, err := s.DeleteBranches(ctx, []string{prof.Branch}); err != nil {
			return err
		}
		if err := s.PullBranchFromDepartments(ctx, prof.Branch); err != nil {
			return err
		}
		result.RemovedBranch = prof.Branch
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("deleting professor %s: %w", id, err)
	}

	metrics.Inc(metrics.ProfessorsDeleted)
	e.countCascade(uow)
	e.logger.Info("professor deleted", "id", id, "removed_branch", result.RemovedBranch, "atomic", result.Atomic)
	return result, nil
}

// DeleteDepartment removes a department, every branch it lists and every professor
// in those branches. The department is looked up by ID first, then by name.
func (e *Engine) DeleteDepartment(ctx context.Context, idOrName string) (*DepartmentDeletion, error) {
	idOrName = strings.TrimSpace(idOrName)
	uow := e.detector.UnitOfWork(ctx)
	result := &DepartmentDeletion{Atomic: uow.Atomic()}

	err := uow.Do(ctx, func(ctx context.Context, s store.Store) error {
		dept, err := s.GetDepartment(ctx, idOrName)
		if errors.Is(err, store.ErrNotFound) {
			dept, err = s.FindDepartmentByName(ctx, idOrName)
		}
		if err != nil {
			return err
		}
		result.DepartmentID = dept.ID

		profs, err := s.DeleteProfessorsByBranches(ctx, dept.Branches)
		if err != nil {
			return err
		}
		branches, err := s.DeleteBranches(ctx, dept.Branches)
		if err != nil {
			return err
		}
		for _, b := range dept.Branches {
			if err := s.PullBranchFromDepartments(ctx, b); err != nil {
				return err
			}
		}
		if err := s.DeleteDepartment(ctx, dept.ID); err != nil {
			return err
		}
		result.ProfessorsDeleted, result.BranchesDeleted = profs, branches
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("deleting department %s: %w", idOrName, err)
	}

	metrics.Inc(metrics.DepartmentsDeleted)
	metrics.Add(metrics.ProfessorsDeleted, result.ProfessorsDeleted)
	e.countCascade(uow)
	e.logger.Info("department deleted",
		"id", result.DepartmentID,
		"professors", result.ProfessorsDeleted,
		"branches", result.BranchesDeleted,
		"atomic", result.Atomic,
	)
	return result, nil
}

func (e *Engine) countCascade(uow UnitOfWork) {
	if uow.Atomic() {
		metrics.Inc(metrics.AtomicCascades)
		return
	}
	metrics.Inc(metrics.BestEffortCascades)
}

// Directory loads the consolidated read model. The four collections are read
// concurrently and do not form a consistent snapshot.
func (e *Engine) Directory(ctx context.Context) (*models.Directory, error) {
	var (
		departments []models.Department
		branches    []models.Branch
		professors  []models.Professor
		news        []models.NewsItem
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		departments, err = e.store.ListDepartments(gctx)
		return err
	})
	g.Go(func() (err error) {
		branches, err = e.store.ListBranches(gctx)
		return err
	})
	g.Go(func() (err error) {
		professors, err = e.store.ListProfessors(gctx)
		return err
	})
	g.Go(func() (err error) {
		news, err = e.store.ListNews(gctx, 0)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("loading directory: %w", err)
	}

	dir := &models.Directory{
		Departments: departments,
		Branches:    make(map[string]models.Branch, len(branches)),
		Professors:  make(map[string]models.Professor, len(professors)),
		News:        news,
	}
	for _, b := range branches {
		dir.Branches[b.ID] = b
	}
	for _, p := range professors {
		dir.Professors[p.ID] = p
	}
	return dir, nil
}

// ListNews returns the newest news items, at most limit.
func (e *Engine) ListNews(ctx context.Context, limit int) ([]models.NewsItem, error) {
	items, err := e.store.ListNews(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing news: %w", err)
	}
	return items, nil
}

// ListCompanies returns the seeded company names.
func (e *Engine) ListCompanies(ctx context.Context) ([]models.Company, error) {
	companies, err := e.store.ListCompanies(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing companies: %w", err)
	}
	return companies, nil
}
