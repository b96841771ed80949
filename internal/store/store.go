package store

import (
	"context"
	"errors"
	"time"

	"github.com/ajitpratap0/facultyhub/internal/models"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("unique constraint violated")

	// ErrStorage wraps failures of the underlying backend.
	ErrStorage = errors.New("storage failure")
)

// Store defines persistence for the faculty directory and its news feed.
type Store interface {
	// EnsureSchema creates the tables, indexes or constraints the backend relies on.
	EnsureSchema(ctx context.Context) error

	// UpsertProfessor creates or updates the professor identified by email. Only the
	// fields supplied in patch are written; the stored record is returned.
	UpsertProfessor(ctx context.Context, email string, patch models.ProfessorPatch) (*models.Professor, error)

	// GetProfessor retrieves a professor by store-assigned ID.
	GetProfessor(ctx context.Context, id string) (*models.Professor, error)

	// DeleteProfessor removes a professor by ID.
	DeleteProfessor(ctx context.Context, id string) error

	// CountProfessors returns the number of stored professors.
	CountProfessors(ctx context.Context) (int, error)

	// CountProfessorsByBranch returns how many professors reference branchID.
	CountProfessorsByBranch(ctx context.Context, branchID string) (int, error)

	// DeleteProfessorsByBranches removes every professor whose branch is in branchIDs.
	DeleteProfessorsByBranches(ctx context.Context, branchIDs []string) (int, error)

	// ListProfessors returns all professors ordered by email.
	ListProfessors(ctx context.Context) ([]models.Professor, error)

	GetBranch(ctx context.Context, id string) (*models.Branch, error)

	// CreateBranch inserts a new branch; ErrConflict if the ID is taken.
	CreateBranch(ctx context.Context, b models.Branch) error

	RenameBranch(ctx context.Context, id, name string) error

	// UpsertBranch creates the branch or overwrites its name.
	UpsertBranch(ctx context.Context, b models.Branch) error

	DeleteBranches(ctx context.Context, ids []string) (int, error)

	// ListBranches returns all branches ordered by ID.
	ListBranches(ctx context.Context) ([]models.Branch, error)

	GetDepartment(ctx context.Context, id string) (*models.Department, error)

	// FindDepartmentByName returns the first department with the given name.
	FindDepartmentByName(ctx context.Context, name string) (*models.Department, error)

	// CreateDepartment inserts a new department; ErrConflict if the ID is taken.
	CreateDepartment(ctx context.Context, d models.Department) error

	// AddDepartmentBranch adds branchID to the department's branch set. Idempotent.
	AddDepartmentBranch(ctx context.Context, departmentID, branchID string) error

	// MergeDepartment creates the department or overwrites its name, and adds its
	// branches to the stored set.
	MergeDepartment(ctx context.Context, d models.Department) error

	// PullBranchFromDepartments removes branchID from every department's branch set.
	PullBranchFromDepartments(ctx context.Context, branchID string) error

	DeleteDepartment(ctx context.Context, id string) error

	// ListDepartments returns all departments ordered by ID.
	ListDepartments(ctx context.Context) ([]models.Department, error)

	// InsertCompanies inserts the names not yet stored and returns how many were new.
	InsertCompanies(ctx context.Context, names []string) (int, error)

	ListCompanies(ctx context.Context) ([]models.Company, error)

	// InsertNewsIfAbsent inserts each item whose dedup key is not stored yet and never
	// modifies existing items. A failing item does not stop the rest of the batch; the
	// per-item errors are joined into the returned error.
	InsertNewsIfAbsent(ctx context.Context, items []models.NewsItem) (int, error)

	// ListNews returns news items newest first. limit <= 0 means no limit.
	ListNews(ctx context.Context, limit int) ([]models.NewsItem, error)

	// DeleteExpiredNews removes items whose expireAt is not after now.
	DeleteExpiredNews(ctx context.Context, now time.Time) (int, error)

	// Close cleans up resources.
	Close() error
}

// Transactor is implemented by stores that can run several writes atomically.
type Transactor interface {
	// ProbeTransactions checks whether the live deployment supports multi-record
	// transactions right now.
	ProbeTransactions(ctx context.Context) (bool, error)

	// RunInTx runs fn against a transaction-scoped Store. The transaction commits
	// when fn returns nil and rolls back otherwise.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}
