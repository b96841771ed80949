package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/mattn/go-sqlite3"

	"github.com/ajitpratap0/facultyhub/internal/models"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

//go:embed schema_postgres.sql
var postgresSchema string

// SQL dialects supported by SQLStore.
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore implements Store on SQLite or PostgreSQL through database/sql.
type SQLStore struct {
	db      *sql.DB
	q       querier
	sb      sq.StatementBuilderType
	dialect string
	inTx    bool
}

var (
	_ Store      = (*SQLStore)(nil)
	_ Transactor = (*SQLStore)(nil)
)

var professorColumns = []string{
	"id", "email", "name", "position", "degree", "branch", "department", "department_id",
	"description", "photo", "links", "research", "projects", "companies", "websites", "institutes",
}

var newsColumns = []string{"id", "title", "snippet", "link", "published_at", "fetched_at", "expire_at"}

// OpenSQL opens a SQL store. dialect is DialectSQLite (dsn is a file path or
// sqlite URI) or DialectPostgres (dsn is a libpq URL or keyword string).
func OpenSQL(ctx context.Context, dialect, dsn string) (*SQLStore, error) {
	var (
		driver string
		format sq.PlaceholderFormat
	)
	switch dialect {
	case DialectSQLite:
		driver, format = "sqlite3", sq.Question
	case DialectPostgres:
		driver, format = "pgx", sq.Dollar
	default:
		return nil, fmt.Errorf("unsupported sql dialect %q", dialect)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// SQLite has a single writer; one connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to %s database: %w: %w", dialect, ErrStorage, err)
	}
	if dialect == DialectSQLite {
		if err := applyPragmas(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return &SQLStore{
		db:      db,
		q:       db,
		sb:      sq.StatementBuilder.PlaceholderFormat(format),
		dialect: dialect,
	}, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("executing %q: %w", pragma, err)
		}
	}
	return nil
}

// EnsureSchema creates the tables and indexes if they don't exist.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	schema := sqliteSchema
	if s.dialect == DialectPostgres {
		schema = postgresSchema
	}
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.q.ExecContext(ctx, stmt); err != nil {
			return wrapErr("ensuring schema", err)
		}
	}
	return nil
}

// ProbeTransactions opens and rolls back an empty transaction.
func (s *SQLStore) ProbeTransactions(ctx context.Context) (bool, error) {
	if s.inTx {
		return false, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, wrapErr("probing transactions", err)
	}
	if err := tx.Rollback(); err != nil {
		return false, wrapErr("probing transactions", err)
	}
	return true, nil
}

// RunInTx runs fn inside a database transaction.
func (s *SQLStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	if s.inTx {
		return fmt.Errorf("%w: nested transactions are not supported", ErrStorage)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr("beginning transaction", err)
	}
	child := &SQLStore{db: s.db, q: tx, sb: s.sb, dialect: s.dialect, inTx: true}
	if err := fn(ctx, child); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, wrapErr("rolling back transaction", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return wrapErr("committing transaction", err)
	}
	return nil
}

// UpsertProfessor inserts the professor or updates the supplied columns on email conflict.
func (s *SQLStore) UpsertProfessor(ctx context.Context, email string, patch models.ProfessorPatch) (*models.Professor, error) {
	cols := patch.Columns()
	keys := make([]string, 0, len(cols))
	for k := range cols {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	insertCols := append([]string{"id", "email"}, keys...)
	values := []any{uuid.NewString(), email}
	updates := make([]string, 0, len(keys))
	for _, k := range keys {
		v, err := columnValue(cols[k])
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", k, err)
		}
		values = append(values, v)
		updates = append(updates, k+" = excluded."+k)
	}
	if len(updates) == 0 {
		updates = append(updates, "email = excluded.email")
	}

	query, args, err := s.sb.Insert("professors").
		Columns(insertCols...).
		Values(values...).
		Suffix("ON CONFLICT (email) DO UPDATE SET " + strings.Join(updates, ", ") + " RETURNING id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building professor upsert: %w", err)
	}

	var id string
	if err := s.q.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return nil, wrapErr("upserting professor "+email, err)
	}
	return s.GetProfessor(ctx, id)
}

func (s *SQLStore) GetProfessor(ctx context.Context, id string) (*models.Professor, error) {
	query, args, err := s.sb.Select(professorColumns...).From("professors").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building professor query: %w", err)
	}
	p, err := scanProfessor(s.q.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, wrapErr("getting professor "+id, err)
	}
	return &p, nil
}

func (s *SQLStore) DeleteProfessor(ctx context.Context, id string) error {
	n, err := s.execDelete(ctx, s.sb.Delete("professors").Where(sq.Eq{"id": id}))
	if err != nil {
		return wrapErr("deleting professor "+id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: professor %s", ErrNotFound, id)
	}
	return nil
}

func (s *SQLStore) CountProfessors(ctx context.Context) (int, error) {
	return s.count(ctx, s.sb.Select("COUNT(*)").From("professors"))
}

func (s *SQLStore) CountProfessorsByBranch(ctx context.Context, branchID string) (int, error) {
	return s.count(ctx, s.sb.Select("COUNT(*)").From("professors").Where(sq.Eq{"branch": branchID}))
}

func (s *SQLStore) DeleteProfessorsByBranches(ctx context.Context, branchIDs []string) (int, error) {
	branchIDs = branchRefs(branchIDs)
	if len(branchIDs) == 0 {
		return 0, nil
	}
	n, err := s.execDelete(ctx, s.sb.Delete("professors").Where(sq.Eq{"branch": branchIDs}))
	if err != nil {
		return 0, wrapErr("deleting professors by branch", err)
	}
	return int(n), nil
}

func (s *SQLStore) ListProfessors(ctx context.Context) ([]models.Professor, error) {
	query, args, err := s.sb.Select(professorColumns...).From("professors").OrderBy("email").ToSql()
	if err != nil {
		return nil, fmt.Errorf("building professor list: %w", err)
	}
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("listing professors", err)
	}
	defer rows.Close()

	out := []models.Professor{}
	for rows.Next() {
		p, err := scanProfessor(rows)
		if err != nil {
			return nil, wrapErr("scanning professor", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("listing professors", err)
	}
	return out, nil
}

func (s *SQLStore) GetBranch(ctx context.Context, id string) (*models.Branch, error) {
	query, args, err := s.sb.Select("id", "name").From("branches").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building branch query: %w", err)
	}
	var b models.Branch
	if err := s.q.QueryRowContext(ctx, query, args...).Scan(&b.ID, &b.Name); err != nil {
		return nil, wrapErr("getting branch "+id, err)
	}
	return &b, nil
}

func (s *SQLStore) CreateBranch(ctx context.Context, b models.Branch) error {
	query, args, err := s.sb.Insert("branches").Columns("id", "name").Values(b.ID, b.Name).ToSql()
	if err != nil {
		return fmt.Errorf("building branch insert: %w", err)
	}
	if _, err := s.q.ExecContext(ctx, query, args...); err != nil {
		return wrapErr("creating branch "+b.ID, err)
	}
	return nil
}

func (s *SQLStore) RenameBranch(ctx context.Context, id, name string) error {
	query, args, err := s.sb.Update("branches").Set("name", name).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("building branch rename: %w", err)
	}
	res, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return wrapErr("renaming branch "+id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: branch %s", ErrNotFound, id)
	}
	return nil
}

func (s *SQLStore) UpsertBranch(ctx context.Context, b models.Branch) error {
	query, args, err := s.sb.Insert("branches").
		Columns("id", "name").
		Values(b.ID, b.Name).
		Suffix("ON CONFLICT (id) DO UPDATE SET name = excluded.name").
		ToSql()
	if err != nil {
		return fmt.Errorf("building branch upsert: %w", err)
	}
	if _, err := s.q.ExecContext(ctx, query, args...); err != nil {
		return wrapErr("upserting branch "+b.ID, err)
	}
	return nil
}

func (s *SQLStore) DeleteBranches(ctx context.Context, ids []string) (int, error) {
	ids = branchRefs(ids)
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := s.execDelete(ctx, s.sb.Delete("branches").Where(sq.Eq{"id": ids}))
	if err != nil {
		return 0, wrapErr("deleting branches", err)
	}
	return int(n), nil
}

func (s *SQLStore) ListBranches(ctx context.Context) ([]models.Branch, error) {
	query, args, err := s.sb.Select("id", "name").From("branches").OrderBy("id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("building branch list: %w", err)
	}
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("listing branches", err)
	}
	defer rows.Close()

	out := []models.Branch{}
	for rows.Next() {
		var b models.Branch
		if err := rows.Scan(&b.ID, &b.Name); err != nil {
			return nil, wrapErr("scanning branch", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("listing branches", err)
	}
	return out, nil
}

func (s *SQLStore) GetDepartment(ctx context.Context, id string) (*models.Department, error) {
	return s.findDepartment(ctx, sq.Eq{"id": id}, "department "+id)
}

func (s *SQLStore) FindDepartmentByName(ctx context.Context, name string) (*models.Department, error) {
	return s.findDepartment(ctx, sq.Eq{"name": name}, fmt.Sprintf("department named %q", name))
}

func (s *SQLStore) findDepartment(ctx context.Context, where sq.Eq, what string) (*models.Department, error) {
	query, args, err := s.sb.Select("id", "name").From("departments").Where(where).OrderBy("id").Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building department query: %w", err)
	}
	var d models.Department
	if err := s.q.QueryRowContext(ctx, query, args...).Scan(&d.ID, &d.Name); err != nil {
		return nil, wrapErr("getting "+what, err)
	}
	branches, err := s.departmentBranches(ctx, sq.Eq{"department_id": d.ID})
	if err != nil {
		return nil, err
	}
	d.Branches = branches[d.ID]
	if d.Branches == nil {
		d.Branches = []string{}
	}
	return &d, nil
}

func (s *SQLStore) CreateDepartment(ctx context.Context, d models.Department) error {
	query, args, err := s.sb.Insert("departments").Columns("id", "name").Values(d.ID, d.Name).ToSql()
	if err != nil {
		return fmt.Errorf("building department insert: %w", err)
	}
	if _, err := s.q.ExecContext(ctx, query, args...); err != nil {
		return wrapErr("creating department "+d.ID, err)
	}
	return s.insertDepartmentBranches(ctx, d.ID, d.Branches)
}

func (s *SQLStore) AddDepartmentBranch(ctx context.Context, departmentID, branchID string) error {
	n, err := s.count(ctx, s.sb.Select("COUNT(*)").From("departments").Where(sq.Eq{"id": departmentID}))
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: department %s", ErrNotFound, departmentID)
	}
	return s.insertDepartmentBranches(ctx, departmentID, []string{branchID})
}

func (s *SQLStore) MergeDepartment(ctx context.Context, d models.Department) error {
	query, args, err := s.sb.Insert("departments").
		Columns("id", "name").
		Values(d.ID, d.Name).
		Suffix("ON CONFLICT (id) DO UPDATE SET name = excluded.name").
		ToSql()
	if err != nil {
		return fmt.Errorf("building department upsert: %w", err)
	}
	if _, err := s.q.ExecContext(ctx, query, args...); err != nil {
		return wrapErr("merging department "+d.ID, err)
	}
	return s.insertDepartmentBranches(ctx, d.ID, d.Branches)
}

func (s *SQLStore) insertDepartmentBranches(ctx context.Context, departmentID string, branchIDs []string) error {
	for _, branchID := range branchRefs(branchIDs) {
		query, args, err := s.sb.Insert("department_branches").
			Columns("department_id", "branch_id").
			Values(departmentID, branchID).
			Suffix("ON CONFLICT (department_id, branch_id) DO NOTHING").
			ToSql()
		if err != nil {
			return fmt.Errorf("building department branch insert: %w", err)
		}
		if _, err := s.q.ExecContext(ctx, query, args...); err != nil {
			return wrapErr("adding branch "+branchID+" to department "+departmentID, err)
		}
	}
	return nil
}

func (s *SQLStore) PullBranchFromDepartments(ctx context.Context, branchID string) error {
	if _, err := s.execDelete(ctx, s.sb.Delete("department_branches").Where(sq.Eq{"branch_id": branchID})); err != nil {
		return wrapErr("pulling branch "+branchID, err)
	}
	return nil
}

func (s *SQLStore) DeleteDepartment(ctx context.Context, id string) error {
	if _, err := s.execDelete(ctx, s.sb.Delete("department_branches").Where(sq.Eq{"department_id": id})); err != nil {
		return wrapErr("deleting department branches "+id, err)
	}
	n, err := s.execDelete(ctx, s.sb.Delete("departments").Where(sq.Eq{"id": id}))
	if err != nil {
		return wrapErr("deleting department "+id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: department %s", ErrNotFound, id)
	}
	return nil
}

func (s *SQLStore) ListDepartments(ctx context.Context) ([]models.Department, error) {
	query, args, err := s.sb.Select("id", "name").From("departments").OrderBy("id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("building department list: %w", err)
	}
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("listing departments", err)
	}
	out := []models.Department{}
	for rows.Next() {
		var d models.Department
		if err := rows.Scan(&d.ID, &d.Name); err != nil {
			rows.Close()
			return nil, wrapErr("scanning department", err)
		}
		out = append(out, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, wrapErr("listing departments", err)
	}

	// Membership is read after the department rows are closed: the SQLite pool holds
	// a single connection.
	branches, err := s.departmentBranches(ctx, nil)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Branches = branches[out[i].ID]
		if out[i].Branches == nil {
			out[i].Branches = []string{}
		}
	}
	return out, nil
}

func (s *SQLStore) departmentBranches(ctx context.Context, where sq.Sqlizer) (map[string][]string, error) {
	b := s.sb.Select("department_id", "branch_id").From("department_branches").OrderBy("department_id", "branch_id")
	if where != nil {
		b = b.Where(where)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building department branch query: %w", err)
	}
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("listing department branches", err)
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var deptID, branchID string
		if err := rows.Scan(&deptID, &branchID); err != nil {
			return nil, wrapErr("scanning department branch", err)
		}
		out[deptID] = append(out[deptID], branchID)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("listing department branches", err)
	}
	return out, nil
}

func (s *SQLStore) InsertCompanies(ctx context.Context, names []string) (int, error) {
	inserted := 0
	for _, name := range dedupe(names) {
		query, args, err := s.sb.Insert("companies").
			Columns("name").
			Values(name).
			Suffix("ON CONFLICT (name) DO NOTHING").
			ToSql()
		if err != nil {
			return inserted, fmt.Errorf("building company insert: %w", err)
		}
		res, err := s.q.ExecContext(ctx, query, args...)
		if err != nil {
			return inserted, wrapErr("inserting company "+name, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	return inserted, nil
}

func (s *SQLStore) ListCompanies(ctx context.Context) ([]models.Company, error) {
	query, args, err := s.sb.Select("name").From("companies").OrderBy("name").ToSql()
	if err != nil {
		return nil, fmt.Errorf("building company list: %w", err)
	}
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("listing companies", err)
	}
	defer rows.Close()

	out := []models.Company{}
	for rows.Next() {
		var c models.Company
		if err := rows.Scan(&c.Name); err != nil {
			return nil, wrapErr("scanning company", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("listing companies", err)
	}
	return out, nil
}

func (s *SQLStore) InsertNewsIfAbsent(ctx context.Context, items []models.NewsItem) (int, error) {
	inserted := 0
	var errs []error
	for _, item := range items {
		query, args, err := s.sb.Insert("news").
			Columns("id", "dedup_key", "title", "snippet", "link", "published_at", "fetched_at", "expire_at").
			Values(
				uuid.NewString(), item.DedupKey(), item.Title, item.Snippet, item.Link,
				models.NormalizeInstant(item.PublishedAt),
				models.NormalizeInstant(item.FetchedAt),
				models.NormalizeInstant(item.ExpireAt),
			).
			Suffix("ON CONFLICT (dedup_key) DO NOTHING").
			ToSql()
		if err != nil {
			errs = append(errs, fmt.Errorf("building news insert: %w", err))
			continue
		}
		res, err := s.q.ExecContext(ctx, query, args...)
		if err != nil {
			errs = append(errs, wrapErr("inserting news "+item.DedupKey(), err))
			continue
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	return inserted, errors.Join(errs...)
}

func (s *SQLStore) ListNews(ctx context.Context, limit int) ([]models.NewsItem, error) {
	b := s.sb.Select(newsColumns...).From("news").OrderBy("published_at DESC", "id")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building news list: %w", err)
	}
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("listing news", err)
	}
	defer rows.Close()

	out := []models.NewsItem{}
	for rows.Next() {
		var n models.NewsItem
		if err := rows.Scan(&n.ID, &n.Title, &n.Snippet, &n.Link, &n.PublishedAt, &n.FetchedAt, &n.ExpireAt); err != nil {
			return nil, wrapErr("scanning news", err)
		}
		n.PublishedAt = n.PublishedAt.UTC()
		n.FetchedAt = n.FetchedAt.UTC()
		n.ExpireAt = n.ExpireAt.UTC()
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("listing news", err)
	}
	return out, nil
}

func (s *SQLStore) DeleteExpiredNews(ctx context.Context, now time.Time) (int, error) {
	n, err := s.execDelete(ctx, s.sb.Delete("news").Where(sq.LtOrEq{"expire_at": models.NormalizeInstant(now)}))
	if err != nil {
		return 0, wrapErr("deleting expired news", err)
	}
	return int(n), nil
}

// Close closes the database handle. Transaction-scoped stores leave it open.
func (s *SQLStore) Close() error {
	if s.inTx || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// --- helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfessor(row rowScanner) (models.Professor, error) {
	var (
		p                                                  models.Professor
		links, research, projects, companies, sites, insts string
	)
	err := row.Scan(
		&p.ID, &p.Email, &p.Name, &p.Position, &p.Degree, &p.Branch, &p.Department, &p.DepartmentID,
		&p.Description, &p.Photo, &links, &research, &projects, &companies, &sites, &insts,
	)
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal([]byte(links), &p.Links); err != nil {
		return p, fmt.Errorf("decoding links: %w", err)
	}
	for _, f := range []struct {
		raw string
		dst *[]string
	}{
		{research, &p.Research},
		{projects, &p.Projects},
		{companies, &p.Companies},
		{sites, &p.Websites},
		{insts, &p.Institutes},
	} {
		if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
			return p, fmt.Errorf("decoding list column: %w", err)
		}
	}
	return p, nil
}

// columnValue encodes list and links columns as JSON text.
func columnValue(v any) (any, error) {
	switch v := v.(type) {
	case []string, models.Links:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(raw), nil
	default:
		return v, nil
	}
}

func (s *SQLStore) count(ctx context.Context, b sq.SelectBuilder) (int, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("building count: %w", err)
	}
	var n int
	if err := s.q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, wrapErr("counting", err)
	}
	return n, nil
}

func (s *SQLStore) execDelete(ctx context.Context, b sq.DeleteBuilder) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("building delete: %w", err)
	}
	res, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// wrapErr maps driver errors onto the package sentinels.
func wrapErr(op string, err error) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict), errors.Is(err, ErrStorage):
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case isUniqueViolation(err):
		return fmt.Errorf("%s: %w: %w", op, ErrConflict, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
	}
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
