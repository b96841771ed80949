package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/ajitpratap0/facultyhub/internal/models"
)

// Neo4jConfig holds the connection settings of the graph backend.
type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	Database string
}

// runner executes one Cypher statement and returns all of its records.
type runner interface {
	run(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error)
}

type driverRunner struct {
	driver   neo4j.DriverWithContext
	database string
}

func (r driverRunner) run(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	res, err := neo4j.ExecuteQuery(ctx, r.driver, cypher, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(r.database),
	)
	if err != nil {
		return nil, err
	}
	return res.Records, nil
}

type txRunner struct {
	tx neo4j.ManagedTransaction
}

func (r txRunner) run(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	res, err := r.tx.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	return res.Collect(ctx)
}

// Neo4jStore implements Store on a Neo4j graph. Professors, branches, departments,
// companies and news items are nodes; department membership is a list property.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
	r        runner
	inTx     bool
}

var (
	_ Store      = (*Neo4jStore)(nil)
	_ Transactor = (*Neo4jStore)(nil)
)

// OpenNeo4j connects to Neo4j and verifies connectivity.
func OpenNeo4j(ctx context.Context, cfg Neo4jConfig) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("creating neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("connecting to neo4j at %s: %w: %w", cfg.URI, ErrStorage, err)
	}
	return &Neo4jStore{
		driver:   driver,
		database: cfg.Database,
		r:        driverRunner{driver: driver, database: cfg.Database},
	}, nil
}

// EnsureSchema creates uniqueness constraints and the expiry index.
func (s *Neo4jStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		"CREATE CONSTRAINT professor_email IF NOT EXISTS FOR (p:Professor) REQUIRE p.email IS UNIQUE",
		"CREATE CONSTRAINT professor_id IF NOT EXISTS FOR (p:Professor) REQUIRE p.id IS UNIQUE",
		"CREATE CONSTRAINT branch_id IF NOT EXISTS FOR (b:Branch) REQUIRE b.id IS UNIQUE",
		"CREATE CONSTRAINT department_id IF NOT EXISTS FOR (d:Department) REQUIRE d.id IS UNIQUE",
		"CREATE CONSTRAINT company_name IF NOT EXISTS FOR (c:Company) REQUIRE c.name IS UNIQUE",
		"CREATE CONSTRAINT news_dedup_key IF NOT EXISTS FOR (n:NewsItem) REQUIRE n.dedupKey IS UNIQUE",
		"CREATE INDEX news_expire_at IF NOT EXISTS FOR (n:NewsItem) ON (n.expireAt)",
		"CREATE INDEX professor_branch IF NOT EXISTS FOR (p:Professor) ON (p.branch)",
	}
	for _, stmt := range stmts {
		if _, err := s.r.run(ctx, stmt, nil); err != nil {
			return neoErr("ensuring schema", err)
		}
	}
	return nil
}

// ProbeTransactions opens and rolls back an explicit transaction.
func (s *Neo4jStore) ProbeTransactions(ctx context.Context) (bool, error) {
	if s.inTx {
		return false, nil
	}
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database, AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	tx, err := session.BeginTransaction(ctx)
	if err != nil {
		return false, neoErr("probing transactions", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		return false, neoErr("probing transactions", err)
	}
	return true, nil
}

// RunInTx runs fn in a managed write transaction. The driver may retry fn on
// transient cluster errors.
func (s *Neo4jStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	if s.inTx {
		return fmt.Errorf("%w: nested transactions are not supported", ErrStorage)
	}
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database, AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		child := &Neo4jStore{driver: s.driver, database: s.database, r: txRunner{tx: tx}, inTx: true}
		return nil, fn(ctx, child)
	})
	return err
}

func (s *Neo4jStore) UpsertProfessor(ctx context.Context, email string, patch models.ProfessorPatch) (*models.Professor, error) {
	props := professorProps(patch)
	recs, err := s.r.run(ctx, `
		MERGE (p:Professor {email: $email})
		ON CREATE SET p.id = $id
		SET p += $props
		RETURN p`, map[string]any{
		"email": email,
		"id":    uuid.NewString(),
		"props": props,
	})
	if err != nil {
		return nil, neoErr("upserting professor "+email, err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("upserting professor %s: %w: no record returned", email, ErrStorage)
	}
	p := professorFromRecord(recs[0], "p")
	return &p, nil
}

func (s *Neo4jStore) GetProfessor(ctx context.Context, id string) (*models.Professor, error) {
	recs, err := s.r.run(ctx, "MATCH (p:Professor {id: $id}) RETURN p", map[string]any{"id": id})
	if err != nil {
		return nil, neoErr("getting professor "+id, err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: professor %s", ErrNotFound, id)
	}
	p := professorFromRecord(recs[0], "p")
	return &p, nil
}

func (s *Neo4jStore) DeleteProfessor(ctx context.Context, id string) error {
	n, err := s.countResult(ctx, "MATCH (p:Professor {id: $id}) DETACH DELETE p RETURN count(*) AS n", map[string]any{"id": id})
	if err != nil {
		return neoErr("deleting professor "+id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: professor %s", ErrNotFound, id)
	}
	return nil
}

func (s *Neo4jStore) CountProfessors(ctx context.Context) (int, error) {
	n, err := s.countResult(ctx, "MATCH (p:Professor) RETURN count(p) AS n", nil)
	if err != nil {
		return 0, neoErr("counting professors", err)
	}
	return n, nil
}

func (s *Neo4jStore) CountProfessorsByBranch(ctx context.Context, branchID string) (int, error) {
	n, err := s.countResult(ctx, "MATCH (p:Professor {branch: $branch}) RETURN count(p) AS n", map[string]any{"branch": branchID})
	if err != nil {
		return 0, neoErr("counting professors of branch "+branchID, err)
	}
	return n, nil
}

func (s *Neo4jStore) DeleteProfessorsByBranches(ctx context.Context, branchIDs []string) (int, error) {
	branchIDs = branchRefs(branchIDs)
	if len(branchIDs) == 0 {
		return 0, nil
	}
	n, err := s.countResult(ctx, "MATCH (p:Professor) WHERE p.branch IN $ids DETACH DELETE p RETURN count(*) AS n",
		map[string]any{"ids": branchIDs})
	if err != nil {
		return 0, neoErr("deleting professors by branch", err)
	}
	return n, nil
}

func (s *Neo4jStore) ListProfessors(ctx context.Context) ([]models.Professor, error) {
	recs, err := s.r.run(ctx, "MATCH (p:Professor) RETURN p ORDER BY p.email", nil)
	if err != nil {
		return nil, neoErr("listing professors", err)
	}
	out := make([]models.Professor, 0, len(recs))
	for _, rec := range recs {
		out = append(out, professorFromRecord(rec, "p"))
	}
	return out, nil
}

func (s *Neo4jStore) GetBranch(ctx context.Context, id string) (*models.Branch, error) {
	recs, err := s.r.run(ctx, "MATCH (b:Branch {id: $id}) RETURN b.id AS id, b.name AS name", map[string]any{"id": id})
	if err != nil {
		return nil, neoErr("getting branch "+id, err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: branch %s", ErrNotFound, id)
	}
	return &models.Branch{ID: recordString(recs[0], "id"), Name: recordString(recs[0], "name")}, nil
}

func (s *Neo4jStore) CreateBranch(ctx context.Context, b models.Branch) error {
	if _, err := s.r.run(ctx, "CREATE (:Branch {id: $id, name: $name})", map[string]any{"id": b.ID, "name": b.Name}); err != nil {
		return neoErr("creating branch "+b.ID, err)
	}
	return nil
}

func (s *Neo4jStore) RenameBranch(ctx context.Context, id, name string) error {
	n, err := s.countResult(ctx, "MATCH (b:Branch {id: $id}) SET b.name = $name RETURN count(b) AS n",
		map[string]any{"id": id, "name": name})
	if err != nil {
		return neoErr("renaming branch "+id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: branch %s", ErrNotFound, id)
	}
	return nil
}

func (s *Neo4jStore) UpsertBranch(ctx context.Context, b models.Branch) error {
	if _, err := s.r.run(ctx, "MERGE (b:Branch {id: $id}) SET b.name = $name", map[string]any{"id": b.ID, "name": b.Name}); err != nil {
		return neoErr("upserting branch "+b.ID, err)
	}
	return nil
}

func (s *Neo4jStore) DeleteBranches(ctx context.Context, ids []string) (int, error) {
	ids = branchRefs(ids)
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := s.countResult(ctx, "MATCH (b:Branch) WHERE b.id IN $ids DETACH DELETE b RETURN count(*) AS n",
		map[string]any{"ids": ids})
	if err != nil {
		return 0, neoErr("deleting branches", err)
	}
	return n, nil
}

func (s *Neo4jStore) ListBranches(ctx context.Context) ([]models.Branch, error) {
	recs, err := s.r.run(ctx, "MATCH (b:Branch) RETURN b.id AS id, b.name AS name ORDER BY b.id", nil)
	if err != nil {
		return nil, neoErr("listing branches", err)
	}
	out := make([]models.Branch, 0, len(recs))
	for _, rec := range recs {
		out = append(out, models.Branch{ID: recordString(rec, "id"), Name: recordString(rec, "name")})
	}
	return out, nil
}

const departmentReturn = "RETURN d.id AS id, d.name AS name, coalesce(d.branches, []) AS branches"

func (s *Neo4jStore) GetDepartment(ctx context.Context, id string) (*models.Department, error) {
	recs, err := s.r.run(ctx, "MATCH (d:Department {id: $id}) "+departmentReturn, map[string]any{"id": id})
	if err != nil {
		return nil, neoErr("getting department "+id, err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: department %s", ErrNotFound, id)
	}
	d := departmentFromRecord(recs[0])
	return &d, nil
}

func (s *Neo4jStore) FindDepartmentByName(ctx context.Context, name string) (*models.Department, error) {
	recs, err := s.r.run(ctx, "MATCH (d:Department {name: $name}) WITH d ORDER BY d.id LIMIT 1 "+departmentReturn,
		map[string]any{"name": name})
	if err != nil {
		return nil, neoErr("finding department "+name, err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: department named %q", ErrNotFound, name)
	}
	d := departmentFromRecord(recs[0])
	return &d, nil
}

func (s *Neo4jStore) CreateDepartment(ctx context.Context, d models.Department) error {
	_, err := s.r.run(ctx, "CREATE (:Department {id: $id, name: $name, branches: $branches})", map[string]any{
		"id":       d.ID,
		"name":     d.Name,
		"branches": branchRefs(d.Branches),
	})
	if err != nil {
		return neoErr("creating department "+d.ID, err)
	}
	return nil
}

func (s *Neo4jStore) AddDepartmentBranch(ctx context.Context, departmentID, branchID string) error {
	n, err := s.countResult(ctx, `
		MATCH (d:Department {id: $id})
		SET d.branches = CASE WHEN $branch IN coalesce(d.branches, [])
			THEN d.branches ELSE coalesce(d.branches, []) + $branch END
		RETURN count(d) AS n`, map[string]any{"id": departmentID, "branch": branchID})
	if err != nil {
		return neoErr("adding branch "+branchID+" to department "+departmentID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: department %s", ErrNotFound, departmentID)
	}
	return nil
}

func (s *Neo4jStore) MergeDepartment(ctx context.Context, d models.Department) error {
	_, err := s.r.run(ctx, `
		MERGE (d:Department {id: $id})
		SET d.name = $name,
			d.branches = coalesce(d.branches, []) + [x IN $branches WHERE NOT x IN coalesce(d.branches, [])]`,
		map[string]any{"id": d.ID, "name": d.Name, "branches": branchRefs(d.Branches)})
	if err != nil {
		return neoErr("merging department "+d.ID, err)
	}
	return nil
}

func (s *Neo4jStore) PullBranchFromDepartments(ctx context.Context, branchID string) error {
	_, err := s.r.run(ctx, `
		MATCH (d:Department) WHERE $branch IN d.branches
		SET d.branches = [x IN d.branches WHERE x <> $branch]`, map[string]any{"branch": branchID})
	if err != nil {
		return neoErr("pulling branch "+branchID, err)
	}
	return nil
}

func (s *Neo4jStore) DeleteDepartment(ctx context.Context, id string) error {
	n, err := s.countResult(ctx, "MATCH (d:Department {id: $id}) DETACH DELETE d RETURN count(*) AS n", map[string]any{"id": id})
	if err != nil {
		return neoErr("deleting department "+id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: department %s", ErrNotFound, id)
	}
	return nil
}

func (s *Neo4jStore) ListDepartments(ctx context.Context) ([]models.Department, error) {
	recs, err := s.r.run(ctx, "MATCH (d:Department) "+departmentReturn+" ORDER BY d.id", nil)
	if err != nil {
		return nil, neoErr("listing departments", err)
	}
	out := make([]models.Department, 0, len(recs))
	for _, rec := range recs {
		out = append(out, departmentFromRecord(rec))
	}
	return out, nil
}

func (s *Neo4jStore) InsertCompanies(ctx context.Context, names []string) (int, error) {
	before, err := s.countResult(ctx, "MATCH (c:Company) RETURN count(c) AS n", nil)
	if err != nil {
		return 0, neoErr("counting companies", err)
	}
	if _, err := s.r.run(ctx, "UNWIND $names AS name MERGE (:Company {name: name})", map[string]any{"names": dedupe(names)}); err != nil {
		return 0, neoErr("inserting companies", err)
	}
	after, err := s.countResult(ctx, "MATCH (c:Company) RETURN count(c) AS n", nil)
	if err != nil {
		return 0, neoErr("counting companies", err)
	}
	return after - before, nil
}

func (s *Neo4jStore) ListCompanies(ctx context.Context) ([]models.Company, error) {
	recs, err := s.r.run(ctx, "MATCH (c:Company) RETURN c.name AS name ORDER BY c.name", nil)
	if err != nil {
		return nil, neoErr("listing companies", err)
	}
	out := make([]models.Company, 0, len(recs))
	for _, rec := range recs {
		out = append(out, models.Company{Name: recordString(rec, "name")})
	}
	return out, nil
}

func (s *Neo4jStore) InsertNewsIfAbsent(ctx context.Context, items []models.NewsItem) (int, error) {
	inserted := 0
	var errs []error
	for _, item := range items {
		id := uuid.NewString()
		recs, err := s.r.run(ctx, `
			MERGE (n:NewsItem {dedupKey: $key})
			ON CREATE SET n.id = $id, n.title = $title, n.snippet = $snippet, n.link = $link,
				n.publishedAt = $publishedAt, n.fetchedAt = $fetchedAt, n.expireAt = $expireAt
			RETURN n.id = $id AS created`, map[string]any{
			"key":         item.DedupKey(),
			"id":          id,
			"title":       item.Title,
			"snippet":     item.Snippet,
			"link":        item.Link,
			"publishedAt": models.NormalizeInstant(item.PublishedAt),
			"fetchedAt":   models.NormalizeInstant(item.FetchedAt),
			"expireAt":    models.NormalizeInstant(item.ExpireAt),
		})
		if err != nil {
			errs = append(errs, neoErr("inserting news "+item.DedupKey(), err))
			continue
		}
		if len(recs) > 0 {
			if created, _ := recs[0].Get("created"); created == true {
				inserted++
			}
		}
	}
	return inserted, errors.Join(errs...)
}

func (s *Neo4jStore) ListNews(ctx context.Context, limit int) ([]models.NewsItem, error) {
	cypher := `MATCH (n:NewsItem)
		RETURN n.id AS id, n.title AS title, n.snippet AS snippet, n.link AS link,
			n.publishedAt AS publishedAt, n.fetchedAt AS fetchedAt, n.expireAt AS expireAt
		ORDER BY n.publishedAt DESC, n.id`
	params := map[string]any{}
	if limit > 0 {
		cypher += " LIMIT $limit"
		params["limit"] = int64(limit)
	}
	recs, err := s.r.run(ctx, cypher, params)
	if err != nil {
		return nil, neoErr("listing news", err)
	}
	out := make([]models.NewsItem, 0, len(recs))
	for _, rec := range recs {
		out = append(out, models.NewsItem{
			ID:          recordString(rec, "id"),
			Title:       recordString(rec, "title"),
			Snippet:     recordString(rec, "snippet"),
			Link:        recordString(rec, "link"),
			PublishedAt: recordTime(rec, "publishedAt"),
			FetchedAt:   recordTime(rec, "fetchedAt"),
			ExpireAt:    recordTime(rec, "expireAt"),
		})
	}
	return out, nil
}

func (s *Neo4jStore) DeleteExpiredNews(ctx context.Context, now time.Time) (int, error) {
	n, err := s.countResult(ctx, "MATCH (n:NewsItem) WHERE n.expireAt <= $now DELETE n RETURN count(*) AS n",
		map[string]any{"now": models.NormalizeInstant(now)})
	if err != nil {
		return 0, neoErr("deleting expired news", err)
	}
	return n, nil
}

// Close closes the driver. Transaction-scoped stores leave it open.
func (s *Neo4jStore) Close() error {
	if s.inTx || s.driver == nil {
		return nil
	}
	return s.driver.Close(context.Background())
}

// --- helpers ---

func (s *Neo4jStore) countResult(ctx context.Context, cypher string, params map[string]any) (int, error) {
	recs, err := s.r.run(ctx, cypher, params)
	if err != nil {
		return 0, err
	}
	if len(recs) == 0 {
		return 0, nil
	}
	v, _ := recs[0].Get("n")
	n, _ := v.(int64)
	return int(n), nil
}

// professorProps maps a patch to node properties. Links are flattened since Neo4j
// properties cannot hold maps.
func professorProps(patch models.ProfessorPatch) map[string]any {
	names := map[string]string{"department_id": "departmentId"}
	props := make(map[string]any)
	for k, v := range patch.Columns() {
		if links, ok := v.(models.Links); ok {
			props["linksAwards"] = links.Awards
			props["linksWebpage"] = links.Webpage
			props["linksBio"] = links.Bio
			continue
		}
		if alias, ok := names[k]; ok {
			k = alias
		}
		props[k] = v
	}
	return props
}

func professorFromRecord(rec *neo4j.Record, key string) models.Professor {
	raw, _ := rec.Get(key)
	node, ok := raw.(neo4j.Node)
	if !ok {
		return models.Professor{}
	}
	p := node.Props
	return models.Professor{
		ID:           propString(p, "id"),
		Email:        propString(p, "email"),
		Name:         propString(p, "name"),
		Position:     propString(p, "position"),
		Degree:       propString(p, "degree"),
		Branch:       propString(p, "branch"),
		Department:   propString(p, "department"),
		DepartmentID: propString(p, "departmentId"),
		Description:  propString(p, "description"),
		Photo:        propString(p, "photo"),
		Links: models.Links{
			Awards:  propString(p, "linksAwards"),
			Webpage: propString(p, "linksWebpage"),
			Bio:     propString(p, "linksBio"),
		},
		Research:   propStrings(p, "research"),
		Projects:   propStrings(p, "projects"),
		Companies:  propStrings(p, "companies"),
		Websites:   propStrings(p, "websites"),
		Institutes: propStrings(p, "institutes"),
	}
}

func departmentFromRecord(rec *neo4j.Record) models.Department {
	raw, _ := rec.Get("branches")
	return models.Department{
		ID:       recordString(rec, "id"),
		Name:     recordString(rec, "name"),
		Branches: toStrings(raw),
	}
}

func recordString(rec *neo4j.Record, key string) string {
	v, _ := rec.Get(key)
	s, _ := v.(string)
	return s
}

func recordTime(rec *neo4j.Record, key string) time.Time {
	v, _ := rec.Get(key)
	t, _ := v.(time.Time)
	return t.UTC()
}

func propString(props map[string]any, key string) string {
	s, _ := props[key].(string)
	return s
}

func propStrings(props map[string]any, key string) []string {
	return toStrings(props[key])
}

func toStrings(v any) []string {
	list, _ := v.([]any)
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// neoErr maps driver errors onto the package sentinels.
func neoErr(op string, err error) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) || errors.Is(err, ErrStorage) {
		return fmt.Errorf("%s: %w", op, err)
	}
	var dbErr *neo4j.Neo4jError
	if errors.As(err, &dbErr) && dbErr.Code == "Neo.ClientError.Schema.ConstraintValidationFailed" {
		return fmt.Errorf("%s: %w: %w", op, ErrConflict, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}
