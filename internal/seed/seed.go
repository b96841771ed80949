// Package seed loads a directory snapshot from a YAML or JSON document into a store.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/facultyhub/internal/models"
	"github.com/ajitpratap0/facultyhub/internal/store"
)

// Modes reported by Apply.
const (
	ModeFull      = "full"
	ModeReconcile = "reconcile"
)

// Document is the seed file layout. JSON documents parse as YAML.
type Document struct {
	Departments []Department         `yaml:"departments"`
	Branches    map[string]Branch    `yaml:"branches"`
	Professors  map[string]Professor `yaml:"professors"`
	News        []News               `yaml:"news"`
}

// Department is a seeded department.
type Department struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	Branches []string `yaml:"branches"`
}

// Branch is a seeded branch. An empty ID falls back to the map key.
type Branch struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// Professor is a seeded professor. Nil fields are not written during reconciliation.
type Professor struct {
	ID           string        `yaml:"id"`
	Email        string        `yaml:"email"`
	Name         *string       `yaml:"name"`
	Position     *string       `yaml:"position"`
	Degree       *string       `yaml:"degree"`
	Branch       *string       `yaml:"branch"`
	Department   *string       `yaml:"department"`
	DepartmentID *string       `yaml:"departmentId"`
	Description  *string       `yaml:"description"`
	Photo        *string       `yaml:"photo"`
	Links        *models.Links `yaml:"links"`
	Research     *StringList   `yaml:"research"`
	Projects     *StringList   `yaml:"projects"`
	Companies    *StringList   `yaml:"companies"`
	Websites     *StringList   `yaml:"websites"`
	Institutes   *StringList   `yaml:"institutes"`
}

// News is a seeded news item. Older documents use date, url, summary or excerpt.
type News struct {
	Title       string `yaml:"title"`
	Snippet     string `yaml:"snippet"`
	Summary     string `yaml:"summary"`
	Excerpt     string `yaml:"excerpt"`
	Link        string `yaml:"link"`
	URL         string `yaml:"url"`
	PublishedAt string `yaml:"publishedAt"`
	Date        string `yaml:"date"`
}

// StringList accepts either a sequence of strings or a single scalar.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *StringList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		if value.Tag == "!!null" {
			*l = StringList{}
			return nil
		}
		*l = StringList{value.Value}
		return nil
	}
	var items []string
	if err := value.Decode(&items); err != nil {
		return err
	}
	if items == nil {
		items = []string{}
	}
	*l = items
	return nil
}

// Report summarizes a seed run.
type Report struct {
	Mode        string `json:"mode"`
	Departments int    `json:"departments"`
	Branches    int    `json:"branches"`
	Professors  int    `json:"professors"`
	Skipped     int    `json:"skipped"`
	News        int    `json:"news"`
	Companies   int    `json:"companies"`
}

// Load reads and parses the seed document at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML or JSON seed document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing seed document: %w", err)
	}
	return &doc, nil
}

// Seeder applies seed documents to a store.
type Seeder struct {
	store     store.Store
	retention time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// NewSeeder creates a seeder. A non-positive retention uses the default window.
func NewSeeder(st store.Store, retention time.Duration, logger *slog.Logger) *Seeder {
	if retention <= 0 {
		retention = models.DefaultNewsRetention
	}
	return &Seeder{
		store:     st,
		retention: retention,
		now:       time.Now,
		logger:    logger.With("component", "seed"),
	}
}

// WithClock replaces the seeder's clock. Used by tests.
func (s *Seeder) WithClock(now func() time.Time) *Seeder {
	s.now = now
	return s
}

// Apply seeds an empty store in full, or reconciles a populated one with the document.
// Companies are only written by a full seed.
func (s *Seeder) Apply(ctx context.Context, doc *Document) (*Report, error) {
	count, err := s.store.CountProfessors(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting professors: %w", err)
	}
	report := &Report{Mode: ModeReconcile}
	if count == 0 {
		report.Mode = ModeFull
	}
	s.logger.Info("applying seed", "mode", report.Mode,
		"departments", len(doc.Departments), "branches", len(doc.Branches), "professors", len(doc.Professors))

	for _, d := range doc.Departments {
		if strings.TrimSpace(d.ID) == "" {
			s.logger.Warn("skipping seed department without id", "name", d.Name)
			continue
		}
		if err := s.store.MergeDepartment(ctx, models.Department{ID: d.ID, Name: d.Name, Branches: d.Branches}); err != nil {
			return report, fmt.Errorf("seeding department %s: %w", d.ID, err)
		}
		report.Departments++
	}

	for key, b := range doc.Branches {
		id := b.ID
		if id == "" {
			id = key
		}
		if err := s.store.UpsertBranch(ctx, models.Branch{ID: id, Name: b.Name}); err != nil {
			return report, fmt.Errorf("seeding branch %s: %w", id, err)
		}
		report.Branches++
	}

	var profErrs []error
	companies := make([]string, 0)
	for key, p := range doc.Professors {
		email := strings.TrimSpace(p.Email)
		if email == "" {
			s.logger.Warn("skipping seed professor without email", "key", key)
			report.Skipped++
			continue
		}
		if _, err := s.store.UpsertProfessor(ctx, email, p.patch()); err != nil {
			profErrs = append(profErrs, fmt.Errorf("professor %s: %w", email, err))
			continue
		}
		report.Professors++
		if p.Companies != nil {
			for _, c := range *p.Companies {
				if c = strings.TrimSpace(c); c != "" {
					companies = append(companies, c)
				}
			}
		}
	}
	if len(profErrs) > 0 {
		s.logger.Warn("failed to seed some professors", "error", errors.Join(profErrs...))
	}

	if len(doc.News) > 0 {
		items := s.newsItems(doc.News)
		inserted, err := s.store.InsertNewsIfAbsent(ctx, items)
		if err != nil {
			s.logger.Warn("failed to seed some news items", "error", err)
		}
		report.News = inserted
	}

	if report.Mode == ModeFull && len(companies) > 0 {
		inserted, err := s.store.InsertCompanies(ctx, companies)
		if err != nil {
			return report, fmt.Errorf("seeding companies: %w", err)
		}
		report.Companies = inserted
	}

	s.logger.Info("seed complete", "mode", report.Mode, "professors", report.Professors,
		"skipped", report.Skipped, "news", report.News, "companies", report.Companies)
	return report, nil
}

func (s *Seeder) newsItems(entries []News) []models.NewsItem {
	now := s.now()
	items := make([]models.NewsItem, 0, len(entries))
	for _, e := range entries {
		published := now
		raw := firstNonEmpty(e.PublishedAt, e.Date)
		if raw != "" {
			if t, ok := parseDate(raw); ok {
				published = t
			} else {
				s.logger.Warn("unparseable seed news date, using now", "title", e.Title, "date", raw)
			}
		}
		items = append(items, models.NewNewsItem(
			strings.TrimSpace(e.Title),
			firstNonEmpty(e.Snippet, e.Summary, e.Excerpt),
			firstNonEmpty(e.Link, e.URL),
			published, now, s.retention,
		))
	}
	return items
}

func (p Professor) patch() models.ProfessorPatch {
	patch := models.ProfessorPatch{
		Name:         p.Name,
		Position:     p.Position,
		Degree:       p.Degree,
		Branch:       p.Branch,
		Department:   p.Department,
		DepartmentID: p.DepartmentID,
		Description:  p.Description,
		Photo:        p.Photo,
		Links:        p.Links,
	}
	if p.Research != nil {
		patch.Research, patch.HasResearch = *p.Research, true
	}
	if p.Projects != nil {
		patch.Projects, patch.HasProjects = *p.Projects, true
	}
	if p.Companies != nil {
		patch.Companies, patch.HasCompanies = *p.Companies, true
	}
	if p.Websites != nil {
		patch.Websites, patch.HasWebsites = *p.Websites, true
	}
	if p.Institutes != nil {
		patch.Institutes, patch.HasInstitutes = *p.Institutes, true
	}
	return patch
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
}

func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
