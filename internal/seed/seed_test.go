package seed_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/facultyhub/internal/models"
	"github.com/ajitpratap0/facultyhub/internal/seed"
	"github.com/ajitpratap0/facultyhub/internal/store"
)

var seedNow = time.Date(2026, 3, 5, 8, 0, 0, 0, time.UTC)

func newSeeder(s store.Store) *seed.Seeder {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return seed.NewSeeder(s, 0, logger).WithClock(func() time.Time { return seedNow })
}

func professorsByEmail(t *testing.T, s store.Store) map[string]models.Professor {
	t.Helper()
	profs, err := s.ListProfessors(context.Background())
	require.NoError(t, err)
	out := make(map[string]models.Professor, len(profs))
	for _, p := range profs {
		out[p.Email] = p
	}
	return out
}

func companyNames(t *testing.T, s store.Store) []string {
	t.Helper()
	companies, err := s.ListCompanies(context.Background())
	require.NoError(t, err)
	names := make([]string, 0, len(companies))
	for _, c := range companies {
		names = append(names, c.Name)
	}
	return names
}

func TestApply_FullSeedOnEmptyStore(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	doc, err := seed.Load("testdata/seed.yaml")
	require.NoError(t, err)

	report, err := newSeeder(s).Apply(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, &seed.Report{
		Mode:        seed.ModeFull,
		Departments: 2,
		Branches:    3,
		Professors:  2,
		Skipped:     1,
		News:        3,
		Companies:   3,
	}, report)

	systems, err := s.GetBranch(ctx, "systems")
	require.NoError(t, err)
	assert.Equal(t, "Computer Systems", systems.Name)

	profs := professorsByEmail(t, s)
	require.Len(t, profs, 2)
	assert.Equal(t, "Asha Rao", profs["asha@uni.example"].Name)
	assert.Equal(t, "https://uni.example/~asha", profs["asha@uni.example"].Links.Webpage)
	assert.Equal(t, []string{"chip design"}, profs["vikram@uni.example"].Research)

	assert.ElementsMatch(t, []string{"Acme", "Globex", "Initech"}, companyNames(t, s))

	items, err := s.ListNews(ctx, 0)
	require.NoError(t, err)
	byTitle := make(map[string]models.NewsItem, len(items))
	for _, it := range items {
		byTitle[it.Title] = it
	}
	old := byTitle["Old style entry"]
	assert.Equal(t, "https://news.example/old-style", old.Link)
	assert.Equal(t, "Summary text", old.Snippet)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), old.PublishedAt)
	assert.Equal(t, old.PublishedAt.Add(models.DefaultNewsRetention), old.ExpireAt)
	assert.Equal(t, "Excerpt text", byTitle["Excerpt only"].Snippet)
}

func TestApply_ReconcilesPopulatedStore(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	seeder := newSeeder(s)

	full, err := seed.Load("testdata/seed.yaml")
	require.NoError(t, err)
	_, err = seeder.Apply(ctx, full)
	require.NoError(t, err)

	update, err := seed.Load("testdata/seed.json")
	require.NoError(t, err)
	report, err := seeder.Apply(ctx, update)
	require.NoError(t, err)
	assert.Equal(t, seed.ModeReconcile, report.Mode)
	assert.Equal(t, 2, report.Professors)
	assert.Zero(t, report.News)
	assert.Zero(t, report.Companies)

	cse, err := s.GetDepartment(ctx, "cse")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ai", "systems", "data"}, cse.Branches)

	ai, err := s.GetBranch(ctx, "ai")
	require.NoError(t, err)
	assert.Equal(t, "AI and Machine Learning", ai.Name)

	profs := professorsByEmail(t, s)
	require.Len(t, profs, 3)
	asha := profs["asha@uni.example"]
	assert.Equal(t, "Dean", asha.Position)
	assert.Equal(t, "Asha Rao", asha.Name, "fields absent from the document are preserved")
	assert.Equal(t, []string{"machine learning", "robotics"}, asha.Research)
	assert.Equal(t, "Meera Nair", profs["meera@uni.example"].Name)

	assert.NotContains(t, companyNames(t, s), "Umbrella")
}

func TestApply_IsRepeatable(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	seeder := newSeeder(s)
	doc, err := seed.Load("testdata/seed.yaml")
	require.NoError(t, err)

	_, err = seeder.Apply(ctx, doc)
	require.NoError(t, err)
	second, err := seeder.Apply(ctx, doc)
	require.NoError(t, err)

	assert.Equal(t, seed.ModeReconcile, second.Mode)
	assert.Zero(t, second.News)
	assert.Len(t, professorsByEmail(t, s), 2)
}

func TestParse_Errors(t *testing.T) {
	_, err := seed.Parse([]byte("departments: {not: [a list"))
	assert.Error(t, err)

	_, err = seed.Load("testdata/missing.yaml")
	assert.Error(t, err)
}

func TestParse_UnparseableDateFallsBackToNow(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	doc, err := seed.Parse([]byte(`news: [{title: Someday, date: "next tuesday"}]`))
	require.NoError(t, err)

	_, err = newSeeder(s).Apply(ctx, doc)
	require.NoError(t, err)

	items, err := s.ListNews(ctx, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, seedNow, items[0].PublishedAt)
}
