package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ajitpratap0/facultyhub/internal/models"
)

func strPtr(s string) *string { return &s }

func TestProfessorPatch_ApplyLeavesOmittedFields(t *testing.T) {
	p := models.Professor{
		Email:    "a@x.edu",
		Name:     "Ada",
		Position: "Professor",
		Research: []string{"robotics"},
	}

	models.ProfessorPatch{Name: strPtr("Ada L.")}.Apply(&p)

	assert.Equal(t, "Ada L.", p.Name)
	assert.Equal(t, "Professor", p.Position)
	assert.Equal(t, []string{"robotics"}, p.Research)
}

func TestProfessorPatch_ExplicitEmptyListClears(t *testing.T) {
	p := models.Professor{Email: "a@x.edu", Research: []string{"robotics"}}

	models.ProfessorPatch{HasResearch: true, Research: []string{}}.Apply(&p)

	assert.Empty(t, p.Research)
}

func TestNewProfessor_ListsStartEmpty(t *testing.T) {
	p := models.NewProfessor("id-1", "a@x.edu")
	models.ProfessorPatch{Name: strPtr("Ada"), HasProjects: true}.Apply(&p)

	for _, list := range [][]string{p.Research, p.Projects, p.Companies, p.Websites, p.Institutes} {
		assert.NotNil(t, list)
		assert.Empty(t, list)
	}
}

func TestProfessorPatch_Columns(t *testing.T) {
	pp := models.ProfessorPatch{
		Name:        strPtr("Ada"),
		Branch:      strPtr("br1"),
		HasProjects: true,
	}

	cols := pp.Columns()

	assert.Equal(t, "Ada", cols["name"])
	assert.Equal(t, "br1", cols["branch"])
	assert.Equal(t, []string{}, cols["projects"])
	assert.NotContains(t, cols, "research")
	assert.NotContains(t, cols, "links")
}

func TestNewsItem_DedupKey(t *testing.T) {
	published := time.Date(2026, 3, 1, 10, 0, 0, 123456789, time.UTC)

	withLink := models.NewNewsItem("Hiring", "", "https://example.com/a", published, published, models.DefaultNewsRetention)
	assert.Equal(t, "link:https://example.com/a", withLink.DedupKey())

	noLink := models.NewNewsItem("Hiring", "", "", published, published, models.DefaultNewsRetention)
	assert.Equal(t, "title:Hiring|2026-03-01T10:00:00.123Z", noLink.DedupKey())
}

func TestNewNewsItem_ExpireAt(t *testing.T) {
	published := time.Date(2026, 3, 1, 10, 0, 0, 0, time.FixedZone("CET", 3600))

	item := models.NewNewsItem("t", "s", "", published, published, models.DefaultNewsRetention)

	assert.Equal(t, time.UTC, item.PublishedAt.Location())
	assert.Equal(t, published.UTC().Add(14*24*time.Hour), item.ExpireAt)
	assert.False(t, item.Expired(published.Add(time.Hour)))
	assert.True(t, item.Expired(published.Add(15*24*time.Hour)))
}

func TestSortNewsNewestFirst(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	items := []models.NewsItem{
		{Title: "old", PublishedAt: base},
		{Title: "new", PublishedAt: base.Add(48 * time.Hour)},
		{Title: "mid", PublishedAt: base.Add(24 * time.Hour)},
	}

	models.SortNewsNewestFirst(items)

	assert.Equal(t, "new", items[0].Title)
	assert.Equal(t, "mid", items[1].Title)
	assert.Equal(t, "old", items[2].Title)
}

func TestDepartment_HasBranch(t *testing.T) {
	d := models.Department{ID: "d1", Branches: []string{"br1", "br2"}}
	assert.True(t, d.HasBranch("br2"))
	assert.False(t, d.HasBranch("br3"))
}
