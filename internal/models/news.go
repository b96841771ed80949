package models

import (
	"sort"
	"time"
)

// DefaultNewsRetention is how long a news item is kept after its publication time.
const DefaultNewsRetention = 14 * 24 * time.Hour

// NewsItem is an article persisted by the ingestion loop or the seed.
type NewsItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Snippet     string    `json:"snippet"`
	Link        string    `json:"link,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
	FetchedAt   time.Time `json:"fetchedAt"`
	ExpireAt    time.Time `json:"expireAt"`
}

// NewNewsItem builds an item with UTC millisecond timestamps and expireAt derived from
// publishedAt and the retention window.
func NewNewsItem(title, snippet, link string, publishedAt, fetchedAt time.Time, retention time.Duration) NewsItem {
	published := NormalizeInstant(publishedAt)
	return NewsItem{
		Title:       title,
		Snippet:     snippet,
		Link:        link,
		PublishedAt: published,
		FetchedAt:   NormalizeInstant(fetchedAt),
		ExpireAt:    published.Add(retention),
	}
}

// DedupKey identifies the item for insert-if-absent: the link when present,
// otherwise the (title, publishedAt) pair.
func (n NewsItem) DedupKey() string {
	if n.Link != "" {
		return "link:" + n.Link
	}
	return "title:" + n.Title + "|" + NormalizeInstant(n.PublishedAt).Format(time.RFC3339Nano)
}

// Expired reports whether the item's expiry instant has passed at now.
func (n NewsItem) Expired(now time.Time) bool {
	return !n.ExpireAt.IsZero() && !n.ExpireAt.After(now)
}

// NormalizeInstant converts t to UTC and truncates it to millisecond precision,
// the resolution every backend can round-trip.
func NormalizeInstant(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// SortNewsNewestFirst orders items by publishedAt descending.
func SortNewsNewestFirst(items []NewsItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})
}

// Directory is the consolidated read served to clients for hydration.
type Directory struct {
	Departments []Department         `json:"departments"`
	Branches    map[string]Branch    `json:"branches"`
	Professors  map[string]Professor `json:"professors"`
	News        []NewsItem           `json:"news"`
}
