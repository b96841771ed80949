package news

import (
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"

	"github.com/ajitpratap0/facultyhub/internal/models"
)

// publishedKeys are the metatags consulted for the publication time, in order.
var publishedKeys = []string{"article:published_time", "og:updated_time", "date"}

var publishedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// Normalize converts raw search results into news items. Items without a
// publication time are stamped with now.
func Normalize(items []SearchItem, now time.Time, retention time.Duration) []models.NewsItem {
	out := make([]models.NewsItem, 0, len(items))
	for i, it := range items {
		title := firstNonEmpty(clean(it.Title), htmlText(it.HTMLTitle), clean(it.Snippet))
		if title == "" {
			title = "Untitled " + strconv.Itoa(i)
		}
		snippet := firstNonEmpty(clean(it.Snippet), htmlText(it.HTMLSnippet))
		link := firstNonEmpty(strings.TrimSpace(it.Link), strings.TrimSpace(it.FormattedURL))

		published, ok := publishedAt(it.Pagemap)
		if !ok {
			published = now
		}
		out = append(out, models.NewNewsItem(title, snippet, link, published, now, retention))
	}
	return out
}

func publishedAt(pm Pagemap) (time.Time, bool) {
	if len(pm.Metatags) == 0 {
		return time.Time{}, false
	}
	meta := pm.Metatags[0]
	for _, key := range publishedKeys {
		raw, _ := meta[key].(string)
		if t, ok := parseTime(strings.TrimSpace(raw)); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// htmlText extracts the text content of an HTML fragment.
func htmlText(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return clean(fragment)
	}
	return clean(doc.Text())
}

func clean(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
