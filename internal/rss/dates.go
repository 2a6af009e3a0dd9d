package rss

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"
)

// dateField is one candidate source for an entry's publish time.
type dateField struct {
	name string
	raw  func(*gofeed.Item) string
}

// dateFields lists publish time candidates in priority order.
var dateFields = []dateField{
	{"published", func(it *gofeed.Item) string { return it.Published }},
	{"pubDate", func(it *gofeed.Item) string { return custom(it, "pubDate") }},
	{"updated", func(it *gofeed.Item) string { return it.Updated }},
	{"created", func(it *gofeed.Item) string { return custom(it, "created") }},
	{"date", func(it *gofeed.Item) string {
		if it.DublinCoreExt != nil && len(it.DublinCoreExt.Date) > 0 {
			return it.DublinCoreExt.Date[0]
		}
		return custom(it, "date")
	}},
}

func custom(it *gofeed.Item, key string) string {
	if it.Custom == nil {
		return ""
	}
	return it.Custom[key]
}

// ParseTime parses a feed timestamp. Values without a zone are read in loc.
func ParseTime(raw string, loc *time.Location) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := dateparse.ParseIn(raw, loc)
	if err != nil || t.IsZero() {
		return time.Time{}, false
	}
	return t, true
}

// ParsePublished returns the first candidate date that parses, and the name of
// the field it came from. ok is false when no candidate parses.
func ParsePublished(item *gofeed.Item, loc *time.Location) (t time.Time, field string, ok bool) {
	for _, f := range dateFields {
		if t, ok := ParseTime(f.raw(item), loc); ok {
			return t.UTC(), f.name, true
		}
	}
	// gofeed may have parsed a layout dateparse rejects.
	switch {
	case item.PublishedParsed != nil:
		return item.PublishedParsed.UTC(), "published", true
	case item.UpdatedParsed != nil:
		return item.UpdatedParsed.UTC(), "updated", true
	}
	return time.Time{}, "", false
}

// Cutoff is the oldest publish time kept for a run started at now.
func Cutoff(now time.Time, maxAgeDays int) time.Time {
	return now.UTC().AddDate(0, 0, -maxAgeDays)
}

// WithinAge reports whether published is not older than cutoff. An article
// published exactly at the cutoff is kept.
func WithinAge(published, cutoff time.Time) bool {
	return !published.UTC().Before(cutoff.UTC())
}
