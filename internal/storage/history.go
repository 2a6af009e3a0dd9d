// Package storage remembers which articles went out in earlier digests so a
// story is not repeated within the history window.
package storage

import (
	"context"
	"time"

	"github.com/deusflow/digest/internal/news"
)

// DefaultTTL is how long a sent article stays in history.
const DefaultTTL = 48 * time.Hour

// Entry is one article recorded as sent.
type Entry struct {
	Hash     string    `json:"hash"`
	Title    string    `json:"title"`
	Link     string    `json:"link"`
	Category string    `json:"category"`
	Source   string    `json:"source"`
	SentAt   time.Time `json:"sent_at"`
}

// History is a digest history backend.
type History interface {
	// Seen reports whether an article with this fingerprint was sent within the TTL.
	Seen(ctx context.Context, fingerprint string) (bool, error)
	// Mark records articles as sent now.
	Mark(ctx context.Context, articles []news.Article) error
	Close() error
}

// Nop is the history used when the backend is "none": nothing is ever seen.
type Nop struct{}

func (Nop) Seen(context.Context, string) (bool, error) { return false, nil }

func (Nop) Mark(context.Context, []news.Article) error { return nil }

func (Nop) Close() error { return nil }

func entriesFor(articles []news.Article, now time.Time) []Entry {
	seen := make(map[string]struct{}, len(articles))
	out := make([]Entry, 0, len(articles))
	for _, a := range articles {
		hash := news.Fingerprint(a.Title, a.URL)
		if _, dup := seen[hash]; dup {
			continue
		}
		seen[hash] = struct{}{}
		out = append(out, Entry{
			Hash:     hash,
			Title:    a.Title,
			Link:     a.URL,
			Category: a.Category,
			Source:   a.SourceName,
			SentAt:   now,
		})
	}
	return out
}

func ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}
	return ttl
}
