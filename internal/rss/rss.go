// Package rss turns syndication feeds into canonical Article records.
package rss

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"

	"github.com/deusflow/digest/internal/config"
	"github.com/deusflow/digest/internal/news"
)

// Source fetches and parses one feed document.
type Source interface {
	Fetch(ctx context.Context, url string) (*gofeed.Feed, error)
}

// HTTPSource is the gofeed-backed Source.
type HTTPSource struct {
	parser *gofeed.Parser
}

func NewHTTPSource(userAgent string, client *http.Client) *HTTPSource {
	parser := gofeed.NewParser()
	parser.UserAgent = userAgent
	if client != nil {
		parser.Client = client
	}
	return &HTTPSource{parser: parser}
}

func (s *HTTPSource) Fetch(ctx context.Context, url string) (*gofeed.Feed, error) {
	return s.parser.ParseURLWithContext(url, ctx)
}

// Limits bounds what a single intake run returns.
type Limits struct {
	MaxPerFeed int
	MaxTotal   int
	MaxAgeDays int
}

// Seen reports whether an article was already delivered in an earlier digest.
type Seen func(ctx context.Context, a news.Article) bool

type Fetcher struct {
	source   Source
	limits   Limits
	timeout  time.Duration
	loc      *time.Location
	gate     *rate.Limiter
	policy   *bluemonday.Policy
	log      *slog.Logger
	now      func() time.Time
	seen     Seen
	OnResult func(feed config.Feed, count int, err error)
}

type Option func(*Fetcher)

// WithSeen excludes articles already delivered in earlier digests.
func WithSeen(seen Seen) Option { return func(f *Fetcher) { f.seen = seen } }

// WithClock overrides the current time source.
func WithClock(now func() time.Time) Option { return func(f *Fetcher) { f.now = now } }

// NewFetcher builds a Fetcher. delay is the pause enforced between two feed
// requests; zero disables it.
func NewFetcher(source Source, limits Limits, timeout, delay time.Duration, loc *time.Location, log *slog.Logger, opts ...Option) *Fetcher {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	if loc == nil {
		loc = time.UTC
	}
	f := &Fetcher{
		source:  source,
		limits:  limits,
		timeout: timeout,
		loc:     loc,
		gate:    rate.NewLimiter(limit, 1),
		policy:  bluemonday.StrictPolicy(),
		log:     log,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchAll reads every feed, merges the results newest first, removes
// duplicates and previously delivered items, and truncates to MaxTotal.
// A failing feed contributes nothing and never stops the run.
func (f *Fetcher) FetchAll(ctx context.Context, feeds []config.Feed) []news.Article {
	now := f.now()
	cutoff := Cutoff(now, f.limits.MaxAgeDays)

	var all []news.Article
	ok := 0
	for _, feed := range feeds {
		if err := f.gate.Wait(ctx); err != nil {
			f.log.Warn("feed intake interrupted", "error", err)
			break
		}

		items, err := f.fetchFeed(ctx, feed, now, cutoff)
		if f.OnResult != nil {
			f.OnResult(feed, len(items), err)
		}
		if err != nil {
			f.log.Error("error fetching feed", "feed", feed.Name, "url", feed.URL, "error", err)
			continue
		}
		ok++
		f.log.Info("loaded feed", "feed", feed.Name, "articles", len(items))
		all = append(all, items...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].PublishedAt.After(all[j].PublishedAt)
	})

	all, dropped := news.Dedupe(all)
	if dropped > 0 {
		f.log.Debug("dropped duplicate articles", "count", dropped)
	}

	if f.seen != nil {
		fresh := all[:0]
		for _, a := range all {
			if f.seen(ctx, a) {
				f.log.Debug("skipping article from earlier digest", "title", a.Title)
				continue
			}
			fresh = append(fresh, a)
		}
		all = fresh
	}

	if f.limits.MaxTotal > 0 && len(all) > f.limits.MaxTotal {
		all = all[:f.limits.MaxTotal]
	}

	f.log.Info("processed feeds", "ok", ok, "total", len(feeds), "articles", len(all))
	return all
}

func (f *Fetcher) fetchFeed(ctx context.Context, feed config.Feed, now, cutoff time.Time) ([]news.Article, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	parsed, err := f.source.Fetch(ctx, feed.URL)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feed.URL, err)
	}
	if parsed == nil {
		return nil, nil
	}

	entries := parsed.Items
	if f.limits.MaxPerFeed > 0 && len(entries) > f.limits.MaxPerFeed {
		entries = entries[:f.limits.MaxPerFeed]
	}

	var out []news.Article
	for _, item := range entries {
		if item == nil {
			continue
		}
		a := f.ParseItem(item, feed, now)
		if a.DateGuessed {
			f.log.Warn("could not parse date, using current time", "feed", feed.Name, "title", a.Title)
		}
		if !WithinAge(a.PublishedAt, cutoff) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// ParseItem normalizes one feed entry. It never fails: missing fields get
// defaults and an unparseable date becomes now with DateGuessed set.
func (f *Fetcher) ParseItem(item *gofeed.Item, feed config.Feed, now time.Time) news.Article {
	title := strings.TrimSpace(html.UnescapeString(item.Title))
	if title == "" {
		title = news.DefaultTitle
	}
	category := feed.Category
	if category == "" {
		category = news.DefaultCategory
	}
	feedID := feed.ID
	if feedID == "" {
		feedID = feed.URL
	}

	published, _, ok := ParsePublished(item, f.loc)
	if !ok {
		published = now.UTC()
	}

	var keywords []string
	for _, c := range item.Categories {
		if c = strings.TrimSpace(c); c != "" {
			keywords = append(keywords, c)
		}
	}

	return news.Article{
		Title:       title,
		URL:         strings.TrimSpace(item.Link),
		SourceName:  feed.Name,
		Category:    category,
		FeedID:      feedID,
		PublishedAt: published,
		DateGuessed: !ok,
		SummaryRaw:  f.cleanSummary(item.Description),
		ImageURL:    ExtractImageURL(item),
		Keywords:    keywords,
	}
}

func (f *Fetcher) cleanSummary(s string) string {
	s = f.policy.Sanitize(s)
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}
