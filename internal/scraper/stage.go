package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/deusflow/digest/internal/news"
	"github.com/deusflow/digest/internal/ratelimit"
)

var (
	errNoURL     = errors.New("article has no url")
	errNoContent = errors.New("no content extracted and no feed summary")
)

// Stage runs content extraction over a batch. Each article is handled
// independently; a failure drops only that article.
type Stage struct {
	extractor   Extractor
	pacer       *ratelimit.Pacer
	concurrency int
	timeout     time.Duration
	log         *slog.Logger

	// OnResult, when set, observes every per-article outcome.
	OnResult func(a news.Article, err error)
}

func NewStage(extractor Extractor, pacer *ratelimit.Pacer, concurrency int, timeout time.Duration, log *slog.Logger) *Stage {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Stage{
		extractor:   extractor,
		pacer:       pacer,
		concurrency: concurrency,
		timeout:     timeout,
		log:         log,
	}
}

// Extract returns the articles that ended up with content, in input order.
func (s *Stage) Extract(ctx context.Context, articles []news.Article) []news.Article {
	results := make([]*news.Article, len(articles))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i := range articles {
		i := i
		g.Go(func() error {
			a, err := s.extractOne(ctx, articles[i])
			if s.OnResult != nil {
				s.OnResult(a, err)
			}
			if err != nil {
				s.log.Warn("skipping article", "title", articles[i].Title, "url", articles[i].URL, "error", err)
				return nil
			}
			results[i] = &a
			return nil
		})
	}
	_ = g.Wait()

	out := make([]news.Article, 0, len(articles))
	for _, a := range results {
		if a != nil {
			out = append(out, *a)
		}
	}
	s.log.Info("extracted articles", "ok", len(out), "total", len(articles))
	return out
}

func (s *Stage) extractOne(ctx context.Context, a news.Article) (out news.Article, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during extraction: %v", r)
		}
	}()

	if a.URL == "" {
		return a, errNoURL
	}

	if err := s.pacer.Wait(ctx, a.URL); err != nil {
		return a, err
	}

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	page, err := s.extractor.Extract(callCtx, a.URL)
	if err != nil {
		return a, err
	}
	if page == nil {
		page = &Page{}
	}

	return s.apply(a, page)
}

// apply merges an extracted page into the article.
func (s *Stage) apply(a news.Article, page *Page) (news.Article, error) {
	switch {
	case page.Text != "":
		a.Content = page.Text
		a.ContentSource = news.ContentExtracted
	case a.SummaryRaw != "":
		s.log.Warn("no content extracted, using feed summary", "url", a.URL)
		a.Content = a.SummaryRaw
		a.ContentSource = news.ContentFeedSummary
	default:
		return a, errNoContent
	}

	if a.ImageURL == "" && page.TopImage != "" {
		a.ImageURL = page.TopImage
	}
	if page.PublishedAt != nil && !page.PublishedAt.IsZero() {
		a.PublishedAt = page.PublishedAt.UTC()
		a.DateGuessed = false
	}
	if len(page.Authors) > 0 {
		a.Authors = append([]string(nil), page.Authors...)
	}
	if len(page.Keywords) > 0 {
		a.Keywords = append([]string(nil), page.Keywords...)
	}

	s.enrich(&a)
	return a, nil
}

// enrich runs the secondary summary/keyword pass. It must never fail the article.
func (s *Stage) enrich(a *news.Article) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Debug("nlp processing failed", "url", a.URL, "error", r)
		}
	}()

	a.ExtractedSummary = Summarize(a.Content, 3)
	a.NLPKeywords = Keywords(a.Content, 10)
}
