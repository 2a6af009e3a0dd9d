// Package app runs the digest pipeline: intake, extraction, relevance,
// summarization and assembly, strictly in that order.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/deusflow/digest/internal/config"
	"github.com/deusflow/digest/internal/digest"
	"github.com/deusflow/digest/internal/logger"
	"github.com/deusflow/digest/internal/metrics"
	"github.com/deusflow/digest/internal/news"
	"github.com/deusflow/digest/internal/relevance"
	"github.com/deusflow/digest/internal/storage"
)

// ErrNoArticles is returned with an empty Result when a run has nothing to publish.
var ErrNoArticles = errors.New("no articles for digest")

type Fetcher interface {
	FetchAll(ctx context.Context, feeds []config.Feed) []news.Article
}

type Extractor interface {
	Extract(ctx context.Context, articles []news.Article) []news.Article
}

type Ranker interface {
	Rank(ctx context.Context, articles []news.Article) relevance.Ranking
}

type Summarizer interface {
	SummarizeAll(ctx context.Context, articles []news.Article) []news.Article
	Introduction(ctx context.Context, articles []news.Article) string
}

type Assembler interface {
	Assemble(articles []news.Article, intro string, now time.Time) (digest.Result, error)
}

type Notifier interface {
	SendDigest(ctx context.Context, title, intro string, articles []news.Article, files map[string]string) error
}

// Deps are the pipeline's collaborators. History, Notifier and Metrics are optional.
type Deps struct {
	Feeds      []config.Feed
	Fetcher    Fetcher
	Extractor  Extractor
	Ranker     Ranker
	Summarizer Summarizer
	Assembler  Assembler
	History    storage.History
	Notifier   Notifier
	Metrics    *metrics.Metrics

	Title string
	// MaxArticles caps the digest after ranking; 0 keeps everything.
	MaxArticles int
	Now         func() time.Time
	Log         *slog.Logger
}

// Result describes one run. Empty runs carry a Reason and write no files.
type Result struct {
	RunID     string
	Artifacts map[string]string
	Articles  []news.Article
	Empty     bool
	Reason    string

	// Relevance is how articles were ranked; RelevanceBypassed is set when
	// nothing cleared the threshold and the full extracted set was used.
	Relevance         relevance.Ranking
	RelevanceBypassed bool
}

type Pipeline struct {
	d       Deps
	closers []func() error
}

func New(d Deps) *Pipeline {
	if d.History == nil {
		d.History = storage.Nop{}
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	d.Log = logger.OrDiscard(d.Log)
	return &Pipeline{d: d}
}

// Close releases backends opened by Build.
func (p *Pipeline) Close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		errs = append(errs, p.closers[i]())
	}
	p.closers = nil
	return errors.Join(errs...)
}

// Run executes one full pipeline pass. Per-item failures never fail the run;
// an error is returned only for cancellation, an empty run (ErrNoArticles) or
// when no artifact could be written.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	res := Result{RunID: uuid.NewString()}
	log := p.d.Log.With("run_id", res.RunID)
	m := p.d.Metrics

	start := p.d.Now()
	m.IncrementRuns()
	defer func() { m.RecordProcessingTime(time.Since(start)) }()

	log.Info("starting digest pipeline", "feeds", len(p.d.Feeds))

	log.Info("step 1: fetching articles from feeds")
	fetched := p.d.Fetcher.FetchAll(ctx, p.d.Feeds)
	m.AddArticlesFetched(len(fetched))
	if err := ctx.Err(); err != nil {
		return res, err
	}
	if len(fetched) == 0 {
		return p.empty(log, res, "no articles fetched")
	}

	log.Info("step 2: extracting article content", "articles", len(fetched))
	extracted := p.d.Extractor.Extract(ctx, fetched)
	m.AddArticlesExtracted(len(extracted))
	if err := ctx.Err(); err != nil {
		return res, err
	}
	if len(extracted) == 0 {
		return p.empty(log, res, "no articles could be extracted")
	}

	log.Info("step 3: ranking articles by interest", "articles", len(extracted))
	res.Relevance = p.d.Ranker.Rank(ctx, extracted)
	if res.Relevance.FellBack {
		m.IncrementRelevanceFallbacks()
	}
	selected := res.Relevance.Articles
	if len(selected) == 0 {
		log.Warn("no articles matched interests, using all extracted articles", "articles", len(extracted))
		selected = extracted
		res.RelevanceBypassed = true
	}
	if p.d.MaxArticles > 0 && len(selected) > p.d.MaxArticles {
		selected = selected[:p.d.MaxArticles]
	}
	m.AddArticlesKept(len(selected))

	log.Info("step 4: summarizing articles", "articles", len(selected))
	summarized := p.d.Summarizer.SummarizeAll(ctx, selected)
	for _, a := range summarized {
		m.RecordSummary(a.SummaryOrigin == news.SummaryFallback)
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	log.Info("step 5: writing introduction")
	intro := p.d.Summarizer.Introduction(ctx, summarized)

	log.Info("step 6: assembling digest")
	out, err := p.d.Assembler.Assemble(summarized, intro, p.d.Now())
	if err != nil {
		m.SetError(err.Error())
		return res, fmt.Errorf("assemble digest: %w", err)
	}
	if out.Empty {
		return p.empty(log, res, "nothing to render")
	}

	res.Artifacts = out.Files
	res.Articles = summarized
	m.IncrementDigestsWritten()
	for format, path := range out.Files {
		log.Info("generated newsletter", "format", format, "path", path)
	}

	if err := p.d.History.Mark(ctx, summarized); err != nil {
		log.Warn("failed to record digest history", "error", err)
	}

	if p.d.Notifier != nil {
		if err := p.d.Notifier.SendDigest(ctx, p.d.Title, intro, summarized, out.Files); err != nil {
			log.Warn("failed to send digest notification", "error", err)
		} else {
			m.IncrementNotificationsSent()
		}
	}

	m.SetLastRun()
	log.Info("digest pipeline completed", "articles", len(summarized), "duration", time.Since(start).Round(time.Millisecond))
	return res, nil
}

func (p *Pipeline) empty(log *slog.Logger, res Result, reason string) (Result, error) {
	log.Warn("ending run early", "reason", reason)
	p.d.Metrics.IncrementEmptyRuns()
	p.d.Metrics.SetLastRun()
	res.Empty = true
	res.Reason = reason
	return res, fmt.Errorf("%w: %s", ErrNoArticles, reason)
}
