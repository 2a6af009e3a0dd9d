package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/digest/internal/config"
	"github.com/deusflow/digest/internal/digest"
	"github.com/deusflow/digest/internal/logger"
	"github.com/deusflow/digest/internal/metrics"
	"github.com/deusflow/digest/internal/news"
	"github.com/deusflow/digest/internal/relevance"
)

type fakeFetcher struct{ articles []news.Article }

func (f fakeFetcher) FetchAll(context.Context, []config.Feed) []news.Article { return f.articles }

type passExtractor struct{ drop bool }

func (e passExtractor) Extract(_ context.Context, in []news.Article) []news.Article {
	if e.drop {
		return nil
	}
	out := make([]news.Article, len(in))
	for i, a := range in {
		a.Content = "Body of " + a.Title
		a.ContentSource = news.ContentExtracted
		out[i] = a
	}
	return out
}

type fakeRanker struct{ ranking relevance.Ranking }

func (r fakeRanker) Rank(context.Context, []news.Article) relevance.Ranking { return r.ranking }

type fakeSummarizer struct{}

func (fakeSummarizer) SummarizeAll(_ context.Context, in []news.Article) []news.Article {
	out := make([]news.Article, len(in))
	for i, a := range in {
		a.Summary = "Summary of " + a.Title
		a.SummaryOrigin = news.SummaryFallback
		out[i] = a
	}
	return out
}

func (fakeSummarizer) Introduction(context.Context, []news.Article) string { return "intro" }

type recordingAssembler struct {
	got []news.Article
	err error
}

func (a *recordingAssembler) Assemble(articles []news.Article, _ string, _ time.Time) (digest.Result, error) {
	a.got = articles
	if a.err != nil {
		return digest.Result{}, a.err
	}
	if len(articles) == 0 {
		return digest.Result{Empty: true}, nil
	}
	return digest.Result{Files: map[string]string{digest.FormatMarkdown: "out/newsletter.md"}}, nil
}

type recordingHistory struct {
	marked []news.Article
}

func (h *recordingHistory) Seen(context.Context, string) (bool, error) { return false, nil }

func (h *recordingHistory) Mark(_ context.Context, a []news.Article) error {
	h.marked = append(h.marked, a...)
	return nil
}

func (h *recordingHistory) Close() error { return nil }

type fakeNotifier struct {
	calls int
	err   error
}

func (n *fakeNotifier) SendDigest(context.Context, string, string, []news.Article, map[string]string) error {
	n.calls++
	return n.err
}

func articles(titles ...string) []news.Article {
	out := make([]news.Article, len(titles))
	for i, t := range titles {
		out[i] = news.Article{Title: t, URL: "https://example.com/" + t}
	}
	return out
}

func newTestPipeline(d Deps) *Pipeline {
	d.Log = logger.Discard()
	if d.Summarizer == nil {
		d.Summarizer = fakeSummarizer{}
	}
	if d.Extractor == nil {
		d.Extractor = passExtractor{}
	}
	return New(d)
}

func TestRun_RankedArticlesReachDigest(t *testing.T) {
	in := articles("a", "b", "c")
	ranked := passExtractor{}.Extract(context.Background(), in)[1:2]
	asm := &recordingAssembler{}
	hist := &recordingHistory{}
	notifier := &fakeNotifier{}
	m := metrics.New()

	p := newTestPipeline(Deps{
		Fetcher:   fakeFetcher{in},
		Ranker:    fakeRanker{relevance.Ranking{Articles: ranked, Method: relevance.MethodKeyword}},
		Assembler: asm,
		History:   hist,
		Notifier:  notifier,
		Metrics:   m,
	})

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, res.RunID)
	assert.False(t, res.Empty)
	assert.False(t, res.RelevanceBypassed)
	require.Len(t, res.Articles, 1)
	assert.Equal(t, "b", res.Articles[0].Title)
	assert.Equal(t, "Summary of b", asm.got[0].Summary)
	assert.Equal(t, "out/newsletter.md", res.Artifacts[digest.FormatMarkdown])
	assert.Len(t, hist.marked, 1)
	assert.Equal(t, 1, notifier.calls)

	stats := m.GetStats()
	assert.Equal(t, int64(3), stats["articles_fetched"])
	assert.Equal(t, int64(1), stats["articles_kept"])
	assert.Equal(t, int64(1), stats["summary_fallbacks"])
	assert.Equal(t, int64(1), stats["notifications_sent"])
}

func TestRun_EmptyRelevanceFallsBackToExtractedSet(t *testing.T) {
	asm := &recordingAssembler{}
	p := newTestPipeline(Deps{
		Fetcher:   fakeFetcher{articles("a", "b", "c")},
		Ranker:    fakeRanker{relevance.Ranking{Method: relevance.MethodKeyword, Considered: 3}},
		Assembler: asm,
	})

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.RelevanceBypassed)
	assert.Len(t, asm.got, 3)
	assert.Equal(t, "Body of a", asm.got[0].Content)
}

func TestRun_MaxArticlesCapsDigest(t *testing.T) {
	asm := &recordingAssembler{}
	p := newTestPipeline(Deps{
		Fetcher:     fakeFetcher{articles("a", "b", "c")},
		Ranker:      fakeRanker{},
		Assembler:   asm,
		MaxArticles: 2,
	})

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, asm.got, 2)
}

func TestRun_NothingFetched(t *testing.T) {
	asm := &recordingAssembler{}
	hist := &recordingHistory{}
	m := metrics.New()
	p := newTestPipeline(Deps{
		Fetcher:   fakeFetcher{},
		Ranker:    fakeRanker{},
		Assembler: asm,
		History:   hist,
		Metrics:   m,
	})

	res, err := p.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoArticles)
	assert.True(t, res.Empty)
	assert.Equal(t, "no articles fetched", res.Reason)
	assert.Nil(t, asm.got)
	assert.Empty(t, res.Artifacts)
	assert.Empty(t, hist.marked)
	assert.Equal(t, int64(1), m.GetStats()["runs_empty"])
	assert.True(t, m.Healthy())
}

func TestRun_NothingExtracted(t *testing.T) {
	p := newTestPipeline(Deps{
		Fetcher:   fakeFetcher{articles("a")},
		Extractor: passExtractor{drop: true},
		Ranker:    fakeRanker{},
		Assembler: &recordingAssembler{},
	})

	res, err := p.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoArticles)
	assert.Equal(t, "no articles could be extracted", res.Reason)
}

func TestRun_NotificationFailureDoesNotFailRun(t *testing.T) {
	notifier := &fakeNotifier{err: errors.New("telegram down")}
	m := metrics.New()
	p := newTestPipeline(Deps{
		Fetcher:   fakeFetcher{articles("a")},
		Ranker:    fakeRanker{},
		Assembler: &recordingAssembler{},
		Notifier:  notifier,
		Metrics:   m,
	})

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, notifier.calls)
	assert.Equal(t, int64(0), m.GetStats()["notifications_sent"])
}

func TestRun_AssemblyErrorIsReported(t *testing.T) {
	m := metrics.New()
	hist := &recordingHistory{}
	p := newTestPipeline(Deps{
		Fetcher:   fakeFetcher{articles("a")},
		Ranker:    fakeRanker{},
		Assembler: &recordingAssembler{err: errors.New("disk full")},
		History:   hist,
		Metrics:   m,
	})

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Empty(t, hist.marked)
	assert.False(t, m.Healthy())
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	asm := &recordingAssembler{}
	p := newTestPipeline(Deps{
		Fetcher:   fakeFetcher{articles("a")},
		Ranker:    fakeRanker{},
		Assembler: asm,
	})

	_, err := p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, asm.got)
}
