package relevance

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/digest/internal/cache"
	"github.com/deusflow/digest/internal/llm"
	"github.com/deusflow/digest/internal/logger"
	"github.com/deusflow/digest/internal/news"
	"github.com/deusflow/digest/internal/ratelimit"
	"github.com/deusflow/digest/internal/scraper"
)

func article(title, summary string) news.Article {
	return news.Article{Title: title, SummaryRaw: summary, Category: "general", Content: summary}
}

func keywordEngine(interests []string, min float64) *Engine {
	return NewEngine(Profile{Interests: interests, Method: MethodKeyword, MinScore: min}, Params{}, nil, nil, logger.Discard())
}

func TestRank_ScenarioSpaceInterest(t *testing.T) {
	articles := []news.Article{
		article("Ocean currents shift", "Researchers track warmer water."),
		article("Space station resupply", "A cargo ship reached the space station."),
	}

	r := keywordEngine([]string{"space"}, 0.3).Rank(context.Background(), articles)

	require.Len(t, r.Articles, 1)
	got := r.Articles[0]
	assert.Equal(t, "Space station resupply", got.Title)
	score, ok := got.Score()
	require.True(t, ok)
	assert.Equal(t, 1.0, score)
	assert.Equal(t, []string{"space"}, got.MatchedInterests)
	assert.Equal(t, MethodKeyword, r.Method)
	assert.Equal(t, 2, r.Considered)

	m := KeywordScore(articles[0], []string{"space"}, 10)
	assert.Equal(t, 0.0, m.Score)
	assert.Empty(t, m.Matched)
}

func TestKeywordScore_Formula(t *testing.T) {
	interests := []string{"python", "rust", "go"}
	a := news.Article{Title: "Python tips", SummaryRaw: "python python", Category: "dev"}

	m := KeywordScore(a, interests, 10)
	assert.Equal(t, []string{"python"}, m.Matched)
	assert.Equal(t, 3, m.Occurrences)
	assert.InDelta(t, 1.0/3+0.3, m.Score, 1e-9)

	// Bonus is capped at 0.5.
	a.SummaryRaw = strings.Repeat("python ", 40)
	m = KeywordScore(a, interests, 10)
	assert.InDelta(t, 1.0/3+0.5, m.Score, 1e-9)

	// Custom divisor.
	a.SummaryRaw = "python"
	m = KeywordScore(a, interests, 4)
	assert.InDelta(t, 1.0/3+0.5, m.Score, 1e-9)
}

func TestKeywordScore_ZeroIffUnmatched(t *testing.T) {
	interests := []string{"ai", "space", "climate"}
	texts := []string{"", "nothing here", "space", "AI and Space and climate", "spacecraft", "rain"}
	for _, text := range texts {
		m := KeywordScore(news.Article{Title: text}, interests, 10)
		assert.Equal(t, m.Score == 0, len(m.Matched) == 0, "text %q", text)
		assert.LessOrEqual(t, m.Score, 1.0)
	}
}

func TestKeywordScore_MonotonicInMentions(t *testing.T) {
	interests := []string{"space", "ai"}
	prev := -1.0
	for n := 1; n <= 12; n++ {
		a := news.Article{Title: strings.Repeat("space ", n)}
		m := KeywordScore(a, interests, 10)
		assert.GreaterOrEqual(t, m.Score, prev)
		assert.LessOrEqual(t, m.Score, 1.0)
		prev = m.Score
	}
}

func TestBlob_UsesContentExcerptWhenNoSummary(t *testing.T) {
	a := news.Article{Title: "T", Content: strings.Repeat("x", 600) + " hidden", Keywords: []string{"KW"}, NLPKeywords: []string{"nlp"}}
	b := Blob(a)
	assert.NotContains(t, b, "hidden")
	assert.Contains(t, b, "kw")
	assert.Contains(t, b, "nlp")
}

func TestRank_StableTiesAndIdempotent(t *testing.T) {
	articles := []news.Article{
		article("first go", "x"),
		article("second rust", "x"),
		article("third go rust", "x"),
		article("fourth go", "x"),
	}
	e := keywordEngine([]string{"go", "rust"}, 0)

	r1 := e.Rank(context.Background(), articles)
	r2 := e.Rank(context.Background(), articles)

	titles := func(r Ranking) []string {
		var out []string
		for _, a := range r.Articles {
			out = append(out, a.Title)
		}
		return out
	}
	assert.Equal(t, []string{"third go rust", "first go", "second rust", "fourth go"}, titles(r1))
	assert.Equal(t, titles(r1), titles(r2))
	for i := range r1.Articles {
		assert.Equal(t, *r1.Articles[i].RelevanceScore, *r2.Articles[i].RelevanceScore)
	}
	for _, a := range articles {
		assert.Nil(t, a.RelevanceScore, "input must not be mutated")
	}
}

func TestRank_EmptyResultIsNotSubstituted(t *testing.T) {
	r := keywordEngine([]string{"quantum"}, 0.3).Rank(context.Background(), []news.Article{article("a", "b")})
	assert.Empty(t, r.Articles)
	assert.False(t, r.FellBack)
}

func TestRank_PassThroughWithoutInterests(t *testing.T) {
	articles := []news.Article{article("a", "b"), article("c", "d")}
	r := keywordEngine([]string{" ", ""}, 0.9).Rank(context.Background(), articles)

	assert.Equal(t, MethodPassThrough, r.Method)
	require.Len(t, r.Articles, 2)
	for _, a := range r.Articles {
		_, ok := a.Score()
		assert.False(t, ok)
	}
}

// vectorEmbedder maps known words to fixed axes.
type vectorEmbedder struct {
	calls int
	fail  bool
}

func (v *vectorEmbedder) Name() string { return "fake" }

func (v *vectorEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v.calls++
	if v.fail {
		return nil, errors.New("backend down")
	}
	text = strings.ToLower(text)
	vec := []float32{0, 0, 0.1}
	if strings.Contains(text, "space") || strings.Contains(text, "rocket") {
		vec[0] = 1
	}
	if strings.Contains(text, "cook") || strings.Contains(text, "recipe") {
		vec[1] = 1
	}
	return vec, nil
}

func TestRank_Embedding(t *testing.T) {
	emb := &vectorEmbedder{}
	vectors := cache.New[[]float32](0)
	defer vectors.Close()

	e := NewEngine(Profile{Interests: []string{"space", "cooking"}, Method: MethodEmbedding, MinScore: 0.5}, Params{}, emb, vectors, logger.Discard())
	articles := []news.Article{
		article("Pasta recipe", "Cook it slowly."),
		article("Rocket launch", "The rocket carried a probe."),
		article("Stock market", "Shares fell."),
	}

	r := e.Rank(context.Background(), articles)
	assert.Equal(t, MethodEmbedding, r.Method)
	assert.False(t, r.FellBack)
	require.Len(t, r.Articles, 2)
	assert.Equal(t, []string{"cooking"}, r.Articles[0].MatchedInterests)
	assert.Equal(t, []string{"space"}, r.Articles[1].MatchedInterests)
	s, _ := r.Articles[0].Score()
	assert.InDelta(t, 0.995, s, 0.01)

	calls := emb.calls
	e.Rank(context.Background(), articles)
	assert.Equal(t, calls, emb.calls, "vectors are memoized")
}

func TestRank_EmbeddingFailureFallsBackForWholeRun(t *testing.T) {
	e := NewEngine(Profile{Interests: []string{"space"}, Method: MethodEmbedding, MinScore: 0.3}, Params{}, &vectorEmbedder{fail: true}, nil, logger.Discard())
	r := e.Rank(context.Background(), []news.Article{article("space news", "space"), article("other", "x")})

	assert.True(t, r.FellBack)
	assert.Equal(t, MethodKeyword, r.Method)
	assert.Contains(t, r.Reason, "backend down")
	require.Len(t, r.Articles, 1)
	assert.Equal(t, "space news", r.Articles[0].Title)
}

func TestRank_EmbeddingUnavailable(t *testing.T) {
	e := NewEngine(Profile{Interests: []string{"space"}, Method: MethodEmbedding}, Params{}, llm.Unavailable{}, nil, logger.Discard())
	r := e.Rank(context.Background(), []news.Article{article("space", "")})
	assert.True(t, r.FellBack)
	assert.Equal(t, "embedding capability unavailable", r.Reason)
	assert.Len(t, r.Articles, 1)
}

func TestCosine(t *testing.T) {
	s, err := Cosine([]float32{1, 0}, []float32{1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, s, 1e-9)

	s, err = Cosine([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, s, 1e-9)

	s, err = Cosine([]float32{0, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.Equal(t, 0.0, s)

	_, err = Cosine([]float32{1}, []float32{1, 2})
	assert.ErrorIs(t, err, errDimension)
}

func TestEmbeddingText(t *testing.T) {
	a := news.Article{Title: "Title", SummaryRaw: strings.Repeat("s", 800)}
	assert.Len(t, EmbeddingText(a), len("Title ")+500)
}

func TestRank_EmbeddingTimeoutFallsBackToKeyword(t *testing.T) {
	blocking := llm.EmbedderFunc(func(ctx context.Context, _ string) ([]float32, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	e := NewEngine(Profile{Interests: []string{"space"}, Method: MethodEmbedding, MinScore: 0.1},
		Params{EmbedTimeout: 20 * time.Millisecond}, blocking, nil, logger.Discard())

	done := make(chan Ranking, 1)
	go func() { done <- e.Rank(context.Background(), []news.Article{article("space news", "space"), article("other", "x")}) }()

	select {
	case r := <-done:
		assert.True(t, r.FellBack)
		assert.Contains(t, r.Reason, "deadline exceeded")
		assert.Equal(t, MethodKeyword, r.Method)
		require.Len(t, r.Articles, 1)
		assert.Equal(t, "space news", r.Articles[0].Title)
	case <-time.After(2 * time.Second):
		t.Fatal("Rank did not return after the embedding timeout")
	}
}

type emptyPageExtractor struct{}

func (emptyPageExtractor) Extract(context.Context, string) (*scraper.Page, error) {
	return &scraper.Page{}, nil
}

func TestKeywordScore_FeedSummaryFallbackCountedOnce(t *testing.T) {
	stage := scraper.NewStage(emptyPageExtractor{}, ratelimit.NewPacer(0), 1, time.Second, logger.Discard())
	extracted := stage.Extract(context.Background(), []news.Article{{
		Title:      "Launch update",
		URL:        "https://example.com/launch",
		SummaryRaw: "The capsule reached orbit. Engineers celebrated.",
		Category:   "science",
	}})
	require.Len(t, extracted, 1)
	a := extracted[0]
	require.Equal(t, news.ContentFeedSummary, a.ContentSource)
	require.Contains(t, a.ExtractedSummary, "orbit")

	interests := []string{"orbit", "python", "rust", "golang"}
	m := KeywordScore(a, interests, 10)
	// once in the feed summary, once among the derived keywords
	assert.Equal(t, 2, m.Occurrences)
	assert.InDelta(t, 0.45, m.Score, 1e-9)

	e := NewEngine(Profile{Interests: interests, Method: MethodKeyword, MinScore: 0.5}, Params{}, nil, nil, logger.Discard())
	assert.Empty(t, e.Rank(context.Background(), extracted).Articles)
}
