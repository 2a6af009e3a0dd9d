package summarize

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/digest/internal/llm"
	"github.com/deusflow/digest/internal/logger"
	"github.com/deusflow/digest/internal/news"
	"github.com/deusflow/digest/internal/ratelimit"
	"github.com/deusflow/digest/internal/retry"
)

const goodResponse = "Sure! Here is the JSON:\n```json\n" +
	`{"summary": "NASA launched a probe.", "key_points": ["Launch went well", "Probe heads to Mars", "Arrival in 2026", "Extra"], "quotes": []}` +
	"\n```\nHope this helps."

var fastRetry = retry.RetryConfig{MaxAttempts: 2, Delay: time.Millisecond}

func sampleArticle() news.Article {
	return news.Article{
		Title:      "Probe launched",
		SourceName: "Space Daily",
		Category:   "science",
		Content:    `The probe lifted off at dawn. Officials said "this mission opens a new chapter for planetary science" after launch. It will reach Mars next year. More coverage follows.`,
	}
}

func TestParseResponse(t *testing.T) {
	res, err := ParseResponse(goodResponse)
	require.NoError(t, err)
	assert.Equal(t, "NASA launched a probe.", res.Summary)
	assert.Len(t, res.KeyPoints, 4)
	assert.Empty(t, res.Quotes)
}

func TestParseResponse_Malformed(t *testing.T) {
	cases := map[string]string{
		"no json":       "I cannot summarize this.",
		"broken json":   `{"summary": "x", "key_points": [}`,
		"missing key":   `{"summary": "x", "key_points": []}`,
		"empty summary": `{"summary": "  ", "key_points": [], "quotes": []}`,
		"wrong type":    `{"summary": 5, "key_points": [], "quotes": []}`,
		"reversed":      `} nothing {`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseResponse(raw)
			assert.ErrorIs(t, err, ErrMalformedResponse)
		})
	}
}

func TestFallback(t *testing.T) {
	res := Fallback(news.Article{Content: "First sentence. Second sentence. Third sentence. Fourth sentence."})
	assert.Equal(t, "First sentence. Second sentence. Third sentence.", res.Summary)
	assert.Equal(t, FallbackKeyPoints, res.KeyPoints)
	assert.NotNil(t, res.Quotes)
	assert.Empty(t, res.Quotes)

	long := Fallback(news.Article{Content: strings.Repeat("word ", 200)})
	assert.True(t, strings.HasSuffix(long.Summary, "..."))
	assert.Equal(t, 303, len([]rune(long.Summary)))

	empty := Fallback(news.Article{Title: "Big News"})
	assert.Equal(t, "Article about big news. Full content not available for summarization.", empty.Summary)
}

func TestExtractQuotes(t *testing.T) {
	content := `He said "short one" and "this is a sufficiently long quotation" then “another sufficiently long quotation here” and "this is a sufficiently long quotation" again, plus "a third quote that is long enough to count" and "a fourth quote that is long enough to count".`
	assert.Equal(t, []string{
		"this is a sufficiently long quotation",
		"another sufficiently long quotation here",
		"a third quote that is long enough to count",
	}, ExtractQuotes(content))

	assert.Empty(t, ExtractQuotes("no quotes at all"))
}

func TestBuildPrompt_TruncatesContent(t *testing.T) {
	a := sampleArticle()
	a.Content = strings.Repeat("x", 20000)

	p, err := BuildPrompt(a, Options{Length: "short", NumKeyPoints: 4, IncludeQuotes: false}, 12000)
	require.NoError(t, err)
	assert.Contains(t, p, "Create a short summary")
	assert.Contains(t, p, "Extract 4 key points")
	assert.Contains(t, p, "Skip quote extraction")
	assert.NotContains(t, p, strings.Repeat("x", 12001))
	assert.Contains(t, p, strings.Repeat("x", 12000))
}

func TestSummarize_Generated(t *testing.T) {
	gen := llm.GeneratorFunc(func(_ context.Context, prompt string) (string, error) {
		assert.Contains(t, prompt, "Probe launched")
		return goodResponse, nil
	})
	s := New(gen, nil, fastRetry, Options{NumKeyPoints: 3, IncludeQuotes: true}, logger.Discard())

	out := s.Summarize(context.Background(), sampleArticle())
	assert.Equal(t, news.SummaryGenerated, out.SummaryOrigin)
	assert.Equal(t, "NASA launched a probe.", out.Summary)
	assert.Len(t, out.KeyPoints, 3)
	assert.Equal(t, []string{"this mission opens a new chapter for planetary science"}, out.Quotes)
}

func TestSummarize_QuotesDisabled(t *testing.T) {
	gen := llm.GeneratorFunc(func(context.Context, string) (string, error) {
		return `{"summary": "x", "key_points": ["a"], "quotes": ["kept by model but disabled"]}`, nil
	})
	out := New(gen, nil, fastRetry, Options{}, logger.Discard()).Summarize(context.Background(), sampleArticle())
	assert.Empty(t, out.Quotes)
}

func TestSummarize_FallbackGuarantee(t *testing.T) {
	var calls int32
	failing := llm.GeneratorFunc(func(context.Context, string) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", errors.New("503 overloaded")
	})
	garbage := llm.GeneratorFunc(func(context.Context, string) (string, error) { return "no json", nil })
	panicking := llm.GeneratorFunc(func(context.Context, string) (string, error) { panic("boom") })

	cases := []struct {
		name   string
		gen    llm.Generator
		reason string
	}{
		{"backend error", failing, "backend error"},
		{"malformed", garbage, "malformed response"},
		{"unavailable", llm.Unavailable{}, "generation capability unavailable"},
		{"panic", panicking, "panic"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := New(tc.gen, nil, fastRetry, Options{IncludeQuotes: true}, logger.Discard()).
				Summarize(context.Background(), sampleArticle())
			assert.NotEmpty(t, out.Summary)
			assert.Equal(t, news.SummaryFallback, out.SummaryOrigin)
			assert.Contains(t, out.FallbackReason, tc.reason)
			assert.Equal(t, FallbackKeyPoints, out.KeyPoints)
			assert.Empty(t, out.Quotes)
		})
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "backend errors are retried")
}

func TestSummarizeAll_BudgetAndIsolation(t *testing.T) {
	gen := llm.GeneratorFunc(func(_ context.Context, prompt string) (string, error) {
		if strings.Contains(prompt, "Title: bad") {
			return "garbage", nil
		}
		return `{"summary": "ok", "key_points": [], "quotes": []}`, nil
	})
	budget := ratelimit.NewRequestBudget(2, nil)
	s := New(gen, budget, fastRetry, Options{}, logger.Discard())

	in := []news.Article{
		{Title: "bad", Content: "Bad content."},
		{Title: "good", Content: "Good content."},
		{Title: "late", Content: "Late content."},
		{Title: "empty"},
	}
	out := s.SummarizeAll(context.Background(), in)

	require.Len(t, out, 4)
	assert.Equal(t, news.SummaryFallback, out[0].SummaryOrigin)
	assert.Equal(t, news.SummaryGenerated, out[1].SummaryOrigin)
	assert.Equal(t, "ok", out[1].Summary)
	assert.Equal(t, "budget exhausted", out[2].FallbackReason)
	assert.Equal(t, "no content", out[3].FallbackReason)
	for _, a := range out {
		assert.NotEmpty(t, a.Summary)
	}
	assert.Empty(t, in[1].Summary, "input must not be mutated")
}

func TestIntroduction(t *testing.T) {
	articles := []news.Article{
		{Category: "science", SourceName: "B"},
		{Category: "tech news", SourceName: "A"},
		{Category: "science", SourceName: "A"},
	}

	fallback := New(llm.Unavailable{}, nil, fastRetry, Options{}, logger.Discard()).Introduction(context.Background(), articles)
	assert.Equal(t, "Welcome to your personalized newsletter! Today we've curated 3 articles covering Science, Tech News to keep you informed on the topics that matter most to you.", fallback)

	none := New(llm.Unavailable{}, nil, fastRetry, Options{}, logger.Discard()).Introduction(context.Background(), nil)
	assert.Equal(t, "Welcome to your personalized newsletter! No articles were found matching your interests today.", none)

	gen := llm.GeneratorFunc(func(_ context.Context, prompt string) (string, error) {
		assert.Contains(t, prompt, "3 articles covering Science, Tech News")
		assert.Contains(t, prompt, "sources include: A, B")
		return "\"Hello\" readers!\n\nEnjoy.", nil
	})
	intro := New(gen, nil, fastRetry, Options{}, logger.Discard()).Introduction(context.Background(), articles)
	assert.Equal(t, "Hello readers!\nEnjoy.", intro)
}

func TestSummarize_BlockingBackendTimesOut(t *testing.T) {
	blocking := llm.GeneratorFunc(func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	s := New(blocking, nil, retry.RetryConfig{MaxAttempts: 1}, Options{Timeout: 20 * time.Millisecond}, logger.Discard())

	done := make(chan news.Article, 1)
	go func() { done <- s.Summarize(context.Background(), sampleArticle()) }()

	select {
	case out := <-done:
		assert.Equal(t, news.SummaryFallback, out.SummaryOrigin)
		assert.Equal(t, "backend timeout", out.FallbackReason)
		assert.NotEmpty(t, out.Summary)
	case <-time.After(2 * time.Second):
		t.Fatal("Summarize did not return after the generation timeout")
	}
}
