// Package summarize attaches summaries, key points and quotes to articles.
// Every article leaves this stage with a usable summary: when the generation
// backend fails the summary is computed locally.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/deusflow/digest/internal/llm"
	"github.com/deusflow/digest/internal/news"
	"github.com/deusflow/digest/internal/ratelimit"
	"github.com/deusflow/digest/internal/retry"
)

type Options struct {
	Length        string
	NumKeyPoints  int
	IncludeQuotes bool
	Timeout       time.Duration
}

type Summarizer struct {
	gen    llm.Generator
	budget *ratelimit.RequestBudget
	retry  retry.RetryConfig
	opts   Options
	log    *slog.Logger
}

// New builds a Summarizer. gen may be llm.Unavailable; budget may be nil.
func New(gen llm.Generator, budget *ratelimit.RequestBudget, rc retry.RetryConfig, opts Options, log *slog.Logger) *Summarizer {
	if gen == nil {
		gen = llm.Unavailable{}
	}
	if opts.Length == "" {
		opts.Length = "medium"
	}
	if opts.NumKeyPoints <= 0 {
		opts.NumKeyPoints = 3
	}
	return &Summarizer{gen: gen, budget: budget, retry: rc, opts: opts, log: log}
}

// SummarizeAll returns a new slice with every article summarized, in input order.
func (s *Summarizer) SummarizeAll(ctx context.Context, articles []news.Article) []news.Article {
	out := make([]news.Article, len(articles))
	fallbacks := 0
	for i, a := range articles {
		out[i] = s.Summarize(ctx, a)
		if out[i].SummaryOrigin == news.SummaryFallback {
			fallbacks++
		}
	}
	s.log.Info("summarized articles", "total", len(out), "fallback", fallbacks, "backend", s.gen.Name())
	return out
}

// Summarize summarizes one article and never fails.
func (s *Summarizer) Summarize(ctx context.Context, a news.Article) (out news.Article) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("summarization panicked", "title", a.Title, "error", r)
			out = fallbackFor(a, fmt.Sprintf("panic: %v", r))
		}
	}()

	if !a.HasContent() {
		s.log.Warn("no content to summarize", "title", a.Title)
		return fallbackFor(a, "no content")
	}

	res, err := s.generate(ctx, a)
	if err != nil {
		s.log.Warn("using fallback summary", "title", a.Title, "error", err)
		return fallbackFor(a, reasonFor(err))
	}

	if s.opts.IncludeQuotes {
		if len(res.Quotes) == 0 {
			res.Quotes = ExtractQuotes(a.Content)
		}
	} else {
		res.Quotes = []string{}
	}
	if len(res.KeyPoints) > s.opts.NumKeyPoints {
		res.KeyPoints = res.KeyPoints[:s.opts.NumKeyPoints]
	}

	a.Summary = llm.SanitizeAIText(res.Summary)
	a.KeyPoints = res.KeyPoints
	a.Quotes = res.Quotes
	a.SummaryOrigin = news.SummaryGenerated
	a.FallbackReason = ""
	return a
}

func (s *Summarizer) generate(ctx context.Context, a news.Article) (Result, error) {
	prompt, err := BuildPrompt(a, s.opts, s.gen.ContextBudget())
	if err != nil {
		return Result{}, fmt.Errorf("build prompt: %w", err)
	}

	raw, err := s.call(ctx, prompt)
	if err != nil {
		return Result{}, err
	}
	return ParseResponse(raw)
}

// call sends one prompt through the request budget with retries. Missing
// capability and exhausted budget are not retried.
func (s *Summarizer) call(ctx context.Context, prompt string) (string, error) {
	if !llm.Available(s.gen) {
		return "", llm.ErrUnavailable
	}

	var raw string
	err := retry.WithRetry(ctx, s.retry, func() error {
		if err := s.budget.Use(s.gen.Name()); err != nil {
			return retry.Stop(err)
		}
		out, err := s.generateOnce(ctx, prompt)
		if errors.Is(err, llm.ErrUnavailable) {
			return retry.Stop(err)
		}
		raw = out
		return err
	})
	return raw, err
}

func (s *Summarizer) generateOnce(ctx context.Context, prompt string) (string, error) {
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}
	return s.gen.Generate(ctx, prompt)
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, llm.ErrUnavailable):
		return "generation capability unavailable"
	case errors.Is(err, ratelimit.ErrBudgetExhausted):
		return "budget exhausted"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed response"
	case errors.Is(err, context.DeadlineExceeded):
		return "backend timeout"
	default:
		return "backend error: " + err.Error()
	}
}

// Introduction writes the digest's opening paragraph. The local text is used
// whenever the backend is missing or fails.
func (s *Summarizer) Introduction(ctx context.Context, articles []news.Article) string {
	if len(articles) == 0 {
		return "Welcome to your personalized newsletter! No articles were found matching your interests today."
	}

	fallback := "Welcome to your personalized newsletter! Today we've curated " + strconv.Itoa(len(articles)) +
		" articles covering " + topicsText(articles) + " to keep you informed on the topics that matter most to you."

	prompt, err := buildIntroPrompt(articles)
	if err != nil {
		return fallback
	}
	raw, err := s.call(ctx, prompt)
	if err != nil {
		s.log.Warn("using fallback introduction", "error", err)
		return fallback
	}

	intro := strings.ReplaceAll(llm.SanitizeAIText(raw), `"`, "")
	intro = strings.ReplaceAll(intro, "\n\n", "\n")
	if strings.TrimSpace(intro) == "" {
		return fallback
	}
	return strings.TrimSpace(intro)
}
