package relevance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/deusflow/digest/internal/cache"
	"github.com/deusflow/digest/internal/llm"
	"github.com/deusflow/digest/internal/news"
)

var errDimension = errors.New("embedding dimensions differ")

// Cosine returns the cosine similarity of a and b. Zero vectors give 0.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", errDimension, len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}

// EmbeddingText is the short text embedded for an article: the title plus the
// first 500 characters of its summary.
func EmbeddingText(a news.Article) string {
	summary := a.SummaryRaw
	if summary == "" {
		summary = a.Content
	}
	return strings.TrimSpace(a.Title + " " + truncateRunes(summary, excerptChars))
}

type embeddingScorer struct {
	embedder  llm.Embedder
	vectors   *cache.Cache[[]float32]
	threshold float64
	timeout   time.Duration
}

func (s *embeddingScorer) embed(ctx context.Context, text string) ([]float32, error) {
	key := cache.Key(s.embedder.Name(), text)
	if s.vectors != nil {
		if v, ok := s.vectors.Get(key); ok {
			return v, nil
		}
	}
	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	v, err := s.embedder.Embed(callCtx, text)
	if err != nil {
		return nil, err
	}
	if len(v) == 0 {
		return nil, errors.New("empty embedding")
	}
	if s.vectors != nil {
		s.vectors.Set(key, v, vectorTTL)
	}
	return v, nil
}

// scoreAll embeds every interest and article. Any error aborts the whole pass
// so the caller can fall back to keyword matching for the run.
func (s *embeddingScorer) scoreAll(ctx context.Context, articles []news.Article, interests []string) ([]Match, error) {
	interestVecs := make([][]float32, len(interests))
	for i, interest := range interests {
		v, err := s.embed(ctx, interest)
		if err != nil {
			return nil, fmt.Errorf("embed interest %q: %w", interest, err)
		}
		interestVecs[i] = v
	}

	matches := make([]Match, len(articles))
	for i, a := range articles {
		v, err := s.embed(ctx, EmbeddingText(a))
		if err != nil {
			return nil, fmt.Errorf("embed article %q: %w", a.Title, err)
		}

		best := 0.0
		var m Match
		for j, iv := range interestVecs {
			sim, err := Cosine(v, iv)
			if err != nil {
				return nil, err
			}
			if sim > s.threshold {
				m.Matched = append(m.Matched, interests[j])
			}
			best = math.Max(best, sim)
		}
		m.Score = math.Min(best, 1.0)
		matches[i] = m
	}
	return matches, nil
}
