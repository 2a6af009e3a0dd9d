// Package relevance scores articles against a reader's interests and keeps
// the ones that clear the profile's threshold, best first.
package relevance

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/deusflow/digest/internal/cache"
	"github.com/deusflow/digest/internal/llm"
	"github.com/deusflow/digest/internal/news"
)

const (
	MethodKeyword     = "keyword"
	MethodEmbedding   = "embedding"
	MethodPassThrough = "passthrough"

	DefaultMentionDivisor     = 10.0
	DefaultEmbeddingThreshold = 0.5

	vectorTTL = 24 * time.Hour
)

// Profile is the interest set a run is ranked against.
type Profile struct {
	Interests []string
	Method    string
	MinScore  float64
}

type Params struct {
	MentionDivisor     float64
	EmbeddingThreshold float64
	EmbedTimeout       time.Duration // per embedding call; zero means no limit
}

// Ranking is the engine's result. FellBack is set when the embedding method
// was requested but keyword matching produced the scores.
type Ranking struct {
	Articles []news.Article
	Method   string
	FellBack bool
	Reason   string
	// Considered is the number of articles scored before filtering.
	Considered int
}

type Engine struct {
	profile  Profile
	params   Params
	embedder llm.Embedder
	vectors  *cache.Cache[[]float32]
	log      *slog.Logger
}

// NewEngine builds an engine. embedder may be nil or llm.Unavailable; vectors
// may be nil to disable memoizing embeddings.
func NewEngine(profile Profile, params Params, embedder llm.Embedder, vectors *cache.Cache[[]float32], log *slog.Logger) *Engine {
	if params.MentionDivisor <= 0 {
		params.MentionDivisor = DefaultMentionDivisor
	}
	if params.EmbeddingThreshold <= 0 {
		params.EmbeddingThreshold = DefaultEmbeddingThreshold
	}
	if embedder == nil {
		embedder = llm.Unavailable{}
	}
	profile.Interests = normalizeInterests(profile.Interests)
	if profile.Method == "" {
		profile.Method = MethodKeyword
	}
	return &Engine{
		profile:  profile,
		params:   params,
		embedder: embedder,
		vectors:  vectors,
		log:      log,
	}
}

// normalizeInterests trims terms and drops blanks and case-insensitive repeats.
func normalizeInterests(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t == "" || seen[strings.ToLower(t)] {
			continue
		}
		seen[strings.ToLower(t)] = true
		out = append(out, t)
	}
	return out
}

// Rank scores, filters and orders articles. The input slice is not modified.
// An empty result is returned as-is; substituting the unfiltered set is the
// caller's decision.
func (e *Engine) Rank(ctx context.Context, articles []news.Article) Ranking {
	if len(e.profile.Interests) == 0 {
		e.log.Info("no interests configured, passing all articles through", "articles", len(articles))
		return Ranking{
			Articles:   append([]news.Article(nil), articles...),
			Method:     MethodPassThrough,
			Considered: len(articles),
		}
	}

	r := Ranking{Method: MethodKeyword, Considered: len(articles)}
	var matches []Match

	if e.profile.Method == MethodEmbedding {
		if !llm.Available(e.embedder) {
			r.FellBack, r.Reason = true, "embedding capability unavailable"
		} else {
			scorer := &embeddingScorer{
				embedder:  e.embedder,
				vectors:   e.vectors,
				threshold: e.params.EmbeddingThreshold,
				timeout:   e.params.EmbedTimeout,
			}
			m, err := scorer.scoreAll(ctx, articles, e.profile.Interests)
			if err != nil {
				r.FellBack, r.Reason = true, err.Error()
			} else {
				matches, r.Method = m, MethodEmbedding
			}
		}
		if r.FellBack {
			e.log.Warn("embedding matching failed, using keyword matching", "reason", r.Reason)
		}
	}

	if matches == nil {
		matches = make([]Match, len(articles))
		for i, a := range articles {
			matches[i] = KeywordScore(a, e.profile.Interests, e.params.MentionDivisor)
		}
	}

	kept := make([]news.Article, 0, len(articles))
	for i, a := range articles {
		m := matches[i]
		if m.Score < e.profile.MinScore {
			e.log.Debug("article below relevance threshold", "title", a.Title, "score", m.Score)
			continue
		}
		kept = append(kept, a.WithScore(m.Score, m.Matched))
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return *kept[i].RelevanceScore > *kept[j].RelevanceScore
	})

	r.Articles = kept
	e.log.Info("ranked articles", "method", r.Method, "kept", len(kept), "considered", len(articles), "fell_back", r.FellBack)
	return r
}
