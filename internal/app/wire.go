package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/deusflow/digest/internal/cache"
	"github.com/deusflow/digest/internal/chatgpt"
	"github.com/deusflow/digest/internal/config"
	"github.com/deusflow/digest/internal/digest"
	"github.com/deusflow/digest/internal/gemini"
	"github.com/deusflow/digest/internal/llm"
	"github.com/deusflow/digest/internal/metrics"
	"github.com/deusflow/digest/internal/news"
	"github.com/deusflow/digest/internal/profile"
	"github.com/deusflow/digest/internal/ratelimit"
	"github.com/deusflow/digest/internal/relevance"
	"github.com/deusflow/digest/internal/retry"
	"github.com/deusflow/digest/internal/rss"
	"github.com/deusflow/digest/internal/scraper"
	"github.com/deusflow/digest/internal/storage"
	"github.com/deusflow/digest/internal/summarize"
	"github.com/deusflow/digest/internal/telegram"
)

// BuildOptions are per-invocation overrides from the command line.
type BuildOptions struct {
	// Profile names a stored interest profile to use instead of the configured interests.
	Profile   string
	OutputDir string
	Metrics   *metrics.Metrics
}

// Backends are the generation and embedding capabilities for a run.
type Backends struct {
	Generator llm.Generator
	Embedder  llm.Embedder
	Close     func() error
}

// NewBackends resolves the configured provider once. Without credentials both
// capabilities are llm.Unavailable.
func NewBackends(ctx context.Context, cfg *config.Config, log *slog.Logger) (Backends, error) {
	nop := func() error { return nil }

	switch provider := cfg.ResolvedProvider(); provider {
	case config.ProviderGemini:
		c, err := gemini.NewClient(ctx, cfg.AI.GeminiAPIKey, gemini.Options{
			Model:           cfg.AI.GeminiModel,
			EmbeddingModel:  cfg.AI.EmbeddingModel,
			Temperature:     cfg.AI.Temperature,
			MaxOutputTokens: cfg.AI.MaxOutputTokens,
		})
		if err != nil {
			return Backends{}, err
		}
		log.Info("AI provider enabled", "provider", provider, "model", cfg.AI.GeminiModel)
		return Backends{Generator: c, Embedder: c, Close: func() error { c.Close(); return nil }}, nil

	case config.ProviderOpenAI:
		c := chatgpt.NewClient(cfg.AI.OpenAIAPIKey, chatgpt.Options{
			BaseURL:         cfg.AI.OpenAIBaseURL,
			Model:           cfg.AI.OpenAIModel,
			EmbeddingModel:  cfg.AI.EmbeddingModel,
			Temperature:     cfg.AI.Temperature,
			MaxOutputTokens: cfg.AI.MaxOutputTokens,
		})
		log.Info("AI provider enabled", "provider", provider, "model", cfg.AI.OpenAIModel)
		return Backends{Generator: c, Embedder: c, Close: nop}, nil

	default:
		log.Warn("no AI provider configured, summaries will use the local fallback")
		return Backends{Generator: llm.Unavailable{}, Embedder: llm.Unavailable{}, Close: nop}, nil
	}
}

// resolveProfile returns the interest profile for the run: the stored one
// when name is set and loads, otherwise the configured user section.
func resolveProfile(cfg *config.Config, name string, log *slog.Logger) relevance.Profile {
	p := relevance.Profile{
		Interests: cfg.User.Interests,
		Method:    cfg.User.MatchingMethod,
		MinScore:  cfg.User.MinRelevanceScore,
	}
	if name == "" {
		return p
	}

	stored, err := profile.NewStore(cfg.User.ProfilesDir, log).Load(name)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			log.Warn("profile not found, using configured interests", "profile", name)
		} else {
			log.Error("error loading profile, using configured interests", "profile", name, "error", err)
		}
		return p
	}
	return relevance.Profile{
		Interests: stored.Interests,
		Method:    stored.MatchingMethod,
		MinScore:  stored.MinRelevanceScore,
	}
}

// Build wires a Pipeline from configuration. Close the pipeline when done.
func Build(ctx context.Context, cfg *config.Config, log *slog.Logger, opts BuildOptions) (*Pipeline, error) {
	m := opts.Metrics
	if m == nil {
		m = metrics.Global
	}
	p := &Pipeline{}
	fail := func(err error) (*Pipeline, error) {
		_ = p.Close()
		return nil, err
	}

	history, err := openHistory(ctx, cfg.History, log)
	if err != nil {
		log.Warn("digest history unavailable, continuing without it", "backend", cfg.History.Backend, "error", err)
		history = storage.Nop{}
	}
	p.closers = append(p.closers, history.Close)

	backends, err := NewBackends(ctx, cfg, log)
	if err != nil {
		return fail(fmt.Errorf("init AI backend: %w", err))
	}
	p.closers = append(p.closers, backends.Close)

	client := &http.Client{Timeout: cfg.Fetching.Timeout}
	ua := cfg.Fetching.UserAgent

	fetcher := rss.NewFetcher(
		rss.NewHTTPSource(ua, client),
		rss.Limits{
			MaxPerFeed: cfg.Fetching.MaxArticlesPerFeed,
			MaxTotal:   cfg.Fetching.MaxTotalArticles,
			MaxAgeDays: cfg.Fetching.ArticleAgeLimitDays,
		},
		cfg.Fetching.Timeout,
		cfg.Fetching.RequestDelay,
		cfg.Location(),
		log,
		rss.WithSeen(seenFilter(history, log)),
	)
	fetcher.OnResult = func(_ config.Feed, _ int, err error) { m.RecordFeed(err) }

	stage := scraper.NewStage(
		scraper.NewHTTPExtractor(client, ua),
		ratelimit.NewPacer(cfg.Fetching.RequestDelay),
		cfg.Fetching.ScrapeConcurrency,
		cfg.Fetching.Timeout,
		log,
	)
	stage.OnResult = func(_ news.Article, err error) { m.RecordExtraction(err) }

	prof := resolveProfile(cfg, opts.Profile, log)
	vectors := cache.New[[]float32](time.Hour)
	p.closers = append(p.closers, func() error { vectors.Close(); return nil })
	ranker := relevance.NewEngine(prof, relevance.Params{
		MentionDivisor:     cfg.User.MentionDivisor,
		EmbeddingThreshold: cfg.User.EmbeddingThreshold,
		EmbedTimeout:       cfg.AI.Timeout,
	}, backends.Embedder, vectors, log)

	summarizer := summarize.New(
		backends.Generator,
		ratelimit.NewRequestBudget(cfg.Summarization.MaxRequests, log),
		retry.RetryConfig{MaxAttempts: cfg.AI.RetryAttempts + 1, Delay: cfg.AI.RetryDelay, Backoff: true},
		summarize.Options{
			Length:        cfg.Summarization.Length,
			NumKeyPoints:  cfg.Summarization.NumKeyPoints,
			IncludeQuotes: cfg.Summarization.IncludeQuotes,
			Timeout:       cfg.AI.Timeout,
		},
		log,
	)

	outputDir := cfg.Newsletter.OutputDir
	if opts.OutputDir != "" {
		outputDir = opts.OutputDir
	}
	assembler := digest.NewAssembler(digest.Options{
		Title:           cfg.Newsletter.Title,
		Subtitle:        cfg.Newsletter.Subtitle,
		Format:          cfg.Newsletter.OutputFormat,
		GroupByCategory: cfg.Newsletter.GroupByCategory,
		IncludeImages:   cfg.Newsletter.IncludeImages,
		IncludeLinks:    cfg.Newsletter.IncludeLinks,
		IncludeQuotes:   cfg.Newsletter.IncludeQuotes && cfg.Summarization.IncludeQuotes,
		OutputDir:       outputDir,
		DateFormat:      cfg.Newsletter.DateFormat,
		TemplatePath:    cfg.Newsletter.TemplatePath,
		Interests:       prof.Interests,
	}, log)

	deps := Deps{
		Feeds:       cfg.Feeds,
		Fetcher:     fetcher,
		Extractor:   stage,
		Ranker:      ranker,
		Summarizer:  summarizer,
		Assembler:   assembler,
		History:     history,
		Metrics:     m,
		Title:       cfg.Newsletter.Title,
		MaxArticles: cfg.Fetching.MaxArticlesPerDigest,
		Log:         log,
	}
	if n := telegram.NewNotifier(cfg.Telegram.Token, cfg.Telegram.ChatID, log); n.Configured() {
		deps.Notifier = n
	}

	built := New(deps)
	built.closers = p.closers
	return built, nil
}
