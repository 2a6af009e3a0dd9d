// Package config loads the digest configuration from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no explicit config path is given.
const DefaultPath = "configs/config.yaml"

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

const (
	MatchKeyword   = "keyword"
	MatchEmbedding = "embedding"

	FormatMarkdown = "markdown"
	FormatPDF      = "pdf"
	FormatBoth     = "both"

	ProviderAuto   = "auto"
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderNone   = "none"

	HistoryNone     = "none"
	HistoryFile     = "file"
	HistoryPostgres = "postgres"
)

type Config struct {
	Feeds         []Feed        `yaml:"rss_feeds"`
	Fetching      Fetching      `yaml:"fetching"`
	User          User          `yaml:"user"`
	Summarization Summarization `yaml:"summarization"`
	Newsletter    Newsletter    `yaml:"newsletter"`
	AI            AI            `yaml:"ai"`
	History       History       `yaml:"history"`
	Telegram      Telegram      `yaml:"telegram"`

	Debug    bool   `yaml:"debug"`
	LogLevel string `yaml:"log_level"`
}

// Feed describes one syndication source.
type Feed struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Category string `yaml:"category"`
	ID       string `yaml:"id"`
}

type Fetching struct {
	MaxArticlesPerFeed   int           `yaml:"max_articles_per_feed"`
	MaxTotalArticles     int           `yaml:"max_total_articles"`
	ArticleAgeLimitDays  int           `yaml:"article_age_limit_days"`
	Timeout              time.Duration `yaml:"timeout"`
	UserAgent            string        `yaml:"user_agent"`
	RequestDelay         time.Duration `yaml:"request_delay"`
	ScrapeConcurrency    int           `yaml:"scrape_concurrency"`
	Timezone             string        `yaml:"timezone"`
	MaxArticlesPerDigest int           `yaml:"max_articles_per_day"`
}

type User struct {
	Name               string   `yaml:"name"`
	Interests          []string `yaml:"interests"`
	MatchingMethod     string   `yaml:"matching_method"`
	MinRelevanceScore  float64  `yaml:"min_relevance_score"`
	MentionDivisor     float64  `yaml:"mention_divisor"`
	EmbeddingThreshold float64  `yaml:"embedding_threshold"`
	ProfilesDir        string   `yaml:"profiles_dir"`
}

type Summarization struct {
	Length        string `yaml:"length"`
	NumKeyPoints  int    `yaml:"num_key_points"`
	IncludeQuotes bool   `yaml:"include_quotes"`
	// MaxRequests caps generation calls per run (0 = unlimited).
	MaxRequests int `yaml:"max_requests"`
}

type Newsletter struct {
	Title           string `yaml:"title"`
	Subtitle        string `yaml:"subtitle"`
	OutputFormat    string `yaml:"output_format"`
	GroupByCategory bool   `yaml:"group_by_category"`
	IncludeImages   bool   `yaml:"include_images"`
	IncludeLinks    bool   `yaml:"include_links"`
	IncludeQuotes   bool   `yaml:"include_quotes"`
	OutputDir       string `yaml:"output_dir"`
	DateFormat      string `yaml:"date_format"`
	TemplatePath    string `yaml:"template_path"`
}

type AI struct {
	Provider        string        `yaml:"provider"`
	GeminiAPIKey    string        `yaml:"gemini_api_key"`
	GeminiModel     string        `yaml:"gemini_model"`
	OpenAIAPIKey    string        `yaml:"openai_api_key"`
	OpenAIBaseURL   string        `yaml:"openai_base_url"`
	OpenAIModel     string        `yaml:"openai_model"`
	EmbeddingModel  string        `yaml:"embedding_model"`
	Temperature     float32       `yaml:"temperature"`
	MaxOutputTokens int           `yaml:"max_output_tokens"`
	RetryAttempts   int           `yaml:"retry_attempts"`
	RetryDelay      time.Duration `yaml:"retry_delay"`
	Timeout         time.Duration `yaml:"timeout"`
}

type History struct {
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	DatabaseURL string `yaml:"database_url"`
	TTLHours    int    `yaml:"ttl_hours"`
}

type Telegram struct {
	Token  string `yaml:"token"`
	ChatID string `yaml:"chat_id"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Feeds: []Feed{
			{
				Name:     "BBC News - Technology",
				URL:      "http://feeds.bbci.co.uk/news/technology/rss.xml",
				Category: "technology",
			},
		},
		Fetching: Fetching{
			MaxArticlesPerFeed:  5,
			MaxTotalArticles:    10,
			ArticleAgeLimitDays: 2,
			Timeout:             10 * time.Second,
			UserAgent:           "Auto-Newsletter-Generator/1.0",
			RequestDelay:        time.Second,
			ScrapeConcurrency:   1,
			Timezone:            "UTC",
		},
		User: User{
			Name:               "Default User",
			Interests:          []string{"technology", "python", "ai"},
			MatchingMethod:     MatchKeyword,
			MinRelevanceScore:  0.3,
			MentionDivisor:     10,
			EmbeddingThreshold: 0.5,
			ProfilesDir:        "data/user_profiles",
		},
		Summarization: Summarization{
			Length:        "medium",
			NumKeyPoints:  3,
			IncludeQuotes: true,
		},
		Newsletter: Newsletter{
			Title:           "Daily Tech Digest",
			Subtitle:        "Your Personalized News Summary",
			OutputFormat:    FormatMarkdown,
			GroupByCategory: true,
			IncludeImages:   true,
			IncludeLinks:    true,
			IncludeQuotes:   true,
			OutputDir:       "data/output",
			DateFormat:      "%Y-%m-%d",
		},
		AI: AI{
			Provider:        ProviderAuto,
			GeminiModel:     "gemini-1.5-flash",
			OpenAIModel:     "gpt-4o-mini",
			Temperature:     0.3,
			MaxOutputTokens: 1000,
			RetryAttempts:   2,
			RetryDelay:      2 * time.Second,
			Timeout:         30 * time.Second,
		},
		History: History{
			Backend:  HistoryFile,
			Path:     "data/sent_articles.json",
			TTLHours: 48,
		},
		LogLevel: "info",
	}
}

// Load reads the YAML file at path (DefaultPath when empty), applies
// environment overrides and validates the result. An explicitly named file
// that cannot be read is an error; a missing default file falls back to
// Default().
func Load(path string, log *slog.Logger) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = getEnvOrDefault("DIGEST_CONFIG", DefaultPath)
		explicit = os.Getenv("DIGEST_CONFIG") != ""
	}

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case explicit:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if log != nil {
			log.Warn("config file not found, using defaults", "path", path)
		}
	}

	cfg.applyEnvOverrides()
	cfg.fillZeroDefaults()

	return cfg, cfg.Validate()
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.AI.GeminiAPIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.AI.OpenAIAPIKey = v
	}
	if v := os.Getenv("AI_PROVIDER"); v != "" {
		c.AI.Provider = v
	}
	if v := os.Getenv("TELEGRAM_TOKEN"); v != "" {
		c.Telegram.Token = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.History.DatabaseURL = v
	}
	c.Newsletter.OutputDir = getEnvOrDefault("OUTPUT_DIR", c.Newsletter.OutputDir)
	c.Summarization.MaxRequests = getEnvIntOrDefault("MAX_GEMINI_REQUESTS", c.Summarization.MaxRequests)
	c.Fetching.ScrapeConcurrency = getEnvIntOrDefault("SCRAPE_CONCURRENCY", c.Fetching.ScrapeConcurrency)

	if debug := os.Getenv("DEBUG"); debug == "true" {
		c.Debug = true
	}
}

// fillZeroDefaults restores defaults for tunables a partial YAML file left at zero.
func (c *Config) fillZeroDefaults() {
	d := Default()
	if c.Fetching.Timeout <= 0 {
		c.Fetching.Timeout = d.Fetching.Timeout
	}
	if c.Fetching.UserAgent == "" {
		c.Fetching.UserAgent = d.Fetching.UserAgent
	}
	if c.Fetching.ScrapeConcurrency <= 0 {
		c.Fetching.ScrapeConcurrency = 1
	}
	if c.Fetching.Timezone == "" {
		c.Fetching.Timezone = d.Fetching.Timezone
	}
	if c.User.MatchingMethod == "" {
		c.User.MatchingMethod = MatchKeyword
	}
	if c.User.MentionDivisor <= 0 {
		c.User.MentionDivisor = d.User.MentionDivisor
	}
	if c.User.EmbeddingThreshold <= 0 {
		c.User.EmbeddingThreshold = d.User.EmbeddingThreshold
	}
	if c.User.ProfilesDir == "" {
		c.User.ProfilesDir = d.User.ProfilesDir
	}
	if c.Summarization.Length == "" {
		c.Summarization.Length = d.Summarization.Length
	}
	if c.Summarization.NumKeyPoints <= 0 {
		c.Summarization.NumKeyPoints = d.Summarization.NumKeyPoints
	}
	if c.Newsletter.OutputFormat == "" {
		c.Newsletter.OutputFormat = FormatMarkdown
	}
	if c.Newsletter.OutputDir == "" {
		c.Newsletter.OutputDir = d.Newsletter.OutputDir
	}
	if c.Newsletter.DateFormat == "" {
		c.Newsletter.DateFormat = d.Newsletter.DateFormat
	}
	if c.AI.Provider == "" {
		c.AI.Provider = ProviderAuto
	}
	if c.AI.GeminiModel == "" {
		c.AI.GeminiModel = d.AI.GeminiModel
	}
	if c.AI.OpenAIModel == "" {
		c.AI.OpenAIModel = d.AI.OpenAIModel
	}
	if c.AI.MaxOutputTokens <= 0 {
		c.AI.MaxOutputTokens = d.AI.MaxOutputTokens
	}
	if c.AI.Timeout <= 0 {
		c.AI.Timeout = d.AI.Timeout
	}
	if c.History.Backend == "" {
		c.History.Backend = HistoryNone
	}
	if c.History.TTLHours <= 0 {
		c.History.TTLHours = d.History.TTLHours
	}
	for i := range c.Feeds {
		if c.Feeds[i].Category == "" {
			c.Feeds[i].Category = "general"
		}
		if c.Feeds[i].ID == "" {
			c.Feeds[i].ID = c.Feeds[i].URL
		}
	}
}

// Location resolves Fetching.Timezone; timestamps without a zone are read in it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Fetching.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ResolvedProvider turns ProviderAuto into the backend whose credentials are present.
func (c *Config) ResolvedProvider() string {
	if c.AI.Provider != ProviderAuto {
		return c.AI.Provider
	}
	switch {
	case c.AI.GeminiAPIKey != "":
		return ProviderGemini
	case c.AI.OpenAIAPIKey != "":
		return ProviderOpenAI
	default:
		return ProviderNone
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func (c *Config) Validate() error {
	if len(c.Feeds) == 0 {
		return invalid("at least one entry in rss_feeds is required")
	}
	for i, f := range c.Feeds {
		if strings.TrimSpace(f.URL) == "" {
			return invalid("rss_feeds[%d] (%s) has no url", i, f.Name)
		}
	}
	if c.Fetching.MaxArticlesPerFeed <= 0 || c.Fetching.MaxTotalArticles <= 0 {
		return invalid("max_articles_per_feed and max_total_articles must be positive")
	}
	if c.Fetching.ArticleAgeLimitDays <= 0 {
		return invalid("article_age_limit_days must be positive")
	}
	if c.Fetching.RequestDelay < 0 {
		return invalid("request_delay must not be negative")
	}
	if _, err := time.LoadLocation(c.Fetching.Timezone); err != nil {
		return invalid("unknown timezone %q", c.Fetching.Timezone)
	}
	if c.User.MatchingMethod != MatchKeyword && c.User.MatchingMethod != MatchEmbedding {
		return invalid("matching_method must be %q or %q", MatchKeyword, MatchEmbedding)
	}
	if c.User.MinRelevanceScore < 0 || c.User.MinRelevanceScore > 1 {
		return invalid("min_relevance_score must be within [0, 1]")
	}
	switch c.Newsletter.OutputFormat {
	case FormatMarkdown, FormatPDF, FormatBoth:
	default:
		return invalid("output_format must be markdown, pdf or both")
	}
	switch c.AI.Provider {
	case ProviderAuto, ProviderNone:
	case ProviderGemini:
		if c.AI.GeminiAPIKey == "" {
			return invalid("GEMINI_API_KEY is required for provider gemini")
		}
	case ProviderOpenAI:
		if c.AI.OpenAIAPIKey == "" {
			return invalid("OPENAI_API_KEY is required for provider openai")
		}
	default:
		return invalid("unknown ai provider %q", c.AI.Provider)
	}
	switch c.History.Backend {
	case HistoryNone, HistoryFile:
	case HistoryPostgres:
		if c.History.DatabaseURL == "" {
			return invalid("DATABASE_URL is required for history backend postgres")
		}
	default:
		return invalid("unknown history backend %q", c.History.Backend)
	}
	if (c.Telegram.Token == "") != (c.Telegram.ChatID == "") {
		return invalid("TELEGRAM_TOKEN and TELEGRAM_CHAT_ID must be set together")
	}
	return nil
}
