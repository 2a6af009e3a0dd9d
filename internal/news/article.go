// Package news holds the Article record that flows through every pipeline stage.
package news

import (
	"time"
)

const (
	// DefaultTitle replaces a missing feed entry title.
	DefaultTitle = "No Title"
	// DefaultCategory is used when a feed declares no category.
	DefaultCategory = "general"
)

// ContentSource tells where Article.Content came from.
type ContentSource string

const (
	ContentNone        ContentSource = ""
	ContentExtracted   ContentSource = "extracted"
	ContentFeedSummary ContentSource = "feed_summary"
)

// SummaryOrigin tells whether Article.Summary was produced by the generation
// backend or by the local fallback.
type SummaryOrigin string

const (
	SummaryNone      SummaryOrigin = ""
	SummaryGenerated SummaryOrigin = "generated"
	SummaryFallback  SummaryOrigin = "fallback"
)

// Article is one candidate news item.
//
// Feed Intake fills the metadata block, Content Extraction fills the content
// block, the Relevance Engine sets RelevanceScore and MatchedInterests, and the
// Summarization Adapter sets the summary block.
type Article struct {
	Title       string
	URL         string
	SourceName  string
	Category    string
	FeedID      string
	PublishedAt time.Time
	// DateGuessed is set when no publish date could be parsed and the fetch time was used.
	DateGuessed bool
	SummaryRaw  string
	ImageURL    string

	Content          string
	ContentSource    ContentSource
	Authors          []string
	Keywords         []string
	ExtractedSummary string
	NLPKeywords      []string

	// RelevanceScore is nil until the article has been scored. It stays nil in
	// pass-through mode (no interests configured).
	RelevanceScore   *float64
	MatchedInterests []string

	Summary        string
	KeyPoints      []string
	Quotes         []string
	SummaryOrigin  SummaryOrigin
	FallbackReason string
}

// Score returns the relevance score and whether one has been computed.
func (a Article) Score() (float64, bool) {
	if a.RelevanceScore == nil {
		return 0, false
	}
	return *a.RelevanceScore, true
}

// WithScore returns a copy of the article carrying score and matched interests.
func (a Article) WithScore(score float64, matched []string) Article {
	s := score
	a.RelevanceScore = &s
	a.MatchedInterests = append([]string(nil), matched...)
	return a
}

// HasContent reports whether the article carries text that can be matched or summarized.
func (a Article) HasContent() bool {
	return a.Content != ""
}
