package summarize

import (
	"strings"
	"unicode/utf8"

	"github.com/deusflow/digest/internal/news"
)

const (
	fallbackSentences = 3
	fallbackMaxChars  = 300
)

// FallbackKeyPoints are used whenever a summary is computed locally.
var FallbackKeyPoints = []string{
	"Key information from the article",
	"Important details discussed",
	"Relevant context and implications",
}

// Fallback computes a deterministic summary from the article text: its first
// three sentences, capped at 300 characters.
func Fallback(a news.Article) Result {
	content := strings.TrimSpace(a.Content)
	if content == "" {
		content = strings.TrimSpace(a.SummaryRaw)
	}

	var summary string
	if content == "" {
		summary = "Article about " + strings.ToLower(a.Title) + ". Full content not available for summarization."
	} else {
		sentences := strings.Split(strings.Join(strings.Fields(content), " "), ". ")
		if len(sentences) > fallbackSentences {
			sentences = sentences[:fallbackSentences]
		}
		summary = strings.Join(sentences, ". ")
		if !strings.HasSuffix(summary, ".") && !strings.HasSuffix(summary, "!") && !strings.HasSuffix(summary, "?") {
			summary += "."
		}
		if utf8.RuneCountInString(summary) > fallbackMaxChars {
			summary = string([]rune(summary)[:fallbackMaxChars]) + "..."
		}
	}

	return Result{
		Summary:   summary,
		KeyPoints: append([]string(nil), FallbackKeyPoints...),
		Quotes:    []string{},
	}
}

// ExtractQuotes returns up to three distinct passages found between double
// quotes, longer than 20 and shorter than 300 characters, in text order.
func ExtractQuotes(content string) []string {
	var quotes []string
	seen := map[string]bool{}

	content = strings.NewReplacer("“", `"`, "”", `"`).Replace(content)
	parts := strings.Split(content, `"`)
	// Odd indexes are inside quotes.
	for i := 1; i < len(parts)-1; i += 2 {
		q := strings.TrimSpace(parts[i])
		n := utf8.RuneCountInString(q)
		if n <= 20 || n >= 300 || seen[q] {
			continue
		}
		seen[q] = true
		quotes = append(quotes, q)
		if len(quotes) == 3 {
			break
		}
	}
	return quotes
}

func fallbackFor(a news.Article, reason string) news.Article {
	res := Fallback(a)
	a.Summary = res.Summary
	a.KeyPoints = res.KeyPoints
	a.Quotes = res.Quotes
	a.SummaryOrigin = news.SummaryFallback
	a.FallbackReason = reason
	return a
}
