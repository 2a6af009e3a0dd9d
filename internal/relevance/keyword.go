package relevance

import (
	"math"
	"strings"

	"github.com/deusflow/digest/internal/news"
)

// excerptChars bounds how much body text stands in for a missing feed summary.
const excerptChars = 500

// Match is the outcome of scoring one article.
type Match struct {
	Score       float64
	Matched     []string
	Occurrences int
}

// Blob is the lower-cased text an article is matched against: title, feed
// summary (or a content excerpt when the feed had none), category and all
// keyword lists. The extracted summary is left out since it restates the body.
func Blob(a news.Article) string {
	parts := []string{a.Title}
	if a.SummaryRaw != "" {
		parts = append(parts, a.SummaryRaw)
	} else if a.Content != "" {
		parts = append(parts, truncateRunes(a.Content, excerptChars))
	}
	parts = append(parts, a.Category)
	parts = append(parts, a.Keywords...)
	parts = append(parts, a.NLPKeywords...)
	return strings.ToLower(strings.Join(parts, " "))
}

// KeywordScore counts substring occurrences of every interest in the article
// blob. Coverage of distinct interests dominates; repetition adds a bonus
// capped at 0.5. The score is 0 exactly when nothing matched.
func KeywordScore(a news.Article, interests []string, divisor float64) Match {
	if len(interests) == 0 {
		return Match{}
	}
	if divisor <= 0 {
		divisor = DefaultMentionDivisor
	}

	blob := Blob(a)
	var m Match
	for _, interest := range interests {
		n := strings.Count(blob, strings.ToLower(interest))
		if n > 0 {
			m.Matched = append(m.Matched, interest)
			m.Occurrences += n
		}
	}
	if len(m.Matched) == 0 {
		return m
	}

	coverage := float64(len(m.Matched)) / float64(len(interests))
	bonus := math.Min(float64(m.Occurrences)/divisor, 0.5)
	m.Score = math.Min(coverage+bonus, 1.0)
	return m
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
