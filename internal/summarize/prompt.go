package summarize

import (
	"bytes"
	"sort"
	"strings"
	"text/template"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/deusflow/digest/internal/llm"
	"github.com/deusflow/digest/internal/news"
)

var articlePrompt = template.Must(template.New("article").Parse(`You are an expert news editor. Summarize the following article and provide key insights.

Article Information:
Title: {{.Title}}
Source: {{.Source}}
Category: {{.Category}}
Published: {{.Published}}

Article Content:
{{.Content}}

Instructions:
1. Create a {{.Length}} summary that captures the main points and key details
2. Extract {{.NumKeyPoints}} key points as bullet points
3. {{if .IncludeQuotes}}Extract 2-3 notable quotes from the article.{{else}}Skip quote extraction for this article.{{end}}
4. Maintain a neutral, journalistic tone
5. Focus on the most newsworthy and relevant aspects

Please provide your response in this exact JSON format:
{
  "summary": "Your concise summary here...",
  "key_points": [
    "First key point",
    "Second key point",
    "Third key point"
  ],
  "quotes": [
    "First notable quote from the article",
    "Second notable quote from the article"
  ]
}

Note: If there are no notable quotes, return an empty array for quotes.`))

var introPrompt = template.Must(template.New("intro").Parse(`Write a brief, engaging introduction for a newsletter containing {{.Count}} articles covering {{.Topics}}.

The newsletter sources include: {{.Sources}}

Write a 2-3 sentence introduction that:
1. Welcomes the reader
2. Mentions the key topics covered
3. Sets an engaging tone for the newsletter

Keep it professional but friendly. Do not use JSON format, just return the introduction text.`))

type articlePromptData struct {
	Title         string
	Source        string
	Category      string
	Published     string
	Content       string
	Length        string
	NumKeyPoints  int
	IncludeQuotes bool
}

// BuildPrompt renders the per-article prompt. Content is cut to budget characters.
func BuildPrompt(a news.Article, opts Options, budget int) (string, error) {
	source := a.SourceName
	if source == "" {
		source = "Unknown"
	}
	published := ""
	if !a.PublishedAt.IsZero() {
		published = a.PublishedAt.Format(time.RFC1123)
	}

	var buf bytes.Buffer
	err := articlePrompt.Execute(&buf, articlePromptData{
		Title:         a.Title,
		Source:        source,
		Category:      a.Category,
		Published:     published,
		Content:       llm.Truncate(a.Content, budget),
		Length:        opts.Length,
		NumKeyPoints:  opts.NumKeyPoints,
		IncludeQuotes: opts.IncludeQuotes,
	})
	return buf.String(), err
}

var titleCaser = cases.Title(language.English)

// Topics lists the title-cased categories of articles, sorted.
func Topics(articles []news.Article) []string {
	seen := map[string]bool{}
	var out []string
	for _, a := range articles {
		if a.Category == "" {
			continue
		}
		c := titleCaser.String(a.Category)
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

func sources(articles []news.Article, limit int) []string {
	seen := map[string]bool{}
	var out []string
	for _, a := range articles {
		if a.SourceName != "" && !seen[a.SourceName] {
			seen[a.SourceName] = true
			out = append(out, a.SourceName)
		}
	}
	sort.Strings(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func topicsText(articles []news.Article) string {
	if t := Topics(articles); len(t) > 0 {
		return strings.Join(t, ", ")
	}
	return "various topics"
}

func buildIntroPrompt(articles []news.Article) (string, error) {
	var buf bytes.Buffer
	err := introPrompt.Execute(&buf, map[string]any{
		"Count":   len(articles),
		"Topics":  topicsText(articles),
		"Sources": strings.Join(sources(articles, 5), ", "),
	})
	return buf.String(), err
}
