package digest

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/deusflow/digest/internal/news"
)

//go:embed templates/newsletter.md.tmpl
var templatesFS embed.FS

const defaultTemplate = "templates/newsletter.md.tmpl"

// Group is one section of the digest.
type Group struct {
	Name     string
	Articles []news.Article
}

type view struct {
	Title         string
	Subtitle      string
	GeneratedAt   string
	Introduction  string
	Interests     []string
	Groups        []Group
	Grouped       bool
	IncludeImages bool
	IncludeLinks  bool
	IncludeQuotes bool
}

var funcs = template.FuncMap{
	"join": strings.Join,
	"meta": articleMeta,
}

// articleMeta is the italic source/date/score line under an article heading.
func articleMeta(a news.Article) string {
	var parts []string
	if a.SourceName != "" {
		parts = append(parts, "Source: "+a.SourceName)
	}
	if !a.PublishedAt.IsZero() {
		parts = append(parts, "Published: "+a.PublishedAt.Format("2006-01-02 15:04"))
	}
	if s, ok := a.Score(); ok {
		parts = append(parts, fmt.Sprintf("Relevance: %.2f", s))
	}
	if len(parts) == 0 {
		return ""
	}
	return "*" + strings.Join(parts, " | ") + "*"
}

// loadTemplate parses the custom template at path, or the embedded default when path is empty.
func loadTemplate(path string) (*template.Template, error) {
	var (
		src []byte
		err error
	)
	if path != "" {
		src, err = os.ReadFile(path)
	} else {
		src, err = templatesFS.ReadFile(defaultTemplate)
	}
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	return template.New("newsletter").Funcs(funcs).Option("missingkey=error").Parse(string(src))
}

func renderTemplate(t *template.Template, v view) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, v); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// renderManual builds the same document as the default template without the
// template engine.
func renderManual(v view) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n", v.Title)
	if v.Subtitle != "" {
		fmt.Fprintf(&b, "\n### %s\n", v.Subtitle)
	}
	fmt.Fprintf(&b, "\n*Generated on: %s*\n", v.GeneratedAt)
	if len(v.Interests) > 0 {
		fmt.Fprintf(&b, "\n*Curated for: %s*\n", strings.Join(v.Interests, ", "))
	}
	if v.Introduction != "" {
		fmt.Fprintf(&b, "\n%s\n", v.Introduction)
	}
	b.WriteString("\n")

	for _, g := range v.Groups {
		if v.Grouped {
			fmt.Fprintf(&b, "# %s\n\n", g.Name)
		}
		for _, a := range g.Articles {
			fmt.Fprintf(&b, "## %s\n\n", a.Title)
			if v.IncludeImages && a.ImageURL != "" {
				fmt.Fprintf(&b, "![%s](%s)\n\n", a.Title, a.ImageURL)
			}
			fmt.Fprintf(&b, "%s\n\n", articleMeta(a))
			fmt.Fprintf(&b, "%s\n\n", a.Summary)
			if len(a.KeyPoints) > 0 {
				b.WriteString("**Key Points:**\n")
				for _, p := range a.KeyPoints {
					fmt.Fprintf(&b, "- %s\n", p)
				}
				b.WriteString("\n")
			}
			if v.IncludeQuotes && len(a.Quotes) > 0 {
				b.WriteString("**Notable Quotes:**\n")
				for _, q := range a.Quotes {
					fmt.Fprintf(&b, "> \"%s\"\n", q)
				}
				b.WriteString("\n")
			}
			if v.IncludeLinks && a.URL != "" {
				fmt.Fprintf(&b, "[Read full article](%s)\n\n", a.URL)
			}
			b.WriteString("---\n\n")
		}
	}
	return b.String()
}
