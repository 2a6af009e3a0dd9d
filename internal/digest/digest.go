// Package digest renders the final article list into output documents.
package digest

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/deusflow/digest/internal/news"
)

const (
	FormatMarkdown = "markdown"
	FormatPDF      = "pdf"
	FormatBoth     = "both"

	// flatGroup names the single section used when grouping is off.
	flatGroup = "Articles"
)

type Options struct {
	Title           string
	Subtitle        string
	Format          string
	GroupByCategory bool
	IncludeImages   bool
	IncludeLinks    bool
	IncludeQuotes   bool
	OutputDir       string
	DateFormat      string
	TemplatePath    string
	Interests       []string
}

// Result lists the files written, keyed by format. Empty is set when there
// was nothing to render and no file was written.
type Result struct {
	Files map[string]string
	Empty bool
}

type Assembler struct {
	opts Options
	tmpl *template.Template
	log  *slog.Logger
}

// NewAssembler prepares the renderer. A template that fails to load or parse
// is logged and the manual renderer is used instead.
func NewAssembler(opts Options, log *slog.Logger) *Assembler {
	if opts.Format == "" {
		opts.Format = FormatMarkdown
	}
	a := &Assembler{opts: opts, log: log}

	t, err := loadTemplate(opts.TemplatePath)
	if err != nil {
		log.Warn("newsletter template unavailable, using simple renderer", "path", opts.TemplatePath, "error", err)
	} else {
		a.tmpl = t
	}
	return a
}

var categoryCaser = cases.Title(language.English)

// GroupArticles buckets articles by title-cased category, in order of first
// appearance, or returns a single bucket when byCategory is false.
func GroupArticles(articles []news.Article, byCategory bool) []Group {
	if !byCategory {
		return []Group{{Name: flatGroup, Articles: articles}}
	}

	index := map[string]int{}
	var groups []Group
	for _, a := range articles {
		cat := a.Category
		if cat == "" {
			cat = news.DefaultCategory
		}
		name := categoryCaser.String(cat)
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, Group{Name: name})
		}
		groups[i].Articles = append(groups[i].Articles, a)
	}
	return groups
}

// Render produces the markdown document for articles.
func (a *Assembler) Render(articles []news.Article, intro string, now time.Time) string {
	v := a.view(articles, intro, now)
	if a.tmpl != nil {
		out, err := renderTemplate(a.tmpl, v)
		if err == nil {
			return out
		}
		a.log.Error("error rendering newsletter template", "error", err)
	}
	return renderManual(v)
}

func (a *Assembler) view(articles []news.Article, intro string, now time.Time) view {
	return view{
		Title:         a.opts.Title,
		Subtitle:      a.opts.Subtitle,
		GeneratedAt:   now.Format("2006-01-02 15:04"),
		Introduction:  intro,
		Interests:     a.opts.Interests,
		Groups:        GroupArticles(articles, a.opts.GroupByCategory),
		Grouped:       a.opts.GroupByCategory,
		IncludeImages: a.opts.IncludeImages,
		IncludeLinks:  a.opts.IncludeLinks,
		IncludeQuotes: a.opts.IncludeQuotes,
	}
}

// Assemble writes the configured artifacts. With no articles it writes
// nothing and reports an empty result. A failing format is logged; an error
// is returned only when no artifact could be written.
func (a *Assembler) Assemble(articles []news.Article, intro string, now time.Time) (Result, error) {
	if len(articles) == 0 {
		a.log.Warn("no articles provided for newsletter generation")
		return Result{Empty: true}, nil
	}

	if err := os.MkdirAll(a.opts.OutputDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create output dir: %w", err)
	}

	base := filepath.Join(a.opts.OutputDir, "newsletter_"+safeFilePart(FormatDate(now, a.opts.DateFormat)))
	res := Result{Files: map[string]string{}}
	var errs []error

	if a.opts.Format == FormatMarkdown || a.opts.Format == FormatBoth {
		path := base + ".md"
		if err := os.WriteFile(path, []byte(a.Render(articles, intro, now)), 0o644); err != nil {
			errs = append(errs, fmt.Errorf("write markdown: %w", err))
		} else {
			res.Files[FormatMarkdown] = path
			a.log.Info("saved markdown newsletter", "path", path)
		}
	}

	if a.opts.Format == FormatPDF || a.opts.Format == FormatBoth {
		path := base + ".pdf"
		if err := writePDF(path, a.view(articles, intro, now)); err != nil {
			a.log.Error("error generating PDF", "error", err)
			errs = append(errs, fmt.Errorf("write pdf: %w", err))
		} else {
			res.Files[FormatPDF] = path
			a.log.Info("saved PDF newsletter", "path", path)
		}
	}

	if len(res.Files) == 0 {
		return res, errors.Join(errs...)
	}
	return res, nil
}
