// Package scraper retrieves full article text for feed entries.
package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	"github.com/go-shiori/go-readability"
)

const maxPageBytes = 5 << 20

var errNotHTML = errors.New("response is not an HTML page")

// Page is what an Extractor recovers from one article URL.
type Page struct {
	Text        string
	TopImage    string
	PublishedAt *time.Time
	Authors     []string
	Keywords    []string
}

// Extractor fetches url and extracts its main text.
type Extractor interface {
	Extract(ctx context.Context, url string) (*Page, error)
}

// HTTPExtractor downloads pages and runs readability over them, falling back
// to paragraph selectors when readability finds no body.
type HTTPExtractor struct {
	client    *http.Client
	userAgent string
}

func NewHTTPExtractor(client *http.Client, userAgent string) *HTTPExtractor {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPExtractor{client: client, userAgent: userAgent}
}

func (e *HTTPExtractor) Extract(ctx context.Context, rawURL string) (*Page, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error loading page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return nil, fmt.Errorf("%w: %s", errNotHTML, ct)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("error reading page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error parsing HTML: %w", err)
	}

	page := &Page{}
	readMeta(doc, page)

	article, rerr := readability.FromReader(bytes.NewReader(body), pageURL)
	if rerr == nil {
		page.Text = normalizeText(article.TextContent)
		if page.TopImage == "" {
			page.TopImage = article.Image
		}
		if len(page.Authors) == 0 && article.Byline != "" {
			page.Authors = splitAuthors(article.Byline)
		}
	}
	if page.Text == "" {
		page.Text = cleanContent(extractGenericContent(doc))
	}

	return page, nil
}

func metaContent(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if v, ok := doc.Find(sel).First().Attr("content"); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

// readMeta fills image, date, author and keyword fields from meta tags.
func readMeta(doc *goquery.Document, page *Page) {
	page.TopImage = metaContent(doc,
		`meta[property="og:image"]`,
		`meta[name="twitter:image"]`,
	)

	if raw := metaContent(doc,
		`meta[property="article:published_time"]`,
		`meta[name="pubdate"]`,
		`meta[name="date"]`,
		`meta[itemprop="datePublished"]`,
	); raw != "" {
		if t, err := dateparse.ParseAny(raw); err == nil {
			utc := t.UTC()
			page.PublishedAt = &utc
		}
	}

	if author := metaContent(doc, `meta[name="author"]`, `meta[property="article:author"]`); author != "" {
		page.Authors = splitAuthors(author)
	}

	seen := map[string]bool{}
	addKeyword := func(k string) {
		k = strings.TrimSpace(k)
		lk := strings.ToLower(k)
		if k == "" || seen[lk] {
			return
		}
		seen[lk] = true
		page.Keywords = append(page.Keywords, k)
	}
	if kw := metaContent(doc, `meta[name="keywords"]`, `meta[name="news_keywords"]`); kw != "" {
		for _, k := range strings.Split(kw, ",") {
			addKeyword(k)
		}
	}
	doc.Find(`meta[property="article:tag"]`).Each(func(_ int, s *goquery.Selection) {
		addKeyword(s.AttrOr("content", ""))
	})
}

func splitAuthors(s string) []string {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "By "))
	s = strings.ReplaceAll(s, " and ", ",")
	var out []string
	for _, a := range strings.Split(s, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// extractGenericContent collects paragraph text using common article selectors.
func extractGenericContent(doc *goquery.Document) string {
	var paragraphs []string

	selectors := []string{
		"article p",
		".article p",
		".article-body p",
		".content p",
		".post-content p",
		".entry-content p",
		"main p",
		"#content p",
		"p",
	}

	for _, selector := range selectors {
		doc.Find(selector).Each(func(i int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if len(text) > 20 {
				paragraphs = append(paragraphs, text)
			}
		})
		if len(paragraphs) >= 3 {
			break
		}
	}

	return strings.Join(paragraphs, "\n\n")
}
