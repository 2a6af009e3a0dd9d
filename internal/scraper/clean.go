package scraper

import (
	"regexp"
	"strings"
)

var (
	junkIndicators = []string{
		"cookie", "gdpr", "advertisement", "subscribe to", "sign up for",
		"read more", "click here", "follow us", "share this article", "all rights reserved",
	}
	multiSpace   = regexp.MustCompile(`[ \t]+`)
	multiNewline = regexp.MustCompile(`\n{3,}`)
)

func normalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(multiSpace.ReplaceAllString(l, " "))
	}
	s = strings.Join(lines, "\n")
	s = multiNewline.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// cleanContent drops boilerplate lines and very short fragments from
// selector-extracted text.
func cleanContent(content string) string {
	if content == "" {
		return ""
	}

	var kept []string
	for _, paragraph := range strings.Split(content, "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if len(paragraph) <= 30 {
			continue
		}
		lower := strings.ToLower(paragraph)
		junk := false
		for _, indicator := range junkIndicators {
			if strings.Contains(lower, indicator) {
				junk = true
				break
			}
		}
		if !junk {
			kept = append(kept, paragraph)
		}
	}

	return normalizeText(strings.Join(kept, "\n\n"))
}
