package news

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ContentKey generates a hash key from title and description for deduplication.
func ContentKey(title, description string) string {
	h := sha1.New()
	h.Write([]byte(strings.ToLower(title + description)))
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint creates a stable hash for an article across runs: normalized
// title plus the link's domain, so the same story re-published under a
// tracking URL still matches.
func Fingerprint(title, link string) string {
	normalizedTitle := strings.ToLower(strings.TrimSpace(title))
	normalizedTitle = strings.Join(strings.Fields(normalizedTitle), " ")

	h := sha256.New()
	h.Write([]byte(normalizedTitle + "|" + Domain(link)))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Domain extracts the lower-cased host of a link without the www. prefix.
func Domain(link string) string {
	if link == "" {
		return "unknown"
	}

	link = strings.TrimPrefix(link, "http://")
	link = strings.TrimPrefix(link, "https://")

	domain := strings.Split(link, "/")[0]
	if domain == "" {
		return "unknown"
	}
	domain = strings.TrimPrefix(domain, "www.")

	return strings.ToLower(domain)
}

// Dedupe drops repeated articles by link and by title+summary content key.
// The first occurrence wins, so callers sort before deduplicating.
func Dedupe(articles []Article) (kept []Article, dropped int) {
	seenLinks := map[string]struct{}{}
	seenContent := map[string]struct{}{}

	kept = make([]Article, 0, len(articles))
	for _, a := range articles {
		if a.URL != "" {
			if _, dup := seenLinks[a.URL]; dup {
				dropped++
				continue
			}
			seenLinks[a.URL] = struct{}{}
		}

		key := ContentKey(a.Title, a.SummaryRaw)
		if _, dup := seenContent[key]; dup {
			dropped++
			continue
		}
		seenContent[key] = struct{}{}

		kept = append(kept, a)
	}
	return kept, dropped
}
