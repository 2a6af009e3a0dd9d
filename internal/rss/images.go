package rss

import (
	"net/url"
	"path"
	"strings"

	"github.com/mmcdole/gofeed"
)

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true, ".avif": true,
}

// ExtractImageURL picks the entry image.
// Priority: media:content (image) > media:thumbnail > image enclosure > image link > item.Image.
// Only http/https URLs are accepted.
func ExtractImageURL(item *gofeed.Item) string {
	if mediaExt, ok := item.Extensions["media"]; ok {
		for _, content := range mediaExt["content"] {
			medium := content.Attrs["medium"]
			typ := content.Attrs["type"]
			if medium == "image" || strings.HasPrefix(typ, "image/") || (medium == "" && typ == "" && looksLikeImage(content.Attrs["url"])) {
				if u := content.Attrs["url"]; isValidImageScheme(u) {
					return u
				}
			}
		}

		for _, thumb := range mediaExt["thumbnail"] {
			if u := thumb.Attrs["url"]; isValidImageScheme(u) {
				return u
			}
		}
	}

	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") && isValidImageScheme(enc.URL) {
			return enc.URL
		}
	}

	for _, link := range item.Links {
		if looksLikeImage(link) && isValidImageScheme(link) {
			return link
		}
	}

	if item.Image != nil && isValidImageScheme(item.Image.URL) {
		return item.Image.URL
	}

	return ""
}

func looksLikeImage(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return imageExts[strings.ToLower(path.Ext(u.Path))]
}

func isValidImageScheme(rawURL string) bool {
	if rawURL == "" {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
