package llm

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	parenNote   = regexp.MustCompile(`(?i)\((?:note|disclaimer)\s*:[^)]*\)`)
	bracketNote = regexp.MustCompile(`(?i)\[(?:note|disclaimer)\s*:[^\]]*\]`)
	lineNote    = regexp.MustCompile(`(?i)^\s*(?:note|disclaimer)\s*:`)
	spaces      = regexp.MustCompile(`[ \t]+`)
)

// SanitizeAIText removes model disclaimers such as "(Note: ...)" and collapses
// runs of spaces. Newlines are kept.
func SanitizeAIText(s string) string {
	s = parenNote.ReplaceAllString(s, "")
	s = bracketNote.ReplaceAllString(s, "")

	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if lineNote.MatchString(line) {
			continue
		}
		kept = append(kept, strings.TrimSpace(spaces.ReplaceAllString(line, " ")))
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// Truncate cuts s to at most limit runes, preferring to end on a sentence
// boundary when one exists in the last part of the kept text.
func Truncate(s string, limit int) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\r", ""))
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	trimmed := string(runes[:limit])
	if idx := strings.LastIndex(trimmed, ". "); idx > len(trimmed)/5 {
		trimmed = trimmed[:idx+1]
	}
	return trimmed + "..."
}
