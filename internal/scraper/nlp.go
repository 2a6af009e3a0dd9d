package scraper

import (
	"sort"
	"strings"
	"unicode"
)

var stopwords = map[string]bool{}

func init() {
	for _, w := range strings.Fields(`a about above after again against all also am an and any are as at be
because been before being below between both but by can could did do does doing down during each few for
from further had has have having he her here hers him his how i if in into is it its itself just more most
my no nor not now of off on once only or other our ours out over own said same she should so some such than
that the their theirs them then there these they this those through to too under until up very was we were
what when where which while who whom why will with would you your new one two says year years`) {
		stopwords[w] = true
	}
}

func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
}

// Keywords returns up to n frequent non-stopword terms, most frequent first.
func Keywords(text string, n int) []string {
	counts := map[string]int{}
	var order []string
	for _, w := range words(text) {
		w = strings.Trim(w, "-")
		if len(w) < 3 || stopwords[w] {
			continue
		}
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}

	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if len(order) > n {
		order = order[:n]
	}
	return order
}

// splitSentences breaks text on terminal punctuation followed by whitespace.
func splitSentences(text string) []string {
	var out []string
	var b strings.Builder
	runes := []rune(strings.Join(strings.Fields(text), " "))
	for i, r := range runes {
		b.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && (i+1 == len(runes) || runes[i+1] == ' ') {
			if s := strings.TrimSpace(b.String()); s != "" {
				out = append(out, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		out = append(out, s)
	}
	return out
}

// Summarize picks the n sentences carrying the most frequent keywords and
// returns them in document order.
func Summarize(text string, n int) string {
	sentences := splitSentences(text)
	if len(sentences) <= n {
		return strings.Join(sentences, " ")
	}

	freq := map[string]int{}
	for _, w := range words(text) {
		if !stopwords[w] {
			freq[w]++
		}
	}

	type scored struct {
		idx   int
		score float64
	}
	ranked := make([]scored, len(sentences))
	for i, s := range sentences {
		ws := words(s)
		total := 0
		for _, w := range ws {
			total += freq[w]
		}
		score := 0.0
		if len(ws) > 0 {
			score = float64(total) / float64(len(ws))
		}
		ranked[i] = scored{idx: i, score: score}
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	top := ranked[:n]
	sort.Slice(top, func(i, j int) bool { return top[i].idx < top[j].idx })

	picked := make([]string, 0, n)
	for _, s := range top {
		picked = append(picked, sentences[s.idx])
	}
	return strings.Join(picked, " ")
}
