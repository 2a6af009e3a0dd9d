package summarize

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedResponse is returned when a backend reply lacks the expected JSON object.
var ErrMalformedResponse = errors.New("malformed summary response")

// Result is the structured summary of one article.
type Result struct {
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
	Quotes    []string `json:"quotes"`
}

var requiredKeys = []string{"summary", "key_points", "quotes"}

// ParseResponse decodes the JSON object spanning the first '{' to the last '}'
// of raw. Prose or code fences around the object are ignored. All three keys
// must be present and the summary must not be blank.
func ParseResponse(raw string) (Result, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end <= start {
		return Result{}, fmt.Errorf("%w: no JSON object found", ErrMalformedResponse)
	}
	body := raw[start : end+1]

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	for _, k := range requiredKeys {
		if _, ok := fields[k]; !ok {
			return Result{}, fmt.Errorf("%w: missing key %q", ErrMalformedResponse, k)
		}
	}

	var res Result
	if err := json.Unmarshal([]byte(body), &res); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	res.Summary = strings.TrimSpace(res.Summary)
	if res.Summary == "" {
		return Result{}, fmt.Errorf("%w: empty summary", ErrMalformedResponse)
	}
	res.KeyPoints = compact(res.KeyPoints)
	res.Quotes = compact(res.Quotes)
	return res, nil
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
