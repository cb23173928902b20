package parse

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/entity"
)

// The lenient recovery grammar, in the order it is tried:
//
//  1. Brace window: the substring from the first '{' to the last '}' is
//     decoded as the normal envelope. Models that wrap valid JSON in prose
//     or return a structurally fine envelope with fields missing land here.
//  2. Flat object: the same window decoded as a plain {"field": value}
//     object, keys matched against the requested fields case- and
//     separator-insensitively ("Claim Number" matches "claim_number").
//  3. Line pairs: every line of the raw text matched against
//     `key : value` / `key = value`, keys normalized as in (2).
//
// A pass wins as soon as it recovers at least one requested field; anything
// less falls through, and when all three miss the response is unparsable.

var lineKV = regexp.MustCompile(`^\s*"?([A-Za-z0-9 _.-]+?)"?\s*[:=]\s*"?(.+?)"?\s*,?\s*$`)

// lenientParse also reports whether the result counts as a salvage. A bare
// field→value object that is the entire response is a clean parse in an
// alternate shape, not a salvage, so it can still earn a success status.
func (v *Validator) lenientParse(cleaned string, cfg *entity.ExtractionConfig) (env *envelope, recovered, ok bool) {
	window := braceWindow(cleaned)

	if window != "" {
		if env, ok := envelopeFromWindow(window, cfg); ok {
			return env, true, true
		}
		if env, ok := flatObject(window, cfg); ok {
			return env, window != cleaned, true
		}
	}
	env, ok = linePairs(cleaned, cfg)
	return env, true, ok
}

func braceWindow(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func envelopeFromWindow(window string, cfg *entity.ExtractionConfig) (*envelope, bool) {
	var env envelope
	if err := json.Unmarshal([]byte(window), &env); err != nil {
		return nil, false
	}
	if countKnown(env.ExtractedData, cfg) == 0 {
		return nil, false
	}
	return &env, true
}

func flatObject(window string, cfg *entity.ExtractionConfig) (*envelope, bool) {
	var m map[string]any
	if err := json.Unmarshal([]byte(window), &m); err != nil {
		return nil, false
	}
	data := make(map[string]any)
	for key, val := range m {
		if name, ok := matchField(key, cfg); ok {
			data[name] = val
		}
	}
	if len(data) == 0 {
		return nil, false
	}
	return &envelope{ExtractedData: data}, true
}

func linePairs(raw string, cfg *entity.ExtractionConfig) (*envelope, bool) {
	data := make(map[string]any)
	for _, line := range strings.Split(raw, "\n") {
		m := lineKV.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name, ok := matchField(m[1], cfg)
		if !ok {
			continue
		}
		if _, dup := data[name]; dup {
			continue // first occurrence wins
		}
		data[name] = m[2]
	}
	if len(data) == 0 {
		return nil, false
	}
	return &envelope{ExtractedData: data}, true
}

func countKnown(data map[string]any, cfg *entity.ExtractionConfig) int {
	n := 0
	for key := range data {
		if cfg.HasField(key) {
			n++
		}
	}
	return n
}

// matchField resolves a loosely spelled key to a requested field name.
func matchField(key string, cfg *entity.ExtractionConfig) (string, bool) {
	norm := normalizeKey(key)
	for _, f := range cfg.Fields {
		if normalizeKey(f) == norm {
			return f, true
		}
	}
	return "", false
}

func normalizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
