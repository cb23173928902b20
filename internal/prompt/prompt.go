// Package prompt turns an extraction config and document text into the
// instruction payload sent to the model. Building is a pure transform:
// identical inputs always produce byte-identical prompts, which keeps
// retries idempotent and downstream caching honest.
package prompt

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/IgnacyBartnik/LLM-PDF-extractor/constants"
	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/entity"
)

// Prompt is the deterministic instruction payload for one inference call.
type Prompt struct {
	System    string
	User      string
	Truncated bool // document text was cut to fit the budget
}

// Builder holds the character budget for the document portion of the prompt.
type Builder struct {
	MaxChars int // 0 means DefaultMaxChars
}

// DefaultMaxChars bounds the document portion of the prompt.
const DefaultMaxChars = 8000

func NewBuilder(maxChars int) *Builder {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Builder{MaxChars: maxChars}
}

// Build composes the system and user messages. No I/O, no randomness.
func (b *Builder) Build(cfg *entity.ExtractionConfig, text string) Prompt {
	body, truncated := truncateAtBoundary(text, b.MaxChars)

	return Prompt{
		System:    buildSystemPrompt(cfg),
		User:      buildUserPrompt(cfg, body),
		Truncated: truncated,
	}
}

func buildSystemPrompt(cfg *entity.ExtractionConfig) string {
	parts := []string{
		"You are an expert at extracting structured data from " + cfg.FormType + " forms.",
		"Always respond with a single valid JSON object and nothing else.",
		"If a field is not present in the document, use exactly \"" + constants.NotFoundValue + "\" as its value; never omit a requested field.",
		"Include a confidence score between 0.0 and 1.0 for every field.",
	}
	if hint := strings.TrimSpace(cfg.TemplateHint); hint != "" {
		parts = append(parts, "Form guidance: "+hint)
	}
	return strings.Join(parts, " ")
}

func buildUserPrompt(cfg *entity.ExtractionConfig, body string) string {
	quoted := make([]string, len(cfg.Fields))
	for i, f := range cfg.Fields {
		quoted[i] = `"` + f + `"`
	}

	var sb strings.Builder
	sb.WriteString("Extract the following fields from the provided text: ")
	sb.WriteString(strings.Join(quoted, ", "))
	sb.WriteString("\n\nInstructions:\n")
	sb.WriteString("1. Analyze the text carefully and identify the requested information.\n")
	sb.WriteString("2. If a field is not found, use \"" + constants.NotFoundValue + "\" as the value.\n")
	sb.WriteString("3. Return the data in JSON format with the exact field names requested.\n")
	sb.WriteString("4. Include confidence scores (0.0 to 1.0) for each extraction.\n")
	sb.WriteString("5. Provide brief reasoning for each extraction.\n")
	sb.WriteString("\nText to analyze:\n")
	sb.WriteString(body)
	sb.WriteString("\n\nRespond with a JSON object in this exact format:\n")
	sb.WriteString(`{
  "extracted_data": {
    "field_name": "extracted_value"
  },
  "confidence_scores": {
    "field_name": 0.95
  },
  "reasoning": {
    "field_name": "Brief explanation of how this was extracted"
  }
}`)
	return sb.String()
}

// truncateAtBoundary cuts text to at most limit characters, preferring a page
// marker, then a paragraph break, then the last word boundary. It never cuts
// mid-word unless the window is a single unbroken token.
func truncateAtBoundary(text string, limit int) (string, bool) {
	if len(text) <= limit {
		return text, false
	}
	window := text[:limit]

	if idx := strings.LastIndex(window, "\n--- Page "); idx > limit/2 {
		return strings.TrimRight(window[:idx], "\n"), true
	}
	if idx := strings.LastIndex(window, "\n\n"); idx > limit/2 {
		return window[:idx], true
	}
	if idx := strings.LastIndexFunc(window, unicode.IsSpace); idx > 0 {
		return strings.TrimRightFunc(window[:idx], unicode.IsSpace), true
	}
	// Single unbroken token: back off to a rune boundary so the cut does not
	// split a multi-byte character.
	for limit > 0 && !utf8.RuneStart(text[limit]) {
		limit--
	}
	return text[:limit], true
}
