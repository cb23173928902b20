package entity

import (
	"fmt"
	"strings"
)

// Temperature bounds accepted by the chat completions API.
const (
	MinTemperature float32 = 0.0
	MaxTemperature float32 = 2.0

	// DefaultTemperature is deliberately low so repeated extractions of the
	// same document stay close to deterministic.
	DefaultTemperature float32 = 0.1

	DefaultModel = "gpt-4o-mini"
)

// ExtractionConfig describes one extraction request: which form type the
// document is, which fields to pull out, and how to call the model.
// It is validated at construction and must not be mutated afterwards.
type ExtractionConfig struct {
	FormType     string   `json:"form_type"`
	Fields       []string `json:"fields"`
	Model        string   `json:"model"`
	Temperature  float32  `json:"temperature"`
	TemplateName string   `json:"template_name,omitempty"`
	TemplateHint string   `json:"template_hint,omitempty"`
}

// NewExtractionConfig builds a validated config. Field names are trimmed,
// order is preserved, duplicates and empties are rejected.
func NewExtractionConfig(formType string, fields []string) (*ExtractionConfig, error) {
	formType = strings.TrimSpace(formType)
	if formType == "" {
		formType = "general"
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("extraction config: at least one field is required")
	}

	seen := make(map[string]struct{}, len(fields))
	cleaned := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			return nil, fmt.Errorf("extraction config: empty field name")
		}
		if _, dup := seen[f]; dup {
			return nil, fmt.Errorf("extraction config: duplicate field %q", f)
		}
		seen[f] = struct{}{}
		cleaned = append(cleaned, f)
	}

	return &ExtractionConfig{
		FormType:    formType,
		Fields:      cleaned,
		Model:       DefaultModel,
		Temperature: DefaultTemperature,
	}, nil
}

// WithModel returns a copy using the given model identifier.
func (c ExtractionConfig) WithModel(model string) *ExtractionConfig {
	if m := strings.TrimSpace(model); m != "" {
		c.Model = m
	}
	out := c
	out.Fields = append([]string(nil), c.Fields...)
	return &out
}

// WithTemperature returns a copy using the given sampling temperature.
// Out-of-range values are rejected so a bad caller fails loudly, not quietly.
func (c ExtractionConfig) WithTemperature(t float32) (*ExtractionConfig, error) {
	if t < MinTemperature || t > MaxTemperature {
		return nil, fmt.Errorf("extraction config: temperature %.2f outside [%.1f, %.1f]", t, MinTemperature, MaxTemperature)
	}
	out := c
	out.Temperature = t
	out.Fields = append([]string(nil), c.Fields...)
	return &out, nil
}

// HasField reports whether name is one of the requested fields.
func (c *ExtractionConfig) HasField(name string) bool {
	for _, f := range c.Fields {
		if f == name {
			return true
		}
	}
	return false
}
