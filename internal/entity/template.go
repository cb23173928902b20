package entity

import "time"

// FormTypeTemplate is a named, reusable extraction configuration. Templates
// are owned by the persistence layer; the pipeline only ever sees the
// already-resolved ExtractionConfig built from one.
type FormTypeTemplate struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Fields      []string  `json:"fields"`
	Hint        string    `json:"hint,omitempty"` // extra instruction folded into the prompt
	CreatedAt   time.Time `json:"created_at"`
}

// Config resolves the template into an ExtractionConfig.
func (t *FormTypeTemplate) Config() (*ExtractionConfig, error) {
	cfg, err := NewExtractionConfig(t.Name, t.Fields)
	if err != nil {
		return nil, err
	}
	cfg.TemplateName = t.Name
	cfg.TemplateHint = t.Hint
	return cfg, nil
}
