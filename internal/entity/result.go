package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/IgnacyBartnik/LLM-PDF-extractor/constants"
)

// ExtractedField is one requested field with the value the model produced.
// Value is never empty: absent fields carry constants.NotFoundValue.
// Confidence is nil when the model did not supply one.
type ExtractedField struct {
	Name       string   `json:"name"`
	Value      string   `json:"value"`
	Confidence *float32 `json:"confidence,omitempty"`
	Evidence   string   `json:"evidence,omitempty"` // raw-text span or model reasoning backing the value
	Recovered  bool     `json:"recovered,omitempty"`
}

// ExtractionResult is the single outcome object of a pipeline invocation.
// It always exists, whatever happened: terminal conditions are carried as
// Status plus ErrorKind/ErrorMessage, never as panics across the boundary.
type ExtractionResult struct {
	ID       uuid.UUID `json:"id"`
	Filename string    `json:"filename"`
	FileSize int64     `json:"file_size"`

	// Document is set once the loader succeeded, even when a later stage
	// failed, so the extracted text stays available for observability.
	Document *FormDocument `json:"document,omitempty"`

	// Fields holds exactly one entry per requested field, in request order.
	Fields []ExtractedField `json:"fields"`

	Status       constants.ExtractionStatus `json:"status"`
	ErrorKind    string                     `json:"error_kind,omitempty"`
	ErrorMessage string                     `json:"error_message,omitempty"`
	Warnings     []string                   `json:"warnings,omitempty"`

	Model           string        `json:"model,omitempty"`
	Attempts        int           `json:"attempts,omitempty"`
	PromptTruncated bool          `json:"prompt_truncated,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	Elapsed         time.Duration `json:"elapsed"`
}

// Field returns the entry for name, or nil when it is not part of the result.
func (r *ExtractionResult) Field(name string) *ExtractedField {
	for i := range r.Fields {
		if r.Fields[i].Name == name {
			return &r.Fields[i]
		}
	}
	return nil
}
