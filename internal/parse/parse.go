// Package parse turns raw model output into typed, validated extraction
// fields. It tries the strict contract first, then a bounded lenient
// recovery grammar (see lenient.go), and only then gives up.
package parse

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/IgnacyBartnik/LLM-PDF-extractor/constants"
	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/entity"
)

// envelope is the strict response contract the prompt asks for.
type envelope struct {
	ExtractedData    map[string]any     `json:"extracted_data"`
	ConfidenceScores map[string]float64 `json:"confidence_scores"`
	Reasoning        map[string]string  `json:"reasoning"`
}

// Outcome carries the validated fields and the status they earned. The
// orchestrator folds it into the final ExtractionResult.
type Outcome struct {
	Fields   []entity.ExtractedField
	Status   constants.ExtractionStatus
	Warnings []string
}

// Validator cross-checks model output against the requested field set.
type Validator struct {
	log *slog.Logger
}

func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{log: logger}
}

// ParseResponse validates raw output against cfg. The result always contains
// exactly one field per requested name, in request order; absent fields are
// explicit "Not found" entries with nil confidence. The error is non-nil only
// when even lenient recovery found nothing usable.
func (v *Validator) ParseResponse(raw string, cfg *entity.ExtractionConfig) (*Outcome, error) {
	cleaned := stripCodeFences(strings.TrimSpace(raw))

	if env, ok := v.strictParse(cleaned, cfg); ok {
		out := v.assemble(env, cfg, false)
		v.log.Info("parse.strict.ok", "fields", len(out.Fields), "status", string(out.Status))
		return out, nil
	}

	if env, recovered, ok := v.lenientParse(cleaned, cfg); ok {
		out := v.assemble(env, cfg, recovered)
		v.log.Warn("parse.lenient.recovered", "fields", len(out.Fields), "status", string(out.Status), "salvaged", recovered)
		return out, nil
	}

	v.log.Error("parse.failed", "raw_len", len(raw))
	return nil, &Error{Kind: KindUnparsable, Message: "no recoverable structure in model response"}
}

// strictParse accepts only the exact envelope: a single JSON object that
// validates against the response schema, every requested field present as a
// string under extracted_data.
func (v *Validator) strictParse(cleaned string, cfg *entity.ExtractionConfig) (*envelope, bool) {
	var env envelope
	if err := json.Unmarshal([]byte(cleaned), &env); err != nil {
		return nil, false
	}
	if err := ValidateJSONAgainstSchema(BuildResponseSchema(cfg.Fields), []byte(cleaned)); err != nil {
		v.log.Debug("parse.strict.schema_mismatch", "error", err)
		return nil, false
	}
	return &env, true
}

// assemble builds the outcome from whichever pass produced env. recovered
// marks every present field when the lenient pass was used.
func (v *Validator) assemble(env *envelope, cfg *entity.ExtractionConfig, recovered bool) *Outcome {
	var warnings []string

	// Unknown fields are dropped, not errors.
	for name := range env.ExtractedData {
		if !cfg.HasField(name) {
			v.log.Warn("parse.unknown_field_dropped", "field", name)
			warnings = append(warnings, fmt.Sprintf("dropped unknown field %q", name))
		}
	}

	fields := make([]entity.ExtractedField, 0, len(cfg.Fields))
	missing := 0
	for _, name := range cfg.Fields {
		f := entity.ExtractedField{Name: name, Recovered: recovered}

		rawVal, present := env.ExtractedData[name]
		value := strings.TrimSpace(coerceString(rawVal))
		if !present || value == "" || strings.EqualFold(value, constants.NotFoundValue) {
			f.Value = constants.NotFoundValue
			f.Recovered = recovered && present
			missing++
			fields = append(fields, f)
			continue
		}
		f.Value = value

		if conf, ok := env.ConfidenceScores[name]; ok {
			clamped, wasClamped := clampConfidence(conf)
			if wasClamped {
				warnings = append(warnings, fmt.Sprintf("confidence for %q clamped from %.3f", name, conf))
				v.log.Warn("parse.confidence_clamped", "field", name, "raw", conf)
			}
			f.Confidence = &clamped
		}
		if why, ok := env.Reasoning[name]; ok {
			f.Evidence = strings.TrimSpace(why)
		}
		fields = append(fields, f)
	}

	status := constants.StatusSuccess
	if recovered || missing > 0 {
		status = constants.StatusPartial
	}
	return &Outcome{Fields: fields, Status: status, Warnings: warnings}
}

func clampConfidence(c float64) (float32, bool) {
	switch {
	case c < 0:
		return 0, true
	case c > 1:
		return 1, true
	default:
		return float32(c), false
	}
}

func coerceString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		// trim the ".000000" noise fmt.Sprint would avoid anyway
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", t), "0"), ".")
	default:
		return fmt.Sprint(t)
	}
}

// stripCodeFences unwraps ```json ... ``` blocks some models insist on.
func stripCodeFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:] // drop the language tag line
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
