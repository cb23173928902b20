package parse

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildResponseSchema returns the strict contract for model output as a
// JSON-Schema (draft 2020-12 subset) generic map: an extracted_data object
// carrying every requested field as a string, plus optional per-field
// confidence and reasoning maps. Extra keys inside extracted_data are allowed
// here and dropped later, so an over-eager model does not fail the strict pass.
func BuildResponseSchema(fields []string) map[string]any {
	dataProps := map[string]any{}
	for _, f := range fields {
		dataProps[f] = map[string]any{"type": "string"}
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"extracted_data": map[string]any{
				"type":                 "object",
				"properties":           dataProps,
				"required":             fields,
				"additionalProperties": true,
			},
			"confidence_scores": map[string]any{
				"type":                 "object",
				"additionalProperties": map[string]any{"type": "number"},
			},
			"reasoning": map[string]any{
				"type":                 "object",
				"additionalProperties": map[string]any{"type": "string"},
			},
		},
		"required": []string{"extracted_data"},
	}
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
