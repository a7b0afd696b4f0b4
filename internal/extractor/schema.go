package extractor

// buildExtractionSchema returns the JSON Schema the model output must satisfy.
// It is passed to the API as a structured-output constraint and compiled
// locally to validate what actually comes back.
func buildExtractionSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"parties": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"party_one":          nullableString(),
					"party_two":          nullableString(),
					"additional_parties": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
			},
			"dates": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"effective_date":   nullableString(),
					"termination_date": nullableString(),
					"term_length":      nullableString(),
				},
			},
			"clauses": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"governing_law":           nullableString(),
					"termination":             nullableString(),
					"confidentiality":         nullableString(),
					"indemnification":         nullableString(),
					"limitation_of_liability": nullableString(),
					"dispute_resolution":      nullableString(),
					"payment_terms":           nullableString(),
					"intellectual_property":   nullableString(),
				},
			},
			"confidence": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
			"summary":    nullableString(),
		},
		"required": []string{"parties", "dates", "clauses", "confidence"},
	}
}

func nullableString() map[string]any {
	return map[string]any{"type": []string{"string", "null"}}
}
