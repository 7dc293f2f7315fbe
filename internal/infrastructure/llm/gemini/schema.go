package gemini

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const analysisSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["predicted_category"],
  "properties": {
    "predicted_category": {"type": "string"},
    "extracted_action_items": {
      "type": "array",
      "items": {"type": "string"}
    }
  }
}`

func compileAnalysisSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("analysis.json", strings.NewReader(analysisSchema)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("analysis.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

type unifiedAnswer struct {
	PredictedCategory    string   `json:"predicted_category"`
	ExtractedActionItems []string `json:"extracted_action_items"`
}

// decodeUnifiedAnswer strips markdown fences, validates the object shape and
// decodes it.
func decodeUnifiedAnswer(schema *jsonschema.Schema, raw string) (unifiedAnswer, error) {
	cleaned := stripCodeFences(raw)

	var v any
	if err := json.Unmarshal([]byte(cleaned), &v); err != nil {
		return unifiedAnswer{}, fmt.Errorf("model response is not valid JSON: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return unifiedAnswer{}, fmt.Errorf("json does not match schema: %w", err)
	}

	var answer unifiedAnswer
	if err := json.Unmarshal([]byte(cleaned), &answer); err != nil {
		return unifiedAnswer{}, fmt.Errorf("decode model response: %w", err)
	}
	return answer, nil
}

func stripCodeFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
