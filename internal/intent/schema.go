/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package intent

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const outputSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["intent"],
  "properties": {
    "intent": {"type": "string", "enum": ["project_metrics", "initiative_summary", "unknown"]},
    "project_key": {"type": "string", "pattern": "^[A-Za-z][A-Za-z0-9_]*$"},
    "sprint_count": {"type": "integer", "minimum": 1, "maximum": 50},
    "initiative_key": {"type": "string", "pattern": "^[A-Za-z][A-Za-z0-9_]*-[0-9]+$"},
    "time_phrase": {"type": "string", "maxLength": 80},
    "start_date": {"type": "string", "pattern": "^[0-9]{4}-[0-9]{2}-[0-9]{2}$"},
    "end_date": {"type": "string", "pattern": "^[0-9]{4}-[0-9]{2}-[0-9]{2}$"},
    "status": {"type": "string", "maxLength": 40}
  }
}`

// modelOutput is the classifier's answer after schema validation.
type modelOutput struct {
	Intent        string `json:"intent"`
	ProjectKey    string `json:"project_key"`
	SprintCount   int    `json:"sprint_count"`
	InitiativeKey string `json:"initiative_key"`
	TimePhrase    string `json:"time_phrase"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	Status        string `json:"status"`
}

func compileSchema() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(outputSchema))
}

// decodeOutput extracts the JSON object from a model reply and validates it.
func decodeOutput(schema *gojsonschema.Schema, raw string) (modelOutput, error) {
	var out modelOutput
	doc := extractJSON(raw)
	if doc == "" {
		return out, errors.New("no JSON object in model output")
	}
	res, err := schema.Validate(gojsonschema.NewStringLoader(doc))
	if err != nil {
		return out, fmt.Errorf("model output: %w", err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return out, errors.New("model output failed validation: " + strings.Join(msgs, "; "))
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(doc)))
	if err := dec.Decode(&out); err != nil {
		return out, fmt.Errorf("model output: %w", err)
	}
	return out, nil
}

// extractJSON returns the outermost {...} span, tolerating code fences and
// surrounding prose.
func extractJSON(s string) string {
	i := strings.Index(s, "{")
	j := strings.LastIndex(s, "}")
	if i < 0 || j <= i {
		return ""
	}
	return s[i : j+1]
}
