package services

import (
  "encoding/json"
  "fmt"

  "github.com/xeipuuv/gojsonschema"
  "gorm.io/datatypes"
)

// Scenario output schemas come in two historical shapes. Newer records store
// only the artifacts definition; older ones already declare the full
// `{artifacts, quality}` envelope. BuildValidationSchema normalizes both into
// the schema every LLM response is validated against.
func BuildValidationSchema(stored datatypes.JSON) (map[string]any, error) {
  if len(stored) == 0 {
    return nil, fmt.Errorf("scenario output schema is empty")
  }
  var schema map[string]any
  if err := json.Unmarshal(stored, &schema); err != nil {
    return nil, fmt.Errorf("scenario output schema is not a JSON object: %w", err)
  }
  if declaresArtifactsAndQuality(schema) {
    return schema, nil
  }
  // The stored schema only describes the artifacts value; synthesize the
  // envelope around it. Top level stays open to unknown extra properties.
  return map[string]any{
    "type": "object",
    "properties": map[string]any{
      "artifacts": schema,
      "quality":   map[string]any{"type": "object"},
    },
    "required": []any{"artifacts", "quality"},
  }, nil
}

func declaresArtifactsAndQuality(schema map[string]any) bool {
  props, ok := schema["properties"].(map[string]any)
  if !ok {
    return false
  }
  if _, ok := props["artifacts"]; !ok {
    return false
  }
  if _, ok := props["quality"]; !ok {
    return false
  }
  required, ok := schema["required"].([]any)
  if !ok {
    return false
  }
  var hasArtifacts, hasQuality bool
  for _, r := range required {
    switch r {
    case "artifacts":
      hasArtifacts = true
    case "quality":
      hasQuality = true
    }
  }
  return hasArtifacts && hasQuality
}

type SchemaValidationError struct {
  Field       string `json:"field"`
  Description string `json:"description"`
}

func (e SchemaValidationError) String() string {
  return fmt.Sprintf("%s: %s", e.Field, e.Description)
}

// ValidateArtifacts checks a raw LLM response against the full validation
// schema. A non-empty slice means the response is malformed (including not
// being JSON at all); a non-nil error means the validator itself could not
// run.
func ValidateArtifacts(schema map[string]any, raw string) ([]SchemaValidationError, error) {
  if !json.Valid([]byte(raw)) {
    return []SchemaValidationError{{Field: "(root)", Description: "response is not valid JSON"}}, nil
  }
  result, err := gojsonschema.Validate(
    gojsonschema.NewGoLoader(schema),
    gojsonschema.NewStringLoader(raw),
  )
  if err != nil {
    return nil, fmt.Errorf("schema validation: %w", err)
  }
  if result.Valid() {
    return nil, nil
  }
  out := make([]SchemaValidationError, 0, len(result.Errors()))
  for _, resErr := range result.Errors() {
    out = append(out, SchemaValidationError{
      Field:       resErr.Field(),
      Description: resErr.Description(),
    })
  }
  return out, nil
}
