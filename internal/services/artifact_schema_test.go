package services

import (
	"encoding/json"
	"testing"

	"gorm.io/datatypes"
)

const envelopeSchema = `{
  "type": "object",
  "properties": {
    "artifacts": {"type": "array", "items": {"type": "object"}},
    "quality": {"type": "object"}
  },
  "required": ["artifacts", "quality"]
}`

const artifactsOnlySchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "properties": {
      "title": {"type": "string"},
      "owner": {"type": "string"}
    },
    "required": ["title"]
  }
}`

func TestBuildValidationSchemaKeepsEnvelopeVerbatim(t *testing.T) {
	schema, err := BuildValidationSchema(datatypes.JSON(envelopeSchema))
	if err != nil {
		t.Fatalf("BuildValidationSchema: %v", err)
	}
	var want map[string]any
	if err := json.Unmarshal([]byte(envelopeSchema), &want); err != nil {
		t.Fatal(err)
	}
	got, _ := json.Marshal(schema)
	wantJSON, _ := json.Marshal(want)
	if string(got) != string(wantJSON) {
		t.Fatalf("envelope schema must be used unmodified, got %s", got)
	}
}

func TestBuildValidationSchemaWrapsArtifactsOnly(t *testing.T) {
	schema, err := BuildValidationSchema(datatypes.JSON(artifactsOnlySchema))
	if err != nil {
		t.Fatalf("BuildValidationSchema: %v", err)
	}
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		t.Fatal("wrapped schema must have top-level properties")
	}
	if _, ok := props["artifacts"]; !ok {
		t.Error("wrapped schema must declare artifacts")
	}
	if _, ok := props["quality"]; !ok {
		t.Error("wrapped schema must declare quality")
	}
	required, ok := schema["required"].([]any)
	if !ok || len(required) != 2 {
		t.Fatalf("wrapped schema must require artifacts and quality, got %v", schema["required"])
	}
}

func TestBuildValidationSchemaRejectsBadInput(t *testing.T) {
	if _, err := BuildValidationSchema(nil); err == nil {
		t.Error("empty schema must be rejected")
	}
	if _, err := BuildValidationSchema(datatypes.JSON(`"just a string"`)); err == nil {
		t.Error("non-object schema must be rejected")
	}
}

func TestValidateArtifactsAcceptsValidPayload(t *testing.T) {
	schema, err := BuildValidationSchema(datatypes.JSON(artifactsOnlySchema))
	if err != nil {
		t.Fatal(err)
	}
	raw := `{"artifacts": [{"title": "Decide rollout date", "owner": "sam"}], "quality": {"confidence": 0.9}}`
	errs, err := ValidateArtifacts(schema, raw)
	if err != nil {
		t.Fatalf("ValidateArtifacts: %v", err)
	}
	if len(errs) != 0 {
		t.Fatalf("expected valid payload, got %v", errs)
	}
}

func TestValidateArtifactsRejectsMissingQuality(t *testing.T) {
	schema, err := BuildValidationSchema(datatypes.JSON(artifactsOnlySchema))
	if err != nil {
		t.Fatal(err)
	}
	raw := `{"artifacts": [{"title": "Decide rollout date"}]}`
	errs, err := ValidateArtifacts(schema, raw)
	if err != nil {
		t.Fatalf("ValidateArtifacts: %v", err)
	}
	if len(errs) == 0 {
		t.Fatal("payload without quality must fail validation")
	}
}

func TestValidateArtifactsToleratesUnknownProperties(t *testing.T) {
	schema, err := BuildValidationSchema(datatypes.JSON(artifactsOnlySchema))
	if err != nil {
		t.Fatal(err)
	}
	raw := `{"artifacts": [{"title": "x"}], "quality": {}, "debug_notes": "extra"}`
	errs, err := ValidateArtifacts(schema, raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(errs) != 0 {
		t.Fatalf("unknown top-level properties must be tolerated, got %v", errs)
	}
}

func TestValidateArtifactsRejectsWrongTypes(t *testing.T) {
	schema, err := BuildValidationSchema(datatypes.JSON(artifactsOnlySchema))
	if err != nil {
		t.Fatal(err)
	}
	raw := `{"artifacts": "not an array", "quality": {}}`
	errs, err := ValidateArtifacts(schema, raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(errs) == 0 {
		t.Fatal("type mismatch must fail validation")
	}
}

func TestValidateArtifactsRejectsNonJSON(t *testing.T) {
	schema, err := BuildValidationSchema(datatypes.JSON(envelopeSchema))
	if err != nil {
		t.Fatal(err)
	}
	errs, err := ValidateArtifacts(schema, "Sure! Here is your JSON: {...}")
	if err != nil {
		t.Fatal(err)
	}
	if len(errs) == 0 {
		t.Fatal("non-JSON response must fail validation, not error")
	}
}
