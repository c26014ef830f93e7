package services

import (
  "context"
  "fmt"
  "strings"
)

const extractionSchemaName = "meeting_artifacts"

// LLMCallError marks a failure of the extraction adapter itself (HTTP error,
// timeout, unparseable response envelope) as opposed to an infrastructure
// failure while recording the interaction.
type LLMCallError struct {
  Err error
}

func (e *LLMCallError) Error() string {
  return fmt.Sprintf("llm call failed: %v", e.Err)
}

func (e *LLMCallError) Unwrap() error { return e.Err }

// ExtractionRecord is one row of the per-meeting interaction log, produced by
// runExtractionCycle in the order the calls were made.
type ExtractionRecord struct {
  Ordinal          int
  IsRepairAttempt  bool
  IsFinal          bool
  IsValid          bool
  Result           *LLMResult
  ValidationErrors []SchemaValidationError
}

// ExtractionOutcome is the result of the bounded extract-validate-repair
// cycle: at most one initial call and one repair call.
type ExtractionOutcome struct {
  Valid            bool
  Raw              string
  ValidationErrors []SchemaValidationError
  Attempts         int
}

func extractionUserMessage(transcript string) string {
  var b strings.Builder
  b.WriteString("Meeting transcript:\n\n")
  b.WriteString(transcript)
  return b.String()
}

func repairUserMessage(transcript, previousRaw string, valErrs []SchemaValidationError) string {
  var b strings.Builder
  b.WriteString("Your previous response did not satisfy the required JSON schema.\n\n")
  b.WriteString("Previous response:\n")
  b.WriteString(previousRaw)
  b.WriteString("\n\nValidation errors:\n")
  for _, ve := range valErrs {
    b.WriteString("- ")
    b.WriteString(ve.String())
    b.WriteString("\n")
  }
  b.WriteString("\nReturn a corrected JSON document that satisfies the schema. ")
  b.WriteString("Respond with JSON only.\n\nMeeting transcript:\n\n")
  b.WriteString(transcript)
  return b.String()
}

// runExtractionCycle drives the extraction stage: one structured-output call,
// schema validation, and on failure exactly one repair call that feeds the
// validator's error list back to the model. Every call is handed to record
// before the cycle proceeds, so the interaction log survives whatever happens
// next. A second validation failure is a normal outcome (Valid=false), not an
// error; errors are reserved for adapter failures (wrapped in *LLMCallError)
// and record failures.
func runExtractionCycle(
  ctx context.Context,
  llm LLMClient,
  systemPrompt string,
  transcript string,
  schema map[string]any,
  startOrdinal int,
  record func(rec ExtractionRecord) error,
) (*ExtractionOutcome, error) {
  res, err := llm.ExtractJSON(ctx, systemPrompt, extractionUserMessage(transcript), extractionSchemaName, schema)
  if err != nil {
    return nil, &LLMCallError{Err: err}
  }

  valErrs, err := ValidateArtifacts(schema, res.Raw)
  if err != nil {
    return nil, err
  }

  if len(valErrs) == 0 {
    if err := record(ExtractionRecord{
      Ordinal: startOrdinal,
      IsFinal: true,
      IsValid: true,
      Result:  res,
    }); err != nil {
      return nil, err
    }
    return &ExtractionOutcome{Valid: true, Raw: res.Raw, Attempts: 1}, nil
  }

  if err := record(ExtractionRecord{
    Ordinal:          startOrdinal,
    IsValid:          false,
    Result:           res,
    ValidationErrors: valErrs,
  }); err != nil {
    return nil, err
  }

  repairRes, err := llm.ExtractJSON(ctx, systemPrompt, repairUserMessage(transcript, res.Raw, valErrs), extractionSchemaName, schema)
  if err != nil {
    return nil, &LLMCallError{Err: err}
  }

  repairErrs, err := ValidateArtifacts(schema, repairRes.Raw)
  if err != nil {
    return nil, err
  }

  if err := record(ExtractionRecord{
    Ordinal:          startOrdinal + 1,
    IsRepairAttempt:  true,
    IsFinal:          true,
    IsValid:          len(repairErrs) == 0,
    Result:           repairRes,
    ValidationErrors: repairErrs,
  }); err != nil {
    return nil, err
  }

  if len(repairErrs) == 0 {
    return &ExtractionOutcome{Valid: true, Raw: repairRes.Raw, Attempts: 2}, nil
  }
  return &ExtractionOutcome{Valid: false, ValidationErrors: repairErrs, Attempts: 2}, nil
}
