package services

import (
  "context"
  "errors"
  "strings"
  "testing"

  "gorm.io/datatypes"
)

type fakeLLMCall struct {
  system string
  user   string
}

type fakeLLMClient struct {
  responses []string
  errs      []error
  calls     []fakeLLMCall
}

func (f *fakeLLMClient) ExtractJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (*LLMResult, error) {
  i := len(f.calls)
  f.calls = append(f.calls, fakeLLMCall{system: system, user: user})
  if i < len(f.errs) && f.errs[i] != nil {
    return nil, f.errs[i]
  }
  if i >= len(f.responses) {
    return nil, errors.New("fake: no response configured")
  }
  return &LLMResult{
    Raw:          f.responses[i],
    Model:        "fake-model",
    Usage:        LLMUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
    FinishReason: "stop",
  }, nil
}

const validPayload = `{"artifacts": [{"title": "Ship the release"}], "quality": {"confidence": 0.8}}`
const invalidPayload = `{"artifacts": [{"title": "Ship the release"}]}`

func mustSchema(t *testing.T) map[string]any {
  t.Helper()
  schema, err := BuildValidationSchema(datatypes.JSON(artifactsOnlySchema))
  if err != nil {
    t.Fatal(err)
  }
  return schema
}

func TestExtractionCycleSucceedsFirstTry(t *testing.T) {
  llm := &fakeLLMClient{responses: []string{validPayload}}
  var recs []ExtractionRecord
  outcome, err := runExtractionCycle(context.Background(), llm, "extract artifacts", "we decided to ship", mustSchema(t), 1,
    func(rec ExtractionRecord) error {
      recs = append(recs, rec)
      return nil
    })
  if err != nil {
    t.Fatalf("runExtractionCycle: %v", err)
  }
  if !outcome.Valid || outcome.Raw != validPayload || outcome.Attempts != 1 {
    t.Fatalf("unexpected outcome: %+v", outcome)
  }
  if len(llm.calls) != 1 {
    t.Fatalf("expected exactly one call, got %d", len(llm.calls))
  }
  if len(recs) != 1 {
    t.Fatalf("expected one record, got %d", len(recs))
  }
  if !recs[0].IsFinal || !recs[0].IsValid || recs[0].IsRepairAttempt || recs[0].Ordinal != 1 {
    t.Fatalf("unexpected record: %+v", recs[0])
  }
}

func TestExtractionCycleRepairsThenSucceeds(t *testing.T) {
  llm := &fakeLLMClient{responses: []string{invalidPayload, validPayload}}
  var recs []ExtractionRecord
  outcome, err := runExtractionCycle(context.Background(), llm, "extract artifacts", "we decided to ship", mustSchema(t), 1,
    func(rec ExtractionRecord) error {
      recs = append(recs, rec)
      return nil
    })
  if err != nil {
    t.Fatalf("runExtractionCycle: %v", err)
  }
  if !outcome.Valid || outcome.Raw != validPayload || outcome.Attempts != 2 {
    t.Fatalf("unexpected outcome: %+v", outcome)
  }
  if len(recs) != 2 {
    t.Fatalf("expected two records, got %d", len(recs))
  }
  first, second := recs[0], recs[1]
  if first.IsFinal || first.IsValid || first.IsRepairAttempt {
    t.Fatalf("first record must be a non-final invalid initial attempt: %+v", first)
  }
  if len(first.ValidationErrors) == 0 {
    t.Fatal("first record must carry the validator's error list")
  }
  if !second.IsRepairAttempt || !second.IsFinal || !second.IsValid || second.Ordinal != 2 {
    t.Fatalf("second record must be the final valid repair: %+v", second)
  }

  repairMsg := llm.calls[1].user
  if !strings.Contains(repairMsg, invalidPayload) {
    t.Error("repair message must include the previous response")
  }
  if !strings.Contains(repairMsg, "quality") {
    t.Error("repair message must include the validation errors")
  }
  if !strings.Contains(repairMsg, "we decided to ship") {
    t.Error("repair message must include the transcript")
  }
}

func TestExtractionCycleStopsAfterOneRepair(t *testing.T) {
  llm := &fakeLLMClient{responses: []string{invalidPayload, invalidPayload}}
  var recs []ExtractionRecord
  outcome, err := runExtractionCycle(context.Background(), llm, "extract artifacts", "transcript", mustSchema(t), 1,
    func(rec ExtractionRecord) error {
      recs = append(recs, rec)
      return nil
    })
  if err != nil {
    t.Fatalf("a second validation failure is an outcome, not an error: %v", err)
  }
  if outcome.Valid {
    t.Fatal("outcome must be invalid")
  }
  if len(outcome.ValidationErrors) == 0 {
    t.Fatal("outcome must carry the final validation errors")
  }
  if len(llm.calls) != 2 {
    t.Fatalf("exactly one repair call is allowed, got %d calls", len(llm.calls))
  }
  if len(recs) != 2 {
    t.Fatalf("expected two records, got %d", len(recs))
  }
  last := recs[1]
  if !last.IsRepairAttempt || !last.IsFinal || last.IsValid {
    t.Fatalf("last record must be a final invalid repair attempt: %+v", last)
  }
}

func TestExtractionCycleWrapsAdapterErrors(t *testing.T) {
  boom := errors.New("upstream 503")
  llm := &fakeLLMClient{errs: []error{boom}}
  _, err := runExtractionCycle(context.Background(), llm, "p", "t", mustSchema(t), 1,
    func(rec ExtractionRecord) error { return nil })
  var callErr *LLMCallError
  if !errors.As(err, &callErr) {
    t.Fatalf("adapter failures must surface as *LLMCallError, got %v", err)
  }
  if !errors.Is(err, boom) {
    t.Fatal("wrapped error must unwrap to the adapter error")
  }
}

func TestExtractionCycleRepairCallErrorIsAdapterError(t *testing.T) {
  boom := errors.New("timeout")
  llm := &fakeLLMClient{responses: []string{invalidPayload}, errs: []error{nil, boom}}
  _, err := runExtractionCycle(context.Background(), llm, "p", "t", mustSchema(t), 1,
    func(rec ExtractionRecord) error { return nil })
  var callErr *LLMCallError
  if !errors.As(err, &callErr) {
    t.Fatalf("repair-call failures must surface as *LLMCallError, got %v", err)
  }
}

func TestExtractionCyclePropagatesRecordErrors(t *testing.T) {
  dbDown := errors.New("db down")
  llm := &fakeLLMClient{responses: []string{validPayload}}
  _, err := runExtractionCycle(context.Background(), llm, "p", "t", mustSchema(t), 1,
    func(rec ExtractionRecord) error { return dbDown })
  if !errors.Is(err, dbDown) {
    t.Fatalf("record failures must propagate unchanged, got %v", err)
  }
  var callErr *LLMCallError
  if errors.As(err, &callErr) {
    t.Fatal("record failures must not be classified as adapter errors")
  }
}
