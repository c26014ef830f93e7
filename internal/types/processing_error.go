package types

import (
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
)

const (
  ProcessingStageTranscription = "transcription"
  ProcessingStageLLM           = "llm"
  ProcessingStageSystem        = "system"
)

const (
  ErrCodeTranscriptionFailed    = "TRANSCRIPTION_FAILED"
  ErrCodeLLMCallFailed          = "LLM_CALL_FAILED"
  ErrCodeSchemaValidationFailed = "SCHEMA_VALIDATION_FAILED"
  ErrCodeJobAttemptsExhausted   = "JOB_ATTEMPTS_EXHAUSTED"
  ErrCodeSystemFailure          = "SYSTEM_FAILURE"
)

// ProcessingError is append-only; only IsRead ever changes after insert.
type ProcessingError struct {
  ID         uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  MeetingID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"meeting_id"`
  Stage      string         `gorm:"column:stage;not null;index" json:"stage"`
  ErrorCode  string         `gorm:"column:error_code;not null" json:"error_code"`
  Message    string         `gorm:"column:message;type:text" json:"message"`
  Details    datatypes.JSON `gorm:"type:jsonb;column:details" json:"details,omitempty"`
  OccurredAt time.Time      `gorm:"column:occurred_at;not null;index" json:"occurred_at"`
  IsRead     bool           `gorm:"column:is_read;not null;default:false" json:"is_read"`
}

func (ProcessingError) TableName() string { return "processing_error" }
