package types

import (
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
)

// LLMInteraction is an append-only log of every extraction call made for a
// meeting. IsValid stays nil until the response has been run through the
// schema validator; IsFinal marks the attempt whose outcome decided the
// meeting's LLM stage.
type LLMInteraction struct {
  ID              uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  MeetingID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"meeting_id"`
  Ordinal         int            `gorm:"column:ordinal;not null" json:"ordinal"`
  IsRepairAttempt bool           `gorm:"column:is_repair_attempt;not null;default:false" json:"is_repair_attempt"`
  IsFinal         bool           `gorm:"column:is_final;not null;default:false" json:"is_final"`
  IsValid         *bool          `gorm:"column:is_valid" json:"is_valid,omitempty"`
  Model           string         `gorm:"column:model" json:"model"`
  RawResponse     string         `gorm:"column:raw_response;type:text" json:"raw_response"`
  Usage           datatypes.JSON `gorm:"type:jsonb;column:usage" json:"usage"`
  FinishReason    string         `gorm:"column:finish_reason" json:"finish_reason"`
  CreatedAt       time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (LLMInteraction) TableName() string { return "llm_interaction" }
