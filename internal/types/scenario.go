package types

import (
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"
)

// Scenario configures extraction for a class of meetings: the prompt, the
// keyterms fed to transcription, and the JSON schema the LLM output must
// satisfy. OutputSchema comes in two historical shapes; see
// services.BuildValidationSchema.
type Scenario struct {
  ID           uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  Name         string         `gorm:"column:name;not null" json:"name"`
  Prompt       string         `gorm:"column:prompt;type:text;not null" json:"prompt"`
  Keyterms     datatypes.JSON `gorm:"type:jsonb;column:keyterms" json:"keyterms"`
  OutputSchema datatypes.JSON `gorm:"type:jsonb;column:output_schema;not null" json:"output_schema"`
  CreatedAt    time.Time      `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt    time.Time      `gorm:"not null;default:now()" json:"updated_at"`
  DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Scenario) TableName() string { return "scenario" }
