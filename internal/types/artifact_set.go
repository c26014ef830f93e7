package types

import (
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
)

// ArtifactSet holds the schema-validated `{artifacts, quality}` payload the
// extraction stage produced for a meeting. Written only after validation.
type ArtifactSet struct {
  ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  MeetingID uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"meeting_id"`
  Payload   datatypes.JSON `gorm:"type:jsonb;column:payload;not null" json:"payload"`
  CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (ArtifactSet) TableName() string { return "artifact_set" }
