package types

import (
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"
)

type Meeting struct {
  ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  OwnerUserID uuid.UUID      `gorm:"type:uuid;not null;index" json:"owner_user_id"`
  ScenarioID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"scenario_id"`
  Scenario    *Scenario      `gorm:"foreignKey:ScenarioID;references:ID" json:"scenario,omitempty"`
  Title       string         `gorm:"column:title" json:"title"`
  Status      MeetingStatus  `gorm:"column:status;not null;index" json:"status"`
  UploadBlob  *UploadBlob    `gorm:"constraint:OnDelete:CASCADE;foreignKey:MeetingID;references:ID" json:"upload_blob,omitempty"`
  Transcript  *Transcript    `gorm:"constraint:OnDelete:CASCADE;foreignKey:MeetingID;references:ID" json:"transcript,omitempty"`
  ArtifactSet *ArtifactSet   `gorm:"constraint:OnDelete:CASCADE;foreignKey:MeetingID;references:ID" json:"artifact_set,omitempty"`
  CreatedAt   time.Time      `gorm:"not null;default:now();index" json:"created_at"`
  UpdatedAt   time.Time      `gorm:"not null;default:now()" json:"updated_at"`
  DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Meeting) TableName() string { return "meeting" }
