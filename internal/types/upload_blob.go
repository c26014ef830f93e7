package types

import (
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"
)

type UploadBlob struct {
  ID         uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  MeetingID  uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"meeting_id"`
  StorageKey string         `gorm:"column:storage_key;not null" json:"storage_key"`
  SizeBytes  int64          `gorm:"column:size_bytes" json:"size_bytes"`
  MimeType   string         `gorm:"column:mime_type" json:"mime_type"`
  ExpiresAt  *time.Time     `gorm:"column:expires_at" json:"expires_at,omitempty"`
  CreatedAt  time.Time      `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt  time.Time      `gorm:"not null;default:now()" json:"updated_at"`
  DeletedAt  gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (UploadBlob) TableName() string { return "upload_blob" }
