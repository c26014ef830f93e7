package types

import (
  "time"

  "github.com/google/uuid"
)

type Transcript struct {
  ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  MeetingID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"meeting_id"`
  Text      string    `gorm:"column:text;type:text;not null" json:"text"`
  Language  string    `gorm:"column:language" json:"language"`
  CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Transcript) TableName() string { return "transcript" }
