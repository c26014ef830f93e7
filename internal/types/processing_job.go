package types

import (
  "fmt"
  "time"

  "github.com/google/uuid"
)

const (
  JobStatusQueued    = "queued"
  JobStatusRunning   = "running"
  JobStatusSucceeded = "succeeded"
  JobStatusExhausted = "exhausted"
)

// ProcessingJob is one durable queue entry per meeting. JobKey is the
// idempotency key: a unique index on it makes re-enqueue of a queued or
// running meeting a no-op.
type ProcessingJob struct {
  ID          uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  JobKey      string     `gorm:"column:job_key;not null;uniqueIndex" json:"job_key"`
  MeetingID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"meeting_id"`
  Status      string     `gorm:"column:status;not null;index" json:"status"`
  Attempts    int        `gorm:"column:attempts;not null;default:0" json:"attempts"`
  LastError   string     `gorm:"column:last_error" json:"last_error"`
  NextRunAt   time.Time  `gorm:"column:next_run_at;not null;index" json:"next_run_at"`
  LockedAt    *time.Time `gorm:"column:locked_at" json:"locked_at,omitempty"`
  HeartbeatAt *time.Time `gorm:"column:heartbeat_at" json:"heartbeat_at,omitempty"`
  CreatedAt   time.Time  `gorm:"not null;default:now();index" json:"created_at"`
  UpdatedAt   time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (ProcessingJob) TableName() string { return "processing_job" }

func ProcessMeetingJobKey(meetingID uuid.UUID) string {
  return fmt.Sprintf("process-meeting-%s", meetingID)
}
