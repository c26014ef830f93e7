package repos

import (
  "context"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/voxnote/voxnote-backend/internal/logger"
  "github.com/voxnote/voxnote-backend/internal/types"
)

type TranscriptRepo interface {
  Create(ctx context.Context, tx *gorm.DB, transcripts []*types.Transcript) ([]*types.Transcript, error)
  GetByMeetingID(ctx context.Context, tx *gorm.DB, meetingID uuid.UUID) (*types.Transcript, error)
  // DeleteByMeetingID is a hard delete; retry recreates the transcript from
  // scratch. No-op when none exists.
  DeleteByMeetingID(ctx context.Context, tx *gorm.DB, meetingID uuid.UUID) error
}

type transcriptRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewTranscriptRepo(db *gorm.DB, baseLog *logger.Logger) TranscriptRepo {
  return &transcriptRepo{db: db, log: baseLog.With("repo", "TranscriptRepo")}
}

func (r *transcriptRepo) Create(ctx context.Context, tx *gorm.DB, transcripts []*types.Transcript) ([]*types.Transcript, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(transcripts) == 0 {
    return []*types.Transcript{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&transcripts).Error; err != nil {
    return nil, err
  }
  return transcripts, nil
}

func (r *transcriptRepo) GetByMeetingID(ctx context.Context, tx *gorm.DB, meetingID uuid.UUID) (*types.Transcript, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if meetingID == uuid.Nil {
    return nil, nil
  }
  var tr types.Transcript
  err := transaction.WithContext(ctx).
    Where("meeting_id = ?", meetingID).
    Limit(1).
    Find(&tr).Error
  if err != nil {
    return nil, err
  }
  if tr.ID == uuid.Nil {
    return nil, nil
  }
  return &tr, nil
}

func (r *transcriptRepo) DeleteByMeetingID(ctx context.Context, tx *gorm.DB, meetingID uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if meetingID == uuid.Nil {
    return nil
  }
  return transaction.WithContext(ctx).
    Where("meeting_id = ?", meetingID).
    Delete(&types.Transcript{}).Error
}
