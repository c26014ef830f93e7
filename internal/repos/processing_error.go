package repos

import (
  "context"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/voxnote/voxnote-backend/internal/logger"
  "github.com/voxnote/voxnote-backend/internal/types"
)

type ProcessingErrorRepo interface {
  Create(ctx context.Context, tx *gorm.DB, perr *types.ProcessingError) (*types.ProcessingError, error)
  ListByMeetingID(ctx context.Context, tx *gorm.DB, meetingID uuid.UUID) ([]*types.ProcessingError, error)
  ListUnreadByOwner(ctx context.Context, tx *gorm.DB, ownerUserID uuid.UUID) ([]*types.ProcessingError, error)
  MarkRead(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type processingErrorRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewProcessingErrorRepo(db *gorm.DB, baseLog *logger.Logger) ProcessingErrorRepo {
  return &processingErrorRepo{db: db, log: baseLog.With("repo", "ProcessingErrorRepo")}
}

func (r *processingErrorRepo) Create(ctx context.Context, tx *gorm.DB, perr *types.ProcessingError) (*types.ProcessingError, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if perr == nil {
    return nil, nil
  }
  if perr.ID == uuid.Nil {
    perr.ID = uuid.New()
  }
  if perr.OccurredAt.IsZero() {
    perr.OccurredAt = time.Now()
  }
  if err := transaction.WithContext(ctx).Create(perr).Error; err != nil {
    return nil, err
  }
  return perr, nil
}

func (r *processingErrorRepo) ListByMeetingID(ctx context.Context, tx *gorm.DB, meetingID uuid.UUID) ([]*types.ProcessingError, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var out []*types.ProcessingError
  if meetingID == uuid.Nil {
    return out, nil
  }
  if err := transaction.WithContext(ctx).
    Where("meeting_id = ?", meetingID).
    Order("occurred_at DESC").
    Find(&out).Error; err != nil {
    return nil, err
  }
  return out, nil
}

func (r *processingErrorRepo) ListUnreadByOwner(ctx context.Context, tx *gorm.DB, ownerUserID uuid.UUID) ([]*types.ProcessingError, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var out []*types.ProcessingError
  if ownerUserID == uuid.Nil {
    return out, nil
  }
  if err := transaction.WithContext(ctx).
    Joins("JOIN meeting ON meeting.id = processing_error.meeting_id").
    Where("meeting.owner_user_id = ? AND processing_error.is_read = false", ownerUserID).
    Order("processing_error.occurred_at DESC").
    Find(&out).Error; err != nil {
    return nil, err
  }
  return out, nil
}

func (r *processingErrorRepo) MarkRead(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if id == uuid.Nil {
    return nil
  }
  return transaction.WithContext(ctx).
    Model(&types.ProcessingError{}).
    Where("id = ?", id).
    Update("is_read", true).Error
}
