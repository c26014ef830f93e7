package repos

import (
  "context"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/voxnote/voxnote-backend/internal/logger"
  "github.com/voxnote/voxnote-backend/internal/types"
)

type UploadBlobRepo interface {
  Create(ctx context.Context, tx *gorm.DB, blobs []*types.UploadBlob) ([]*types.UploadBlob, error)
  // GetByMeetingID excludes soft-deleted blobs; a nil result means the
  // meeting has no usable upload.
  GetByMeetingID(ctx context.Context, tx *gorm.DB, meetingID uuid.UUID) (*types.UploadBlob, error)
  ClearExpiry(ctx context.Context, tx *gorm.DB, meetingID uuid.UUID) error
  SoftDeleteByMeetingID(ctx context.Context, tx *gorm.DB, meetingID uuid.UUID) error
}

type uploadBlobRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewUploadBlobRepo(db *gorm.DB, baseLog *logger.Logger) UploadBlobRepo {
  return &uploadBlobRepo{db: db, log: baseLog.With("repo", "UploadBlobRepo")}
}

func (r *uploadBlobRepo) Create(ctx context.Context, tx *gorm.DB, blobs []*types.UploadBlob) ([]*types.UploadBlob, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(blobs) == 0 {
    return []*types.UploadBlob{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&blobs).Error; err != nil {
    return nil, err
  }
  return blobs, nil
}

func (r *uploadBlobRepo) GetByMeetingID(ctx context.Context, tx *gorm.DB, meetingID uuid.UUID) (*types.UploadBlob, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if meetingID == uuid.Nil {
    return nil, nil
  }
  var blob types.UploadBlob
  err := transaction.WithContext(ctx).
    Where("meeting_id = ?", meetingID).
    Limit(1).
    Find(&blob).Error
  if err != nil {
    return nil, err
  }
  if blob.ID == uuid.Nil {
    return nil, nil
  }
  return &blob, nil
}

func (r *uploadBlobRepo) ClearExpiry(ctx context.Context, tx *gorm.DB, meetingID uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if meetingID == uuid.Nil {
    return nil
  }
  return transaction.WithContext(ctx).
    Model(&types.UploadBlob{}).
    Where("meeting_id = ?", meetingID).
    Updates(map[string]interface{}{
      "expires_at": nil,
      "updated_at": time.Now(),
    }).Error
}

func (r *uploadBlobRepo) SoftDeleteByMeetingID(ctx context.Context, tx *gorm.DB, meetingID uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if meetingID == uuid.Nil {
    return nil
  }
  return transaction.WithContext(ctx).
    Where("meeting_id = ?", meetingID).
    Delete(&types.UploadBlob{}).Error
}
