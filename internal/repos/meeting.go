package repos

import (
  "context"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/voxnote/voxnote-backend/internal/logger"
  "github.com/voxnote/voxnote-backend/internal/types"
)

type MeetingRepo interface {
  Create(ctx context.Context, tx *gorm.DB, meetings []*types.Meeting) ([]*types.Meeting, error)
  GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Meeting, error)
  GetByIDWithChildren(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Meeting, error)
  GetByOwner(ctx context.Context, tx *gorm.DB, ownerUserID uuid.UUID) ([]*types.Meeting, error)
  UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status types.MeetingStatus) error
  UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
  SoftDelete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type meetingRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewMeetingRepo(db *gorm.DB, baseLog *logger.Logger) MeetingRepo {
  return &meetingRepo{db: db, log: baseLog.With("repo", "MeetingRepo")}
}

func (r *meetingRepo) Create(ctx context.Context, tx *gorm.DB, meetings []*types.Meeting) ([]*types.Meeting, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(meetings) == 0 {
    return []*types.Meeting{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&meetings).Error; err != nil {
    return nil, err
  }
  return meetings, nil
}

func (r *meetingRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Meeting, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if id == uuid.Nil {
    return nil, nil
  }
  var m types.Meeting
  err := transaction.WithContext(ctx).
    Where("id = ?", id).
    Limit(1).
    Find(&m).Error
  if err != nil {
    return nil, err
  }
  if m.ID == uuid.Nil {
    return nil, nil
  }
  return &m, nil
}

func (r *meetingRepo) GetByIDWithChildren(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Meeting, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if id == uuid.Nil {
    return nil, nil
  }
  var m types.Meeting
  err := transaction.WithContext(ctx).
    Preload("Scenario").
    Preload("UploadBlob").
    Preload("Transcript").
    Preload("ArtifactSet").
    Where("id = ?", id).
    Limit(1).
    Find(&m).Error
  if err != nil {
    return nil, err
  }
  if m.ID == uuid.Nil {
    return nil, nil
  }
  return &m, nil
}

func (r *meetingRepo) GetByOwner(ctx context.Context, tx *gorm.DB, ownerUserID uuid.UUID) ([]*types.Meeting, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var out []*types.Meeting
  if ownerUserID == uuid.Nil {
    return out, nil
  }
  if err := transaction.WithContext(ctx).
    Where("owner_user_id = ?", ownerUserID).
    Order("created_at DESC").
    Find(&out).Error; err != nil {
    return nil, err
  }
  return out, nil
}

func (r *meetingRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status types.MeetingStatus) error {
  return r.UpdateFields(ctx, tx, id, map[string]interface{}{"status": status})
}

func (r *meetingRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if id == uuid.Nil {
    return nil
  }
  if updates == nil {
    updates = map[string]interface{}{}
  }
  if _, ok := updates["updated_at"]; !ok {
    updates["updated_at"] = time.Now()
  }
  return transaction.WithContext(ctx).
    Model(&types.Meeting{}).
    Where("id = ?", id).
    Updates(updates).Error
}

func (r *meetingRepo) SoftDelete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if id == uuid.Nil {
    return nil
  }
  return transaction.WithContext(ctx).
    Where("id = ?", id).
    Delete(&types.Meeting{}).Error
}
