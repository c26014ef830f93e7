package repos

import (
  "context"
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"
  "gorm.io/gorm/clause"

  "github.com/voxnote/voxnote-backend/internal/logger"
  "github.com/voxnote/voxnote-backend/internal/types"
)

type ArtifactSetRepo interface {
  // Upsert replaces any existing payload for the meeting; a retried
  // extraction overwrites the previous artifacts.
  Upsert(ctx context.Context, tx *gorm.DB, meetingID uuid.UUID, payload datatypes.JSON) (*types.ArtifactSet, error)
  DeleteByMeetingID(ctx context.Context, tx *gorm.DB, meetingID uuid.UUID) error
}

type artifactSetRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewArtifactSetRepo(db *gorm.DB, baseLog *logger.Logger) ArtifactSetRepo {
  return &artifactSetRepo{db: db, log: baseLog.With("repo", "ArtifactSetRepo")}
}

func (r *artifactSetRepo) Upsert(ctx context.Context, tx *gorm.DB, meetingID uuid.UUID, payload datatypes.JSON) (*types.ArtifactSet, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  now := time.Now()
  set := &types.ArtifactSet{
    ID:        uuid.New(),
    MeetingID: meetingID,
    Payload:   payload,
    CreatedAt: now,
    UpdatedAt: now,
  }
  err := transaction.WithContext(ctx).
    Clauses(clause.OnConflict{
      Columns:   []clause.Column{{Name: "meeting_id"}},
      DoUpdates: clause.Assignments(map[string]interface{}{"payload": payload, "updated_at": now}),
    }).
    Create(set).Error
  if err != nil {
    return nil, err
  }
  return set, nil
}

func (r *artifactSetRepo) DeleteByMeetingID(ctx context.Context, tx *gorm.DB, meetingID uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if meetingID == uuid.Nil {
    return nil
  }
  return transaction.WithContext(ctx).
    Where("meeting_id = ?", meetingID).
    Delete(&types.ArtifactSet{}).Error
}
