package repos

import (
  "context"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/voxnote/voxnote-backend/internal/logger"
  "github.com/voxnote/voxnote-backend/internal/types"
)

type LLMInteractionRepo interface {
  Append(ctx context.Context, tx *gorm.DB, interaction *types.LLMInteraction) (*types.LLMInteraction, error)
  ListByMeetingID(ctx context.Context, tx *gorm.DB, meetingID uuid.UUID) ([]*types.LLMInteraction, error)
  NextOrdinal(ctx context.Context, tx *gorm.DB, meetingID uuid.UUID) (int, error)
}

type llmInteractionRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewLLMInteractionRepo(db *gorm.DB, baseLog *logger.Logger) LLMInteractionRepo {
  return &llmInteractionRepo{db: db, log: baseLog.With("repo", "LLMInteractionRepo")}
}

func (r *llmInteractionRepo) Append(ctx context.Context, tx *gorm.DB, interaction *types.LLMInteraction) (*types.LLMInteraction, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if interaction == nil {
    return nil, nil
  }
  if interaction.ID == uuid.Nil {
    interaction.ID = uuid.New()
  }
  if interaction.CreatedAt.IsZero() {
    interaction.CreatedAt = time.Now()
  }
  if err := transaction.WithContext(ctx).Create(interaction).Error; err != nil {
    return nil, err
  }
  return interaction, nil
}

func (r *llmInteractionRepo) ListByMeetingID(ctx context.Context, tx *gorm.DB, meetingID uuid.UUID) ([]*types.LLMInteraction, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var out []*types.LLMInteraction
  if meetingID == uuid.Nil {
    return out, nil
  }
  if err := transaction.WithContext(ctx).
    Where("meeting_id = ?", meetingID).
    Order("ordinal ASC").
    Find(&out).Error; err != nil {
    return nil, err
  }
  return out, nil
}

func (r *llmInteractionRepo) NextOrdinal(ctx context.Context, tx *gorm.DB, meetingID uuid.UUID) (int, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var count int64
  if err := transaction.WithContext(ctx).
    Model(&types.LLMInteraction{}).
    Where("meeting_id = ?", meetingID).
    Count(&count).Error; err != nil {
    return 0, err
  }
  return int(count) + 1, nil
}
