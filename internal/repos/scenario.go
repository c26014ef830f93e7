package repos

import (
  "context"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/voxnote/voxnote-backend/internal/logger"
  "github.com/voxnote/voxnote-backend/internal/types"
)

type ScenarioRepo interface {
  Create(ctx context.Context, tx *gorm.DB, scenarios []*types.Scenario) ([]*types.Scenario, error)
  GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Scenario, error)
}

type scenarioRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewScenarioRepo(db *gorm.DB, baseLog *logger.Logger) ScenarioRepo {
  return &scenarioRepo{db: db, log: baseLog.With("repo", "ScenarioRepo")}
}

func (r *scenarioRepo) Create(ctx context.Context, tx *gorm.DB, scenarios []*types.Scenario) ([]*types.Scenario, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(scenarios) == 0 {
    return []*types.Scenario{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&scenarios).Error; err != nil {
    return nil, err
  }
  return scenarios, nil
}

func (r *scenarioRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Scenario, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if id == uuid.Nil {
    return nil, nil
  }
  var sc types.Scenario
  err := transaction.WithContext(ctx).
    Where("id = ?", id).
    Limit(1).
    Find(&sc).Error
  if err != nil {
    return nil, err
  }
  if sc.ID == uuid.Nil {
    return nil, nil
  }
  return &sc, nil
}
