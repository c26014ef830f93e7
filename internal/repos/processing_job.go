package repos

import (
  "context"
  "errors"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"
  "gorm.io/gorm/clause"

  "github.com/voxnote/voxnote-backend/internal/logger"
  "github.com/voxnote/voxnote-backend/internal/types"
)

type ProcessingJobRepo interface {
  // Enqueue is idempotent on the job key: while a job for the meeting is
  // queued or running the call is a no-op; a finished (succeeded/exhausted)
  // row is recycled back to queued with a fresh attempt budget.
  Enqueue(ctx context.Context, tx *gorm.DB, meetingID uuid.UUID) error
  GetByMeetingID(ctx context.Context, tx *gorm.DB, meetingID uuid.UUID) (*types.ProcessingJob, error)
  // ClaimNextRunnable picks one due job (queued and past next_run_at, or
  // running with a stale heartbeat) under FOR UPDATE SKIP LOCKED, marks it
  // running and increments attempts.
  ClaimNextRunnable(ctx context.Context, tx *gorm.DB, staleRunning time.Duration) (*types.ProcessingJob, error)
  MarkSucceeded(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
  // MarkFailedAttempt reschedules the job with exponential backoff, or marks
  // it exhausted once attempts reach maxAttempts. Returns true on exhaustion.
  MarkFailedAttempt(ctx context.Context, tx *gorm.DB, job *types.ProcessingJob, errMsg string, maxAttempts int, baseBackoff time.Duration) (bool, error)
  // Requeue puts a claimed job back without consuming the attempt; used when
  // the meeting lock was held by another worker.
  Requeue(ctx context.Context, tx *gorm.DB, id uuid.UUID, delay time.Duration) error
  Heartbeat(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type processingJobRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewProcessingJobRepo(db *gorm.DB, baseLog *logger.Logger) ProcessingJobRepo {
  return &processingJobRepo{db: db, log: baseLog.With("repo", "ProcessingJobRepo")}
}

// BackoffDelay returns the delay before the given (1-based) attempt is
// redelivered: baseBackoff doubled per prior failure (2s, 4s, 8s, ...).
func BackoffDelay(attempt int, baseBackoff time.Duration) time.Duration {
  if attempt < 1 {
    attempt = 1
  }
  d := baseBackoff
  for i := 1; i < attempt; i++ {
    d *= 2
  }
  return d
}

func (r *processingJobRepo) Enqueue(ctx context.Context, tx *gorm.DB, meetingID uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if meetingID == uuid.Nil {
    return nil
  }
  now := time.Now()
  job := &types.ProcessingJob{
    ID:        uuid.New(),
    JobKey:    types.ProcessMeetingJobKey(meetingID),
    MeetingID: meetingID,
    Status:    types.JobStatusQueued,
    Attempts:  0,
    NextRunAt: now,
    CreatedAt: now,
    UpdatedAt: now,
  }
  // ON CONFLICT on the key: recycle only finished rows; an active row wins
  // and the insert collapses into a no-op.
  return transaction.WithContext(ctx).
    Clauses(clause.OnConflict{
      Columns: []clause.Column{{Name: "job_key"}},
      DoUpdates: clause.Assignments(map[string]interface{}{
        "status":       types.JobStatusQueued,
        "attempts":     0,
        "last_error":   "",
        "next_run_at":  now,
        "locked_at":    nil,
        "heartbeat_at": nil,
        "updated_at":   now,
      }),
      Where: clause.Where{Exprs: []clause.Expression{
        gorm.Expr("processing_job.status IN ?", []string{types.JobStatusSucceeded, types.JobStatusExhausted}),
      }},
    }).
    Create(job).Error
}

func (r *processingJobRepo) GetByMeetingID(ctx context.Context, tx *gorm.DB, meetingID uuid.UUID) (*types.ProcessingJob, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if meetingID == uuid.Nil {
    return nil, nil
  }
  var job types.ProcessingJob
  err := transaction.WithContext(ctx).
    Where("job_key = ?", types.ProcessMeetingJobKey(meetingID)).
    Limit(1).
    Find(&job).Error
  if err != nil {
    return nil, err
  }
  if job.ID == uuid.Nil {
    return nil, nil
  }
  return &job, nil
}

func (r *processingJobRepo) ClaimNextRunnable(ctx context.Context, tx *gorm.DB, staleRunning time.Duration) (*types.ProcessingJob, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  now := time.Now()
  staleCutoff := now.Add(-staleRunning)
  var claimed *types.ProcessingJob
  err := transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
    var job types.ProcessingJob
    q := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
      Where(`
        (
          (status = ? AND next_run_at <= ?)
          OR (
            status = ?
            AND heartbeat_at IS NOT NULL
            AND heartbeat_at < ?
          )
        )
      `, types.JobStatusQueued, now, types.JobStatusRunning, staleCutoff).
      Order("next_run_at ASC")
    qErr := q.First(&job).Error
    if errors.Is(qErr, gorm.ErrRecordNotFound) {
      return nil
    }
    if qErr != nil {
      return qErr
    }
    uErr := txx.Model(&types.ProcessingJob{}).
      Where("id = ?", job.ID).
      Updates(map[string]interface{}{
        "status":       types.JobStatusRunning,
        "attempts":     gorm.Expr("attempts + 1"),
        "locked_at":    now,
        "heartbeat_at": now,
        "updated_at":   now,
      }).Error
    if uErr != nil {
      return uErr
    }
    job.Status = types.JobStatusRunning
    job.Attempts++
    claimed = &job
    return nil
  })
  if err != nil {
    return nil, err
  }
  return claimed, nil
}

func (r *processingJobRepo) MarkSucceeded(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if id == uuid.Nil {
    return nil
  }
  now := time.Now()
  return transaction.WithContext(ctx).
    Model(&types.ProcessingJob{}).
    Where("id = ?", id).
    Updates(map[string]interface{}{
      "status":     types.JobStatusSucceeded,
      "last_error": "",
      "locked_at":  nil,
      "updated_at": now,
    }).Error
}

func (r *processingJobRepo) MarkFailedAttempt(ctx context.Context, tx *gorm.DB, job *types.ProcessingJob, errMsg string, maxAttempts int, baseBackoff time.Duration) (bool, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if job == nil || job.ID == uuid.Nil {
    return false, nil
  }
  now := time.Now()
  if job.Attempts >= maxAttempts {
    err := transaction.WithContext(ctx).
      Model(&types.ProcessingJob{}).
      Where("id = ?", job.ID).
      Updates(map[string]interface{}{
        "status":     types.JobStatusExhausted,
        "last_error": errMsg,
        "locked_at":  nil,
        "updated_at": now,
      }).Error
    return true, err
  }
  err := transaction.WithContext(ctx).
    Model(&types.ProcessingJob{}).
    Where("id = ?", job.ID).
    Updates(map[string]interface{}{
      "status":      types.JobStatusQueued,
      "last_error":  errMsg,
      "next_run_at": now.Add(BackoffDelay(job.Attempts, baseBackoff)),
      "locked_at":   nil,
      "updated_at":  now,
    }).Error
  return false, err
}

func (r *processingJobRepo) Requeue(ctx context.Context, tx *gorm.DB, id uuid.UUID, delay time.Duration) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if id == uuid.Nil {
    return nil
  }
  now := time.Now()
  return transaction.WithContext(ctx).
    Model(&types.ProcessingJob{}).
    Where("id = ?", id).
    Updates(map[string]interface{}{
      "status":      types.JobStatusQueued,
      "attempts":    gorm.Expr("GREATEST(attempts - 1, 0)"),
      "next_run_at": now.Add(delay),
      "locked_at":   nil,
      "updated_at":  now,
    }).Error
}

func (r *processingJobRepo) Heartbeat(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if id == uuid.Nil {
    return nil
  }
  now := time.Now()
  return transaction.WithContext(ctx).
    Model(&types.ProcessingJob{}).
    Where("id = ? AND status = ?", id, types.JobStatusRunning).
    Updates(map[string]interface{}{
      "heartbeat_at": now,
      "updated_at":   now,
    }).Error
}
