package jobs

import (
  "context"
  "errors"
  "testing"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/voxnote/voxnote-backend/internal/logger"
  "github.com/voxnote/voxnote-backend/internal/services"
  "github.com/voxnote/voxnote-backend/internal/types"
)

type fakeJobRepo struct {
  succeeded      []uuid.UUID
  requeued       []uuid.UUID
  failedAttempts []string
  exhaustOn      bool
  heartbeats     int
}

func (f *fakeJobRepo) Enqueue(ctx context.Context, tx *gorm.DB, meetingID uuid.UUID) error {
  return nil
}

func (f *fakeJobRepo) GetByMeetingID(ctx context.Context, tx *gorm.DB, meetingID uuid.UUID) (*types.ProcessingJob, error) {
  return nil, nil
}

func (f *fakeJobRepo) ClaimNextRunnable(ctx context.Context, tx *gorm.DB, staleRunning time.Duration) (*types.ProcessingJob, error) {
  return nil, nil
}

func (f *fakeJobRepo) MarkSucceeded(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
  f.succeeded = append(f.succeeded, id)
  return nil
}

func (f *fakeJobRepo) MarkFailedAttempt(ctx context.Context, tx *gorm.DB, job *types.ProcessingJob, errMsg string, maxAttempts int, baseBackoff time.Duration) (bool, error) {
  f.failedAttempts = append(f.failedAttempts, errMsg)
  return f.exhaustOn || job.Attempts >= maxAttempts, nil
}

func (f *fakeJobRepo) Requeue(ctx context.Context, tx *gorm.DB, id uuid.UUID, delay time.Duration) error {
  f.requeued = append(f.requeued, id)
  return nil
}

func (f *fakeJobRepo) Heartbeat(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
  f.heartbeats++
  return nil
}

type fakeMeetingRepo struct {
  meeting *types.Meeting
}

func (f *fakeMeetingRepo) Create(ctx context.Context, tx *gorm.DB, meetings []*types.Meeting) ([]*types.Meeting, error) {
  return meetings, nil
}

func (f *fakeMeetingRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Meeting, error) {
  return f.meeting, nil
}

func (f *fakeMeetingRepo) GetByIDWithChildren(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Meeting, error) {
  return f.meeting, nil
}

func (f *fakeMeetingRepo) GetByOwner(ctx context.Context, tx *gorm.DB, ownerUserID uuid.UUID) ([]*types.Meeting, error) {
  return nil, nil
}

func (f *fakeMeetingRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status types.MeetingStatus) error {
  return nil
}

func (f *fakeMeetingRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
  return nil
}

func (f *fakeMeetingRepo) SoftDelete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
  return nil
}

type fakeErrorRepo struct {
  created []*types.ProcessingError
}

func (f *fakeErrorRepo) Create(ctx context.Context, tx *gorm.DB, perr *types.ProcessingError) (*types.ProcessingError, error) {
  f.created = append(f.created, perr)
  return perr, nil
}

func (f *fakeErrorRepo) ListByMeetingID(ctx context.Context, tx *gorm.DB, meetingID uuid.UUID) ([]*types.ProcessingError, error) {
  return nil, nil
}

func (f *fakeErrorRepo) ListUnreadByOwner(ctx context.Context, tx *gorm.DB, ownerUserID uuid.UUID) ([]*types.ProcessingError, error) {
  return nil, nil
}

func (f *fakeErrorRepo) MarkRead(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
  return nil
}

type fakeProcessor struct {
  err   error
  panic bool
  calls int
}

func (f *fakeProcessor) ProcessMeeting(ctx context.Context, meetingID uuid.UUID) error {
  f.calls++
  if f.panic {
    panic("boom")
  }
  return f.err
}

func newTestWorker(t *testing.T, jobs *fakeJobRepo, meetings *fakeMeetingRepo, perrs *fakeErrorRepo, proc *fakeProcessor) *Worker {
  t.Helper()
  log, err := logger.New("development")
  if err != nil {
    t.Fatal(err)
  }
  return NewWorker(log, jobs, meetings, perrs, proc, nil)
}

func testJob(attempts int) *types.ProcessingJob {
  meetingID := uuid.New()
  return &types.ProcessingJob{
    ID:        uuid.New(),
    JobKey:    types.ProcessMeetingJobKey(meetingID),
    MeetingID: meetingID,
    Status:    types.JobStatusRunning,
    Attempts:  attempts,
  }
}

func TestRunJobMarksSuccess(t *testing.T) {
  jobs := &fakeJobRepo{}
  proc := &fakeProcessor{}
  w := newTestWorker(t, jobs, &fakeMeetingRepo{}, &fakeErrorRepo{}, proc)

  job := testJob(1)
  w.runJob(context.Background(), job)

  if proc.calls != 1 {
    t.Fatalf("processor called %d times", proc.calls)
  }
  if len(jobs.succeeded) != 1 || jobs.succeeded[0] != job.ID {
    t.Fatal("job must be marked succeeded")
  }
  if len(jobs.failedAttempts) != 0 || len(jobs.requeued) != 0 {
    t.Fatal("successful job must not be failed or requeued")
  }
}

func TestRunJobRequeuesWhenMeetingLocked(t *testing.T) {
  jobs := &fakeJobRepo{}
  proc := &fakeProcessor{err: services.ErrMeetingLocked}
  w := newTestWorker(t, jobs, &fakeMeetingRepo{}, &fakeErrorRepo{}, proc)

  job := testJob(1)
  w.runJob(context.Background(), job)

  if len(jobs.requeued) != 1 {
    t.Fatal("locked meeting must requeue the job")
  }
  if len(jobs.failedAttempts) != 0 {
    t.Fatal("a lock collision must not consume an attempt")
  }
  if len(jobs.succeeded) != 0 {
    t.Fatal("locked job must not be marked succeeded")
  }
}

func TestRunJobRecordsFailedAttempt(t *testing.T) {
  jobs := &fakeJobRepo{}
  proc := &fakeProcessor{err: errors.New("db connection reset")}
  w := newTestWorker(t, jobs, &fakeMeetingRepo{}, &fakeErrorRepo{}, proc)

  w.runJob(context.Background(), testJob(1))

  if len(jobs.failedAttempts) != 1 {
    t.Fatalf("expected one failed attempt, got %d", len(jobs.failedAttempts))
  }
  if jobs.failedAttempts[0] != "db connection reset" {
    t.Fatalf("attempt must record the error, got %q", jobs.failedAttempts[0])
  }
}

func TestRunJobRecordsExhaustion(t *testing.T) {
  jobs := &fakeJobRepo{}
  perrs := &fakeErrorRepo{}
  proc := &fakeProcessor{err: errors.New("redis unavailable")}
  meetingID := uuid.New()
  meetings := &fakeMeetingRepo{meeting: &types.Meeting{ID: meetingID, OwnerUserID: uuid.New()}}
  w := newTestWorker(t, jobs, meetings, perrs, proc)

  job := testJob(3)
  job.MeetingID = meetingID
  w.runJob(context.Background(), job)

  if len(perrs.created) != 1 {
    t.Fatalf("exhaustion must record exactly one error, got %d", len(perrs.created))
  }
  perr := perrs.created[0]
  if perr.Stage != types.ProcessingStageSystem {
    t.Errorf("exhaustion stage = %s, want %s", perr.Stage, types.ProcessingStageSystem)
  }
  if perr.ErrorCode != types.ErrCodeJobAttemptsExhausted {
    t.Errorf("exhaustion code = %s, want %s", perr.ErrorCode, types.ErrCodeJobAttemptsExhausted)
  }
  if perr.MeetingID != meetingID {
    t.Error("exhaustion error must reference the meeting")
  }
}

func TestRunJobRecoversFromPanic(t *testing.T) {
  jobs := &fakeJobRepo{}
  proc := &fakeProcessor{panic: true}
  w := newTestWorker(t, jobs, &fakeMeetingRepo{}, &fakeErrorRepo{}, proc)

  w.runJob(context.Background(), testJob(1))

  if len(jobs.failedAttempts) != 1 {
    t.Fatal("a panicking attempt must be recorded as a failed attempt")
  }
  if len(jobs.succeeded) != 0 {
    t.Fatal("a panicking attempt must not succeed")
  }
}
