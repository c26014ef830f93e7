package jobs

import (
  "context"
  "errors"
  "fmt"
  "time"

  "github.com/google/uuid"

  "github.com/voxnote/voxnote-backend/internal/logger"
  "github.com/voxnote/voxnote-backend/internal/repos"
  "github.com/voxnote/voxnote-backend/internal/services"
  "github.com/voxnote/voxnote-backend/internal/types"
  "github.com/voxnote/voxnote-backend/internal/utils"
)

// MeetingProcessor is the part of the processing service the worker drives.
type MeetingProcessor interface {
  ProcessMeeting(ctx context.Context, meetingID uuid.UUID) error
}

// Worker polls the processing_job table and runs meeting pipelines with
// bounded concurrency. Delivery retries (attempts, backoff, exhaustion) live
// here and in the job repo; pipeline-stage failures are the processor's
// business and never consume attempts.
type Worker struct {
  log        *logger.Logger
  jobs       repos.ProcessingJobRepo
  meetings   repos.MeetingRepo
  procErrors repos.ProcessingErrorRepo
  processor  MeetingProcessor
  notifier   services.ProcessingNotifier

  concurrency    int
  pollInterval   time.Duration
  maxAttempts    int
  baseBackoff    time.Duration
  staleRunning   time.Duration
  heartbeatEvery time.Duration
}

func NewWorker(
  baseLog *logger.Logger,
  jobs repos.ProcessingJobRepo,
  meetings repos.MeetingRepo,
  procErrors repos.ProcessingErrorRepo,
  processor MeetingProcessor,
  notifier services.ProcessingNotifier,
) *Worker {
  log := baseLog.With("component", "ProcessingWorker")
  return &Worker{
    log:            log,
    jobs:           jobs,
    meetings:       meetings,
    procErrors:     procErrors,
    processor:      processor,
    notifier:       notifier,
    concurrency:    utils.GetEnvAsInt("WORKER_CONCURRENCY", 5, log),
    pollInterval:   utils.GetEnvAsDuration("WORKER_POLL_INTERVAL", time.Second, log),
    maxAttempts:    utils.GetEnvAsInt("JOB_MAX_ATTEMPTS", 3, log),
    baseBackoff:    utils.GetEnvAsDuration("JOB_BASE_BACKOFF", 2*time.Second, log),
    staleRunning:   utils.GetEnvAsDuration("JOB_STALE_RUNNING", 10*time.Minute, log),
    heartbeatEvery: utils.GetEnvAsDuration("JOB_HEARTBEAT_INTERVAL", 30*time.Second, log),
  }
}

// Start launches the poll loop and returns immediately. The loop stops when
// ctx is cancelled; in-flight jobs finish on their own timeouts.
func (w *Worker) Start(ctx context.Context) {
  go w.run(ctx)
}

func (w *Worker) run(ctx context.Context) {
  w.log.Info("Processing worker started", "concurrency", w.concurrency, "pollInterval", w.pollInterval)
  sem := make(chan struct{}, w.concurrency)
  ticker := time.NewTicker(w.pollInterval)
  defer ticker.Stop()

  for {
    select {
    case <-ctx.Done():
      w.log.Info("Processing worker stopping")
      return
    case <-ticker.C:
    }
    w.drain(ctx, sem)
  }
}

// drain claims runnable jobs until the queue is empty or every slot is busy.
func (w *Worker) drain(ctx context.Context, sem chan struct{}) {
  for {
    select {
    case sem <- struct{}{}:
    default:
      return
    }

    job, err := w.jobs.ClaimNextRunnable(ctx, nil, w.staleRunning)
    if err != nil {
      w.log.Error("Failed to claim job", "error", err)
      <-sem
      return
    }
    if job == nil {
      <-sem
      return
    }

    go func(job *types.ProcessingJob) {
      defer func() { <-sem }()
      w.runJob(ctx, job)
    }(job)
  }
}

func (w *Worker) runJob(ctx context.Context, job *types.ProcessingJob) {
  log := w.log.With("jobKey", job.JobKey, "meetingID", job.MeetingID, "attempt", job.Attempts)
  log.Info("Job claimed")

  hbCtx, stopHeartbeat := context.WithCancel(ctx)
  defer stopHeartbeat()
  go w.heartbeatLoop(hbCtx, job.ID)

  err := w.invoke(ctx, job.MeetingID)

  switch {
  case err == nil:
    if mErr := w.jobs.MarkSucceeded(ctx, nil, job.ID); mErr != nil {
      log.Error("Failed to mark job succeeded", "error", mErr)
      return
    }
    log.Info("Job finished")

  case errors.Is(err, services.ErrMeetingLocked):
    // another worker owns the meeting; come back later without burning
    // an attempt
    log.Info("Meeting locked elsewhere; requeueing job")
    if rErr := w.jobs.Requeue(ctx, nil, job.ID, w.baseBackoff); rErr != nil {
      log.Error("Failed to requeue locked job", "error", rErr)
    }

  default:
    log.Warn("Job attempt failed", "error", err)
    exhausted, mErr := w.jobs.MarkFailedAttempt(ctx, nil, job, err.Error(), w.maxAttempts, w.baseBackoff)
    if mErr != nil {
      log.Error("Failed to record job failure", "error", mErr)
      return
    }
    if exhausted {
      w.recordExhaustion(ctx, job, err)
    }
  }
}

// invoke shields the poll loop from processor panics; a panicking attempt is
// a failed attempt, not a dead worker.
func (w *Worker) invoke(ctx context.Context, meetingID uuid.UUID) (err error) {
  defer func() {
    if r := recover(); r != nil {
      err = fmt.Errorf("panic while processing meeting %s: %v", meetingID, r)
      w.log.Error("Recovered from processing panic", "meetingID", meetingID, "panic", r)
    }
  }()
  return w.processor.ProcessMeeting(ctx, meetingID)
}

// recordExhaustion leaves the meeting in whatever status it reached and
// records the queue giving up as a system-stage error for manual retry.
func (w *Worker) recordExhaustion(ctx context.Context, job *types.ProcessingJob, cause error) {
  log := w.log.With("jobKey", job.JobKey, "meetingID", job.MeetingID)
  log.Error("Job attempts exhausted", "attempts", job.Attempts, "error", cause)

  perr := &types.ProcessingError{
    ID:         uuid.New(),
    MeetingID:  job.MeetingID,
    Stage:      types.ProcessingStageSystem,
    ErrorCode:  types.ErrCodeJobAttemptsExhausted,
    Message:    fmt.Sprintf("processing abandoned after %d attempts: %v", job.Attempts, cause),
    OccurredAt: time.Now(),
  }
  if _, err := w.procErrors.Create(ctx, nil, perr); err != nil {
    log.Error("Failed to record exhaustion error", "error", err)
    return
  }
  if w.notifier == nil {
    return
  }
  meeting, err := w.meetings.GetByID(ctx, nil, job.MeetingID)
  if err != nil || meeting == nil {
    return
  }
  w.notifier.ProcessingErrorRecorded(ctx, meeting, perr)
}

func (w *Worker) heartbeatLoop(ctx context.Context, jobID uuid.UUID) {
  ticker := time.NewTicker(w.heartbeatEvery)
  defer ticker.Stop()
  for {
    select {
    case <-ctx.Done():
      return
    case <-ticker.C:
      if err := w.jobs.Heartbeat(ctx, nil, jobID); err != nil {
        w.log.Warn("Job heartbeat failed", "jobID", jobID, "error", err)
      }
    }
  }
}
