package services

import (
  "context"
  "encoding/json"
  "errors"
  "fmt"
  "net/http"
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"

  "github.com/voxnote/voxnote-backend/internal/apierr"
  "github.com/voxnote/voxnote-backend/internal/clients/redis"
  "github.com/voxnote/voxnote-backend/internal/logger"
  "github.com/voxnote/voxnote-backend/internal/repos"
  "github.com/voxnote/voxnote-backend/internal/types"
  "github.com/voxnote/voxnote-backend/internal/utils"
)

// ErrMeetingLocked signals that another worker currently holds the meeting's
// lock. The job should be rescheduled, not failed.
var ErrMeetingLocked = errors.New("meeting is locked by another worker")

type ProcessingService interface {
  // CompleteUpload confirms the recording landed in the bucket and enqueues
  // the pipeline. Refused unless the meeting is still in Uploaded.
  CompleteUpload(ctx context.Context, ownerUserID, meetingID uuid.UUID) (*types.Meeting, error)
  // Retry re-enters a Failed_* meeting into the pipeline. The resume point
  // depends on whether a transcript survived; everything it mutates happens
  // in one transaction.
  Retry(ctx context.Context, ownerUserID, meetingID uuid.UUID) (*types.Meeting, error)
  // ProcessMeeting runs the pipeline stages for one meeting under the
  // meeting lock. A returned error means the attempt failed for
  // infrastructure reasons and the job should be retried; adapter failures
  // are absorbed into Failed_* status plus a ProcessingError and return nil.
  ProcessMeeting(ctx context.Context, meetingID uuid.UUID) error
}

type processingService struct {
  log          *logger.Logger
  db           *gorm.DB
  meetings     repos.MeetingRepo
  blobs        repos.UploadBlobRepo
  transcripts  repos.TranscriptRepo
  artifacts    repos.ArtifactSetRepo
  interactions repos.LLMInteractionRepo
  procErrors   repos.ProcessingErrorRepo
  jobs         repos.ProcessingJobRepo

  bucket        BucketService
  transcription TranscriptionService
  llm           LLMClient
  locks         redis.MeetingLockService
  notifier      ProcessingNotifier

  lockTTL time.Duration
}

func NewProcessingService(
  baseLog *logger.Logger,
  db *gorm.DB,
  meetings repos.MeetingRepo,
  blobs repos.UploadBlobRepo,
  transcripts repos.TranscriptRepo,
  artifacts repos.ArtifactSetRepo,
  interactions repos.LLMInteractionRepo,
  procErrors repos.ProcessingErrorRepo,
  jobs repos.ProcessingJobRepo,
  bucket BucketService,
  transcription TranscriptionService,
  llm LLMClient,
  locks redis.MeetingLockService,
  notifier ProcessingNotifier,
) ProcessingService {
  log := baseLog.With("service", "ProcessingService")
  return &processingService{
    log:           log,
    db:            db,
    meetings:      meetings,
    blobs:         blobs,
    transcripts:   transcripts,
    artifacts:     artifacts,
    interactions:  interactions,
    procErrors:    procErrors,
    jobs:          jobs,
    bucket:        bucket,
    transcription: transcription,
    llm:           llm,
    locks:         locks,
    notifier:      notifier,
    lockTTL:       utils.GetEnvAsDuration("MEETING_LOCK_TTL", 45*time.Minute, log),
  }
}

// guardCompleteUpload decides whether an upload confirmation may enqueue
// processing. A nil blob covers both missing and soft-deleted blobs; the
// blob repo never returns soft-deleted rows.
func guardCompleteUpload(meetingID, ownerUserID uuid.UUID, m *types.Meeting, blob *types.UploadBlob) error {
  if m == nil || m.OwnerUserID != ownerUserID {
    return apierr.New(http.StatusNotFound, apierr.CodeMeetingNotFound, fmt.Errorf("meeting %s not found", meetingID))
  }
  if m.Status != types.MeetingStatusUploaded {
    return apierr.New(http.StatusConflict, apierr.CodeMeetingNotInUploadedState,
      fmt.Errorf("meeting %s is %s, expected %s", meetingID, m.Status, types.MeetingStatusUploaded))
  }
  if blob == nil {
    return apierr.New(http.StatusConflict, apierr.CodeUploadBlobNotAvailable,
      fmt.Errorf("meeting %s has no upload blob", meetingID))
  }
  return nil
}

// planRetry decides whether a retry is allowed and where the pipeline
// resumes. A resume status of Uploaded means the transcription stage runs
// again and stale transcript/artifact rows must be cleared first.
func planRetry(meetingID, ownerUserID uuid.UUID, m *types.Meeting, blob *types.UploadBlob, hasTranscript bool) (types.MeetingStatus, error) {
  if m == nil || m.OwnerUserID != ownerUserID {
    return "", apierr.New(http.StatusNotFound, apierr.CodeMeetingNotFound, fmt.Errorf("meeting %s not found", meetingID))
  }
  if !m.Status.IsFailed() {
    return "", apierr.New(http.StatusConflict, apierr.CodeInvalidStatus,
      fmt.Errorf("meeting %s is %s; retry requires a failed status", meetingID, m.Status))
  }
  if blob == nil {
    return "", apierr.New(http.StatusConflict, apierr.CodeUploadBlobNotAvailable,
      fmt.Errorf("meeting %s has no usable upload blob", meetingID))
  }
  return types.ResumeStatusAfterFailure(m.Status, hasTranscript), nil
}

func (s *processingService) CompleteUpload(ctx context.Context, ownerUserID, meetingID uuid.UUID) (*types.Meeting, error) {
  var meeting *types.Meeting
  err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    m, err := s.meetings.GetByID(ctx, tx, meetingID)
    if err != nil {
      return err
    }
    blob, err := s.blobs.GetByMeetingID(ctx, tx, meetingID)
    if err != nil {
      return err
    }
    if err := guardCompleteUpload(meetingID, ownerUserID, m, blob); err != nil {
      return err
    }
    // the blob is durable from here on
    if err := s.blobs.ClearExpiry(ctx, tx, meetingID); err != nil {
      return err
    }
    if err := s.jobs.Enqueue(ctx, tx, meetingID); err != nil {
      return err
    }
    meeting = m
    return nil
  })
  if err != nil {
    return nil, err
  }
  s.log.Info("Upload completed; processing enqueued", "meetingID", meetingID)
  return meeting, nil
}

func (s *processingService) Retry(ctx context.Context, ownerUserID, meetingID uuid.UUID) (*types.Meeting, error) {
  var meeting *types.Meeting
  err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    m, err := s.meetings.GetByID(ctx, tx, meetingID)
    if err != nil {
      return err
    }
    blob, err := s.blobs.GetByMeetingID(ctx, tx, meetingID)
    if err != nil {
      return err
    }
    transcript, err := s.transcripts.GetByMeetingID(ctx, tx, meetingID)
    if err != nil {
      return err
    }
    resume, err := planRetry(meetingID, ownerUserID, m, blob, transcript != nil)
    if err != nil {
      return err
    }
    if resume == types.MeetingStatusUploaded {
      // full restart: the transcription stage will recreate these
      if err := s.transcripts.DeleteByMeetingID(ctx, tx, meetingID); err != nil {
        return err
      }
      if err := s.artifacts.DeleteByMeetingID(ctx, tx, meetingID); err != nil {
        return err
      }
    }
    if err := s.blobs.ClearExpiry(ctx, tx, meetingID); err != nil {
      return err
    }
    if err := s.meetings.UpdateStatus(ctx, tx, meetingID, resume); err != nil {
      return err
    }
    if err := s.jobs.Enqueue(ctx, tx, meetingID); err != nil {
      return err
    }
    m.Status = resume
    meeting = m
    return nil
  })
  if err != nil {
    return nil, err
  }

  s.log.Info("Meeting retry enqueued", "meetingID", meetingID, "resumeStatus", meeting.Status)
  if s.notifier != nil {
    s.notifier.MeetingStatusChanged(ctx, meeting)
  }
  return meeting, nil
}

func (s *processingService) ProcessMeeting(ctx context.Context, meetingID uuid.UUID) error {
  token, err := s.locks.Acquire(ctx, meetingID, s.lockTTL)
  if err != nil {
    return fmt.Errorf("acquire meeting lock: %w", err)
  }
  if token == "" {
    return ErrMeetingLocked
  }
  defer func() {
    releaseCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    if err := s.locks.Release(releaseCtx, meetingID, token); err != nil {
      s.log.Warn("Failed to release meeting lock", "meetingID", meetingID, "error", err)
    }
  }()

  meeting, err := s.meetings.GetByIDWithChildren(ctx, nil, meetingID)
  if err != nil {
    return err
  }
  if meeting == nil {
    // deleted between enqueue and delivery; nothing left to process
    s.log.Info("Meeting gone before processing; completing job", "meetingID", meetingID)
    return nil
  }
  if meeting.Scenario == nil {
    return fmt.Errorf("meeting %s has no scenario", meetingID)
  }

  switch meeting.Status {
  case types.MeetingStatusUploaded, types.MeetingStatusTranscribing:
    if err := s.runTranscriptionStage(ctx, meeting); err != nil {
      return err
    }
    if meeting.Status != types.MeetingStatusLLMProcessing {
      // transcription failed; the stage already recorded it
      return nil
    }
    if err := s.locks.Renew(ctx, meetingID, token, s.lockTTL); err != nil {
      s.log.Warn("Failed to renew meeting lock between stages", "meetingID", meetingID, "error", err)
    }
    return s.runExtractionStage(ctx, meeting)
  case types.MeetingStatusLLMProcessing:
    return s.runExtractionStage(ctx, meeting)
  default:
    // duplicate or stale delivery; the meeting already moved on
    s.log.Info("Nothing to process for meeting", "meetingID", meetingID, "status", meeting.Status)
    return nil
  }
}

// runTranscriptionStage moves the meeting through Transcribing. On success
// meeting.Status and meeting.Transcript are updated in place; on adapter
// failure the Failed_Transcription transition plus the ProcessingError are
// committed together and nil is returned.
func (s *processingService) runTranscriptionStage(ctx context.Context, meeting *types.Meeting) error {
  if meeting.Status == types.MeetingStatusUploaded {
    if err := s.meetings.UpdateStatus(ctx, nil, meeting.ID, types.MeetingStatusTranscribing); err != nil {
      return err
    }
    meeting.Status = types.MeetingStatusTranscribing
    if s.notifier != nil {
      s.notifier.MeetingStatusChanged(ctx, meeting)
    }
  }

  blob := meeting.UploadBlob
  if blob == nil {
    return s.failStage(ctx, meeting, types.MeetingStatusFailedSystem,
      types.ProcessingStageSystem, types.ErrCodeSystemFailure,
      "upload blob missing at transcription time", nil)
  }

  result, err := s.transcription.TranscribeGCS(ctx, s.bucket.GCSURI(blob.StorageKey), scenarioKeyterms(meeting.Scenario))
  if err != nil {
    s.log.Warn("Transcription failed", "meetingID", meeting.ID, "error", err)
    return s.failStage(ctx, meeting, types.MeetingStatusFailedTranscription,
      types.ProcessingStageTranscription, types.ErrCodeTranscriptionFailed,
      err.Error(), nil)
  }

  transcript := &types.Transcript{
    ID:        uuid.New(),
    MeetingID: meeting.ID,
    Text:      result.Text,
    Language:  result.Language,
  }
  err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    // a crashed attempt may have left a transcript behind
    if err := s.transcripts.DeleteByMeetingID(ctx, tx, meeting.ID); err != nil {
      return err
    }
    if _, err := s.transcripts.Create(ctx, tx, []*types.Transcript{transcript}); err != nil {
      return err
    }
    return s.meetings.UpdateStatus(ctx, tx, meeting.ID, types.MeetingStatusLLMProcessing)
  })
  if err != nil {
    return err
  }

  meeting.Status = types.MeetingStatusLLMProcessing
  meeting.Transcript = transcript
  s.log.Info("Transcription finished", "meetingID", meeting.ID, "chars", len(result.Text))
  if s.notifier != nil {
    s.notifier.MeetingStatusChanged(ctx, meeting)
  }
  return nil
}

// runExtractionStage drives the LLM extraction with its bounded repair loop
// and moves the meeting to Ready or Failed_LLM.
func (s *processingService) runExtractionStage(ctx context.Context, meeting *types.Meeting) error {
  if meeting.Transcript == nil {
    tr, err := s.transcripts.GetByMeetingID(ctx, nil, meeting.ID)
    if err != nil {
      return err
    }
    if tr == nil {
      return s.failStage(ctx, meeting, types.MeetingStatusFailedSystem,
        types.ProcessingStageSystem, types.ErrCodeSystemFailure,
        "transcript missing at extraction time", nil)
    }
    meeting.Transcript = tr
  }

  schema, err := BuildValidationSchema(meeting.Scenario.OutputSchema)
  if err != nil {
    return s.failStage(ctx, meeting, types.MeetingStatusFailedSystem,
      types.ProcessingStageSystem, types.ErrCodeSystemFailure,
      fmt.Sprintf("scenario output schema unusable: %v", err), nil)
  }

  startOrdinal, err := s.interactions.NextOrdinal(ctx, nil, meeting.ID)
  if err != nil {
    return err
  }

  outcome, err := runExtractionCycle(ctx, s.llm, meeting.Scenario.Prompt, meeting.Transcript.Text, schema, startOrdinal,
    func(rec ExtractionRecord) error {
      return s.recordInteraction(ctx, meeting.ID, rec)
    })
  if err != nil {
    var callErr *LLMCallError
    if errors.As(err, &callErr) {
      s.log.Warn("Extraction call failed", "meetingID", meeting.ID, "error", err)
      return s.failStage(ctx, meeting, types.MeetingStatusFailedLLM,
        types.ProcessingStageLLM, types.ErrCodeLLMCallFailed,
        callErr.Err.Error(), nil)
    }
    return err
  }

  if !outcome.Valid {
    details, mErr := json.Marshal(outcome.ValidationErrors)
    if mErr != nil {
      details = nil
    }
    s.log.Warn("Extraction output failed schema validation after repair",
      "meetingID", meeting.ID, "errors", len(outcome.ValidationErrors))
    return s.failStage(ctx, meeting, types.MeetingStatusFailedLLM,
      types.ProcessingStageLLM, types.ErrCodeSchemaValidationFailed,
      "extraction output failed schema validation after one repair attempt", details)
  }

  err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    if _, err := s.artifacts.Upsert(ctx, tx, meeting.ID, datatypes.JSON(outcome.Raw)); err != nil {
      return err
    }
    return s.meetings.UpdateStatus(ctx, tx, meeting.ID, types.MeetingStatusReady)
  })
  if err != nil {
    return err
  }

  meeting.Status = types.MeetingStatusReady
  s.log.Info("Extraction finished; meeting ready for review", "meetingID", meeting.ID, "llmAttempts", outcome.Attempts)
  if s.notifier != nil {
    s.notifier.MeetingStatusChanged(ctx, meeting)
  }
  return nil
}

func (s *processingService) recordInteraction(ctx context.Context, meetingID uuid.UUID, rec ExtractionRecord) error {
  usage, err := json.Marshal(rec.Result.Usage)
  if err != nil {
    usage = nil
  }
  isValid := rec.IsValid
  _, err = s.interactions.Append(ctx, nil, &types.LLMInteraction{
    ID:              uuid.New(),
    MeetingID:       meetingID,
    Ordinal:         rec.Ordinal,
    IsRepairAttempt: rec.IsRepairAttempt,
    IsFinal:         rec.IsFinal,
    IsValid:         &isValid,
    Model:           rec.Result.Model,
    RawResponse:     rec.Result.Raw,
    Usage:           usage,
    FinishReason:    rec.Result.FinishReason,
  })
  return err
}

// failStage commits the Failed_* transition and the ProcessingError in one
// transaction, then notifies. Returning nil tells the worker the attempt is
// complete; adapter failures do not consume queue attempts.
func (s *processingService) failStage(
  ctx context.Context,
  meeting *types.Meeting,
  to types.MeetingStatus,
  stage string,
  code string,
  message string,
  details datatypes.JSON,
) error {
  perr := &types.ProcessingError{
    ID:         uuid.New(),
    MeetingID:  meeting.ID,
    Stage:      stage,
    ErrorCode:  code,
    Message:    message,
    Details:    details,
    OccurredAt: time.Now(),
  }
  err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    if err := s.meetings.UpdateStatus(ctx, tx, meeting.ID, to); err != nil {
      return err
    }
    _, err := s.procErrors.Create(ctx, tx, perr)
    return err
  })
  if err != nil {
    return err
  }

  meeting.Status = to
  if s.notifier != nil {
    s.notifier.MeetingStatusChanged(ctx, meeting)
    s.notifier.ProcessingErrorRecorded(ctx, meeting, perr)
  }
  return nil
}

func scenarioKeyterms(scenario *types.Scenario) []string {
  if scenario == nil || len(scenario.Keyterms) == 0 {
    return nil
  }
  var terms []string
  if err := json.Unmarshal(scenario.Keyterms, &terms); err != nil {
    return nil
  }
  return terms
}
