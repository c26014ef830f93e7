package services

import (
  "context"
  "fmt"
  "net/http"
  "path"
  "strings"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/voxnote/voxnote-backend/internal/apierr"
  "github.com/voxnote/voxnote-backend/internal/logger"
  "github.com/voxnote/voxnote-backend/internal/repos"
  "github.com/voxnote/voxnote-backend/internal/types"
  "github.com/voxnote/voxnote-backend/internal/utils"
)

type CreateMeetingInput struct {
  OwnerUserID uuid.UUID `json:"owner_user_id"`
  ScenarioID  uuid.UUID `json:"scenario_id"`
  Title       string    `json:"title"`
  FileName    string    `json:"file_name"`
  MimeType    string    `json:"mime_type"`
  SizeBytes   int64     `json:"size_bytes"`
}

// CreateMeetingOutput pairs the new meeting with the presigned PUT the client
// uploads the recording to. The blob's expiresAt matches the URL expiry; it
// is cleared once processing is enqueued.
type CreateMeetingOutput struct {
  Meeting   *types.Meeting `json:"meeting"`
  UploadURL string         `json:"upload_url"`
  ExpiresAt time.Time      `json:"expires_at"`
}

type MeetingService interface {
  CreateMeeting(ctx context.Context, in CreateMeetingInput) (*CreateMeetingOutput, error)
  GetMeeting(ctx context.Context, ownerUserID, meetingID uuid.UUID) (*types.Meeting, error)
  ListMeetings(ctx context.Context, ownerUserID uuid.UUID) ([]*types.Meeting, error)
  // Validate and Reject are the human decision on a Ready meeting; both are
  // refused with INVALID_STATUS from anywhere else.
  Validate(ctx context.Context, ownerUserID, meetingID uuid.UUID) (*types.Meeting, error)
  Reject(ctx context.Context, ownerUserID, meetingID uuid.UUID) (*types.Meeting, error)
  // DeleteMeeting soft-deletes the meeting and its blob row, then removes
  // the recording from the bucket best-effort. Refused mid-pipeline.
  DeleteMeeting(ctx context.Context, ownerUserID, meetingID uuid.UUID) error
  // ListInteractions returns the append-only extraction call log.
  ListInteractions(ctx context.Context, ownerUserID, meetingID uuid.UUID) ([]*types.LLMInteraction, error)
  // GetProcessingJob exposes the queue row (attempts, status, next run) for
  // the meeting; nil when processing was never enqueued.
  GetProcessingJob(ctx context.Context, ownerUserID, meetingID uuid.UUID) (*types.ProcessingJob, error)
}

type meetingService struct {
  log             *logger.Logger
  db              *gorm.DB
  meetingRepo     repos.MeetingRepo
  scenarioRepo    repos.ScenarioRepo
  blobRepo        repos.UploadBlobRepo
  interactionRepo repos.LLMInteractionRepo
  jobRepo         repos.ProcessingJobRepo
  bucket          BucketService
  notifier        ProcessingNotifier

  uploadURLTTL time.Duration
}

func NewMeetingService(
  baseLog *logger.Logger,
  db *gorm.DB,
  meetingRepo repos.MeetingRepo,
  scenarioRepo repos.ScenarioRepo,
  blobRepo repos.UploadBlobRepo,
  interactionRepo repos.LLMInteractionRepo,
  jobRepo repos.ProcessingJobRepo,
  bucket BucketService,
  notifier ProcessingNotifier,
) MeetingService {
  log := baseLog.With("service", "MeetingService")
  return &meetingService{
    log:             log,
    db:              db,
    meetingRepo:     meetingRepo,
    scenarioRepo:    scenarioRepo,
    blobRepo:        blobRepo,
    interactionRepo: interactionRepo,
    jobRepo:         jobRepo,
    bucket:          bucket,
    notifier:        notifier,
    uploadURLTTL:    utils.GetEnvAsDuration("UPLOAD_URL_TTL", time.Hour, log),
  }
}

func storageKeyFor(meetingID uuid.UUID, fileName string) string {
  base := path.Base(strings.TrimSpace(fileName))
  if base == "" || base == "." || base == "/" {
    base = "recording"
  }
  return fmt.Sprintf("meetings/%s/%s", meetingID, base)
}

func (s *meetingService) CreateMeeting(ctx context.Context, in CreateMeetingInput) (*CreateMeetingOutput, error) {
  if in.OwnerUserID == uuid.Nil {
    return nil, apierr.New(http.StatusBadRequest, "", fmt.Errorf("owner_user_id required"))
  }
  if in.ScenarioID == uuid.Nil {
    return nil, apierr.New(http.StatusBadRequest, "", fmt.Errorf("scenario_id required"))
  }
  if strings.TrimSpace(in.Title) == "" {
    return nil, apierr.New(http.StatusBadRequest, "", fmt.Errorf("title required"))
  }
  if strings.TrimSpace(in.MimeType) == "" {
    in.MimeType = "application/octet-stream"
  }

  scenario, err := s.scenarioRepo.GetByID(ctx, nil, in.ScenarioID)
  if err != nil {
    return nil, err
  }
  if scenario == nil {
    return nil, apierr.New(http.StatusNotFound, "", fmt.Errorf("scenario %s not found", in.ScenarioID))
  }

  meetingID := uuid.New()
  key := storageKeyFor(meetingID, in.FileName)
  expiresAt := time.Now().Add(s.uploadURLTTL)

  uploadURL, err := s.bucket.SignedUploadURL(key, in.MimeType, s.uploadURLTTL)
  if err != nil {
    return nil, fmt.Errorf("presign upload: %w", err)
  }

  meeting := &types.Meeting{
    ID:          meetingID,
    OwnerUserID: in.OwnerUserID,
    ScenarioID:  in.ScenarioID,
    Title:       strings.TrimSpace(in.Title),
    Status:      types.MeetingStatusUploaded,
  }
  blob := &types.UploadBlob{
    ID:         uuid.New(),
    MeetingID:  meetingID,
    StorageKey: key,
    SizeBytes:  in.SizeBytes,
    MimeType:   in.MimeType,
    ExpiresAt:  &expiresAt,
  }

  err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    if _, err := s.meetingRepo.Create(ctx, tx, []*types.Meeting{meeting}); err != nil {
      return err
    }
    if _, err := s.blobRepo.Create(ctx, tx, []*types.UploadBlob{blob}); err != nil {
      return err
    }
    return nil
  })
  if err != nil {
    return nil, err
  }

  s.log.Info("Meeting created", "meetingID", meetingID, "scenarioID", in.ScenarioID)
  meeting.UploadBlob = blob
  return &CreateMeetingOutput{
    Meeting:   meeting,
    UploadURL: uploadURL,
    ExpiresAt: expiresAt,
  }, nil
}

func (s *meetingService) GetMeeting(ctx context.Context, ownerUserID, meetingID uuid.UUID) (*types.Meeting, error) {
  meeting, err := s.meetingRepo.GetByIDWithChildren(ctx, nil, meetingID)
  if err != nil {
    return nil, err
  }
  if meeting == nil || meeting.OwnerUserID != ownerUserID {
    return nil, apierr.New(http.StatusNotFound, apierr.CodeMeetingNotFound, fmt.Errorf("meeting %s not found", meetingID))
  }
  return meeting, nil
}

func (s *meetingService) ListMeetings(ctx context.Context, ownerUserID uuid.UUID) ([]*types.Meeting, error) {
  return s.meetingRepo.GetByOwner(ctx, nil, ownerUserID)
}

func (s *meetingService) Validate(ctx context.Context, ownerUserID, meetingID uuid.UUID) (*types.Meeting, error) {
  return s.decide(ctx, ownerUserID, meetingID, types.MeetingStatusValidated)
}

func (s *meetingService) Reject(ctx context.Context, ownerUserID, meetingID uuid.UUID) (*types.Meeting, error) {
  return s.decide(ctx, ownerUserID, meetingID, types.MeetingStatusRejected)
}

func (s *meetingService) requireOwned(ctx context.Context, ownerUserID, meetingID uuid.UUID) error {
  m, err := s.meetingRepo.GetByID(ctx, nil, meetingID)
  if err != nil {
    return err
  }
  if m == nil || m.OwnerUserID != ownerUserID {
    return apierr.New(http.StatusNotFound, apierr.CodeMeetingNotFound, fmt.Errorf("meeting %s not found", meetingID))
  }
  return nil
}

func (s *meetingService) ListInteractions(ctx context.Context, ownerUserID, meetingID uuid.UUID) ([]*types.LLMInteraction, error) {
  if err := s.requireOwned(ctx, ownerUserID, meetingID); err != nil {
    return nil, err
  }
  return s.interactionRepo.ListByMeetingID(ctx, nil, meetingID)
}

func (s *meetingService) GetProcessingJob(ctx context.Context, ownerUserID, meetingID uuid.UUID) (*types.ProcessingJob, error) {
  if err := s.requireOwned(ctx, ownerUserID, meetingID); err != nil {
    return nil, err
  }
  return s.jobRepo.GetByMeetingID(ctx, nil, meetingID)
}

func (s *meetingService) DeleteMeeting(ctx context.Context, ownerUserID, meetingID uuid.UUID) error {
  var storageKey string
  err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    m, err := s.meetingRepo.GetByID(ctx, tx, meetingID)
    if err != nil {
      return err
    }
    if m == nil || m.OwnerUserID != ownerUserID {
      return apierr.New(http.StatusNotFound, apierr.CodeMeetingNotFound, fmt.Errorf("meeting %s not found", meetingID))
    }
    switch m.Status {
    case types.MeetingStatusTranscribing, types.MeetingStatusLLMProcessing:
      return apierr.New(http.StatusConflict, apierr.CodeInvalidStatus,
        fmt.Errorf("meeting %s is being processed", meetingID))
    }
    blob, err := s.blobRepo.GetByMeetingID(ctx, tx, meetingID)
    if err != nil {
      return err
    }
    if blob != nil {
      storageKey = blob.StorageKey
    }
    if err := s.blobRepo.SoftDeleteByMeetingID(ctx, tx, meetingID); err != nil {
      return err
    }
    return s.meetingRepo.SoftDelete(ctx, tx, meetingID)
  })
  if err != nil {
    return err
  }

  s.log.Info("Meeting deleted", "meetingID", meetingID)
  if storageKey != "" {
    if err := s.bucket.DeleteFile(ctx, storageKey); err != nil {
      s.log.Warn("Failed to delete recording from bucket", "meetingID", meetingID, "error", err)
    }
  }
  return nil
}

func (s *meetingService) decide(ctx context.Context, ownerUserID, meetingID uuid.UUID, to types.MeetingStatus) (*types.Meeting, error) {
  var meeting *types.Meeting
  err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    m, err := s.meetingRepo.GetByID(ctx, tx, meetingID)
    if err != nil {
      return err
    }
    if m == nil || m.OwnerUserID != ownerUserID {
      return apierr.New(http.StatusNotFound, apierr.CodeMeetingNotFound, fmt.Errorf("meeting %s not found", meetingID))
    }
    if !types.CanTransition(m.Status, to) {
      return apierr.New(http.StatusConflict, apierr.CodeInvalidStatus,
        fmt.Errorf("cannot move meeting from %s to %s", m.Status, to))
    }
    if err := s.meetingRepo.UpdateStatus(ctx, tx, m.ID, to); err != nil {
      return err
    }
    m.Status = to
    meeting = m
    return nil
  })
  if err != nil {
    return nil, err
  }

  s.log.Info("Meeting decision recorded", "meetingID", meetingID, "status", to)
  if s.notifier != nil {
    s.notifier.MeetingStatusChanged(ctx, meeting)
  }
  return meeting, nil
}
