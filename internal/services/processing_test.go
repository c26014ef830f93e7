package services

import (
  "context"
  "errors"
  "testing"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/voxnote/voxnote-backend/internal/apierr"
  "github.com/voxnote/voxnote-backend/internal/logger"
  "github.com/voxnote/voxnote-backend/internal/types"
)

func assertAPIErrCode(t *testing.T, err error, code string) {
  t.Helper()
  var ae *apierr.Error
  if !errors.As(err, &ae) {
    t.Fatalf("expected an api error, got %v", err)
  }
  if ae.Code != code {
    t.Fatalf("error code = %s, want %s", ae.Code, code)
  }
}

func TestGuardCompleteUpload(t *testing.T) {
  ownerID := uuid.New()
  meetingID := uuid.New()
  blob := &types.UploadBlob{ID: uuid.New(), MeetingID: meetingID}
  uploaded := &types.Meeting{ID: meetingID, OwnerUserID: ownerID, Status: types.MeetingStatusUploaded}

  tests := []struct {
    name     string
    owner    uuid.UUID
    meeting  *types.Meeting
    blob     *types.UploadBlob
    wantCode string
  }{
    {"missing meeting", ownerID, nil, blob, apierr.CodeMeetingNotFound},
    {"other owner's meeting", uuid.New(), uploaded, blob, apierr.CodeMeetingNotFound},
    {"already processing", ownerID, &types.Meeting{ID: meetingID, OwnerUserID: ownerID, Status: types.MeetingStatusTranscribing}, blob, apierr.CodeMeetingNotInUploadedState},
    {"ready meeting", ownerID, &types.Meeting{ID: meetingID, OwnerUserID: ownerID, Status: types.MeetingStatusReady}, blob, apierr.CodeMeetingNotInUploadedState},
    {"no blob", ownerID, uploaded, nil, apierr.CodeUploadBlobNotAvailable},
    {"fresh upload", ownerID, uploaded, blob, ""},
  }
  for _, tt := range tests {
    t.Run(tt.name, func(t *testing.T) {
      err := guardCompleteUpload(meetingID, tt.owner, tt.meeting, tt.blob)
      if tt.wantCode == "" {
        if err != nil {
          t.Fatalf("expected confirmation to pass, got %v", err)
        }
        return
      }
      assertAPIErrCode(t, err, tt.wantCode)
    })
  }
}

func TestPlanRetry(t *testing.T) {
  ownerID := uuid.New()
  meetingID := uuid.New()
  blob := &types.UploadBlob{ID: uuid.New(), MeetingID: meetingID}
  failed := func(status types.MeetingStatus) *types.Meeting {
    return &types.Meeting{ID: meetingID, OwnerUserID: ownerID, Status: status}
  }

  tests := []struct {
    name          string
    owner         uuid.UUID
    meeting       *types.Meeting
    blob          *types.UploadBlob
    hasTranscript bool
    wantResume    types.MeetingStatus
    wantCode      string
  }{
    {"missing meeting", ownerID, nil, blob, false, "", apierr.CodeMeetingNotFound},
    {"other owner's meeting", uuid.New(), failed(types.MeetingStatusFailedLLM), blob, true, "", apierr.CodeMeetingNotFound},
    {"ready meeting", ownerID, failed(types.MeetingStatusReady), blob, true, "", apierr.CodeInvalidStatus},
    {"validated meeting", ownerID, failed(types.MeetingStatusValidated), blob, true, "", apierr.CodeInvalidStatus},
    {"uploaded meeting", ownerID, failed(types.MeetingStatusUploaded), blob, false, "", apierr.CodeInvalidStatus},
    {"blob gone", ownerID, failed(types.MeetingStatusFailedLLM), nil, true, "", apierr.CodeUploadBlobNotAvailable},
    {"llm failure with transcript", ownerID, failed(types.MeetingStatusFailedLLM), blob, true, types.MeetingStatusLLMProcessing, ""},
    {"llm failure without transcript", ownerID, failed(types.MeetingStatusFailedLLM), blob, false, types.MeetingStatusUploaded, ""},
    {"transcription failure", ownerID, failed(types.MeetingStatusFailedTranscription), blob, false, types.MeetingStatusUploaded, ""},
    {"system failure with transcript", ownerID, failed(types.MeetingStatusFailedSystem), blob, true, types.MeetingStatusUploaded, ""},
  }
  for _, tt := range tests {
    t.Run(tt.name, func(t *testing.T) {
      resume, err := planRetry(meetingID, tt.owner, tt.meeting, tt.blob, tt.hasTranscript)
      if tt.wantCode != "" {
        assertAPIErrCode(t, err, tt.wantCode)
        return
      }
      if err != nil {
        t.Fatalf("expected retry to be allowed, got %v", err)
      }
      if resume != tt.wantResume {
        t.Fatalf("resume = %s, want %s", resume, tt.wantResume)
      }
    })
  }
}

type stubLockService struct {
  released int
}

func (s *stubLockService) Acquire(ctx context.Context, meetingID uuid.UUID, ttl time.Duration) (string, error) {
  return "token", nil
}

func (s *stubLockService) Release(ctx context.Context, meetingID uuid.UUID, token string) error {
  s.released++
  return nil
}

func (s *stubLockService) Renew(ctx context.Context, meetingID uuid.UUID, token string, ttl time.Duration) error {
  return nil
}

func (s *stubLockService) Close() error { return nil }

type stubMeetingRepo struct {
  meeting *types.Meeting
}

func (s *stubMeetingRepo) Create(ctx context.Context, tx *gorm.DB, meetings []*types.Meeting) ([]*types.Meeting, error) {
  return meetings, nil
}

func (s *stubMeetingRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Meeting, error) {
  return s.meeting, nil
}

func (s *stubMeetingRepo) GetByIDWithChildren(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Meeting, error) {
  return s.meeting, nil
}

func (s *stubMeetingRepo) GetByOwner(ctx context.Context, tx *gorm.DB, ownerUserID uuid.UUID) ([]*types.Meeting, error) {
  return nil, nil
}

func (s *stubMeetingRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status types.MeetingStatus) error {
  return nil
}

func (s *stubMeetingRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
  return nil
}

func (s *stubMeetingRepo) SoftDelete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
  return nil
}

func TestProcessMeetingCompletesWhenMeetingGone(t *testing.T) {
  log, err := logger.New("development")
  if err != nil {
    t.Fatal(err)
  }
  locks := &stubLockService{}
  svc := &processingService{
    log:      log,
    meetings: &stubMeetingRepo{meeting: nil},
    locks:    locks,
    lockTTL:  time.Minute,
  }

  if err := svc.ProcessMeeting(context.Background(), uuid.New()); err != nil {
    t.Fatalf("a deleted meeting must complete the job, got %v", err)
  }
  if locks.released != 1 {
    t.Fatal("lock must be released even when the meeting is gone")
  }
}
