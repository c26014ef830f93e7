package types

type MeetingStatus string

const (
  MeetingStatusUploaded            MeetingStatus = "uploaded"
  MeetingStatusTranscribing        MeetingStatus = "transcribing"
  MeetingStatusLLMProcessing       MeetingStatus = "llm_processing"
  MeetingStatusReady               MeetingStatus = "ready"
  MeetingStatusValidated           MeetingStatus = "validated"
  MeetingStatusRejected            MeetingStatus = "rejected"
  MeetingStatusFailedTranscription MeetingStatus = "failed_transcription"
  MeetingStatusFailedLLM           MeetingStatus = "failed_llm"
  MeetingStatusFailedSystem        MeetingStatus = "failed_system"
)

// AllMeetingStatuses lists every persisted status. A meeting is created in
// Uploaded and stays there until completeUpload enqueues processing.
var AllMeetingStatuses = []MeetingStatus{
  MeetingStatusUploaded,
  MeetingStatusTranscribing,
  MeetingStatusLLMProcessing,
  MeetingStatusReady,
  MeetingStatusValidated,
  MeetingStatusRejected,
  MeetingStatusFailedTranscription,
  MeetingStatusFailedLLM,
  MeetingStatusFailedSystem,
}

// meetingTransitions is the single source of truth for legal status edges.
var meetingTransitions = map[MeetingStatus][]MeetingStatus{
  MeetingStatusUploaded: {
    MeetingStatusTranscribing,
    MeetingStatusFailedSystem,
  },
  MeetingStatusTranscribing: {
    MeetingStatusLLMProcessing,
    MeetingStatusFailedTranscription,
    MeetingStatusFailedSystem,
  },
  MeetingStatusLLMProcessing: {
    MeetingStatusReady,
    MeetingStatusFailedLLM,
    MeetingStatusFailedSystem,
  },
  MeetingStatusReady: {
    MeetingStatusValidated,
    MeetingStatusRejected,
  },
  MeetingStatusValidated: {},
  MeetingStatusRejected:  {},
  MeetingStatusFailedTranscription: {
    MeetingStatusUploaded,
  },
  MeetingStatusFailedLLM: {
    MeetingStatusUploaded,
    MeetingStatusLLMProcessing,
  },
  MeetingStatusFailedSystem: {
    MeetingStatusUploaded,
  },
}

func (s MeetingStatus) Valid() bool {
  _, ok := meetingTransitions[s]
  return ok
}

func (s MeetingStatus) IsFailed() bool {
  switch s {
  case MeetingStatusFailedTranscription, MeetingStatusFailedLLM, MeetingStatusFailedSystem:
    return true
  }
  return false
}

// IsTerminal reports whether the pipeline is finished with the meeting for
// good. Failed_* states are not terminal: retry re-enters the pipeline.
func (s MeetingStatus) IsTerminal() bool {
  return s == MeetingStatusValidated || s == MeetingStatusRejected
}

func CanTransition(from, to MeetingStatus) bool {
  for _, next := range meetingTransitions[from] {
    if next == to {
      return true
    }
  }
  return false
}

// ResumeStatusAfterFailure gives the status a retried meeting re-enters the
// pipeline at. Transcript existence, not the recorded failure stage, decides
// whether the transcription stage can be skipped; only a Failed_LLM meeting
// that still has its transcript resumes at LLM_Processing.
func ResumeStatusAfterFailure(from MeetingStatus, hasTranscript bool) MeetingStatus {
  if from == MeetingStatusFailedLLM && hasTranscript {
    return MeetingStatusLLMProcessing
  }
  return MeetingStatusUploaded
}
