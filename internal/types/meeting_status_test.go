package types

import "testing"

func TestCanTransitionExhaustive(t *testing.T) {
	allowed := map[[2]MeetingStatus]bool{
		{MeetingStatusUploaded, MeetingStatusTranscribing}:              true,
		{MeetingStatusUploaded, MeetingStatusFailedSystem}:              true,
		{MeetingStatusTranscribing, MeetingStatusLLMProcessing}:         true,
		{MeetingStatusTranscribing, MeetingStatusFailedTranscription}:   true,
		{MeetingStatusTranscribing, MeetingStatusFailedSystem}:          true,
		{MeetingStatusLLMProcessing, MeetingStatusReady}:                true,
		{MeetingStatusLLMProcessing, MeetingStatusFailedLLM}:            true,
		{MeetingStatusLLMProcessing, MeetingStatusFailedSystem}:         true,
		{MeetingStatusReady, MeetingStatusValidated}:                    true,
		{MeetingStatusReady, MeetingStatusRejected}:                     true,
		{MeetingStatusFailedTranscription, MeetingStatusUploaded}:       true,
		{MeetingStatusFailedLLM, MeetingStatusUploaded}:                 true,
		{MeetingStatusFailedLLM, MeetingStatusLLMProcessing}:            true,
		{MeetingStatusFailedSystem, MeetingStatusUploaded}:              true,
	}

	for _, from := range AllMeetingStatuses {
		for _, to := range AllMeetingStatuses {
			want := allowed[[2]MeetingStatus{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s)=%v, want %v", from, to, got, want)
			}
		}
	}
}

func TestCanTransitionUnknownStatus(t *testing.T) {
	if CanTransition(MeetingStatus("bogus"), MeetingStatusUploaded) {
		t.Fatal("transition from unknown status must be rejected")
	}
	if CanTransition(MeetingStatusUploaded, MeetingStatus("bogus")) {
		t.Fatal("transition to unknown status must be rejected")
	}
}

func TestTerminalStatesHaveNoEdges(t *testing.T) {
	for _, s := range []MeetingStatus{MeetingStatusValidated, MeetingStatusRejected} {
		for _, to := range AllMeetingStatuses {
			if CanTransition(s, to) {
				t.Errorf("terminal status %s must not transition to %s", s, to)
			}
		}
	}
}

func TestResumeStatusAfterFailure(t *testing.T) {
	cases := []struct {
		name          string
		from          MeetingStatus
		hasTranscript bool
		want          MeetingStatus
	}{
		{"failed_llm_with_transcript_resumes_at_llm", MeetingStatusFailedLLM, true, MeetingStatusLLMProcessing},
		{"failed_llm_without_transcript_restarts", MeetingStatusFailedLLM, false, MeetingStatusUploaded},
		{"failed_transcription_restarts", MeetingStatusFailedTranscription, false, MeetingStatusUploaded},
		{"failed_transcription_with_partial_transcript_still_restarts", MeetingStatusFailedTranscription, true, MeetingStatusUploaded},
		{"failed_system_restarts", MeetingStatusFailedSystem, true, MeetingStatusUploaded},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ResumeStatusAfterFailure(tc.from, tc.hasTranscript)
			if got != tc.want {
				t.Fatalf("ResumeStatusAfterFailure(%s, %v)=%s, want %s", tc.from, tc.hasTranscript, got, tc.want)
			}
			if !CanTransition(tc.from, got) {
				t.Fatalf("resume target %s not reachable from %s", got, tc.from)
			}
		})
	}
}

func TestStatusPredicates(t *testing.T) {
	for _, s := range AllMeetingStatuses {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if MeetingStatus("bogus").Valid() {
		t.Error("bogus status should not be valid")
	}
	if !MeetingStatusFailedLLM.IsFailed() || MeetingStatusReady.IsFailed() {
		t.Error("IsFailed misclassifies")
	}
	if !MeetingStatusValidated.IsTerminal() || MeetingStatusFailedSystem.IsTerminal() {
		t.Error("IsTerminal misclassifies")
	}
}
