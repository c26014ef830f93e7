package repos

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/voxnote/voxnote-backend/internal/types"
)

func TestBackoffDelay(t *testing.T) {
	base := 2 * time.Second
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{0, 2 * time.Second},
		{-3, 2 * time.Second},
	}
	for _, tc := range cases {
		if got := BackoffDelay(tc.attempt, base); got != tc.want {
			t.Errorf("BackoffDelay(%d)=%s, want %s", tc.attempt, got, tc.want)
		}
	}
}

func TestProcessMeetingJobKey(t *testing.T) {
	id := uuid.MustParse("a2f7c9de-7a30-4b9f-8f14-3a9d52f0a001")
	want := "process-meeting-a2f7c9de-7a30-4b9f-8f14-3a9d52f0a001"
	if got := types.ProcessMeetingJobKey(id); got != want {
		t.Fatalf("ProcessMeetingJobKey=%q, want %q", got, want)
	}
	// Deterministic: two enqueues of the same meeting collide on the key.
	if types.ProcessMeetingJobKey(id) != types.ProcessMeetingJobKey(id) {
		t.Fatal("job key must be deterministic")
	}
}
