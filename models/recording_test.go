package models

import (
	"reflect"
	"testing"
)

func TestSnapshotReportsDurationOnlyWhenCompleted(t *testing.T) {
	recording := &Recording{
		ID:         "rec-1",
		Status:     RecordingStatusProcessing,
		DurationMs: 9000,
		FrameCount: 18,
	}

	if snap := recording.Snapshot(); snap.DurationMs != nil {
		t.Fatalf("a recording still processing has no final duration, got %v", *snap.DurationMs)
	}

	recording.Status = RecordingStatusCompleted
	snap := recording.Snapshot()
	if snap.DurationMs == nil || *snap.DurationMs != 9000 {
		t.Fatalf("completed recording must report its duration, got %v", snap.DurationMs)
	}
	if snap.FrameCount != 18 {
		t.Fatalf("expected frame count 18, got %d", snap.FrameCount)
	}
}

func TestSnapshotIsIdempotent(t *testing.T) {
	message := "ffmpeg decode failed"
	recording := &Recording{
		ID:           "rec-2",
		Status:       RecordingStatusFailed,
		ErrorMessage: &message,
	}

	first := recording.Snapshot()
	for i := 0; i < 10; i++ {
		if again := recording.Snapshot(); !reflect.DeepEqual(first, again) {
			t.Fatalf("reading a terminal recording must not change its snapshot:\n%+v\nvs\n%+v", first, again)
		}
	}
	if first.ErrorMessage == nil || *first.ErrorMessage != message {
		t.Fatalf("failed snapshot must carry the error message, got %+v", first)
	}
}
