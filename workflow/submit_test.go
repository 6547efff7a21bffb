package workflow

import (
	"context"
	"strings"
	"testing"
)

// Validation failures must reject synchronously before anything is stored, so
// these paths are exercisable without storage or a database.

func TestSubmitRejectsUnknownSourceType(t *testing.T) {
	_, err := SubmitRecording(context.Background(), testLogger(), "sess-1", "screenshot", "clip.mp4", strings.NewReader("x"))
	if !IsValidationError(err) {
		t.Fatalf("expected a validation error, got %v", err)
	}
}

func TestSubmitRejectsMissingSessionId(t *testing.T) {
	_, err := SubmitRecording(context.Background(), testLogger(), "   ", "video", "clip.mp4", strings.NewReader("x"))
	if !IsValidationError(err) {
		t.Fatalf("expected a validation error, got %v", err)
	}
}

func TestSubmitRejectsWrongExtensionForSource(t *testing.T) {
	_, err := SubmitRecording(context.Background(), testLogger(), "sess-1", "video", "clip.json", strings.NewReader("x"))
	if !IsValidationError(err) {
		t.Fatalf("video source with .json file must fail validation, got %v", err)
	}

	_, err = SubmitRecording(context.Background(), testLogger(), "sess-1", "replay", "clip.mp4", strings.NewReader("x"))
	if !IsValidationError(err) {
		t.Fatalf("replay source with .mp4 file must fail validation, got %v", err)
	}
}
