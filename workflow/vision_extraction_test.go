package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/uxlens/uxaudit_backend/models"
)

func writeTestFrameImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frame.jpg")
	if err := os.WriteFile(path, []byte("not a real jpeg, adapter only sees base64"), 0o644); err != nil {
		t.Fatalf("write test image: %v", err)
	}
	return path
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestVisionExtractionFillsMeasurements(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req visionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.ImageData == "" {
			t.Errorf("expected base64 image data")
		}
		json.NewEncoder(w).Encode(visionResponse{Measurements: map[string]interface{}{
			"loading_shown": true,
		}})
	}))
	defer srv.Close()

	client := &httpVisionClient{endpoint: srv.URL, client: &http.Client{Timeout: 5 * time.Second}}
	frames := []*SampledFrame{
		{FrameNumber: 0, TimestampMs: 0, ImagePath: writeTestFrameImage(t)},
	}

	if err := RunVisionExtraction(context.Background(), testLogger(), client, "rec-1", frames); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, ok := frames[0].Values.Bool("loading_shown"); !ok || !v {
		t.Fatalf("expected loading_shown=true in bag, got %v", frames[0].Values)
	}
}

func TestSingleFrameFailureLeavesEmptyBag(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "overloaded", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(visionResponse{Measurements: map[string]interface{}{
			"button_clicked": true,
		}})
	}))
	defer srv.Close()

	client := &httpVisionClient{endpoint: srv.URL, client: &http.Client{Timeout: 5 * time.Second}}
	imagePath := writeTestFrameImage(t)
	frames := []*SampledFrame{
		{FrameNumber: 0, TimestampMs: 0, ImagePath: imagePath},
		{FrameNumber: 1, TimestampMs: 500, ImagePath: imagePath},
	}

	if err := RunVisionExtraction(context.Background(), testLogger(), client, "rec-1", frames); err != nil {
		t.Fatalf("one failed frame must not fail the run, got %v", err)
	}
	if frames[0].Values == nil || len(frames[0].Values) != 0 {
		t.Fatalf("failed frame must carry an empty bag, not nil or data: %v", frames[0].Values)
	}
	if _, ok := frames[1].Values.Bool("button_clicked"); !ok {
		t.Fatalf("surviving frame must carry its measurements, got %v", frames[1].Values)
	}
}

func TestAllFramesFailingIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := &httpVisionClient{endpoint: srv.URL, client: &http.Client{Timeout: 5 * time.Second}}
	imagePath := writeTestFrameImage(t)
	frames := []*SampledFrame{
		{FrameNumber: 0, TimestampMs: 0, ImagePath: imagePath},
		{FrameNumber: 1, TimestampMs: 500, ImagePath: imagePath},
	}

	err := RunVisionExtraction(context.Background(), testLogger(), client, "rec-1", frames)
	var adapterErr *AdapterError
	if !errors.As(err, &adapterErr) {
		t.Fatalf("expected AdapterError when every frame fails, got %v", err)
	}
}

func TestReplayFramesSkipAdapter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("adapter must not be called for frames with values")
	}))
	defer srv.Close()

	client := &httpVisionClient{endpoint: srv.URL, client: &http.Client{Timeout: 5 * time.Second}}
	frames := []*SampledFrame{
		{FrameNumber: 0, TimestampMs: 0, Values: models.MeasurementBag{"page_stable": true}},
	}

	if err := RunVisionExtraction(context.Background(), testLogger(), client, "rec-1", frames); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
