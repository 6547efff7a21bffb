package workflow

import (
	"context"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	"github.com/uxlens/uxaudit_backend/config"
	"github.com/uxlens/uxaudit_backend/models"
	"github.com/uxlens/uxaudit_backend/utils"
)

// SampledFrame is one emitted frame candidate before persistence. Video frames
// carry an image path for the vision adapter; replay frames carry their
// measurement bag directly from the script.
type SampledFrame struct {
	FrameNumber int
	TimestampMs int64
	ImagePath   string
	Values      models.MeasurementBag
}

type samplingPolicy struct {
	// ScanIntervalMs is the dense decode cadence candidates are drawn from.
	ScanIntervalMs int64
	// RegularIntervalMs picks one candidate per fixed interval.
	RegularIntervalMs int64
	// SceneChange adds candidates wherever frame-to-frame difference exceeds
	// SceneChangeThreshold, catching transient states (brief spinners) the
	// regular cadence would miss.
	SceneChange          bool
	SceneChangeThreshold float64
	// DedupThreshold drops candidates near-identical to the previously
	// emitted frame, cutting adapter calls without losing transitions.
	DedupThreshold float64
}

func currentSamplingPolicy() samplingPolicy {
	return samplingPolicy{
		ScanIntervalMs:       int64(config.IntFromEnv("FRAME_SCAN_INTERVAL_MS", 100)),
		RegularIntervalMs:    int64(config.IntFromEnv("FRAME_SAMPLE_INTERVAL_MS", 500)),
		SceneChange:          config.SceneChangeSampling(),
		SceneChangeThreshold: config.FloatFromEnv("SCENE_CHANGE_THRESHOLD", 0.30),
		DedupThreshold:       config.FloatFromEnv("FRAME_DEDUP_THRESHOLD", 0.02),
	}
}

func ffmpegPath() string {
	if path := strings.TrimSpace(os.Getenv("FFMPEG_PATH")); path != "" {
		return path
	}
	return "ffmpeg"
}

func ffprobePath() string {
	if path := strings.TrimSpace(os.Getenv("FFPROBE_PATH")); path != "" {
		return path
	}
	return "ffprobe"
}

func ffmpegTimeout() time.Duration {
	return time.Duration(config.IntFromEnv("FFMPEG_TIMEOUT_SECONDS", 300)) * time.Second
}

// ExtractFrames produces the ordered frame sequence for a recording inside
// workDir. It returns the emitted frames and the recording duration in ms.
// Tool failures are fatal to the recording (ExtractionError).
func ExtractFrames(ctx context.Context, logger *logrus.Logger, recording *models.Recording, workDir string) ([]*SampledFrame, int64, error) {
	if exists, err := utils.ObjectExistsInGCS(ctx, recording.SourceObject); err == nil && !exists {
		return nil, 0, &ExtractionError{Reason: fmt.Sprintf("source blob %q is missing", recording.SourceObject)}
	}

	switch recording.SourceType {
	case models.RecordingSourceVideo:
		return extractVideoFrames(ctx, logger, recording, workDir)
	case models.RecordingSourceReplay:
		return extractReplayFrames(ctx, recording, workDir)
	}
	return nil, 0, &ExtractionError{Reason: fmt.Sprintf("unsupported source type %q", recording.SourceType)}
}

func extractVideoFrames(ctx context.Context, logger *logrus.Logger, recording *models.Recording, workDir string) ([]*SampledFrame, int64, error) {
	policy := currentSamplingPolicy()

	sourcePath := filepath.Join(workDir, "source"+filepath.Ext(recording.SourceObject))
	if err := utils.DownloadRecordingFromGCS(ctx, recording.SourceObject, sourcePath); err != nil {
		return nil, 0, &ExtractionError{Reason: "download source blob", Cause: err}
	}

	durationMs, err := probeDurationMs(ctx, sourcePath)
	if err != nil {
		return nil, 0, err
	}

	scanDir := filepath.Join(workDir, "scan")
	if err := os.MkdirAll(scanDir, 0o755); err != nil {
		return nil, 0, &ExtractionError{Reason: "create scan dir", Cause: err}
	}

	// Dense decode pass; candidates are picked from these scan frames.
	toolCtx, cancel := context.WithTimeout(ctx, ffmpegTimeout())
	defer cancel()
	fps := fmt.Sprintf("1000/%d", policy.ScanIntervalMs)
	cmd := exec.CommandContext(toolCtx, ffmpegPath(),
		"-hide_banner", "-loglevel", "error",
		"-i", sourcePath,
		"-vf", "fps="+fps,
		"-q:v", "3",
		filepath.Join(scanDir, "scan_%06d.jpg"),
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, 0, &ExtractionError{
			Reason: "ffmpeg decode failed: " + strings.TrimSpace(string(out)),
			Cause:  err,
		}
	}

	entries, err := os.ReadDir(scanDir)
	if err != nil {
		return nil, 0, &ExtractionError{Reason: "read scan dir", Cause: err}
	}
	scanPaths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jpg") {
			continue
		}
		scanPaths = append(scanPaths, filepath.Join(scanDir, entry.Name()))
	}
	sort.Strings(scanPaths)
	if len(scanPaths) == 0 {
		return nil, 0, &ExtractionError{Reason: "decoder produced no frames"}
	}

	timestamps := make([]int64, len(scanPaths))
	thumbs := make([]*image.NRGBA, len(scanPaths))
	diffFromPrev := make([]float64, len(scanPaths))
	for i, path := range scanPaths {
		timestamps[i] = int64(i) * policy.ScanIntervalMs
		thumb, err := loadDiffThumb(path)
		if err != nil {
			return nil, 0, &ExtractionError{Reason: "decode scan frame " + path, Cause: err}
		}
		thumbs[i] = thumb
		if i > 0 {
			diffFromPrev[i] = frameDiff(thumbs[i-1], thumbs[i])
		}
	}

	selected := selectFrames(timestamps, diffFromPrev, func(i, j int) float64 {
		return frameDiff(thumbs[i], thumbs[j])
	}, policy)

	frames := make([]*SampledFrame, 0, len(selected))
	for number, idx := range selected {
		frames = append(frames, &SampledFrame{
			FrameNumber: number,
			TimestampMs: timestamps[idx],
			ImagePath:   scanPaths[idx],
		})
	}

	logger.WithFields(logrus.Fields{
		"module":       "workflow",
		"recording_id": recording.ID,
		"scan_frames":  len(scanPaths),
		"emitted":      len(frames),
	}).Info("frame extraction complete")

	return frames, durationMs, nil
}

func probeDurationMs(ctx context.Context, sourcePath string) (int64, error) {
	toolCtx, cancel := context.WithTimeout(ctx, ffmpegTimeout())
	defer cancel()
	cmd := exec.CommandContext(toolCtx, ffprobePath(),
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		sourcePath,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, &ExtractionError{Reason: "ffprobe failed", Cause: err}
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, &ExtractionError{Reason: "ffprobe returned no duration", Cause: err}
	}
	return int64(seconds * 1000), nil
}

// selectFrames applies the sampling policy to the dense candidate sequence and
// returns the indices to emit, in order. diffBetween compares two candidates
// by index (0 identical .. 1 fully different).
func selectFrames(timestamps []int64, diffFromPrev []float64, diffBetween func(i, j int) float64, policy samplingPolicy) []int {
	selected := make([]int, 0, len(timestamps))
	lastEmitted := -1
	var nextTick int64

	for i := range timestamps {
		regular := timestamps[i] >= nextTick
		scene := policy.SceneChange && i > 0 && diffFromPrev[i] >= policy.SceneChangeThreshold
		if !regular && !scene {
			continue
		}
		if regular {
			// Advance the cadence even when the candidate is deduplicated:
			// a static screen should not emit again until it changes.
			nextTick = timestamps[i] + policy.RegularIntervalMs
		}
		if lastEmitted >= 0 && diffBetween(lastEmitted, i) < policy.DedupThreshold {
			continue
		}
		selected = append(selected, i)
		lastEmitted = i
	}
	return selected
}

// loadDiffThumb normalizes a frame to a small grayscale thumbnail for cheap
// visual-difference scoring.
func loadDiffThumb(path string) (*image.NRGBA, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, err
	}
	return imaging.Grayscale(imaging.Resize(img, 64, 64, imaging.Box)), nil
}

// frameDiff scores the visual difference between two normalized thumbnails as
// the mean absolute pixel delta, 0 (identical) to 1 (inverted).
func frameDiff(a, b *image.NRGBA) float64 {
	if a == nil || b == nil {
		return 1
	}
	bounds := a.Bounds()
	if bounds != b.Bounds() {
		return 1
	}
	var total int64
	var count int64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			ai := a.PixOffset(x, y)
			bi := b.PixOffset(x, y)
			delta := int64(a.Pix[ai]) - int64(b.Pix[bi])
			if delta < 0 {
				delta = -delta
			}
			total += delta
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return float64(total) / float64(count*255)
}

type replayEvent struct {
	TimestampMs int64                  `json:"timestamp_ms"`
	State       map[string]interface{} `json:"state"`
}

type replayScript struct {
	DurationMs int64         `json:"duration_ms"`
	Events     []replayEvent `json:"events"`
}

// extractReplayFrames turns a scripted replay into synthetic frames. Replay
// events carry their measurements inline, so these frames skip the vision
// adapter.
func extractReplayFrames(ctx context.Context, recording *models.Recording, workDir string) ([]*SampledFrame, int64, error) {
	scriptPath := filepath.Join(workDir, "replay.json")
	if err := utils.DownloadRecordingFromGCS(ctx, recording.SourceObject, scriptPath); err != nil {
		return nil, 0, &ExtractionError{Reason: "download replay script", Cause: err}
	}

	data, err := os.ReadFile(scriptPath)
	if err != nil {
		return nil, 0, &ExtractionError{Reason: "read replay script", Cause: err}
	}
	return parseReplayScript(data)
}

func parseReplayScript(data []byte) ([]*SampledFrame, int64, error) {
	var script replayScript
	if err := utils.UnmarshalFromJSON(data, &script); err != nil {
		return nil, 0, &ExtractionError{Reason: "replay script is not valid JSON", Cause: err}
	}
	if len(script.Events) == 0 {
		return nil, 0, &ExtractionError{Reason: "replay script has no events"}
	}

	sort.SliceStable(script.Events, func(i, j int) bool {
		return script.Events[i].TimestampMs < script.Events[j].TimestampMs
	})

	frames := make([]*SampledFrame, 0, len(script.Events))
	for i, event := range script.Events {
		values := models.MeasurementBag{}
		for k, v := range event.State {
			values[k] = v
		}
		frames = append(frames, &SampledFrame{
			FrameNumber: i,
			TimestampMs: event.TimestampMs,
			Values:      values,
		})
	}

	durationMs := script.DurationMs
	if durationMs == 0 {
		durationMs = frames[len(frames)-1].TimestampMs
	}
	return frames, durationMs, nil
}
