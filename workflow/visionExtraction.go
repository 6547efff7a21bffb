package workflow

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/uxlens/uxaudit_backend/config"
	"github.com/uxlens/uxaudit_backend/models"
	"github.com/uxlens/uxaudit_backend/utils"
)

// VisionClient extracts UI measurements from a single frame image. The HTTP
// implementation is the production client; tests substitute fakes.
type VisionClient interface {
	ExtractMeasurements(ctx context.Context, frame *SampledFrame) (models.MeasurementBag, error)
}

type httpVisionClient struct {
	endpoint string
	client   *http.Client
}

// NewVisionClient builds the production client from VISION_API_URL and
// VISION_TIMEOUT_SECONDS (default 60, applied per frame).
func NewVisionClient() (VisionClient, error) {
	endpoint := strings.TrimSpace(os.Getenv("VISION_API_URL"))
	if endpoint == "" {
		return nil, fmt.Errorf("VISION_API_URL is not set")
	}
	timeout := time.Duration(config.IntFromEnv("VISION_TIMEOUT_SECONDS", 60)) * time.Second
	return &httpVisionClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

type visionRequest struct {
	FrameNumber int    `json:"frame_number"`
	TimestampMs int64  `json:"timestamp_ms"`
	ImageData   string `json:"image_data"`
}

type visionResponse struct {
	Measurements map[string]interface{} `json:"measurements"`
}

func (c *httpVisionClient) ExtractMeasurements(ctx context.Context, frame *SampledFrame) (models.MeasurementBag, error) {
	imageBytes, err := os.ReadFile(frame.ImagePath)
	if err != nil {
		return nil, fmt.Errorf("read frame image: %w", err)
	}

	payload, err := utils.MarshalToJSON(visionRequest{
		FrameNumber: frame.FrameNumber,
		TimestampMs: frame.TimestampMs,
		ImageData:   base64.StdEncoding.EncodeToString(imageBytes),
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBufferString(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vision api returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed visionResponse
	if err := utils.UnmarshalFromJSON(body, &parsed); err != nil {
		return nil, fmt.Errorf("vision api response is not valid JSON: %w", err)
	}

	bag := models.MeasurementBag{}
	for k, v := range parsed.Measurements {
		bag[k] = v
	}
	return bag, nil
}

// RunVisionExtraction fills in measurement bags for video frames. Replay
// frames already carry their values and are passed through untouched.
//
// A frame the adapter cannot serve keeps an empty bag: a missing measurement
// is not a measurement of zero, and downstream evaluation skips what it cannot
// observe. Only when every adapter call fails is the recording failed.
func RunVisionExtraction(ctx context.Context, logger *logrus.Logger, client VisionClient, recordingId string, frames []*SampledFrame) error {
	attempted := 0
	failed := 0

	for _, frame := range frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		if frame.Values != nil {
			continue
		}
		attempted++

		bag, err := client.ExtractMeasurements(ctx, frame)
		if err != nil {
			failed++
			frame.Values = models.MeasurementBag{}
			logger.WithFields(logrus.Fields{
				"module":       "workflow",
				"recording_id": recordingId,
				"frame_number": frame.FrameNumber,
				"error":        err.Error(),
			}).Warn("vision extraction failed for frame")
			continue
		}
		frame.Values = bag
	}

	if attempted > 0 && failed == attempted {
		return &AdapterError{Reason: fmt.Sprintf("vision extraction failed for all %d frames", attempted)}
	}
	return nil
}
