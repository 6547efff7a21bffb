package workflow

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
	"github.com/uxlens/uxaudit_backend/config"
	"github.com/uxlens/uxaudit_backend/models"
	"github.com/uxlens/uxaudit_backend/utils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("uxaudit/workflow")

// ProcessRecording runs the full audit pipeline for one recording. The
// conditional status claim is the correctness guarantee against duplicate
// delivery; the redis lock on top only saves wasted work when two workers
// race, so failing to obtain infrastructure for it is not fatal.
func ProcessRecording(ctx context.Context, logger *logrus.Logger, msg config.PipelineMessage, workerId string) error {
	ctx, span := tracer.Start(ctx, "ProcessRecording", trace.WithAttributes(
		attribute.String("recording_id", msg.RecordingId),
		attribute.String("worker_id", workerId),
	))
	defer span.End()

	if msg.CorrelationId != "" {
		ctx = utils.SetCorrelationIdInContext(ctx, msg.CorrelationId)
	}
	ctx = utils.SetRecordingIdInContext(ctx, msg.RecordingId)

	if locker := config.GetRedisLock(); locker != nil {
		lock, err := locker.Obtain(ctx, "recording-lock:"+msg.RecordingId, 30*time.Second, nil)
		if err == nil {
			defer lock.Release(context.WithoutCancel(ctx))
		} else if errors.Is(err, redislock.ErrNotObtained) {
			logger.WithFields(logrus.Fields{
				"module":       "workflow",
				"recording_id": msg.RecordingId,
				"worker_id":    workerId,
			}).Info("recording is locked by another worker")
			return nil
		}
	}

	recording, err := models.ClaimRecordingForProcessing(ctx, msg.RecordingId, workerId)
	if err != nil {
		if errors.Is(err, models.ErrorRecordingNotClaimable) {
			logger.WithFields(logrus.Fields{
				"module":       "workflow",
				"recording_id": msg.RecordingId,
				"worker_id":    workerId,
			}).Info("recording already claimed or terminal, skipping")
			return nil
		}
		return err
	}

	logger.WithFields(logrus.Fields{
		"module":       "workflow",
		"recording_id": recording.ID,
		"source_type":  recording.SourceType,
		"worker_id":    workerId,
	}).Info("processing recording")

	if err := runPipeline(ctx, logger, recording); err != nil {
		config.LogError(logger, "workflow", "ProcessRecording", "pipeline failed", msg, err)
		// The original ctx may already be cancelled; the failure must still
		// be recorded.
		failCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if markErr := models.MarkRecordingFailed(failCtx, recording.ID, err.Error()); markErr != nil {
			config.LogError(logger, "workflow", "ProcessRecording", "mark recording failed", msg, markErr)
		}
		return err
	}
	return nil
}

func runPipeline(ctx context.Context, logger *logrus.Logger, recording *models.Recording) error {
	workDir, err := os.MkdirTemp("", "uxaudit-"+recording.ID+"-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(workDir)

	ctx, extractSpan := tracer.Start(ctx, "ExtractFrames")
	sampled, durationMs, err := ExtractFrames(ctx, logger, recording, workDir)
	extractSpan.End()
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if recording.SourceType == models.RecordingSourceVideo {
		client, err := NewVisionClient()
		if err != nil {
			return err
		}
		ctx, visionSpan := tracer.Start(ctx, "RunVisionExtraction")
		err = RunVisionExtraction(ctx, logger, client, recording.ID, sampled)
		visionSpan.End()
		if err != nil {
			return err
		}
	}

	frames := make([]*models.Frame, 0, len(sampled))
	for _, sample := range sampled {
		values := sample.Values
		if values == nil {
			values = models.MeasurementBag{}
		}
		frames = append(frames, &models.Frame{
			RecordingId:     recording.ID,
			FrameNumber:     sample.FrameNumber,
			TimestampMs:     sample.TimestampMs,
			ExtractedValues: values,
		})
	}
	if err := models.SaveFrames(ctx, frames); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ctx, metricsSpan := tracer.Start(ctx, "CalculateTemporalMetrics")
	metrics := CalculateTemporalMetrics(logger, recording.ID, frames)
	metricsSpan.End()
	if err := models.SaveTemporalMetrics(ctx, metrics); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ctx, evalSpan := tracer.Start(ctx, "EvaluateRules")
	violations := EvaluateRules(models.GetRuleCatalog(), frames, metrics)
	result := AggregateResults(recording, frames, metrics, violations, durationMs)
	evalSpan.End()

	if err := models.SaveAuditResult(ctx, result); err != nil {
		return err
	}
	if err := models.MarkRecordingCompleted(ctx, recording.ID, len(frames), durationMs); err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"module":           "workflow",
		"recording_id":     recording.ID,
		"frames":           len(frames),
		"temporal_metrics": len(metrics),
		"violations":       result.Summary.TotalViolations,
	}).Info("recording completed")
	return nil
}
