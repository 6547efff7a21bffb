package workflow

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/uxlens/uxaudit_backend/config"
	"github.com/uxlens/uxaudit_backend/models"
	"github.com/uxlens/uxaudit_backend/utils"
)

var videoContentTypes = map[string]string{
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/quicktime",
}

type submitRequest struct {
	SessionId  string `validate:"required,max=64"`
	SourceType string `validate:"required,oneof=video replay"`
	Filename   string `validate:"required"`
}

// SubmitRecording validates and stores an uploaded recording, creates the
// pending row, and publishes the pipeline trigger. The upload is durable
// before the row exists, so a crash between the two leaves an orphan blob,
// never a row without its source.
func SubmitRecording(ctx context.Context, logger *logrus.Logger, sessionId string, sourceType string, filename string, src io.Reader) (*models.Recording, error) {
	req := submitRequest{
		SessionId:  strings.TrimSpace(sessionId),
		SourceType: strings.TrimSpace(sourceType),
		Filename:   filename,
	}
	if err := utils.ValidateStruct(req); err != nil {
		for field, reason := range utils.ProcessValidationErrors(err) {
			return nil, NewValidationError(strings.ToLower(field), reason)
		}
		return nil, NewValidationError("request", err.Error())
	}

	parsedSource, err := models.ParseRecordingSource(req.SourceType)
	if err != nil {
		return nil, NewValidationError("source_type", err.Error())
	}
	sessionId = req.SessionId

	ext := strings.ToLower(filepath.Ext(filename))
	var contentType string
	switch parsedSource {
	case models.RecordingSourceVideo:
		ct, ok := videoContentTypes[ext]
		if !ok {
			return nil, NewValidationError("file", fmt.Sprintf("unsupported video format %q, expected mp4, webm or mov", ext))
		}
		contentType = ct
	case models.RecordingSourceReplay:
		if ext != ".json" {
			return nil, NewValidationError("file", fmt.Sprintf("unsupported replay format %q, expected json", ext))
		}
		contentType = "application/json"
	}

	objectName := "recordings/" + utils.GenerateUniqueFilename() + ext
	if err := utils.SaveRecordingToGCS(ctx, objectName, contentType, src); err != nil {
		return nil, fmt.Errorf("store recording source: %w", err)
	}

	recording, err := models.CreateRecording(ctx, sessionId, parsedSource, objectName)
	if err != nil {
		// Best-effort: don't leave the uploaded blob orphaned.
		if deleteErr := utils.DeleteObjectFromGCS(ctx, objectName); deleteErr != nil {
			config.LogError(logger, "workflow", "SubmitRecording", "delete orphan blob", objectName, deleteErr)
		}
		return nil, err
	}

	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	msg := config.PipelineMessage{
		RecordingId:   recording.ID,
		SessionId:     recording.SessionId,
		SourceType:    string(recording.SourceType),
		CorrelationId: correlationId,
	}
	if err := config.PublishPipelineMessage(msg); err != nil {
		// The direct processor picks up pending rows, so a publish failure
		// delays processing rather than losing the recording.
		config.LogError(logger, "workflow", "SubmitRecording", "publish pipeline message", msg, err)
	}

	logger.WithFields(logrus.Fields{
		"module":       "workflow",
		"recording_id": recording.ID,
		"session_id":   recording.SessionId,
		"source_type":  recording.SourceType,
	}).Info("recording submitted")

	return recording, nil
}

// SubmitRecordingByReference registers a recording whose source blob was
// uploaded to the bucket out of band. The blob must already exist; nothing is
// created otherwise.
func SubmitRecordingByReference(ctx context.Context, logger *logrus.Logger, sessionId string, sourceType string, sourceObject string) (*models.Recording, error) {
	req := submitRequest{
		SessionId:  strings.TrimSpace(sessionId),
		SourceType: strings.TrimSpace(sourceType),
		Filename:   sourceObject,
	}
	if err := utils.ValidateStruct(req); err != nil {
		for field, reason := range utils.ProcessValidationErrors(err) {
			return nil, NewValidationError(strings.ToLower(field), reason)
		}
		return nil, NewValidationError("request", err.Error())
	}
	parsedSource, err := models.ParseRecordingSource(req.SourceType)
	if err != nil {
		return nil, NewValidationError("source_type", err.Error())
	}

	exists, err := utils.ObjectExistsInGCS(ctx, sourceObject)
	if err != nil {
		return nil, fmt.Errorf("check source blob: %w", err)
	}
	if !exists {
		return nil, NewValidationError("source_object", fmt.Sprintf("object %q does not exist", sourceObject))
	}

	recording, err := models.CreateRecording(ctx, req.SessionId, parsedSource, sourceObject)
	if err != nil {
		return nil, err
	}

	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	msg := config.PipelineMessage{
		RecordingId:   recording.ID,
		SessionId:     recording.SessionId,
		SourceType:    string(recording.SourceType),
		CorrelationId: correlationId,
	}
	if err := config.PublishPipelineMessage(msg); err != nil {
		config.LogError(logger, "workflow", "SubmitRecordingByReference", "publish pipeline message", msg, err)
	}
	return recording, nil
}
