package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/uxlens/uxaudit_backend/config"
	"github.com/uxlens/uxaudit_backend/middlewares"
	"github.com/uxlens/uxaudit_backend/models"
	"github.com/uxlens/uxaudit_backend/utils"
	"github.com/uxlens/uxaudit_backend/workflow"
)

const defaultPort = "8080"

// Define a struct to represent the rate limiter.
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

type PubSubMessage struct {
	Message struct {
		Data []byte `json:"data,omitempty"`
		ID   string `json:"id"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

func getRedisClient(redisAddress string) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddress,
	})
	return client
}

type submitByReferenceRequest struct {
	SessionId    string `json:"session_id"`
	SourceType   string `json:"source_type"`
	SourceObject string `json:"source_object"`
}

func submitRecordingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		// JSON body: register a blob already uploaded to the bucket.
		if strings.HasPrefix(c.ContentType(), "application/json") {
			var req submitByReferenceRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
				return
			}
			recording, err := workflow.SubmitRecordingByReference(c.Request.Context(), logger, req.SessionId, req.SourceType, req.SourceObject)
			if err != nil {
				if validationErr, ok := workflow.AsValidationError(err); ok {
					c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Reason, "field": validationErr.Field})
					return
				}
				config.LogError(logger, "server.go", "submitRecordingHandler", "SubmitRecordingByReference", req, err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "could not submit recording"})
				return
			}
			c.JSON(http.StatusAccepted, recording.Snapshot())
			return
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		sessionId := strings.TrimSpace(c.PostForm("session_id"))
		sourceType := strings.TrimSpace(c.PostForm("source_type"))

		src, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read uploaded file"})
			return
		}
		defer src.Close()

		recording, err := workflow.SubmitRecording(c.Request.Context(), logger, sessionId, sourceType, fileHeader.Filename, src)
		if err != nil {
			if validationErr, ok := workflow.AsValidationError(err); ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Reason, "field": validationErr.Field})
				return
			}
			config.LogError(logger, "server.go", "submitRecordingHandler", "SubmitRecording", sessionId, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not submit recording"})
			return
		}

		c.JSON(http.StatusAccepted, recording.Snapshot())
	}
}

func getRecordingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		// Terminal snapshots never change; serve them from redis when cached.
		var cached models.RecordingSnapshot
		if exists, err := config.GetRedisObject("RecordingSnapshot:"+id, &cached); err == nil && exists {
			c.JSON(http.StatusOK, &cached)
			return
		}

		recording, err := models.GetRecordingById(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "recording not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		snapshot := recording.Snapshot()
		if recording.Status.IsTerminal() {
			_ = config.SetRedisObject("RecordingSnapshot:"+id, snapshot, time.Hour)
		}
		c.JSON(http.StatusOK, snapshot)
	}
}

func getAuditResultHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		recording, err := models.GetRecordingById(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "recording not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if recording.Status != models.RecordingStatusCompleted {
			c.JSON(http.StatusConflict, gin.H{
				"error":  "audit result is not available",
				"status": recording.Status,
			})
			return
		}

		// The payload was serialized exactly once at completion; serving the
		// stored bytes keeps repeated reads byte-identical.
		payload, err := models.GetAuditResultPayload(c.Request.Context(), recording.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "application/json", payload)
	}
}

// getFramesHandler exposes the extracted evidence behind an audit result, for
// debugging a surprising violation.
func getFramesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		recording, err := models.GetRecordingById(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "recording not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		frames, err := models.GetFramesByRecordingId(c.Request.Context(), recording.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		count, err := models.CountFramesByRecordingId(c.Request.Context(), recording.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"recording_id": recording.ID,
			"frame_count":  count,
			"frames":       frames,
		})
	}
}

func getTemporalMetricsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		recording, err := models.GetRecordingById(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "recording not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		metrics, err := models.GetTemporalMetricsByRecordingId(c.Request.Context(), recording.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"recording_id": recording.ID,
			"metrics":      metrics,
		})
	}
}

func listRulesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		catalog := models.GetRuleCatalog()
		if catalog == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "rule catalog is not loaded"})
			return
		}
		definitions := make([]models.RuleDefinition, 0, catalog.Len())
		for _, rule := range catalog.Rules() {
			definitions = append(definitions, rule.Definition())
		}
		c.JSON(http.StatusOK, gin.H{
			"version":     catalog.Version,
			"total_rules": catalog.Len(),
			"by_category": catalog.CountByCategory(),
			"rules":       definitions,
		})
	}
}

func recordingPubSubHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var msg PubSubMessage
		logger := config.GetLogger()

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			config.LogError(logger, "server.go", "recordingPubSubHandler", "io.ReadAll", nil, err)
			// Malformed request body: ack/drop to avoid infinite retries.
			c.Status(http.StatusNoContent)
			return
		}

		// byte slice unmarshalling handles base64 decoding.
		if err := json.Unmarshal(body, &msg); err != nil {
			config.LogError(logger, "server.go", "recordingPubSubHandler", "Unmarshal body", body, err)
			// Malformed request: ack/drop to avoid infinite retries.
			c.Status(http.StatusNoContent)
			return
		}

		var m config.PipelineMessage
		if err := json.Unmarshal(msg.Message.Data, &m); err != nil {
			config.LogError(logger, "server.go", "recordingPubSubHandler", "Unmarshal pipeline message", msg.Message.Data, err)
			// Malformed Pub/Sub payload: ack/drop to avoid infinite retries.
			c.Status(http.StatusNoContent)
			return
		}

		// Basic validation to avoid retry loops on poisoned messages.
		if m.RecordingId == "" {
			config.LogError(logger, "server.go", "recordingPubSubHandler", "Invalid pipeline message (missing recording_id)", m, fmt.Errorf("recording_id required"))
			c.Status(http.StatusNoContent)
			return
		}

		// Correlation ID propagation: prefer payload correlation_id; fall back to Pub/Sub message ID.
		if m.CorrelationId == "" {
			m.CorrelationId = msg.Message.ID
		}

		if err := workflow.ProcessRecording(c.Request.Context(), logger, m, "pubsub-push"); err != nil {
			logger.WithFields(logrus.Fields{
				"field":          "recordingPubSubHandler",
				"recording_id":   m.RecordingId,
				"message_id":     msg.Message.ID,
				"correlation_id": m.CorrelationId,
			}).Error("pubsub processing failed: " + err.Error())
			// The recording is already marked failed; retrying the push would
			// hit the claim guard and skip, so ack here either way.
		}
		c.Status(http.StatusNoContent)
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// The catalog is compile-or-die: a malformed rule must never reach the
	// evaluator, so a bad definition aborts startup.
	if err := models.LoadRuleCatalog(); err != nil {
		logger.WithFields(logrus.Fields{"field": "rule catalog"}).Fatal(err.Error())
	}

	// Shutdown coordination.
	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so Cloud Run considers the revision healthy.
	// Until DB/Redis are ready, we return 503 for app endpoints.
	r := gin.New()
	// Correlation IDs: generate once per request and attach to context.
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		// Always allow Cloud Run startup probe.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		// Gate critical endpoints on dependency readiness.
		if config.GetDB() == nil || config.GetRedisDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// Production-safe CORS:
	// - In production, require explicit allowlist via CORS_ALLOWED_ORIGINS (comma-separated).
	// - In non-production, allow all (developer convenience).
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			// Safer default: deny all if not configured in production.
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = utils.SplitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true

	r.Use(cors.New(corsConfig))

	// Optional rate limiting (recommended for production).
	// Env:
	// - RATE_LIMIT_ENABLED=true
	// - RATE_LIMIT_WINDOW_SECONDS=60
	// - RATE_LIMIT_MAX_REQUESTS=600
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		client := getRedisClient(os.Getenv("REDIS_ADDRESS"))
		limit := int64(600)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				limit = n
			}
		}
		windowSec := int64(60)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				windowSec = n
			}
		}
		rateLimiter := NewRateLimiter(client, limit, time.Duration(windowSec)*time.Second)
		r.Use(rateLimiter.RateLimitMiddleware)
	}

	r.Use(middlewares.SessionMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	r.POST("/api/recordings", submitRecordingHandler())
	r.GET("/api/recordings/:id", getRecordingHandler())
	r.GET("/api/recordings/:id/results", getAuditResultHandler())
	r.GET("/api/recordings/:id/frames", getFramesHandler())
	r.GET("/api/recordings/:id/metrics", getTemporalMetricsHandler())
	r.GET("/api/recordings/:id/report.xlsx", getAuditReportHandler())
	r.GET("/api/rules", listRulesHandler())
	r.POST("/pubsub/recordings", recordingPubSubHandler())
	r.NoRoute(customNotFoundHandler)

	// Start listening immediately (Cloud Run startup probe is TCP based).
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	// Now DB is ready; run migrations.
	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// IMPORTANT: AutoMigrate can run DDL that blocks tables and causes 504/502 timeouts.
	// Allow disabling migrations on startup (run them as a separate job instead).
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Start the direct pipeline processor (safety net for missed pushes).
	processorCtx, cancelProcessor := context.WithCancel(context.Background())
	defer cancelProcessor()
	if config.DirectPipelineProcessing() {
		go NewRecordingDirectProcessor(db, logger).Run(processorCtx)
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port, "/")
	log.Println("Server started successfully")

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop background workers first so they don't start new work while we're draining.
	cancelProcessor()

	// Drain HTTP requests.
	shutdownTimeout := 30 * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	// Close Redis (best-effort).
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only log when there are errors
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

// Initialize a new RateLimiter instance.
func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

// Middleware function to check rate limits.
func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	// Get the IP address or user identifier from the request.
	key := c.ClientIP() // Assuming IP-based rate limiting

	// Check if the key exists in Redis.
	exists, err := rl.client.Exists(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	// If the key doesn't exist, create it and set expiry.
	if exists == 0 {
		err := rl.client.Set(c.Request.Context(), key, 1, rl.window).Err()
		if err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		c.Next()
		return
	}

	// If the key exists, get the current count.
	count, err := rl.client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	// If the count exceeds the limit, return an error response.
	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
		})
		return
	}

	c.Next()
}
