package config

import (
	"os"
	"strconv"
	"strings"
)

// DirectPipelineProcessing controls the DB-polling pipeline worker.
//
// Set via env:
// - PIPELINE_DIRECT_PROCESSING=true|false
//
// Default: enabled. Pub/Sub push is the primary trigger, but delivery or
// permission misconfiguration can leave recordings stuck in pending; the
// direct processor guarantees they are eventually picked up. Processing is
// protected by the conditional status claim, so double delivery is safe.
func DirectPipelineProcessing() bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv("PIPELINE_DIRECT_PROCESSING")))
	if val == "true" {
		return true
	}
	if val == "false" {
		return false
	}
	return true
}

// SceneChangeSampling toggles the scene-change candidate pass of the frame
// extraction coordinator. Regular interval sampling always runs.
//
// Set via env:
// - SCENE_CHANGE_SAMPLING=false (default true)
func SceneChangeSampling() bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv("SCENE_CHANGE_SAMPLING")))
	return val != "false"
}

// IntFromEnv reads an integer setting with a default.
func IntFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// FloatFromEnv reads a float setting with a default.
func FloatFromEnv(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
