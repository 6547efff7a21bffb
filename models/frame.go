package models

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uxlens/uxaudit_backend/config"
)

// MeasurementBag is the flat per-frame measurement set produced by the vision
// extraction adapter (or carried verbatim by a replay script). A missing key
// means "unavailable", never zero/false; the typed accessors below are the only
// way evaluator code reads it, so each category only ever sees data of its own
// shape.
type MeasurementBag map[string]interface{}

// Value implements the driver.Valuer interface (JSON column).
func (b MeasurementBag) Value() (driver.Value, error) {
	if b == nil {
		return "{}", nil
	}
	data, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements the sql.Scanner interface.
func (b *MeasurementBag) Scan(value interface{}) error {
	if value == nil {
		*b = MeasurementBag{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, b)
	case string:
		return json.Unmarshal([]byte(v), b)
	}
	return errors.New("measurement bag must be stored as JSON")
}

var trailingUnitPattern = regexp.MustCompile(`[a-zA-Z%]+$`)

// coerceNumber accepts JSON numbers and numeric strings with a trailing unit
// suffix ("44px", "1.5s").
func coerceNumber(raw interface{}) (decimal.Decimal, bool) {
	switch v := raw.(type) {
	case float64:
		return decimal.NewFromFloat(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	case string:
		trimmed := strings.TrimSpace(trailingUnitPattern.ReplaceAllString(strings.TrimSpace(v), ""))
		if trimmed == "" {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(trimmed)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	}
	return decimal.Zero, false
}

// Number returns a numeric measurement. Missing or non-numeric values report ok=false.
func (b MeasurementBag) Number(property string) (decimal.Decimal, bool) {
	raw, exists := b[property]
	if !exists || raw == nil {
		return decimal.Zero, false
	}
	return coerceNumber(raw)
}

// Bool returns a boolean state flag.
func (b MeasurementBag) Bool(property string) (bool, bool) {
	raw, exists := b[property]
	if !exists || raw == nil {
		return false, false
	}
	v, ok := raw.(bool)
	return v, ok
}

// Text returns a free-text measurement for pattern matching.
func (b MeasurementBag) Text(property string) (string, bool) {
	raw, exists := b[property]
	if !exists || raw == nil {
		return "", false
	}
	v, ok := raw.(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// Dimensions is the spatial shape a SPATIAL rule reads.
type Dimensions struct {
	Width    decimal.Decimal
	Height   decimal.Decimal
	Position string
}

func (d Dimensions) String() string {
	return fmt.Sprintf("%sx%spx", d.Width.String(), d.Height.String())
}

// Dimensions returns a width/height pair exposed as a nested object
// ({"width": ..., "height": ..., "position": ...}).
func (b MeasurementBag) Dimensions(property string) (Dimensions, bool) {
	raw, exists := b[property]
	if !exists || raw == nil {
		return Dimensions{}, false
	}
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return Dimensions{}, false
	}
	width, wok := coerceNumber(obj["width"])
	height, hok := coerceNumber(obj["height"])
	if !wok || !hok {
		return Dimensions{}, false
	}
	dims := Dimensions{Width: width, Height: height}
	if pos, ok := obj["position"].(string); ok {
		dims.Position = pos
	}
	return dims, true
}

// Frame is one sampled instant of a recording. Frames are written once by the
// extraction stages and never mutated; frame_number is strictly increasing
// from 0 and timestamp_ms is non-decreasing within a recording.
type Frame struct {
	ID              int            `gorm:"primary_key" json:"id"`
	RecordingId     string         `gorm:"index;size:36" json:"recording_id"`
	FrameNumber     int            `json:"frame_number"`
	TimestampMs     int64          `json:"timestamp_ms"`
	ExtractedValues MeasurementBag `gorm:"type:json" json:"extracted_values"`
	CreatedAt       time.Time      `json:"created_at"`
}

func SaveFrames(ctx context.Context, frames []*Frame) error {
	if len(frames) == 0 {
		return nil
	}
	db := config.GetDB()
	return db.WithContext(ctx).Create(&frames).Error
}

func GetFramesByRecordingId(ctx context.Context, recordingId string) ([]*Frame, error) {
	db := config.GetDB()

	var frames []*Frame
	err := db.WithContext(ctx).
		Where("recording_id = ?", recordingId).
		Order("frame_number ASC").
		Find(&frames).Error
	if err != nil {
		return nil, err
	}
	return frames, nil
}

func CountFramesByRecordingId(ctx context.Context, recordingId string) (int64, error) {
	db := config.GetDB()

	var count int64
	err := db.WithContext(ctx).Model(&Frame{}).
		Where("recording_id = ?", recordingId).
		Count(&count).Error
	return count, err
}
