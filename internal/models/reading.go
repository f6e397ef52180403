package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the fixed-width UTC layout devices stamp readings with.
// Because every field is zero padded, comparing two timestamps as strings
// orders them chronologically.
const TimestampLayout = "2006-01-02T15:04:05Z"

// ErrInvalidReading is wrapped by every ValidationError.
var ErrInvalidReading = errors.New("invalid reading")

// ValidationError reports a malformed or missing reading field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid reading: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidReading
}

// Reading is one timestamped temperature/humidity sample from a device.
type Reading struct {
	DeviceID    string `json:"dev_id" bson:"dev_id"`
	Timestamp   string `json:"ts" bson:"ts"`
	Temperature int    `json:"temp" bson:"temp"`
	Humidity    int    `json:"humidity" bson:"humidity"`
}

// Value returns the sample for the given reading type.
func (r Reading) Value(rt ReadingType) int {
	if rt == Humidity {
		return r.Humidity
	}
	return r.Temperature
}

// Time parses the reading timestamp.
func (r Reading) Time() (time.Time, error) {
	return time.Parse(TimestampLayout, r.Timestamp)
}

// Validate checks the fields a stored reading must carry.
func (r Reading) Validate() error {
	if strings.TrimSpace(r.DeviceID) == "" {
		return &ValidationError{Field: "dev_id", Reason: "is required"}
	}
	if r.Timestamp == "" {
		return &ValidationError{Field: "ts", Reason: "is required"}
	}
	if _, err := r.Time(); err != nil {
		return &ValidationError{Field: "ts", Reason: fmt.Sprintf("must match %s", TimestampLayout)}
	}
	return nil
}

// ReadingPayload is the JSON body devices submit. Numeric fields are pointers
// so a zero reading can be told apart from a missing one.
type ReadingPayload struct {
	DevID    string `json:"dev_id" binding:"required"`
	TS       string `json:"ts" binding:"required"`
	Temp     *int   `json:"temp" binding:"required"`
	Humidity *int   `json:"humidity" binding:"required"`
}

// Reading converts the payload into a validated Reading.
func (p ReadingPayload) Reading() (Reading, error) {
	if p.Temp == nil {
		return Reading{}, &ValidationError{Field: "temp", Reason: "is required"}
	}
	if p.Humidity == nil {
		return Reading{}, &ValidationError{Field: "humidity", Reason: "is required"}
	}
	r := Reading{
		DeviceID:    strings.TrimSpace(p.DevID),
		Timestamp:   strings.TrimSpace(p.TS),
		Temperature: *p.Temp,
		Humidity:    *p.Humidity,
	}
	if err := r.Validate(); err != nil {
		return Reading{}, err
	}
	return r, nil
}

// NewPayload builds the wire payload for a device sample taken at t.
func NewPayload(deviceID string, t time.Time, temp, humidity int) ReadingPayload {
	return ReadingPayload{
		DevID:    deviceID,
		TS:       t.UTC().Format(TimestampLayout),
		Temp:     &temp,
		Humidity: &humidity,
	}
}
