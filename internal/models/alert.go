package models

import (
	"fmt"
	"strings"
	"time"
)

// ReadingType names one of the two measured quantities.
type ReadingType string

const (
	Temperature ReadingType = "temp"
	Humidity    ReadingType = "humidity"
)

// ReadingTypes lists every reading type in evaluation order.
var ReadingTypes = []ReadingType{Temperature, Humidity}

// ParseReadingType accepts the wire names plus "temperature" as an alias.
func ParseReadingType(s string) (ReadingType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "temp", "temperature":
		return Temperature, nil
	case "humidity":
		return Humidity, nil
	default:
		return "", fmt.Errorf("unknown reading type %q", s)
	}
}

// Label is the human readable name used in notifications.
func (rt ReadingType) Label() string {
	if rt == Humidity {
		return "humidity"
	}
	return "temperature"
}

// Unit returns the measurement unit suffix.
func (rt ReadingType) Unit() string {
	if rt == Humidity {
		return "%"
	}
	return "°F"
}

// ActiveAlert is an open out-of-range condition for one device and reading type.
type ActiveAlert struct {
	DeviceID       string      `json:"dev_id" bson:"dev_id"`
	ReadingType    ReadingType `json:"alert_type" bson:"alert_type"`
	OriginatedAt   time.Time   `json:"originated_at" bson:"originated_at"`
	LastNotifiedAt time.Time   `json:"last_notified_at" bson:"last_notified_at"`
}

// AlertHistoryRecord is the closed interval of a past alert.
type AlertHistoryRecord struct {
	ID           string      `json:"id" bson:"_id"`
	DeviceID     string      `json:"dev_id" bson:"dev_id"`
	ReadingType  ReadingType `json:"alert_type" bson:"alert_type"`
	OriginatedAt time.Time   `json:"originated_at" bson:"originated_at"`
	ClearedAt    time.Time   `json:"cleared_at" bson:"cleared_at"`
}

// Filter narrows count and delete operations. Zero fields match everything.
type Filter struct {
	DeviceID    string
	ReadingType ReadingType
}
