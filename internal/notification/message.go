package notification

import (
	"fmt"
	"strings"
	"time"

	"basement-monitor/internal/alerting"
	"basement-monitor/internal/models"
)

// Kind distinguishes alert-opened from alert-cleared notifications.
type Kind string

const (
	KindOpened  Kind = "opened"
	KindCleared Kind = "cleared"
)

// Event is the channel independent description of one notification.
type Event struct {
	ID          string             `json:"id"`
	Kind        Kind               `json:"kind"`
	DeviceID    string             `json:"dev_id"`
	ReadingType models.ReadingType `json:"alert_type"`
	Value       int                `json:"value"`
	Range       alerting.Range     `json:"range"`
	At          time.Time          `json:"at"`
}

// Message is the rendered subject/body pair.
type Message struct {
	Subject string
	Body    string
}

// Compose renders the email style subject and body for an event.
func Compose(e Event) Message {
	label := e.ReadingType.Label()
	unit := e.ReadingType.Unit()

	var subject string
	var b strings.Builder
	switch e.Kind {
	case KindCleared:
		subject = fmt.Sprintf("CLEARED: %s %s back in range", e.DeviceID, label)
		fmt.Fprintf(&b, "The %s alert for device %s has cleared.\n", label, e.DeviceID)
	default:
		subject = fmt.Sprintf("ALERT: %s %s out of range (%d%s)", e.DeviceID, label, e.Value, unit)
		fmt.Fprintf(&b, "Device %s is reporting %s outside the safe range.\n", e.DeviceID, label)
	}
	fmt.Fprintf(&b, "\nLatest reading: %d%s\n", e.Value, unit)
	fmt.Fprintf(&b, "Safe range: %d%s to %d%s\n", e.Range.Min, unit, e.Range.Max, unit)
	fmt.Fprintf(&b, "Time: %s\n", e.At.UTC().Format(time.RFC3339))
	return Message{Subject: subject, Body: b.String()}
}
