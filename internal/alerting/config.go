package alerting

import (
	"fmt"
	"time"

	"basement-monitor/internal/models"
)

// Range is an inclusive safe band.
type Range struct {
	Min int `mapstructure:"min"`
	Max int `mapstructure:"max"`
}

// Contains reports whether v lies inside the band. Both bounds are in range.
func (r Range) Contains(v int) bool {
	return v >= r.Min && v <= r.Max
}

func (r Range) String() string {
	return fmt.Sprintf("[%d, %d]", r.Min, r.Max)
}

// Config is the alerting policy. It is built once at startup and never
// mutated afterwards; pass it by value.
type Config struct {
	Temperature   Range
	Humidity      Range
	WindowSize    int
	RenotifyDelay time.Duration
}

// Range returns the safe band for a reading type.
func (c Config) Range(rt models.ReadingType) Range {
	if rt == models.Humidity {
		return c.Humidity
	}
	return c.Temperature
}

// Validate rejects configurations the state machine cannot honour.
func (c Config) Validate() error {
	if c.WindowSize < 1 {
		return fmt.Errorf("window size must be at least 1, got %d", c.WindowSize)
	}
	if c.RenotifyDelay < 0 {
		return fmt.Errorf("renotify delay must not be negative, got %s", c.RenotifyDelay)
	}
	for _, rt := range models.ReadingTypes {
		if r := c.Range(rt); r.Min > r.Max {
			return fmt.Errorf("%s range %s has min above max", rt.Label(), r)
		}
	}
	return nil
}
