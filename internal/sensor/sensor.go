// Package sensor produces device readings for the sensor client.
package sensor

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"basement-monitor/internal/models"
)

// ErrExhausted is returned by a finite Source with nothing left to read.
var ErrExhausted = errors.New("sensor source exhausted")

// Sample is a raw sensor measurement: Celsius and relative humidity percent.
type Sample struct {
	TempC    float64
	Humidity float64
}

type Source interface {
	Read() (Sample, error)
}

// CToF converts Celsius to Fahrenheit.
func CToF(c float64) float64 {
	return c*9/5 + 32
}

// Payload rounds a sample half-to-even into the integer wire format.
func Payload(deviceID string, t time.Time, s Sample) models.ReadingPayload {
	temp := int(math.RoundToEven(CToF(s.TempC)))
	humidity := int(math.RoundToEven(s.Humidity))
	return models.NewPayload(deviceID, t, temp, humidity)
}

// Simulated is a bounded random walk around a starting sample.
type Simulated struct {
	current Sample
	step    float64
	rnd     *rand.Rand
}

func NewSimulated(start Sample, step float64, seed int64) *Simulated {
	return &Simulated{current: start, step: step, rnd: rand.New(rand.NewSource(seed))}
}

func (s *Simulated) Read() (Sample, error) {
	s.current.TempC += (s.rnd.Float64()*2 - 1) * s.step
	s.current.Humidity += (s.rnd.Float64()*2 - 1) * s.step
	s.current.Humidity = math.Max(0, math.Min(100, s.current.Humidity))
	return s.current, nil
}

// Replay returns samples from a CSV of "temp_c,humidity" rows in order. A
// header row and blank lines are skipped.
type Replay struct {
	samples []Sample
	next    int
}

func NewReplay(r io.Reader) (*Replay, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read replay file: %w", err)
	}

	var samples []Sample
	for i, rec := range records {
		if len(rec) == 0 || (len(rec) == 1 && strings.TrimSpace(rec[0]) == "") {
			continue
		}
		if len(rec) < 2 {
			return nil, fmt.Errorf("line %d: expected temp_c,humidity", i+1)
		}
		t, errT := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64)
		h, errH := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if errT != nil || errH != nil {
			if i == 0 {
				continue // header
			}
			return nil, fmt.Errorf("line %d: invalid number in %q", i+1, strings.Join(rec, ","))
		}
		samples = append(samples, Sample{TempC: t, Humidity: h})
	}
	return &Replay{samples: samples}, nil
}

func (r *Replay) Read() (Sample, error) {
	if r.next >= len(r.samples) {
		return Sample{}, ErrExhausted
	}
	s := r.samples[r.next]
	r.next++
	return s, nil
}
