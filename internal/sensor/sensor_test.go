package sensor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"basement-monitor/internal/logging"
	"basement-monitor/internal/models"
)

func TestPayloadRounding(t *testing.T) {
	at := time.Date(2024, 7, 4, 9, 5, 3, 0, time.UTC)
	tests := []struct {
		sample         Sample
		temp, humidity int
	}{
		{Sample{TempC: 0, Humidity: 50}, 32, 50},
		{Sample{TempC: 20, Humidity: 45.4}, 68, 45},
		{Sample{TempC: 21.5, Humidity: 45.6}, 71, 46}, // 70.7°F
		{Sample{TempC: -40, Humidity: 0.5}, -40, 0},   // half to even
		{Sample{TempC: 12.5, Humidity: 1.5}, 54, 2},   // 54.5°F -> 54
	}
	for _, tc := range tests {
		p := Payload("RazPi_01", at, tc.sample)
		if *p.Temp != tc.temp || *p.Humidity != tc.humidity {
			t.Errorf("Payload(%+v) = %d°F %d%%, want %d°F %d%%", tc.sample, *p.Temp, *p.Humidity, tc.temp, tc.humidity)
		}
		if p.TS != "2024-07-04T09:05:03Z" {
			t.Errorf("ts = %q", p.TS)
		}
	}
}

func TestReplay(t *testing.T) {
	src, err := NewReplay(strings.NewReader("temp_c,humidity\n20.0,40\n\n21.5, 42.5\n"))
	if err != nil {
		t.Fatal(err)
	}
	var got []Sample
	for {
		s, err := src.Read()
		if errors.Is(err, ErrExhausted) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, s)
	}
	want := []Sample{{20, 40}, {21.5, 42.5}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("samples (-want +got):\n%s", diff)
	}

	if _, err := NewReplay(strings.NewReader("20,40\nwarm,40\n")); err == nil {
		t.Error("bad row accepted")
	}
}

func TestSimulatedStaysInBounds(t *testing.T) {
	s := NewSimulated(Sample{TempC: 18, Humidity: 99}, 5, 1)
	for i := 0; i < 1000; i++ {
		got, _ := s.Read()
		if got.Humidity < 0 || got.Humidity > 100 {
			t.Fatalf("humidity out of bounds: %f", got.Humidity)
		}
	}
}

func TestLoopPostsUntilExhausted(t *testing.T) {
	var mu sync.Mutex
	var received []models.ReadingPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p models.ReadingPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}
		mu.Lock()
		received = append(received, p)
		mu.Unlock()
		_, _ = w.Write([]byte(`"OK"`))
	}))
	defer srv.Close()

	src, _ := NewReplay(strings.NewReader("20,40\n25,50\n"))
	loop := &Loop{
		DeviceID: "RazPi_01",
		Interval: time.Millisecond,
		Source:   src,
		Sink:     NewHTTPSink(srv.URL),
		Logger:   logging.Discard(),
		Now:      func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) },
	}
	sent, err := loop.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sent != 2 || len(received) != 2 {
		t.Fatalf("sent = %d, received = %d, want 2", sent, len(received))
	}
	if *received[1].Temp != 77 || received[1].DevID != "RazPi_01" {
		t.Errorf("unexpected payload %+v", received[1])
	}
}

func TestHTTPSinkReportsRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	var status int
	sink := NewHTTPSink(srv.URL)
	sink.OnResponse = func(code int, _ []byte) { status = code }
	if err := sink.Send(context.Background(), models.NewPayload("d", time.Now(), 1, 1)); err == nil {
		t.Fatal("expected error")
	}
	if status != http.StatusUnprocessableEntity {
		t.Errorf("OnResponse status = %d", status)
	}
}
