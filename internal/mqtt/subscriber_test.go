package mqtt

import (
	"context"
	"testing"

	"basement-monitor/internal/ingest"
	"basement-monitor/internal/logging"
	"basement-monitor/internal/models"
)

type recordingIngester struct {
	sources []string
	got     []models.Reading
}

func (r *recordingIngester) Ingest(_ context.Context, source string, rd models.Reading) (ingest.Result, error) {
	r.sources = append(r.sources, source)
	r.got = append(r.got, rd)
	return ingest.Result{Reading: rd}, nil
}

func TestSubscriberHandle(t *testing.T) {
	ing := &recordingIngester{}
	s := &Subscriber{topic: "sensors/readings", svc: ing, logger: logging.Discard()}

	s.handle("sensors/readings", []byte(`{"dev_id":"RazPi_01","ts":"2024-01-01T00:00:00Z","temp":70,"humidity":40}`))
	s.handle("sensors/readings", []byte(`{"dev_id":"RazPi_01","ts":"2024-01-01T00:00:00Z","humidity":40}`))
	s.handle("sensors/readings", []byte(`garbage`))

	if len(ing.got) != 1 {
		t.Fatalf("ingested %d readings, want 1", len(ing.got))
	}
	if ing.sources[0] != "mqtt" || ing.got[0].Temperature != 70 {
		t.Errorf("unexpected ingest %q %+v", ing.sources[0], ing.got[0])
	}
}
