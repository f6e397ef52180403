package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"basement-monitor/internal/alerting"
	"basement-monitor/internal/config"
	"basement-monitor/internal/ingest"
	"basement-monitor/internal/logging"
	"basement-monitor/internal/memstore"
	"basement-monitor/internal/models"
)

type nopNotifier struct{}

func (nopNotifier) NotifyOpened(context.Context, string, models.ReadingType, int) error  { return nil }
func (nopNotifier) NotifyCleared(context.Context, string, models.ReadingType, int) error { return nil }

func setup(t *testing.T) (*gin.Engine, *memstore.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	st := memstore.New()
	logger := logging.Discard()
	acfg := alerting.Config{
		Temperature:   alerting.Range{Min: 50, Max: 80},
		Humidity:      alerting.Range{Min: 20, Max: 60},
		WindowSize:    4,
		RenotifyDelay: time.Hour,
	}
	svc := ingest.NewService(st, alerting.NewEvaluator(st, acfg), alerting.NewMachine(st, nopNotifier{}, acfg, logger), logger)
	var cfg config.Config
	cfg.API.BasePath = "/"
	return NewRouter(st, svc, nil, logger, cfg), st
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func postReading(t *testing.T, r http.Handler, ts string, temp, humidity int) {
	t.Helper()
	body, _ := json.Marshal(map[string]interface{}{"dev_id": "RazPi_01", "ts": ts, "temp": temp, "humidity": humidity})
	w := do(r, http.MethodPost, "/readings/", string(body))
	if w.Code != http.StatusOK {
		t.Fatalf("POST /readings/ = %d: %s", w.Code, w.Body.String())
	}
}

func intBody(t *testing.T, w *httptest.ResponseRecorder) int64 {
	t.Helper()
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var n int64
	if err := json.Unmarshal(w.Body.Bytes(), &n); err != nil {
		t.Fatalf("body %q is not an integer: %v", w.Body.String(), err)
	}
	return n
}

func TestCreateReading(t *testing.T) {
	r, st := setup(t)
	w := do(r, http.MethodPost, "/readings/", `{"dev_id":"RazPi_01","ts":"2024-01-01T00:00:00Z","temp":68,"humidity":45}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if w.Body.String() != `"OK"` {
		t.Errorf("body = %s, want \"OK\"", w.Body.String())
	}
	if w.Header().Get(requestIDHeader) == "" {
		t.Error("missing request ID header")
	}
	if n, _ := st.CountReadings(context.Background(), models.Filter{}); n != 1 {
		t.Errorf("stored readings = %d, want 1", n)
	}
}

func TestCreateReadingValidation(t *testing.T) {
	tests := map[string]string{
		"missing temp":   `{"dev_id":"d","ts":"2024-01-01T00:00:00Z","humidity":45}`,
		"wrong type":     `{"dev_id":"d","ts":"2024-01-01T00:00:00Z","temp":"warm","humidity":45}`,
		"bad timestamp":  `{"dev_id":"d","ts":"01/01/2024","temp":68,"humidity":45}`,
		"missing dev_id": `{"ts":"2024-01-01T00:00:00Z","temp":68,"humidity":45}`,
		"not json":       `dev_id=d`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			r, st := setup(t)
			w := do(r, http.MethodPost, "/readings/", body)
			if w.Code != http.StatusUnprocessableEntity {
				t.Errorf("status = %d, want 422", w.Code)
			}
			if n, _ := st.CountReadings(context.Background(), models.Filter{}); n != 0 {
				t.Errorf("invalid reading stored")
			}
		})
	}
}

func TestCountsAndDeletes(t *testing.T) {
	r, _ := setup(t)
	for i := 0; i < 5; i++ {
		ts := time.Date(2024, 1, 1, 0, 0, i, 0, time.UTC).Format(models.TimestampLayout)
		postReading(t, r, ts, 95, 40)
	}

	if n := intBody(t, do(r, http.MethodGet, "/readings/counts/?dev-id=RazPi_01", "")); n != 5 {
		t.Errorf("reading count = %d, want 5", n)
	}
	if n := intBody(t, do(r, http.MethodGet, "/active-alerts/counts/", "")); n != 1 {
		t.Errorf("active count = %d, want 1", n)
	}
	if n := intBody(t, do(r, http.MethodGet, "/active-alerts/counts/?alert-type=temp", "")); n != 1 {
		t.Errorf("active temp count = %d, want 1", n)
	}
	if n := intBody(t, do(r, http.MethodGet, "/active-alerts/counts/?reading-type=humidity", "")); n != 0 {
		t.Errorf("active humidity count = %d, want 0", n)
	}
	if n := intBody(t, do(r, http.MethodGet, "/alert-history/counts/", "")); n != 0 {
		t.Errorf("history count = %d, want 0", n)
	}

	if n := intBody(t, do(r, http.MethodDelete, "/active-alerts/?dev-id=RazPi_01", "")); n != 1 {
		t.Errorf("deleted active = %d, want 1", n)
	}
	if n := intBody(t, do(r, http.MethodDelete, "/readings/", "")); n != 5 {
		t.Errorf("deleted readings = %d, want 5", n)
	}
	if n := intBody(t, do(r, http.MethodDelete, "/alert-history/?dev-id=nobody", "")); n != 0 {
		t.Errorf("deleted history = %d, want 0", n)
	}
}

func TestCountRejectsUnknownType(t *testing.T) {
	r, _ := setup(t)
	if w := do(r, http.MethodGet, "/active-alerts/counts/?reading-type=pressure", ""); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
}

func TestListReadings(t *testing.T) {
	r, _ := setup(t)
	postReading(t, r, "2024-01-01T00:00:01Z", 60, 40)
	postReading(t, r, "2024-01-01T00:00:02Z", 61, 40)
	postReading(t, r, "2024-01-01T00:00:03Z", 62, 40)

	w := do(r, http.MethodGet, "/readings/?dev-id=RazPi_01&limit=2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got []models.Reading
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Temperature != 62 || got[1].Temperature != 61 {
		t.Errorf("unexpected readings %+v", got)
	}

	if w := do(r, http.MethodGet, "/readings/", ""); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("missing dev-id: status = %d, want 422", w.Code)
	}
	if w := do(r, http.MethodGet, "/readings/?dev-id=x&limit=-1", ""); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad limit: status = %d, want 422", w.Code)
	}
}

type failingIngester struct{ err error }

func (f failingIngester) Ingest(context.Context, string, models.Reading) (ingest.Result, error) {
	return ingest.Result{}, f.err
}

func TestCreateReadingStoreFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var cfg config.Config
	r := NewRouter(memstore.New(), failingIngester{errors.New("db down")}, nil, logging.Discard(), cfg)
	w := do(r, http.MethodPost, "/readings/", `{"dev_id":"d","ts":"2024-01-01T00:00:00Z","temp":68,"humidity":45}`)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestHealth(t *testing.T) {
	r, _ := setup(t)
	w := do(r, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}
