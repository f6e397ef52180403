package sensor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"basement-monitor/internal/models"
)

// HTTPSink posts readings to the monitor's /readings/ endpoint.
type HTTPSink struct {
	URL    string
	Client *http.Client
	// OnResponse, when set, sees every response status and body.
	OnResponse func(status int, body []byte)
}

func NewHTTPSink(url string) *HTTPSink {
	return &HTTPSink{URL: url, Client: &http.Client{Timeout: 10 * time.Second}}
}

func (s *HTTPSink) Send(ctx context.Context, payload models.ReadingPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal reading: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post reading: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if s.OnResponse != nil {
		s.OnResponse(resp.StatusCode, respBody)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, bytes.TrimSpace(respBody))
	}
	return nil
}
