package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const (
	httpAttempts  = 3
	httpRetryWait = 3 * time.Second
	httpTimeout   = 60 * time.Second
)

var afterFn = time.After

// Doer is satisfied by *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// NormalizeURL joins a fermenter host and API path: the scheme defaults to
// http://, one trailing slash on the host is dropped and the path gets a
// leading slash.
func NormalizeURL(host, api string) string {
	host = strings.TrimSpace(host)
	api = strings.TrimSpace(api)
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	host = strings.TrimSuffix(host, "/")
	if !strings.HasPrefix(api, "/") {
		api = "/" + api
	}
	return host + api
}

type httpPayload struct {
	Name             string   `json:"name"`
	ID               uint64   `json:"ID"`
	Temperature      *float64 `json:"temperature"`
	Angle            float64  `json:"angle"`
	Battery          float64  `json:"battery"`
	Fahrenheit       *float64 `json:"fahrenheit"`
	CurrentGravity   float64  `json:"currentGravity"`
	CurrentPlato     float64  `json:"currentPlato"`
	BatteryLevel     int      `json:"batteryLevel"`
	UpdateIntervalMs int      `json:"updateIntervalMs"`
}

func newHTTPPayload(r Report) httpPayload {
	return httpPayload{
		Name:             r.Name,
		ID:               r.DeviceID,
		Temperature:      r.Temperature,
		Angle:            r.Tilt,
		Battery:          r.BatteryVoltage,
		Fahrenheit:       r.fahrenheit(),
		CurrentGravity:   r.SG,
		CurrentPlato:     r.Plato,
		BatteryLevel:     r.BatteryPercent,
		UpdateIntervalMs: r.UpdateIntervalMs,
	}
}

// HTTPSink POSTs the report as JSON, retrying a bounded number of times.
type HTTPSink struct {
	url    string
	client Doer
}

// NewHTTPSink builds a sink for host+api. A nil client gets a 60 s timeout.
func NewHTTPSink(host, api string, client Doer) *HTTPSink {
	if client == nil {
		client = &http.Client{Timeout: httpTimeout}
	}
	return &HTTPSink{url: NormalizeURL(host, api), client: client}
}

func (s *HTTPSink) URL() string { return s.url }

func (s *HTTPSink) Publish(ctx context.Context, r Report) error {
	body, err := json.Marshal(newHTTPPayload(r))
	if err != nil {
		return fmt.Errorf("publish: encode report: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= httpAttempts; attempt++ {
		log.Printf("publish: POST %s attempt %d/%d", s.url, attempt, httpAttempts)
		lastErr = s.post(ctx, body)
		if lastErr == nil {
			log.Printf("publish: report delivered to %s", s.url)
			return nil
		}
		log.Printf("publish: attempt %d failed: %v", attempt, lastErr)
		if attempt == httpAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-afterFn(httpRetryWait):
		}
	}
	log.Printf("publish: giving up on %s after %d attempts", s.url, httpAttempts)
	return fmt.Errorf("publish: %s: %d attempts failed: %w", s.url, httpAttempts, lastErr)
}

func (s *HTTPSink) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("http status %s", resp.Status)
	}
	return nil
}
