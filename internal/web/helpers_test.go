package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"torpedo/internal/flags"
	"torpedo/internal/sampler"
	"torpedo/internal/store"
)

type fakeLive struct {
	mu   sync.Mutex
	snap sampler.Snapshot
}

func (f *fakeLive) Snapshot() sampler.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeLive) set(tilt float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap = sampler.Snapshot{Valid: true, Tilt: tilt, Samples: f.snap.Samples + 1}
}

type calibrationFixture struct {
	cal       *Calibration
	live      *fakeLive
	ts        *httptest.Server
	mu        sync.Mutex
	requested []flags.Flag
}

func newCalibrationFixture(t *testing.T) *calibrationFixture {
	t.Helper()
	dir := t.TempDir()
	pts, err := store.Open(filepath.Join(dir, "calibration.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = pts.Close() })

	f := &calibrationFixture{live: &fakeLive{}}
	f.cal = &Calibration{
		SettingsPath:   filepath.Join(dir, "user_settings.yaml"),
		RegressionPath: filepath.Join(dir, "regression.json"),
		Points:         pts,
		Live:           f.live,
		RequestMode: func(fl flags.Flag) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.requested = append(f.requested, fl)
			return nil
		},
		Logs: NewLogBuffer(100),
		Info: Info{Mode: "calibration", ResetCause: "soft-reset", DataDir: dir},
	}
	f.ts = httptest.NewServer(f.cal.Handler())
	t.Cleanup(f.ts.Close)
	return f
}

// do sends body (marshaled unless it is already a string) and decodes the
// JSON response into out when out is non-nil.
func do(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, url, err)
		}
	}
	return resp.StatusCode
}
