package web

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"torpedo/internal/flags"
)

func TestStatus_ReportsLiveTilt(t *testing.T) {
	f := newCalibrationFixture(t)
	f.live.set(42.5)

	var got statusResponse
	if code := do(t, http.MethodGet, f.ts.URL+"/api/status", nil, &got); code != http.StatusOK {
		t.Fatalf("code=%d", code)
	}
	if !got.Tilt.Valid || got.Tilt.Tilt != 42.5 {
		t.Fatalf("tilt=%+v", got.Tilt)
	}
	if got.Mode != "calibration" || got.ResetCause != "soft-reset" || got.Calibrated || got.Points != 0 {
		t.Fatalf("status=%+v", got)
	}
}

func TestAbout(t *testing.T) {
	f := newCalibrationFixture(t)
	var got aboutResponse
	if code := do(t, http.MethodGet, f.ts.URL+"/api/about", nil, &got); code != http.StatusOK {
		t.Fatalf("code=%d", code)
	}
	if got.Service != "torpedo" || got.GoVersion == "" {
		t.Fatalf("about=%+v", got)
	}
}

func TestRootIsNotServed(t *testing.T) {
	f := newCalibrationFixture(t)
	resp, err := http.Get(f.ts.URL + "/")
	if err != nil {
		t.Fatalf("get root: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("code=%d want 404", resp.StatusCode)
	}
}

func TestModeRequests(t *testing.T) {
	f := newCalibrationFixture(t)

	var resp struct {
		OK   bool   `json:"ok"`
		Next string `json:"next"`
	}
	if code := do(t, http.MethodPost, f.ts.URL+"/api/mode/ftp", nil, &resp); code != http.StatusAccepted {
		t.Fatalf("code=%d", code)
	}
	if !resp.OK || resp.Next != "ftp" {
		t.Fatalf("resp=%+v", resp)
	}
	if code := do(t, http.MethodPost, f.ts.URL+"/api/mode/working", nil, nil); code != http.StatusAccepted {
		t.Fatalf("code=%d", code)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requested) != 2 || f.requested[0] != flags.Ftp || f.requested[1] != flags.FirstSleep {
		t.Fatalf("requested=%v", f.requested)
	}
}

func TestModeRequest_Rejected(t *testing.T) {
	f := newCalibrationFixture(t)
	f.cal.RequestMode = func(flags.Flag) error { return io.ErrClosedPipe }
	ts := httptest.NewServer(f.cal.Handler())
	defer ts.Close()

	var resp map[string]string
	if code := do(t, http.MethodPost, ts.URL+"/api/mode/ftp", nil, &resp); code != http.StatusConflict {
		t.Fatalf("code=%d", code)
	}
	if resp["error"] == "" {
		t.Fatalf("missing error: %v", resp)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	f := newCalibrationFixture(t)
	if code := do(t, http.MethodGet, f.ts.URL+"/api/mode/ftp", nil, nil); code != http.StatusMethodNotAllowed {
		t.Fatalf("code=%d want 405", code)
	}
}

func TestLogsEndpoint(t *testing.T) {
	f := newCalibrationFixture(t)
	_, _ = f.cal.Logs.Write([]byte("power: entering calibration mode\n"))

	var got logsResponse
	if code := do(t, http.MethodGet, f.ts.URL+"/api/logs?tail=5", nil, &got); code != http.StatusOK {
		t.Fatalf("code=%d", code)
	}
	found := false
	for _, l := range got.Lines {
		if l == "power: entering calibration mode" {
			found = true
		}
	}
	if !found {
		t.Fatalf("lines=%v", got.Lines)
	}
	if code := do(t, http.MethodGet, f.ts.URL+"/api/logs?tail=0", nil, nil); code != http.StatusBadRequest {
		t.Fatalf("tail=0 code=%d", code)
	}
}
