package web

import (
	"net/http"
	"runtime"
	"runtime/debug"
	"time"
)

type aboutResponse struct {
	Service   string `json:"service"`
	NowUTC    string `json:"now_utc"`
	GoVersion string `json:"go_version"`
	Model     string `json:"model,omitempty"`
	Version   string `json:"version,omitempty"`
	Commit    string `json:"commit,omitempty"`
	Dirty     bool   `json:"dirty,omitempty"`
}

func aboutHandler(model string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := aboutResponse{
			Service:   "torpedo",
			NowUTC:    time.Now().UTC().Format(time.RFC3339Nano),
			GoVersion: runtime.Version(),
			Model:     model,
		}
		if bi, ok := debug.ReadBuildInfo(); ok {
			resp.Version = bi.Main.Version
			for _, s := range bi.Settings {
				switch s.Key {
				case "vcs.revision":
					resp.Commit = s.Value
				case "vcs.modified":
					resp.Dirty = s.Value == "true"
				}
			}
		}
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusOK, resp)
	}
}
