package web

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"torpedo/internal/config"
	"torpedo/internal/flags"
	"torpedo/internal/gravity"
)

type pointIn struct {
	Tilt    *float64 `json:"tilt"`
	Gravity *float64 `json:"gravity"`
}

func (c *Calibration) listPoints(w http.ResponseWriter, r *http.Request) {
	entries, err := c.Points.Entries()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"points": entries})
}

// addPoint stores a known gravity against the given tilt, or against the
// latest live sample when tilt is omitted.
func (c *Calibration) addPoint(w http.ResponseWriter, r *http.Request) {
	var in pointIn
	if err := decodeStrict(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.Gravity == nil || !finite(*in.Gravity) {
		writeError(w, http.StatusBadRequest, "gravity is required")
		return
	}
	p := gravity.Point{Gravity: *in.Gravity}
	switch {
	case in.Tilt != nil:
		if !finite(*in.Tilt) {
			writeError(w, http.StatusBadRequest, "tilt must be a number")
			return
		}
		p.Tilt = *in.Tilt
	case c.Live != nil && c.Live.Snapshot().Valid:
		p.Tilt = c.Live.Snapshot().Tilt
	default:
		writeError(w, http.StatusConflict, "no tilt sample yet")
		return
	}

	id, err := c.Points.AddPoint(p)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id, "tilt": p.Tilt, "gravity": p.Gravity})
}

func (c *Calibration) clearPoints(w http.ResponseWriter, r *http.Request) {
	if err := c.Points.Clear(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *Calibration) deletePoint(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be a positive integer")
		return
	}
	if err := c.Points.DeletePoint(id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type fitIn struct {
	Unit string `json:"unit"`
}

// fit solves the quadratic over every stored point and saves it as the
// active regression.
func (c *Calibration) fit(w http.ResponseWriter, r *http.Request) {
	var in fitIn
	if r.ContentLength != 0 {
		if err := decodeStrict(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if err := normalizeUnit(&in.Unit); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	pts, err := c.Points.Points()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	p, err := gravity.Fit(pts, in.Unit)
	if err != nil {
		status := http.StatusBadRequest
		if !errors.Is(err, gravity.ErrTooFewPoints) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err.Error())
		return
	}
	if err := config.SaveRegression(c.RegressionPath, p); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"regression": p, "points": len(pts)})
}

func (c *Calibration) requestMode(f flags.Flag) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if c.RequestMode == nil {
			writeError(w, http.StatusServiceUnavailable, "mode changes unavailable")
			return
		}
		if err := c.RequestMode(f); err != nil {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"ok": true, "next": f.String()})
	}
}

func (c *Calibration) scanWiFi(w http.ResponseWriter, r *http.Request) {
	if c.WiFi == nil {
		writeError(w, http.StatusServiceUnavailable, "wifi scan unavailable")
		return
	}
	nets, err := c.WiFi.Scan(r.Context())
	resp := map[string]any{"networks": nets}
	if err != nil {
		resp["last_error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
