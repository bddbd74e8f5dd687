package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"

	"torpedo/internal/config"
	"torpedo/internal/gravity"
)

const maxBody = 64 << 10

// decodeStrict decodes exactly one JSON object into v, rejecting unknown
// keys and trailing data.
func decodeStrict(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody+1))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(body) > maxBody {
		return errors.New("body too large")
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid json: trailing data")
	}
	return nil
}

func (c *Calibration) loadSettings() (config.Settings, error) {
	cfg, err := config.Load(c.SettingsPath)
	if errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return cfg, err
}

func (c *Calibration) getSettings(w http.ResponseWriter, r *http.Request) {
	cfg, err := c.loadSettings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// postSettings replaces the whole settings file. Omitted sections take
// their defaults; the device picks the file up on its next boot.
func (c *Calibration) postSettings(w http.ResponseWriter, r *http.Request) {
	var cfg config.Settings
	if err := decodeStrict(r, &cfg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := config.DefaultAndValidate(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := config.Save(c.SettingsPath, cfg); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (c *Calibration) loadRegression() (gravity.Params, error) {
	return config.LoadRegression(c.RegressionPath)
}

func (c *Calibration) getRegression(w http.ResponseWriter, r *http.Request) {
	p, err := c.loadRegression()
	if errors.Is(err, fs.ErrNotExist) {
		writeError(w, http.StatusNotFound, "not calibrated")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (c *Calibration) postRegression(w http.ResponseWriter, r *http.Request) {
	var p gravity.Params
	if err := decodeStrict(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := normalizeUnit(&p.Unit); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !p.Complete() {
		writeError(w, http.StatusBadRequest, "a, b and c are required")
		return
	}
	if err := config.SaveRegression(c.RegressionPath, p); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func normalizeUnit(u *string) error {
	switch *u {
	case "":
		*u = gravity.UnitSG
	case gravity.UnitSG, gravity.UnitPlato:
	default:
		return fmt.Errorf("unit must be %q or %q", gravity.UnitSG, gravity.UnitPlato)
	}
	return nil
}
