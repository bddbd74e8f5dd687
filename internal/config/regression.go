package config

import (
	"encoding/json"
	"fmt"
	"os"

	"torpedo/internal/gravity"
)

// LoadRegression reads the regression record written by the calibration
// server. A record with missing coefficients loads without error; callers
// check Params.Complete.
func LoadRegression(path string) (gravity.Params, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return gravity.Params{}, fmt.Errorf("config: read regression: %w", err)
	}
	var p gravity.Params
	if err := json.Unmarshal(b, &p); err != nil {
		return gravity.Params{}, fmt.Errorf("config: parse regression: %w", err)
	}
	return p, nil
}

func SaveRegression(path string, p gravity.Params) error {
	if !p.Complete() {
		return gravity.ErrNotCalibrated
	}
	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(path, append(b, '\n'))
}
