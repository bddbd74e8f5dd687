// Package ds18b20 reads a DS18B20 probe through the kernel w1-therm driver.
package ds18b20

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// familyPrefix is the 1-Wire family code of the DS18B20.
const familyPrefix = "28-"

type Sensor struct {
	path string
	rom  string
}

// Open binds to the first DS18B20 listed under devicesDir
// (normally /sys/bus/w1/devices).
func Open(devicesDir string) (*Sensor, error) {
	matches, err := filepath.Glob(filepath.Join(devicesDir, familyPrefix+"*"))
	if err != nil {
		return nil, fmt.Errorf("ds18b20: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("ds18b20: no probe under %s", devicesDir)
	}
	sort.Strings(matches)
	dir := matches[0]
	return &Sensor{path: filepath.Join(dir, "w1_slave"), rom: filepath.Base(dir)}, nil
}

// ROM is the probe's 64-bit ROM code as listed by the kernel.
func (s *Sensor) ROM() string { return s.rom }

// Temperature triggers a conversion and returns degrees Celsius.
func (s *Sensor) Temperature() (float64, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return 0, fmt.Errorf("ds18b20: read %s: %w", s.rom, err)
	}
	return parseW1Slave(string(b))
}

// parseW1Slave handles the two-line w1_slave format:
//
//	72 01 4b 46 7f ff 0e 10 57 : crc=57 YES
//	72 01 4b 46 7f ff 0e 10 57 t=23125
func parseW1Slave(s string) (float64, error) {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) < 2 {
		return 0, fmt.Errorf("ds18b20: short read %q", s)
	}
	if !strings.HasSuffix(strings.TrimSpace(lines[0]), "YES") {
		return 0, fmt.Errorf("ds18b20: crc check failed")
	}
	i := strings.LastIndex(lines[1], "t=")
	if i < 0 {
		return 0, fmt.Errorf("ds18b20: no temperature in %q", lines[1])
	}
	milli, err := strconv.Atoi(strings.TrimSpace(lines[1][i+2:]))
	if err != nil {
		return 0, fmt.Errorf("ds18b20: parse temperature: %w", err)
	}
	// 85000 is the power-on reset value, returned when no conversion ran.
	if milli == 85000 {
		return 0, fmt.Errorf("ds18b20: conversion not ready")
	}
	return float64(milli) / 1000.0, nil
}
