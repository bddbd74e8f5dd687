// Package platform maps the firmware's reset, deep-sleep and reset-cause
// primitives onto a Linux board: a reboot is a soft reset, deep sleep is an
// RTC wake alarm followed by power-off, and the cause of the last reset is
// an intent file written just before going down.
package platform

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"torpedo/internal/boot"
	"torpedo/internal/wifi"
)

const (
	intentFile       = "boot.intent"
	defaultWakeAlarm = "/sys/class/rtc/rtc0/wakealarm"
)

var (
	restartFn      = restart
	powerOffFn     = powerOff
	hardwareAddrFn = wifi.HardwareAddr
)

type Linux struct {
	dataDir   string
	wakeAlarm string
	iface     string
}

func New(dataDir, iface string) *Linux {
	return &Linux{dataDir: dataDir, wakeAlarm: defaultWakeAlarm, iface: iface}
}

func (p *Linux) intentPath() string { return filepath.Join(p.dataDir, intentFile) }

// ResetCause consumes the intent file. No file means the board lost power
// or was switched on: PowerOn.
func (p *Linux) ResetCause() (boot.ResetCause, error) {
	b, err := os.ReadFile(p.intentPath())
	if errors.Is(err, os.ErrNotExist) {
		return boot.PowerOn, nil
	}
	if err != nil {
		return boot.PowerOn, fmt.Errorf("platform: read intent: %w", err)
	}
	if err := os.Remove(p.intentPath()); err != nil {
		log.Printf("platform: remove intent: %v", err)
	}
	switch strings.TrimSpace(string(b)) {
	case boot.SoftReset.String():
		return boot.SoftReset, nil
	case boot.DeepSleepWake.String():
		return boot.DeepSleepWake, nil
	default:
		return boot.PowerOn, fmt.Errorf("platform: unknown intent %q", strings.TrimSpace(string(b)))
	}
}

func (p *Linux) writeIntent(c boot.ResetCause) error {
	f, err := os.OpenFile(p.intentPath(), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("platform: write intent: %w", err)
	}
	if _, err := f.WriteString(c.String() + "\n"); err != nil {
		_ = f.Close()
		return fmt.Errorf("platform: write intent: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("platform: sync intent: %w", err)
	}
	return f.Close()
}

// Reset reboots the board; the next boot sees SoftReset.
func (p *Linux) Reset() error {
	if err := p.writeIntent(boot.SoftReset); err != nil {
		return err
	}
	log.Printf("platform: rebooting")
	return restartFn()
}

// DeepSleep arms the RTC to wake after d and powers off; the next boot sees
// DeepSleepWake.
func (p *Linux) DeepSleep(d time.Duration) error {
	secs := int64(d.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	// A pending alarm must be cleared before a new one is accepted.
	if err := os.WriteFile(p.wakeAlarm, []byte("0"), 0o644); err != nil {
		return fmt.Errorf("platform: clear wake alarm: %w", err)
	}
	if err := os.WriteFile(p.wakeAlarm, []byte("+"+strconv.FormatInt(secs, 10)), 0o644); err != nil {
		return fmt.Errorf("platform: set wake alarm: %w", err)
	}
	if err := p.writeIntent(boot.DeepSleepWake); err != nil {
		return err
	}
	log.Printf("platform: powering off, wake in %ds", secs)
	return powerOffFn()
}

// MachineID is the wireless MAC read as a big-endian integer.
func (p *Linux) MachineID() (uint64, error) {
	hw, err := hardwareAddrFn(p.iface)
	if err != nil {
		return 0, err
	}
	if len(hw) > 8 {
		hw = hw[len(hw)-8:]
	}
	var buf [8]byte
	copy(buf[8-len(hw):], hw)
	return binary.BigEndian.Uint64(buf[:]), nil
}
