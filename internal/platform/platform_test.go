package platform

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"torpedo/internal/boot"
)

func newTestLinux(t *testing.T) (*Linux, *int, *int) {
	t.Helper()
	dir := t.TempDir()
	p := New(dir, "wlan0")
	p.wakeAlarm = filepath.Join(dir, "wakealarm")

	restarts, offs := 0, 0
	oldR, oldP := restartFn, powerOffFn
	restartFn = func() error { restarts++; return nil }
	powerOffFn = func() error { offs++; return nil }
	t.Cleanup(func() { restartFn, powerOffFn = oldR, oldP })
	return p, &restarts, &offs
}

func TestResetCause_NoIntentIsPowerOn(t *testing.T) {
	p, _, _ := newTestLinux(t)
	c, err := p.ResetCause()
	if err != nil || c != boot.PowerOn {
		t.Fatalf("cause=%v err=%v want power-on", c, err)
	}
}

func TestReset_NextBootIsSoftReset(t *testing.T) {
	p, restarts, _ := newTestLinux(t)
	if err := p.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if *restarts != 1 {
		t.Fatalf("restarts=%d", *restarts)
	}
	c, err := p.ResetCause()
	if err != nil || c != boot.SoftReset {
		t.Fatalf("cause=%v err=%v want soft-reset", c, err)
	}
	// Consumed: a following power loss reads as power-on.
	c, _ = p.ResetCause()
	if c != boot.PowerOn {
		t.Fatalf("second read=%v want power-on", c)
	}
}

func TestDeepSleep_ArmsAlarm(t *testing.T) {
	p, _, offs := newTestLinux(t)
	if err := p.DeepSleep(15 * time.Minute); err != nil {
		t.Fatalf("DeepSleep: %v", err)
	}
	if *offs != 1 {
		t.Fatalf("power offs=%d", *offs)
	}
	b, _ := os.ReadFile(p.wakeAlarm)
	if string(b) != "+900" {
		t.Fatalf("wakealarm=%q want +900", b)
	}
	c, err := p.ResetCause()
	if err != nil || c != boot.DeepSleepWake {
		t.Fatalf("cause=%v err=%v want deep-sleep-wake", c, err)
	}
}

func TestDeepSleep_NoRTC(t *testing.T) {
	p, _, offs := newTestLinux(t)
	p.wakeAlarm = filepath.Join(p.dataDir, "missing", "wakealarm")
	if err := p.DeepSleep(time.Minute); err == nil {
		t.Fatalf("expected error")
	}
	if *offs != 0 {
		t.Fatalf("powered off without an alarm")
	}
}

func TestResetCause_GarbageIntent(t *testing.T) {
	p, _, _ := newTestLinux(t)
	_ = os.WriteFile(p.intentPath(), []byte("hibernate\n"), 0o644)
	c, err := p.ResetCause()
	if err == nil || c != boot.PowerOn {
		t.Fatalf("cause=%v err=%v", c, err)
	}
}

func TestMachineID(t *testing.T) {
	p, _, _ := newTestLinux(t)
	old := hardwareAddrFn
	t.Cleanup(func() { hardwareAddrFn = old })

	hardwareAddrFn = func(string) (net.HardwareAddr, error) {
		return net.HardwareAddr{0xb8, 0x27, 0xeb, 0x01, 0x02, 0x03}, nil
	}
	id, err := p.MachineID()
	if err != nil {
		t.Fatalf("MachineID: %v", err)
	}
	if id != 0xb827eb010203 {
		t.Fatalf("id=%x", id)
	}

	hardwareAddrFn = func(string) (net.HardwareAddr, error) { return nil, errors.New("no wlan") }
	if _, err := p.MachineID(); err == nil {
		t.Fatalf("expected error")
	}
}
