// Package wifi brings up the configuration access point and the station
// link through NetworkManager (nmcli).
package wifi

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"strings"
)

const (
	apConnName     = "TorpedoAP"
	clientConnName = "TorpedoClient"
	apIface        = "uap0"
	apAddress      = "192.168.4.1/24"
	connectWaitSec = "30"
)

// runCmd executes a command and returns its combined output.
var runCmd = func(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Manager drives one wireless interface (station) plus a virtual AP
// interface stacked on it.
type Manager struct {
	iface string
}

func New(iface string) *Manager {
	if iface == "" {
		iface = "wlan0"
	}
	return &Manager{iface: iface}
}

func (m *Manager) Iface() string { return m.iface }

func (m *Manager) nmcli(ctx context.Context, args ...string) (string, error) {
	out, err := runCmd(ctx, "nmcli", args...)
	if err != nil {
		return "", fmt.Errorf("wifi: nmcli %s: %v, output: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// ensureAPInterface creates uap0 on top of the station interface. Its MAC
// is the station MAC with the locally administered bit flipped.
func (m *Manager) ensureAPInterface(ctx context.Context) error {
	_, _ = runCmd(ctx, "ip", "link", "set", m.iface, "up")
	if _, err := runCmd(ctx, "iw", "dev", apIface, "info"); err == nil {
		return nil
	}
	hw, err := HardwareAddr(m.iface)
	if err != nil {
		return err
	}
	mac := make(net.HardwareAddr, len(hw))
	copy(mac, hw)
	mac[0] ^= 0x02
	if out, err := runCmd(ctx, "iw", "dev", m.iface, "interface", "add", apIface, "type", "__ap", "addr", mac.String()); err != nil {
		return fmt.Errorf("wifi: create %s: %v, output: %s", apIface, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// StartAP publishes the configuration access point and returns its IP.
func (m *Manager) StartAP(ctx context.Context, ssid, pass string) (string, error) {
	if err := m.ensureAPInterface(ctx); err != nil {
		return "", err
	}
	_, _ = runCmd(ctx, "nmcli", "con", "delete", apConnName)

	if _, err := m.nmcli(ctx, apArgs(ssid, pass)...); err != nil {
		return "", err
	}
	if _, err := m.nmcli(ctx, "con", "modify", apConnName,
		"ipv4.addresses", apAddress, "ipv4.method", "shared"); err != nil {
		return "", err
	}
	if _, err := m.nmcli(ctx, "con", "up", apConnName); err != nil {
		return "", err
	}
	ip, _, _ := strings.Cut(apAddress, "/")
	return ip, nil
}

func apArgs(ssid, pass string) []string {
	args := []string{
		"con", "add", "type", "wifi", "ifname", apIface, "con-name", apConnName,
		"autoconnect", "no", "save", "no",
		"ssid", ssid, "mode", "ap",
		"wifi.band", "bg", "wifi.channel", "6",
	}
	if pass != "" {
		args = append(args,
			"wifi-sec.key-mgmt", "wpa-psk",
			"wifi-sec.proto", "rsn",
			"wifi-sec.psk", pass,
		)
	}
	return args
}

// Connect joins ssid in station mode and returns the leased IPv4 address.
func (m *Manager) Connect(ctx context.Context, ssid, pass string) (string, error) {
	_, _ = runCmd(ctx, "nmcli", "dev", "set", m.iface, "managed", "yes")
	_, _ = runCmd(ctx, "nmcli", "con", "delete", clientConnName)

	args := []string{"--wait", connectWaitSec, "device", "wifi", "connect", ssid, "ifname", m.iface, "name", clientConnName}
	if pass != "" {
		args = append(args, "password", pass)
	}
	if _, err := m.nmcli(ctx, args...); err != nil {
		return "", err
	}
	out, err := m.nmcli(ctx, "-g", "IP4.ADDRESS", "dev", "show", m.iface)
	if err != nil {
		return "", err
	}
	return firstIPv4(out), nil
}

// Connected reports whether the station interface is associated.
func (m *Manager) Connected(ctx context.Context) bool {
	out, err := m.nmcli(ctx, "-t", "-f", "DEVICE,STATE", "dev")
	if err != nil {
		return false
	}
	for _, line := range strings.Split(out, "\n") {
		dev, state, ok := strings.Cut(strings.TrimSpace(line), ":")
		if ok && dev == m.iface {
			return state == "connected"
		}
	}
	return false
}

func (m *Manager) Disconnect(ctx context.Context) error {
	_, err := m.nmcli(ctx, "dev", "disconnect", m.iface)
	return err
}

// firstIPv4 extracts the address from nmcli "a.b.c.d/nn | ..." output.
func firstIPv4(out string) string {
	for _, f := range strings.FieldsFunc(out, func(r rune) bool { return r == '\n' || r == '|' }) {
		addr, _, _ := strings.Cut(strings.TrimSpace(f), "/")
		if ip := net.ParseIP(addr); ip != nil && ip.To4() != nil {
			return addr
		}
	}
	return ""
}

// HardwareAddr returns the MAC of iface.
func HardwareAddr(iface string) (net.HardwareAddr, error) {
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		return nil, fmt.Errorf("wifi: %s not found: %w", iface, err)
	}
	if len(ifi.HardwareAddr) == 0 {
		return nil, fmt.Errorf("wifi: %s has no hardware address", iface)
	}
	return ifi.HardwareAddr, nil
}
