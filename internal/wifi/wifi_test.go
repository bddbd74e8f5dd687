package wifi

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type call struct {
	name string
	args []string
}

func stubRun(t *testing.T, fn func(name string, args []string) ([]byte, error)) *[]call {
	t.Helper()
	var calls []call
	old := runCmd
	runCmd = func(_ context.Context, name string, args ...string) ([]byte, error) {
		calls = append(calls, call{name: name, args: args})
		return fn(name, args)
	}
	t.Cleanup(func() { runCmd = old })
	return &calls
}

func TestAPArgs_Security(t *testing.T) {
	open := strings.Join(apArgs("torpedo", ""), " ")
	if strings.Contains(open, "wpa-psk") {
		t.Fatalf("open AP has security: %s", open)
	}
	secured := strings.Join(apArgs("torpedo", "secret123"), " ")
	if !strings.Contains(secured, "wifi-sec.psk secret123") || !strings.Contains(secured, "ssid torpedo") {
		t.Fatalf("secured args=%s", secured)
	}
}

func TestFirstIPv4(t *testing.T) {
	cases := map[string]string{
		"192.168.1.23/24\n":                  "192.168.1.23",
		"fe80::1/64 | 10.0.0.5/8\n":          "10.0.0.5",
		"":                                   "",
		"172.16.0.9/16 | 172.16.0.10/16\n":   "172.16.0.9",
	}
	for in, want := range cases {
		if got := firstIPv4(in); got != want {
			t.Fatalf("firstIPv4(%q)=%q want %q", in, got, want)
		}
	}
}

func TestConnect_ReturnsIP(t *testing.T) {
	calls := stubRun(t, func(name string, args []string) ([]byte, error) {
		if len(args) > 0 && args[0] == "-g" {
			return []byte("192.168.1.40/24\n"), nil
		}
		return nil, nil
	})
	m := New("wlan0")
	ip, err := m.Connect(context.Background(), "home", "pw")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if ip != "192.168.1.40" {
		t.Fatalf("ip=%q", ip)
	}
	var sawConnect bool
	for _, c := range *calls {
		joined := strings.Join(c.args, " ")
		if strings.Contains(joined, "device wifi connect home ifname wlan0") && strings.HasSuffix(joined, "password pw") {
			sawConnect = true
		}
	}
	if !sawConnect {
		t.Fatalf("connect call missing: %v", *calls)
	}
}

func TestConnect_Failure(t *testing.T) {
	stubRun(t, func(name string, args []string) ([]byte, error) {
		if len(args) > 2 && args[2] == "device" {
			return []byte("Error: No network with SSID 'home' found."), errors.New("exit status 10")
		}
		return nil, nil
	})
	if _, err := New("wlan0").Connect(context.Background(), "home", ""); err == nil {
		t.Fatalf("expected error")
	}
}

func TestConnected(t *testing.T) {
	out := "eth0:unavailable\nwlan0:connected\nuap0:connected\n"
	stubRun(t, func(string, []string) ([]byte, error) { return []byte(out), nil })
	if !New("wlan0").Connected(context.Background()) {
		t.Fatalf("wlan0 should be connected")
	}
	out = "wlan0:disconnected\n"
	if New("wlan0").Connected(context.Background()) {
		t.Fatalf("wlan0 should be disconnected")
	}
}

func TestStartAP_ExistingInterface(t *testing.T) {
	calls := stubRun(t, func(string, []string) ([]byte, error) { return nil, nil })
	ip, err := New("wlan0").StartAP(context.Background(), "torpedo", "")
	if err != nil {
		t.Fatalf("StartAP: %v", err)
	}
	if ip != "192.168.4.1" {
		t.Fatalf("ip=%q", ip)
	}
	last := (*calls)[len(*calls)-1]
	if last.name != "nmcli" || strings.Join(last.args, " ") != "con up TorpedoAP" {
		t.Fatalf("last call=%v", last)
	}
}
