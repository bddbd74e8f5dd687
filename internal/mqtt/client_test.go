package mqtt

import "testing"

func TestBrokerURL(t *testing.T) {
	cases := []struct {
		addr string
		port int
		want string
	}{
		{"183.230.40.96", 1883, "tcp://183.230.40.96:1883"},
		{" broker.local ", 8883, "tcp://broker.local:8883"},
		{"ssl://broker.local", 8883, "ssl://broker.local:8883"},
		{"broker.local:1884", 1883, "tcp://broker.local:1884"},
		{"fe80::1", 1883, "tcp://[fe80::1]:1883"},
	}
	for _, tc := range cases {
		if got := BrokerURL(tc.addr, tc.port); got != tc.want {
			t.Fatalf("BrokerURL(%q,%d)=%q want %q", tc.addr, tc.port, got, tc.want)
		}
	}
}

func TestNew_RequiresBroker(t *testing.T) {
	if _, err := New(Config{}, nil); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNew_DefaultClientID(t *testing.T) {
	c, err := New(Config{Broker: "tcp://127.0.0.1:1883"}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.config.ClientID == "" {
		t.Fatalf("client id not defaulted")
	}
}

func TestPublish_NotConnected(t *testing.T) {
	c, err := New(Config{Broker: "tcp://127.0.0.1:1883", ClientID: "t"}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Publish("x", []byte("{}")); err == nil {
		t.Fatalf("expected not connected error")
	}
	// No-op when never connected.
	c.Disconnect()
}
