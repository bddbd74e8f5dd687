// Package mqtt is a thin one-shot MQTT publisher used by the hydrometer
// report sink.
package mqtt

import (
	"crypto/tls"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 10 * time.Second
	disconnectWait = 250 // ms
)

// Config holds MQTT client configuration.
type Config struct {
	Broker   string // e.g. "tcp://broker.local:1883"
	ClientID string
	Username string
	Password string
	UseTLS   bool
}

// BrokerURL builds the paho broker string from a bare host and port. A host
// that already carries a scheme is used as-is with the port appended when
// missing.
func BrokerURL(addr string, port int) string {
	addr = strings.TrimSpace(addr)
	scheme := "tcp"
	if i := strings.Index(addr, "://"); i >= 0 {
		scheme, addr = addr[:i], addr[i+3:]
	}
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return scheme + "://" + addr
	}
	return scheme + "://" + net.JoinHostPort(addr, strconv.Itoa(port))
}

// Client wraps the paho client. Devices wake, publish once and power off,
// so auto-reconnect is disabled.
type Client struct {
	client   paho.Client
	config   Config
	mu       sync.Mutex
	logger   *log.Logger
	isActive bool
}

func New(cfg Config, logger *log.Logger) (*Client, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt: broker address is required")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = fmt.Sprintf("torpedo-%d", time.Now().Unix())
	}
	if logger == nil {
		logger = log.Default()
	}

	c := &Client{config: cfg, logger: logger}

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		c.logger.Printf("mqtt: connection lost: %v", err)
	})
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetCleanSession(true)

	c.client = paho.NewClient(opts)
	return c, nil
}

func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isActive {
		return nil
	}

	c.logger.Printf("mqtt: connecting to %s as %s", c.config.Broker, c.config.ClientID)
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("mqtt: connect to %s timed out", c.config.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: connect to %s: %w", c.config.Broker, err)
	}
	c.isActive = true
	return nil
}

// Publish sends payload at QoS 0, not retained.
func (c *Client) Publish(topic string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isActive {
		return fmt.Errorf("mqtt: client is not connected")
	}

	token := c.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("mqtt: publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: publish to %s: %w", topic, err)
	}
	c.logger.Printf("mqtt: published %d bytes to %s", len(payload), topic)
	return nil
}

func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isActive {
		return
	}
	c.client.Disconnect(disconnectWait)
	c.isActive = false
}
