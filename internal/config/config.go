package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// ErrNoCredentials is returned when the network selected for reporting has
// no SSID configured.
var ErrNoCredentials = errors.New("config: no wifi credentials for the selected sink")

const (
	defaultDeepSleepIntervalMs = 15 * 60 * 1000
	defaultMQTTPort            = 1883
	defaultMQTTTopic           = "torpedo/hydrometer"
	defaultListen              = ":80"
	defaultAPSSID              = "torpedo"
)

// Settings mirrors the user settings file. Keys match the JSON written by
// earlier firmware so existing files load unchanged (YAML is a JSON
// superset).
type Settings struct {
	APSSID              string            `yaml:"apSsid" json:"apSsid"`
	APPass              string            `yaml:"apPass" json:"apPass"`
	WiFi                WiFiConfig        `yaml:"wifi" json:"wifi"`
	FermenterAP         FermenterAPConfig `yaml:"fermenterAp" json:"fermenterAp"`
	MQTT                MQTTConfig        `yaml:"mqtt" json:"mqtt"`
	DeepSleepIntervalMs int               `yaml:"deepSleepIntervalMs" json:"deepSleepIntervalMs"`
	Web                 WebConfig         `yaml:"web" json:"web"`
	Board               BoardConfig       `yaml:"board" json:"board"`
}

type WiFiConfig struct {
	SSID string `yaml:"ssid" json:"ssid"`
	Pass string `yaml:"pass" json:"pass"`
}

// FermenterAPConfig is the alternate network and HTTP endpoint used when
// MQTT is disabled.
type FermenterAPConfig struct {
	SSID    string `yaml:"ssid" json:"ssid"`
	Pass    string `yaml:"pass" json:"pass"`
	Host    string `yaml:"host" json:"host"`
	API     string `yaml:"api" json:"api"`
	Enabled bool   `yaml:"enabled" json:"enabled"`
}

type MQTTConfig struct {
	BrokerAddr string `yaml:"brokerAddr" json:"brokerAddr"`
	BrokerPort int    `yaml:"brokerPort" json:"brokerPort"`
	Username   string `yaml:"username" json:"username"`
	Password   string `yaml:"password" json:"password"`
	ClientID   string `yaml:"clientId" json:"clientId"`
	Topic      string `yaml:"topic" json:"topic"`
	Enabled    bool   `yaml:"enabled" json:"enabled"`
}

type WebConfig struct {
	Listen string `yaml:"listen" json:"listen"`
}

// BoardConfig holds the Linux device paths backing the hardware roles.
type BoardConfig struct {
	GPIOChip     string  `yaml:"gpioChip" json:"gpioChip"`
	I2CBus       string  `yaml:"i2cBus" json:"i2cBus"`
	// BatteryADC overrides the in_voltageN_raw file picked from the pin
	// table's battery channel.
	BatteryADC   string  `yaml:"batteryADC" json:"batteryADC"`
	BatteryScale float64 `yaml:"batteryScale" json:"batteryScale"`
	W1Devices    string  `yaml:"w1Devices" json:"w1Devices"`
	WLANIface    string  `yaml:"wlanIface" json:"wlanIface"`
}

// Credentials returns the network used for reporting: the primary Wi-Fi when
// MQTT is enabled, the fermenter AP otherwise.
func (s Settings) Credentials() (ssid, pass string, err error) {
	if s.MQTT.Enabled {
		ssid, pass = s.WiFi.SSID, s.WiFi.Pass
	} else {
		ssid, pass = s.FermenterAP.SSID, s.FermenterAP.Pass
	}
	if strings.TrimSpace(ssid) == "" {
		return "", "", ErrNoCredentials
	}
	return ssid, pass, nil
}

// Default is the configuration used before any settings file exists: the
// access point is up and nothing is reported.
func Default() Settings {
	cfg := Settings{APSSID: defaultAPSSID}
	_ = DefaultAndValidate(&cfg)
	return cfg
}

func Load(path string) (Settings, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, err
	}

	var cfg Settings
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		var te *yaml.TypeError
		if errors.As(err, &te) {
			return Settings{}, fmt.Errorf("config contains unknown fields: %s", strings.Join(te.Errors, "; "))
		}
		return Settings{}, err
	}

	if err := DefaultAndValidate(&cfg); err != nil {
		return Settings{}, err
	}
	return cfg, nil
}

// DefaultAndValidate fills defaults in place and rejects invalid settings.
func DefaultAndValidate(cfg *Settings) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.APSSID = strings.TrimSpace(cfg.APSSID)
	if cfg.APSSID == "" {
		return errors.New("apSsid is required")
	}
	if cfg.DeepSleepIntervalMs == 0 {
		cfg.DeepSleepIntervalMs = defaultDeepSleepIntervalMs
	}
	if cfg.DeepSleepIntervalMs < 0 {
		return errors.New("deepSleepIntervalMs must be > 0")
	}

	for _, f := range []struct{ name, v string }{
		{"apSsid", cfg.APSSID},
		{"apPass", cfg.APPass},
		{"wifi.ssid", cfg.WiFi.SSID},
		{"wifi.pass", cfg.WiFi.Pass},
		{"fermenterAp.ssid", cfg.FermenterAP.SSID},
		{"fermenterAp.pass", cfg.FermenterAP.Pass},
	} {
		if hasControl(f.v) {
			return fmt.Errorf("%s must not contain control characters", f.name)
		}
	}

	if cfg.MQTT.BrokerPort == 0 {
		cfg.MQTT.BrokerPort = defaultMQTTPort
	}
	if cfg.MQTT.Topic == "" {
		cfg.MQTT.Topic = defaultMQTTTopic
	}
	if cfg.MQTT.Enabled {
		if strings.TrimSpace(cfg.MQTT.BrokerAddr) == "" {
			return errors.New("mqtt.brokerAddr is required when mqtt.enabled is true")
		}
		if cfg.MQTT.BrokerPort < 1 || cfg.MQTT.BrokerPort > 65535 {
			return fmt.Errorf("mqtt.brokerPort must be in [1,65535], got %d", cfg.MQTT.BrokerPort)
		}
	}

	if cfg.Web.Listen == "" {
		cfg.Web.Listen = defaultListen
	}

	// Board defaults match a Raspberry Pi with the hydrometer hat.
	if cfg.Board.GPIOChip == "" {
		cfg.Board.GPIOChip = "gpiochip0"
	}
	if cfg.Board.I2CBus == "" {
		cfg.Board.I2CBus = "/dev/i2c-1"
	}
	if cfg.Board.BatteryScale <= 0 {
		cfg.Board.BatteryScale = 0.0017
	}
	if cfg.Board.W1Devices == "" {
		cfg.Board.W1Devices = "/sys/bus/w1/devices"
	}
	if cfg.Board.WLANIface == "" {
		cfg.Board.WLANIface = "wlan0"
	}
	return nil
}

func hasControl(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) {
			return true
		}
	}
	return false
}

// Save writes the settings atomically: a temp file in the same directory is
// synced and renamed over the target.
func Save(path string, cfg Settings) error {
	if err := DefaultAndValidate(&cfg); err != nil {
		return err
	}
	b, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, b)
}

func writeFileAtomic(path string, b []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
