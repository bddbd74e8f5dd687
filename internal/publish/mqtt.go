package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"

	"torpedo/internal/config"
	"torpedo/internal/mqtt"
)

// SinkProfile selects the MQTT payload shape.
type SinkProfile int

const (
	// ProfileFlat is {temperature, sg, plato, battery}.
	ProfileFlat SinkProfile = iota
	// ProfileOneNET is the OneNET datapoint format keyed by device id.
	ProfileOneNET
)

const (
	oneNETBroker = "183.230.40.96"
	oneNETPort   = 1883
)

func (p SinkProfile) String() string {
	switch p {
	case ProfileOneNET:
		return "onenet"
	default:
		return "flat"
	}
}

// ProfileFor derives the payload profile from the broker address.
func ProfileFor(addr string, port int) SinkProfile {
	if addr == oneNETBroker && port == oneNETPort {
		return ProfileOneNET
	}
	return ProfileFlat
}

type flatPayload struct {
	Temperature *float64 `json:"temperature"`
	SG          float64  `json:"sg"`
	Plato       float64  `json:"plato"`
	Battery     float64  `json:"battery"`
}

type datapoint struct {
	V any `json:"v"`
}

type oneNETPayload struct {
	ID uint64 `json:"id"`
	DP struct {
		Temperature []datapoint `json:"temperature"`
		SG          []datapoint `json:"sg"`
		Plato       []datapoint `json:"plato"`
		Battery     []datapoint `json:"battery"`
	} `json:"dp"`
}

// Payload renders r in the profile's shape.
func (p SinkProfile) Payload(r Report) ([]byte, error) {
	switch p {
	case ProfileOneNET:
		var out oneNETPayload
		out.ID = r.DeviceID
		out.DP.Temperature = []datapoint{{V: r.Temperature}}
		out.DP.SG = []datapoint{{V: r.SG}}
		out.DP.Plato = []datapoint{{V: r.Plato}}
		out.DP.Battery = []datapoint{{V: r.BatteryVoltage}}
		return json.Marshal(out)
	default:
		return json.Marshal(flatPayload{
			Temperature: r.Temperature,
			SG:          r.SG,
			Plato:       r.Plato,
			Battery:     r.BatteryVoltage,
		})
	}
}

// Conn is the subset of the MQTT client the sink needs.
type Conn interface {
	Connect() error
	Publish(topic string, payload []byte) error
	Disconnect()
}

// Dialer builds an unconnected client.
type Dialer func(mqtt.Config) (Conn, error)

// MQTTSink publishes once with no retry.
type MQTTSink struct {
	cfg     mqtt.Config
	topic   string
	profile SinkProfile
	dial    Dialer
}

func NewMQTTSink(c config.MQTTConfig, dial Dialer) *MQTTSink {
	return &MQTTSink{
		cfg: mqtt.Config{
			Broker:   mqtt.BrokerURL(c.BrokerAddr, c.BrokerPort),
			ClientID: c.ClientID,
			Username: c.Username,
			Password: c.Password,
		},
		topic:   c.Topic,
		profile: ProfileFor(c.BrokerAddr, c.BrokerPort),
		dial:    dial,
	}
}

func (s *MQTTSink) Profile() SinkProfile { return s.profile }

// Publish makes a single attempt. The error is returned for logging only.
func (s *MQTTSink) Publish(_ context.Context, r Report) error {
	payload, err := s.profile.Payload(r)
	if err != nil {
		return fmt.Errorf("publish: encode report: %w", err)
	}
	cfg := s.cfg
	if cfg.ClientID == "" {
		cfg.ClientID = strconv.FormatUint(r.DeviceID, 10)
	}
	conn, err := s.dial(cfg)
	if err != nil {
		log.Printf("publish: mqtt client: %v", err)
		return err
	}
	if err := conn.Connect(); err != nil {
		log.Printf("publish: %v", err)
		return err
	}
	defer conn.Disconnect()

	if err := conn.Publish(s.topic, payload); err != nil {
		log.Printf("publish: %v", err)
		return err
	}
	log.Printf("publish: %s report sent to %s", s.profile, s.topic)
	return nil
}
