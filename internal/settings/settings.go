package settings

import (
	"time"

	"fog-control/internal/plan"
)

type Backend struct {
	// BaseURL empty means no backend: the core runs on the mock API.
	BaseURL   string        `json:"base_url"`
	UserID    string        `json:"user_id"`
	Timeout   time.Duration `json:"timeout"`
	APIKeyEnc string        `json:"api_key_enc,omitempty"`
}

type Poll struct {
	Interval     time.Duration `json:"interval"`
	DefaultRange string        `json:"default_range"`
}

type MQTT struct {
	Enabled     bool   `json:"enabled"`
	Broker      string `json:"broker"`
	Port        int    `json:"port"`
	Topic       string `json:"topic"`
	Username    string `json:"username,omitempty"`
	PasswordEnc string `json:"password_enc,omitempty"`
}

type EmbeddedNATS struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	HTTPPort int    `json:"http_port"`
	StoreDir string `json:"store_dir"`
}

// TankConfig maps a device's ultrasonic distance reading onto volume.
type TankConfig struct {
	DeviceID  string  `json:"device_id"`
	HeightCM  float64 `json:"height_cm"`
	CapacityL float64 `json:"capacity_l"`
}

type Settings struct {
	Version int `json:"version"`

	HTTPAddr string `json:"http_addr"`

	Backend Backend `json:"backend"`
	Poll    Poll    `json:"poll"`
	MQTT    MQTT    `json:"mqtt"`

	NATSURL      string       `json:"nats_url"`
	NATSPrefix   string       `json:"nats_prefix"`
	EmbeddedNATS EmbeddedNATS `json:"embedded_nats"`

	Tanks       []TankConfig      `json:"tanks,omitempty"`
	DemandUnits []plan.DemandUnit `json:"demand_units,omitempty"`
}

// Tank returns the tank geometry for a device, falling back to the stock
// 100 cm / 200 L unit when none is configured.
func (s Settings) Tank(deviceID string) TankConfig {
	for _, t := range s.Tanks {
		if t.DeviceID == deviceID {
			return t
		}
	}
	return TankConfig{DeviceID: deviceID, HeightCM: 100, CapacityL: 200}
}

func Defaults() Settings {
	return Settings{
		Version:  1,
		HTTPAddr: ":8080",

		Backend: Backend{
			BaseURL: "",
			UserID:  "1",
			Timeout: 10 * time.Second,
		},
		Poll: Poll{
			Interval:     5 * time.Second,
			DefaultRange: "7d",
		},
		MQTT: MQTT{
			Enabled: false,
			Broker:  "localhost",
			Port:    1883,
			Topic:   "biyokaab/+/telemetry",
		},

		NATSURL:    "nats://127.0.0.1:14222",
		NATSPrefix: "fog",
		EmbeddedNATS: EmbeddedNATS{
			Enabled:  false,
			Host:     "127.0.0.1",
			Port:     14222,
			HTTPPort: 18222,
			StoreDir: "data/nats",
		},
	}
}

// Normalize fills in zero fields so a partially edited settings.json cannot
// break startup.
func (s *Settings) Normalize() {
	d := Defaults()
	if s.Version == 0 {
		s.Version = d.Version
	}
	if s.HTTPAddr == "" {
		s.HTTPAddr = d.HTTPAddr
	}
	if s.Backend.UserID == "" {
		s.Backend.UserID = d.Backend.UserID
	}
	if s.Backend.Timeout <= 0 {
		s.Backend.Timeout = d.Backend.Timeout
	}
	if s.Poll.Interval <= 0 {
		s.Poll.Interval = d.Poll.Interval
	}
	if s.Poll.DefaultRange == "" {
		s.Poll.DefaultRange = d.Poll.DefaultRange
	}
	if s.MQTT.Broker == "" {
		s.MQTT.Broker = d.MQTT.Broker
	}
	if s.MQTT.Port == 0 {
		s.MQTT.Port = d.MQTT.Port
	}
	if s.MQTT.Topic == "" {
		s.MQTT.Topic = d.MQTT.Topic
	}
	if s.NATSURL == "" {
		s.NATSURL = d.NATSURL
	}
	if s.NATSPrefix == "" {
		s.NATSPrefix = d.NATSPrefix
	}
	if s.EmbeddedNATS.Host == "" {
		s.EmbeddedNATS.Host = d.EmbeddedNATS.Host
	}
	if s.EmbeddedNATS.Port == 0 {
		s.EmbeddedNATS.Port = d.EmbeddedNATS.Port
	}
	if s.EmbeddedNATS.HTTPPort == 0 {
		s.EmbeddedNATS.HTTPPort = d.EmbeddedNATS.HTTPPort
	}
	if s.EmbeddedNATS.StoreDir == "" {
		s.EmbeddedNATS.StoreDir = d.EmbeddedNATS.StoreDir
	}
}
