// Package mqttingest subscribes to the device telemetry topic and turns raw
// ultrasonic readings into sensor updates for the state store. Field units
// publish JSON to biyokaab/<device>/telemetry; device_id and distance_cm are
// mandatory, everything else is best-effort.
package mqttingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"fog-control/internal/model"
)

type Config struct {
	Broker   string
	Port     int
	Topic    string
	Username string
	Password string
	ClientID string
}

// Telemetry is the on-the-wire payload from a field unit.
type Telemetry struct {
	DeviceID    string   `json:"device_id"`
	DistanceCM  *float64 `json:"distance_cm"`
	WaterLevel  *float64 `json:"water_level"`
	Humidity    *float64 `json:"humidity"`
	Temperature *float64 `json:"temperature"`
}

// ParseTelemetry validates the mandatory fields.
func ParseTelemetry(b []byte) (Telemetry, error) {
	var t Telemetry
	if err := json.Unmarshal(b, &t); err != nil {
		return t, fmt.Errorf("telemetry decode: %w", err)
	}
	if t.DeviceID == "" {
		return t, errors.New("telemetry: missing device_id")
	}
	if t.DistanceCM == nil {
		return t, errors.New("telemetry: missing distance_cm")
	}
	return t, nil
}

// ToUpdate converts a reading into a sensor update using the tank geometry:
// distance_cm is sensor-to-surface, so water height is tank height minus
// distance, clamped to the tank.
func ToUpdate(t Telemetry, heightCM, capacityL float64, now time.Time) model.SensorUpdate {
	u := model.SensorUpdate{DeviceID: t.DeviceID, Timestamp: now}
	if heightCM > 0 {
		h := heightCM - *t.DistanceCM
		if h < 0 {
			h = 0
		}
		if h > heightCM {
			h = heightCM
		}
		u.WaterVolumeL = h / heightCM * capacityL
	}
	if t.Humidity != nil {
		u.HumidityPercent = *t.Humidity
	}
	if t.Temperature != nil {
		u.TemperatureC = *t.Temperature
	}
	return u
}

// TankLookup resolves tank geometry for a device id.
type TankLookup func(deviceID string) (heightCM, capacityL float64)

// Handler receives each valid update.
type Handler func(model.SensorUpdate)

type Listener struct {
	cli paho.Client
	log *zap.Logger
}

// Start connects and subscribes. The paho client auto-reconnects and
// re-subscribes via the OnConnect hook.
func Start(cfg Config, tank TankLookup, handle Handler, log *zap.Logger) (*Listener, error) {
	if cfg.ClientID == "" {
		cfg.ClientID = "fog-control-core"
	}
	if cfg.Topic == "" {
		cfg.Topic = "biyokaab/+/telemetry"
	}

	onMessage := func(_ paho.Client, m paho.Message) {
		t, err := ParseTelemetry(m.Payload())
		if err != nil {
			log.Warn("telemetry dropped", zap.String("topic", m.Topic()), zap.Error(err))
			return
		}
		h, c := tank(t.DeviceID)
		handle(ToUpdate(t, h, c, time.Now().UTC()))
	}

	opts := paho.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port)).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(func(c paho.Client) {
			if tok := c.Subscribe(cfg.Topic, 0, onMessage); tok.Wait() && tok.Error() != nil {
				log.Warn("mqtt subscribe failed", zap.String("topic", cfg.Topic), zap.Error(tok.Error()))
				return
			}
			log.Info("mqtt subscribed", zap.String("topic", cfg.Topic))
		})

	cli := paho.NewClient(opts)
	if tok := cli.Connect(); tok.WaitTimeout(10*time.Second) && tok.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", tok.Error())
	}
	return &Listener{cli: cli, log: log}, nil
}

func (l *Listener) Close() {
	if l == nil || l.cli == nil {
		return
	}
	l.cli.Disconnect(250)
}
