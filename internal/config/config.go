// Package config holds the environment overrides applied on top of the
// persisted settings store. Env wins over settings.json; settings.json wins
// over defaults.
package config

import "os"

type Env struct {
	LogLevel   string
	HTTPAddr   string
	APIBaseURL string
	NATSURL    string
	MQTTBroker string
}

// FromEnv reads the FOG_* variables. Unset variables stay empty and leave
// the stored settings untouched.
func FromEnv() Env {
	return Env{
		LogLevel:   os.Getenv("FOG_LOG_LEVEL"),
		HTTPAddr:   os.Getenv("FOG_HTTP_ADDR"),
		APIBaseURL: os.Getenv("FOG_API_BASE_URL"),
		NATSURL:    os.Getenv("FOG_NATS_URL"),
		MQTTBroker: os.Getenv("FOG_MQTT_BROKER"),
	}
}
