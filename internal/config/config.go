package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// TelemetryConfig drives the lora-telemetry daemon.
type TelemetryConfig struct {
	SerialDevice string     `toml:"serial_device"`
	GpioChip     string     `toml:"gpio_chip"`
	ResetPin     int        `toml:"reset_pin"`
	WakePin      int        `toml:"wake_pin"`
	ThermalZone  string     `toml:"thermal_zone"`
	Port         uint8      `toml:"port"`
	MQTT         MQTTConfig `toml:"mqtt"`
}

// MQTTConfig enables publishing of readings and downlinks when Broker
// is set.
type MQTTConfig struct {
	Broker         string `toml:"broker"`
	ClientID       string `toml:"client_id"`
	TelemetryTopic string `toml:"telemetry_topic"`
	DownlinkTopic  string `toml:"downlink_topic"`
}

func LoadTelemetryConfig(path string) (TelemetryConfig, error) {
	var cfg TelemetryConfig
	if err := loadToml(path, &cfg); err != nil {
		return TelemetryConfig{}, err
	}
	if cfg.SerialDevice == "" {
		cfg.SerialDevice = "/dev/serial0"
	}
	if cfg.GpioChip == "" {
		cfg.GpioChip = "gpiochip0"
	}
	if cfg.ResetPin == 0 {
		cfg.ResetPin = 5
	}
	if cfg.WakePin == 0 {
		cfg.WakePin = 8
	}
	if cfg.ThermalZone == "" {
		cfg.ThermalZone = "/sys/class/thermal/thermal_zone0/temp"
	}
	if cfg.Port == 0 {
		cfg.Port = 1
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "lora-telemetry"
	}
	if cfg.MQTT.TelemetryTopic == "" {
		cfg.MQTT.TelemetryTopic = "lora/telemetry"
	}
	if cfg.MQTT.DownlinkTopic == "" {
		cfg.MQTT.DownlinkTopic = "lora/downlink"
	}
	if err := ValidateTelemetryConfig(cfg); err != nil {
		return TelemetryConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateTelemetryConfig(cfg TelemetryConfig) error {
	if strings.TrimSpace(cfg.SerialDevice) == "" {
		return fmt.Errorf("telemetry config missing serial_device")
	}
	if cfg.Port < 1 || cfg.Port > 223 {
		return fmt.Errorf("telemetry config port %d outside 1-223", cfg.Port)
	}
	if cfg.MQTT.Broker != "" {
		if strings.TrimSpace(cfg.MQTT.TelemetryTopic) == "" {
			return fmt.Errorf("mqtt enabled but telemetry_topic empty")
		}
		if strings.TrimSpace(cfg.MQTT.DownlinkTopic) == "" {
			return fmt.Errorf("mqtt enabled but downlink_topic empty")
		}
	}
	return nil
}
