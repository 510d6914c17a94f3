package config

import (
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lora-telemetry.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadTelemetryConfigDefaults(t *testing.T) {
	c := qt.New(t)
	path := writeConfig(t, "")

	cfg, err := LoadTelemetryConfig(path)
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.SerialDevice, qt.Equals, "/dev/serial0")
	c.Assert(cfg.GpioChip, qt.Equals, "gpiochip0")
	c.Assert(cfg.ResetPin, qt.Equals, 5)
	c.Assert(cfg.WakePin, qt.Equals, 8)
	c.Assert(cfg.ThermalZone, qt.Equals, "/sys/class/thermal/thermal_zone0/temp")
	c.Assert(cfg.Port, qt.Equals, uint8(1))
	c.Assert(cfg.MQTT.ClientID, qt.Equals, "lora-telemetry")
	c.Assert(cfg.MQTT.TelemetryTopic, qt.Equals, "lora/telemetry")
	c.Assert(cfg.MQTT.DownlinkTopic, qt.Equals, "lora/downlink")
}

func TestLoadTelemetryConfig(t *testing.T) {
	c := qt.New(t)
	path := writeConfig(t, `
serial_device = "/dev/ttyAMA0"
port = 42

[mqtt]
broker = "tcp://broker.local:1883"
client_id = "sensor-7"
`)

	cfg, err := LoadTelemetryConfig(path)
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.SerialDevice, qt.Equals, "/dev/ttyAMA0")
	c.Assert(cfg.Port, qt.Equals, uint8(42))
	c.Assert(cfg.MQTT.Broker, qt.Equals, "tcp://broker.local:1883")
	c.Assert(cfg.MQTT.ClientID, qt.Equals, "sensor-7")
	c.Assert(cfg.MQTT.TelemetryTopic, qt.Equals, "lora/telemetry")
}

func TestLoadTelemetryConfigBadPort(t *testing.T) {
	c := qt.New(t)
	path := writeConfig(t, "port = 224\n")

	_, err := LoadTelemetryConfig(path)
	c.Assert(err, qt.IsNotNil)
}

func TestLoadTelemetryConfigMissingFile(t *testing.T) {
	c := qt.New(t)
	_, err := LoadTelemetryConfig(filepath.Join(t.TempDir(), "nope.toml"))
	c.Assert(err, qt.IsNotNil)
}

func TestValidateTelemetryConfig(t *testing.T) {
	c := qt.New(t)
	valid := TelemetryConfig{SerialDevice: "/dev/serial0", Port: 1}
	c.Assert(ValidateTelemetryConfig(valid), qt.IsNil)

	noDevice := valid
	noDevice.SerialDevice = " "
	c.Assert(ValidateTelemetryConfig(noDevice), qt.IsNotNil)

	brokerNoTopic := valid
	brokerNoTopic.MQTT.Broker = "tcp://broker.local:1883"
	c.Assert(ValidateTelemetryConfig(brokerNoTopic), qt.IsNotNil)
}
