package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	mipot "github.com/lorahub/go-mipot"
	"github.com/lorahub/go-mipot/internal/config"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// publisher mirrors readings and downlinks to an MQTT broker. A nil
// publisher is valid and discards everything, so the daemon runs the
// same with and without a broker configured.
type publisher struct {
	client         mqtt.Client
	telemetryTopic string
	downlinkTopic  string
}

func newPublisher(cfg config.MQTTConfig) (*publisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true)
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connect to %s: timeout", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Broker, err)
	}
	return &publisher{
		client:         client,
		telemetryTopic: cfg.TelemetryTopic,
		downlinkTopic:  cfg.DownlinkTopic,
	}, nil
}

func (p *publisher) reading(temperature float64, dataRate uint8) {
	if p == nil {
		return
	}
	p.publish(p.telemetryTopic, struct {
		Time        time.Time `json:"time"`
		Temperature float64   `json:"temperature"`
		DataRate    uint8     `json:"data_rate"`
	}{time.Now().UTC(), temperature, dataRate})
}

func (p *publisher) downlink(rx mipot.RxMessage) {
	if p == nil {
		return
	}
	p.publish(p.downlinkTopic, struct {
		Time     time.Time `json:"time"`
		Type     string    `json:"type"`
		Port     uint8     `json:"port"`
		DataRate uint8     `json:"data_rate"`
		RSSIDBm  int16     `json:"rssi_dbm"`
		Data     string    `json:"data"`
	}{time.Now().UTC(), rx.Type.String(), rx.Port, rx.DataRate, rx.RSSIDBm, hex.EncodeToString(rx.Data)})
}

func (p *publisher) publish(topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	// QoS 1: a lost reading is acceptable, a wedged daemon is not.
	p.client.Publish(topic, 1, false, payload).WaitTimeout(publishTimeout)
}

func (p *publisher) close() {
	if p == nil {
		return
	}
	p.client.Disconnect(250)
}
