// Command lora-telemetry periodically sends the SoC temperature as a
// Cayenne-LPP record over LoRaWAN, joining the network when needed and
// stretching the send interval when the network assigns a slow data
// rate. Received downlinks are logged and, when a broker is
// configured, republished over MQTT along with each reading.
package main

import (
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	mipot "github.com/lorahub/go-mipot"
	"github.com/lorahub/go-mipot/gate/gpiod"
	"github.com/lorahub/go-mipot/internal/config"
	"github.com/lorahub/go-mipot/transport/uart"
)

const (
	// joinWait bounds one attempt to get the join indication.
	joinWait = 5 * time.Minute
	// txIndicationWait bounds the wait for the radio outcome of one
	// uplink.
	txIndicationWait = time.Minute
	// minSendsBeforeAdapt: the first uplinks always go out at a low
	// data rate, adapting on those would lock in the slowest interval.
	minSendsBeforeAdapt = 4
)

func main() {
	cfgPath := flag.String("config", "lora-telemetry.toml", "path to the daemon configuration")
	verbose := flag.Bool("v", false, "log wire traffic")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if !*verbose {
		log = log.Level(zerolog.InfoLevel)
	}

	cfg, err := config.LoadTelemetryConfig(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("bad configuration")
	}

	dev, cleanup, err := openModule(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot open module")
	}
	defer cleanup()

	var pub *publisher
	if cfg.MQTT.Broker != "" {
		pub, err = newPublisher(cfg.MQTT)
		if err != nil {
			log.Fatal().Err(err).Str("broker", cfg.MQTT.Broker).Msg("cannot connect to broker")
		}
		defer pub.close()
	}

	if err := dev.SetBatteryLevel(mipot.BatteryMains); err != nil {
		log.Fatal().Err(err).Msg("cannot set power source")
	}

	run(dev, cfg, pub, log)
}

func run(dev *mipot.Device, cfg config.TelemetryConfig, pub *publisher, log zerolog.Logger) {
	interval := 5 * time.Minute
	sent := 0
	for {
		if ensureJoined(dev, log) {
			if dataRate, ok := sendReading(dev, cfg, pub, log); ok {
				sent++
				if sent > minSendsBeforeAdapt {
					if next := sendInterval(dataRate); next != interval {
						log.Info().Dur("interval", next).Msg("adjusting send interval")
						interval = next
					}
				}
			}
		}

		// Drain indications until the next reading is due.
		deadline := time.Now().Add(interval)
		for time.Now().Before(deadline) {
			ind, err := dev.GetIndication(time.Until(deadline))
			if errors.Is(err, mipot.ErrNoIndication) {
				continue
			}
			if err != nil {
				log.Warn().Err(err).Msg("indication wait failed")
				continue
			}
			if rx, ok := ind.(mipot.RxMessage); ok {
				reportDownlink(rx, log)
				pub.downlink(rx)
			}
		}
	}
}

// sendReading transmits one temperature sample and waits for the radio
// outcome. It reports the data rate the network used and whether the
// uplink went out at all.
func sendReading(dev *mipot.Device, cfg config.TelemetryConfig, pub *publisher, log zerolog.Logger) (uint8, bool) {
	temperature, err := readSoCTemperature(cfg.ThermalZone)
	if err != nil {
		log.Error().Err(err).Msg("cannot read temperature")
		return 0, false
	}

	st, err := dev.TxMsg(encodeTemperature(temperature), cfg.Port, false)
	if err != nil {
		log.Error().Err(err).Msg("transmit failed")
		return 0, false
	}
	if st != mipot.TxOK {
		log.Error().Uint8("status", st).Msg("module refused the uplink")
		return 0, false
	}

	deadline := time.Now().Add(txIndicationWait)
	for time.Now().Before(deadline) {
		ind, err := dev.GetIndication(time.Until(deadline))
		if errors.Is(err, mipot.ErrNoIndication) {
			continue
		}
		if err != nil {
			log.Error().Err(err).Msg("tx indication wait failed")
			return 0, false
		}
		switch ev := ind.(type) {
		case mipot.TxUnconfirmed:
			log.Info().
				Float64("temperature", temperature).
				Uint8("data_rate", ev.DataRate).
				Int("power_dbm", ev.PowerDBm).
				Msg("temperature sent")
			pub.reading(temperature, ev.DataRate)
			return ev.DataRate, true
		case mipot.RxMessage:
			reportDownlink(ev, log)
			pub.downlink(ev)
		}
	}
	log.Error().Msg("timeout while waiting for the tx indication")
	return 0, false
}

// ensureJoined brings the module into the joined state, resetting it
// out of MAC errors and waiting for the join indication when a join
// had to be requested.
func ensureJoined(dev *mipot.Device, log zerolog.Logger) bool {
	status, err := dev.GetActivationStatus()
	if err != nil {
		log.Error().Err(err).Msg("cannot read activation status")
		return false
	}
	if status == mipot.ActivationJoined {
		return true
	}

	if status == mipot.ActivationMACError {
		log.Warn().Msg("MAC error, resetting module")
		if err := dev.Reset(); err != nil {
			log.Error().Err(err).Msg("reset failed")
			return false
		}
		// The reset dropped the channel plan.
		if err := dev.ConfigureTTNChannels(); err != nil {
			log.Error().Err(err).Msg("channel plan failed")
			return false
		}
	}

	if status == mipot.ActivationNotActivated {
		log.Info().Msg("requesting join")
		st, err := dev.Join(mipot.JoinOTAA)
		if err != nil {
			log.Error().Err(err).Msg("join failed")
			return false
		}
		if st == mipot.JoinBadParameter {
			log.Fatal().Msg("join rejected: invalid parameter, reprovision the module")
		}
	}

	log.Info().Msg("waiting for network join")
	deadline := time.Now().Add(joinWait)
	for time.Now().Before(deadline) {
		ind, err := dev.GetIndication(time.Until(deadline))
		if errors.Is(err, mipot.ErrNoIndication) {
			continue
		}
		if err != nil {
			log.Error().Err(err).Msg("join indication wait failed")
			return false
		}
		if join, ok := ind.(mipot.JoinEvent); ok {
			if join.Success {
				log.Info().Msg("join successful")
			} else {
				log.Warn().Msg("join failed")
			}
			return join.Success
		}
	}
	log.Warn().Msg("waiting for the join indication timed out")
	return false
}

func reportDownlink(rx mipot.RxMessage, log zerolog.Logger) {
	log.Info().
		Stringer("type", rx.Type).
		Uint8("slot", rx.Slot).
		Uint8("data_rate", rx.DataRate).
		Int16("rssi_dbm", rx.RSSIDBm).
		Uint8("snr", rx.SNR).
		Uint8("port", rx.Port).
		Bool("frame_pending", rx.FramePending).
		Hex("data", rx.Data).
		Msg("downlink received")
}

// readSoCTemperature reads a sysfs thermal zone in millidegrees.
func readSoCTemperature(path string) (float64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	milli, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	return float64(milli) / 1000, nil
}

// encodeTemperature builds a Cayenne-LPP temperature record on channel
// 0: type 0x67, 0.1°C resolution, big-endian, rounded half away from
// zero.
func encodeTemperature(celsius float64) []byte {
	scaled := int16(math.Round(celsius * 10))
	return []byte{0x00, 0x67, byte(uint16(scaled) >> 8), byte(uint16(scaled))}
}

// sendInterval keeps the airtime under the community network's 30s per
// day budget: the slower the data rate, the longer the pause.
func sendInterval(dataRate uint8) time.Duration {
	switch {
	case dataRate >= 4:
		return 5 * time.Minute
	case dataRate == 3:
		return 10 * time.Minute
	case dataRate == 2:
		return 20 * time.Minute
	case dataRate == 1:
		return 30 * time.Minute
	default:
		return time.Hour
	}
}

func openModule(cfg config.TelemetryConfig, log zerolog.Logger) (*mipot.Device, func(), error) {
	port, err := uart.Open(cfg.SerialDevice)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", cfg.SerialDevice, err)
	}
	lines, err := gpiod.Request(cfg.GpioChip, cfg.ResetPin, cfg.WakePin)
	if err != nil {
		port.Close()
		return nil, nil, fmt.Errorf("claim control lines: %w", err)
	}
	cleanup := func() {
		lines.Close()
		port.Close()
	}
	if err := lines.Sleep(); err != nil {
		cleanup()
		return nil, nil, err
	}
	if err := lines.Reset(); err != nil {
		cleanup()
		return nil, nil, err
	}
	return mipot.New(port, lines, mipot.Config{Logger: &log}), cleanup, nil
}
