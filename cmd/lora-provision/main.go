// Command lora-provision performs a one-time OTAA provisioning of the
// LoRaWAN module: factory reset, join EUI and application key, channel
// plan, then a join attempt to verify the credentials work.
package main

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	mipot "github.com/lorahub/go-mipot"
	"github.com/lorahub/go-mipot/gate/gpiod"
	"github.com/lorahub/go-mipot/transport/uart"
)

// joinWait is how long a join of the community network may reasonably
// take before provisioning is declared failed.
const joinWait = 2 * time.Minute

func main() {
	device := flag.String("device", "/dev/serial0", "serial device of the module")
	chip := flag.String("gpiochip", gpiod.DefaultChip, "GPIO chip carrying the control lines")
	resetPin := flag.Int("reset-pin", gpiod.DefaultResetPin, "NRST line offset")
	wakePin := flag.Int("wake-pin", gpiod.DefaultWakePin, "NWAKE line offset")
	joinEUIHex := flag.String("joineui", "", "join EUI, 16 hex digits (required)")
	keyHex := flag.String("key", "", "application key, 32 hex digits (required)")
	verbose := flag.Bool("v", false, "log wire traffic")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if !*verbose {
		log = log.Level(zerolog.InfoLevel)
	}

	joinEUI, err := hex.DecodeString(*joinEUIHex)
	if err != nil || len(joinEUI) != 8 {
		log.Fatal().Msg("bad join EUI, want 16 hex digits")
	}
	var appKey [16]byte
	key, err := hex.DecodeString(*keyHex)
	if err != nil || len(key) != 16 {
		log.Fatal().Msg("bad application key, want 32 hex digits")
	}
	copy(appKey[:], key)

	dev, cleanup, err := openModule(*device, *chip, *resetPin, *wakePin, log)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot open module")
	}
	defer cleanup()

	if err := provision(dev, joinEUI, appKey, log); err != nil {
		log.Fatal().Err(err).Msg("provisioning failed")
	}
	log.Info().Msg("join OK")
}

func provision(dev *mipot.Device, joinEUI []byte, appKey [16]byte, log zerolog.Logger) error {
	ok, err := dev.FactoryReset()
	if err != nil {
		return fmt.Errorf("factory reset: %w", err)
	}
	if !ok {
		return errors.New("factory reset rejected")
	}

	// Deliver rx data indications 1ms after the wake edge.
	if _, err := dev.EepromWrite(mipot.EepromDataIndicateTimeout, []byte{0x01}); err != nil {
		return fmt.Errorf("data indicate timeout: %w", err)
	}

	if err := dev.SetAppKey(appKey); err != nil {
		return fmt.Errorf("app key: %w", err)
	}

	// The join EUI is stored least significant byte first.
	reversed := make([]byte, len(joinEUI))
	for i, b := range joinEUI {
		reversed[len(joinEUI)-1-i] = b
	}
	if _, err := dev.EepromWrite(mipot.EepromJoinEUI, reversed); err != nil {
		return fmt.Errorf("join EUI: %w", err)
	}

	if err := dev.SetBatteryLevel(mipot.BatteryMains); err != nil {
		return fmt.Errorf("battery level: %w", err)
	}

	if err := dev.ConfigureTTNChannels(); err != nil {
		return fmt.Errorf("channel plan: %w", err)
	}

	st, err := dev.Join(mipot.JoinOTAA)
	if err != nil {
		return fmt.Errorf("join: %w", err)
	}
	if st != mipot.JoinOK {
		return fmt.Errorf("join command failed with code %d", st)
	}
	log.Info().Msg("join in progress")

	deadline := time.Now().Add(joinWait)
	for time.Now().Before(deadline) {
		ind, err := dev.GetIndication(time.Until(deadline))
		if errors.Is(err, mipot.ErrNoIndication) {
			continue
		}
		if err != nil {
			return err
		}
		join, ok := ind.(mipot.JoinEvent)
		if !ok {
			continue
		}
		if !join.Success {
			return errors.New("network rejected the join")
		}
		return nil
	}

	// Leave the module in a defined state before giving up.
	if err := dev.Reset(); err != nil {
		log.Warn().Err(err).Msg("reset after failed join")
	}
	return errors.New("timeout while waiting for the join indication")
}

func openModule(device, chip string, resetPin, wakePin int, log zerolog.Logger) (*mipot.Device, func(), error) {
	port, err := uart.Open(device)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", device, err)
	}
	lines, err := gpiod.Request(chip, resetPin, wakePin)
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
