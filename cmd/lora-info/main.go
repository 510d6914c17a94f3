// Command lora-info dumps identity and configuration of the LoRaWAN
// module: firmware version, serial number, EUIs and the EEPROM
// settings relevant for provisioning.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	mipot "github.com/lorahub/go-mipot"
	"github.com/lorahub/go-mipot/gate/gpiod"
	"github.com/lorahub/go-mipot/transport/uart"
)

func main() {
	device := flag.String("device", "/dev/serial0", "serial device of the module")
	chip := flag.String("gpiochip", gpiod.DefaultChip, "GPIO chip carrying the control lines")
	resetPin := flag.Int("reset-pin", gpiod.DefaultResetPin, "NRST line offset")
	wakePin := flag.Int("wake-pin", gpiod.DefaultWakePin, "NWAKE line offset")
	verbose := flag.Bool("v", false, "log wire traffic")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if !*verbose {
		log = log.Level(zerolog.InfoLevel)
	}

	dev, cleanup, err := openModule(*device, *chip, *resetPin, *wakePin, log)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot open module")
	}
	defer cleanup()

	if err := dump(dev); err != nil {
		log.Fatal().Err(err).Msg("module query failed")
	}
}

func dump(dev *mipot.Device) error {
	fw, err := dev.GetFwVersion()
	if err != nil {
		return err
	}
	fmt.Printf("Module version: %x\n", fw)

	serial, err := dev.GetSerialNo()
	if err != nil {
		return err
	}
	fmt.Printf("Module serial: %d\n", serial)

	eui, err := dev.GetDevEUI()
	if err != nil {
		return err
	}
	fmt.Printf("Device EUI: % X\n", eui)

	joinEUI, err := dev.EepromRead(mipot.EepromJoinEUI, 8)
	if err != nil {
		return err
	}
	// EEPROM holds the join EUI least significant byte first.
	for i, j := 0, len(joinEUI)-1; i < j; i, j = i+1, j-1 {
		joinEUI[i], joinEUI[j] = joinEUI[j], joinEUI[i]
	}
	fmt.Printf("Join EUI: % X\n", joinEUI)

	class, err := dev.EepromRead(mipot.EepromClass, 1)
	if err != nil {
		return err
	}
	switch class[0] {
	case 0:
		fmt.Println("Class: A")
	case 1:
		fmt.Println("Class: C")
	default:
		fmt.Printf("Unknown class: 0x%02X\n", class[0])
	}

	adr, err := dev.EepromRead(mipot.EepromADR, 1)
	if err != nil {
		return err
	}
	if adr[0] == 0 {
		fmt.Println("ADR disabled")
	} else {
		fmt.Println("ADR enabled")
	}

	repeat, err := dev.EepromRead(mipot.EepromUnconfirmedRepeat, 1)
	if err != nil {
		return err
	}
	fmt.Printf("Unconfirmed message repeat: %d\n", repeat[0])

	public, err := dev.EepromRead(mipot.EepromPublicNetwork, 1)
	if err != nil {
		return err
	}
	switch public[0] {
	case 0:
		fmt.Println("Network: private")
	case 1:
		fmt.Println("Network: public")
	default:
		fmt.Printf("Unknown network config: 0x%02X\n", public[0])
	}
	return nil
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
