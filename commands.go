package mipot

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Reset soft-resets the module and waits for it to boot again. Any
// channel plan previously pushed with SetChParameters is lost.
func (d *Device) Reset() error {
	_, err := d.command(CmdReset, nil, 0, replyTimeout)
	// The module reboots even when the reply got lost on the wire.
	time.Sleep(rebootDelay)
	return err
}

// FactoryReset restores the module EEPROM to factory defaults.
func (d *Device) FactoryReset() (bool, error) {
	r, err := d.command(CmdFactoryReset, nil, 1, factoryTimeout)
	if err != nil {
		return false, err
	}
	st, err := replyStatus(r)
	if err != nil {
		return false, err
	}
	return st == 0, nil
}

// EepromWrite stores data in module EEPROM starting at start.
func (d *Device) EepromWrite(start uint8, data []byte) (bool, error) {
	if len(data) > 0xFE {
		return false, fmt.Errorf("%w: %d bytes exceed the EEPROM write limit", ErrInvalidArgument, len(data))
	}
	if int(start)+len(data) > 0x100 {
		return false, fmt.Errorf("%w: write of %d bytes at 0x%02X runs past the EEPROM end", ErrInvalidArgument, len(data), start)
	}
	payload := append([]byte{start}, data...)
	r, err := d.command(CmdEepromWrite, payload, 1, eepromTimeout)
	if err != nil {
		return false, err
	}
	st, err := replyStatus(r)
	if err != nil {
		return false, err
	}
	return st == 0, nil
}

// EepromRead returns count bytes of module EEPROM starting at start.
func (d *Device) EepromRead(start uint8, count int) ([]byte, error) {
	if count < 0 || count > 0xFF || int(start)+count > 0x100 {
		return nil, fmt.Errorf("%w: read of %d bytes at 0x%02X runs past the EEPROM end", ErrInvalidArgument, count, start)
	}
	r, err := d.command(CmdEepromRead, []byte{start, byte(count)}, -1, eepromTimeout)
	if err != nil {
		return nil, err
	}
	if r.Len() != count+1 || r.Payload[0] != 0 {
		return nil, fmt.Errorf("%w: EEPROM read rejected", ErrProtocol)
	}
	return r.Payload[1:], nil
}

// GetFwVersion returns the module firmware version.
func (d *Device) GetFwVersion() (uint32, error) {
	return d.getUint32(CmdGetFwVersion, replyTimeout)
}

// GetSerialNo returns the module serial number.
func (d *Device) GetSerialNo() (uint32, error) {
	return d.getUint32(CmdGetSerialNo, replyTimeout)
}

// GetDevEUI returns the device EUI in its canonical big-endian form.
// The module transmits it least significant byte first.
func (d *Device) GetDevEUI() ([8]byte, error) {
	var eui [8]byte
	r, err := d.command(CmdGetDevEUI, nil, 8, replyTimeout)
	if err != nil {
		return eui, err
	}
	if r.Len() < 8 {
		return eui, fmt.Errorf("%w: reply 0x%02X too short for an EUI", ErrProtocol, r.Opcode)
	}
	copy(eui[:], r.Payload[:8])
	reverse(eui[:])
	return eui, nil
}

// Join asks the module to join the network, mode JoinABP or JoinOTAA.
// The returned status only acknowledges the request; the outcome
// arrives later as a JoinEvent indication.
func (d *Device) Join(mode byte) (byte, error) {
	if mode > JoinOTAA {
		return 0, fmt.Errorf("%w: join mode %d", ErrInvalidArgument, mode)
	}
	r, err := d.command(CmdJoin, []byte{mode}, 1, replyTimeout)
	if err != nil {
		return 0, err
	}
	return replyStatus(r)
}

// GetActivationStatus reports the network activation state, one of the
// Activation constants.
func (d *Device) GetActivationStatus() (byte, error) {
	r, err := d.command(CmdGetActivation, nil, 1, replyTimeout)
	if err != nil {
		return 0, err
	}
	return replyStatus(r)
}

// SetAppKey stores the OTAA application key in module EEPROM.
func (d *Device) SetAppKey(key [16]byte) error {
	return d.setKey(CmdSetAppKey, key)
}

// SetAppSessionKey stores the ABP application session key.
func (d *Device) SetAppSessionKey(key [16]byte) error {
	return d.setKey(CmdSetAppSKey, key)
}

// SetNwkSessionKey stores the ABP network session key.
func (d *Device) SetNwkSessionKey(key [16]byte) error {
	return d.setKey(CmdSetNwkSKey, key)
}

// Keys travel least significant byte first, like the EUIs.
func (d *Device) setKey(opcode byte, key [16]byte) error {
	buf := make([]byte, len(key))
	copy(buf, key[:])
	reverse(buf)
	_, err := d.command(opcode, buf, 0, keyTimeout)
	return err
}

// TxMsg queues an uplink of data on fport and returns the module's
// transmit status code (one of the Tx constants). The radio outcome
// arrives later as a TxConfirmed or TxUnconfirmed indication.
func (d *Device) TxMsg(data []byte, fport uint8, confirmed bool) (byte, error) {
	if fport < 1 || fport > 223 {
		return 0, fmt.Errorf("%w: port %d outside 1-223", ErrInvalidArgument, fport)
	}
	if len(data) == 0 {
		return 0, fmt.Errorf("%w: nothing to transmit", ErrInvalidArgument)
	}
	if len(data) > 209 {
		return 0, fmt.Errorf("%w: %d bytes exceed the uplink limit", ErrInvalidArgument, len(data))
	}
	var opts byte
	if confirmed {
		opts = 1
	}
	payload := append([]byte{opts, fport}, data...)
	r, err := d.command(CmdTxMsg, payload, 1, replyTimeout)
	if err != nil {
		return 0, err
	}
	return replyStatus(r)
}

// GetSessionStatus reports the MAC session state, one of the Session
// constants.
func (d *Device) GetSessionStatus() (byte, error) {
	r, err := d.command(CmdGetSessionStatus, nil, 1, replyTimeout)
	if err != nil {
		return 0, err
	}
	return replyStatus(r)
}

// SetNextDR selects the data rate (0-7) for the next uplink.
func (d *Device) SetNextDR(dataRate uint8) (bool, error) {
	if dataRate > 7 {
		return false, fmt.Errorf("%w: data rate %d", ErrInvalidArgument, dataRate)
	}
	r, err := d.command(CmdSetNextDR, []byte{dataRate}, 1, replyTimeout)
	if err != nil {
		return false, err
	}
	st, err := replyStatus(r)
	if err != nil {
		return false, err
	}
	return st == 0, nil
}

// SetBatteryLevel tells the MAC layer what to report in DevStatusAns:
// BatteryMains, BatteryUnknown or a measured level 1-254.
func (d *Device) SetBatteryLevel(level uint8) error {
	_, err := d.command(CmdSetBattery, []byte{level}, 0, replyTimeout)
	return err
}

// GetBatteryLevel returns the battery level previously set.
func (d *Device) GetBatteryLevel() (uint8, error) {
	r, err := d.command(CmdGetBattery, nil, 1, replyTimeout)
	if err != nil {
		return 0, err
	}
	return replyStatus(r)
}

// SetUplinkCounter sets the LoRaWAN uplink frame counter.
func (d *Device) SetUplinkCounter(n uint32) error {
	return d.setCounter(CmdSetUplinkCnt, n)
}

// GetUplinkCounter returns the LoRaWAN uplink frame counter.
func (d *Device) GetUplinkCounter() (uint32, error) {
	return d.getUint32(CmdGetUplinkCnt, replyTimeout)
}

// SetDownlinkCounter sets the LoRaWAN downlink frame counter.
func (d *Device) SetDownlinkCounter(n uint32) error {
	return d.setCounter(CmdSetDownlinkCnt, n)
}

// GetDownlinkCounter returns the LoRaWAN downlink frame counter.
func (d *Device) GetDownlinkCounter() (uint32, error) {
	return d.getUint32(CmdGetDownlinkCnt, replyTimeout)
}

// ChannelParams describes one radio channel slot of the module.
type ChannelParams struct {
	FrequencyHz uint32
	MinDataRate uint8
	MaxDataRate uint8
	Enabled     bool
}

// SetChParameters configures channel slot 3-15 with a frequency and a
// data rate window. The 863-869 MHz band edges are checked against
// half the bandwidth implied by the data rates, and the module answers
// with one of the Ch status codes.
func (d *Device) SetChParameters(channel uint8, frequencyHz uint32, minDR, maxDR uint8, enabled bool) (byte, error) {
	if channel < 3 || channel > 15 {
		return 0, fmt.Errorf("%w: channel %d outside 3-15", ErrInvalidArgument, channel)
	}
	if maxDR > 7 {
		return 0, fmt.Errorf("%w: max data rate %d", ErrInvalidArgument, maxDR)
	}
	if minDR > maxDR {
		return 0, fmt.Errorf("%w: min data rate %d above max %d", ErrInvalidArgument, minDR, maxDR)
	}
	var bandwidth int64
	switch {
	case minDR < 6:
		bandwidth = 125000
	case minDR == 6:
		bandwidth = 250000
	default:
		bandwidth = 50000
	}
	if maxDR == 6 && bandwidth < 250000 {
		bandwidth = 250000
	}
	if int64(frequencyHz)-bandwidth/2 < 863000000 || int64(frequencyHz)+bandwidth/2 > 869000000 {
		return 0, fmt.Errorf("%w: %d Hz outside the 863-869 MHz band", ErrInvalidArgument, frequencyHz)
	}
	payload := make([]byte, 7)
	payload[0] = channel
	binary.LittleEndian.PutUint32(payload[1:5], frequencyHz)
	payload[5] = minDR<<4 | maxDR
	if enabled {
		payload[6] = 1
	}
	r, err := d.command(CmdSetChParam, payload, 1, replyTimeout)
	if err != nil {
		return 0, err
	}
	return replyStatus(r)
}

// GetChParameters reads back the configuration of channel slot 0-15.
func (d *Device) GetChParameters(channel uint8) (ChannelParams, error) {
	if channel > 15 {
		return ChannelParams{}, fmt.Errorf("%w: channel %d outside 0-15", ErrInvalidArgument, channel)
	}
	r, err := d.command(CmdGetChParam, []byte{channel}, 6, replyTimeout)
	if err != nil {
		return ChannelParams{}, err
	}
	if r.Len() < 6 {
		return ChannelParams{}, fmt.Errorf("%w: reply 0x%02X too short for channel parameters", ErrProtocol, r.Opcode)
	}
	return ChannelParams{
		FrequencyHz: binary.LittleEndian.Uint32(r.Payload[0:4]),
		MinDataRate: r.Payload[4] >> 4,
		MaxDataRate: r.Payload[4] & 0x0F,
		Enabled:     r.Payload[5] == 1,
	}, nil
}

// TTNFrequencies lists the EU868 uplink channels used by The Things
// Network. Slots 0-2 are the fixed LoRaWAN defaults the module already
// knows.
var TTNFrequencies = [8]uint32{
	868100000, 868300000, 868500000,
	867100000, 867300000, 867500000, 867700000, 867900000,
}

// ConfigureTTNChannels programs the module with the TTN EU868 channel
// plan: slots 3-7 at DR0-5 plus the FSK channel on slot 8. The join
// accept normally carries the channel list, this covers networks that
// omit it.
func (d *Device) ConfigureTTNChannels() error {
	for ch := 3; ch < len(TTNFrequencies); ch++ {
		st, err := d.SetChParameters(uint8(ch), TTNFrequencies[ch], 0, 5, true)
		if err != nil {
			return err
		}
		if st != ChOK {
			return fmt.Errorf("%w: channel %d rejected with status 0x%02X", ErrProtocol, ch, st)
		}
	}
	st, err := d.SetChParameters(8, 868800000, 7, 7, true)
	if err != nil {
		return err
	}
	if st != ChOK {
		return fmt.Errorf("%w: channel 8 rejected with status 0x%02X", ErrProtocol, st)
	}
	return nil
}

// getUint32 runs a parameterless command whose reply is one 32-bit
// little-endian value.
func (d *Device) getUint32(opcode byte, timeout time.Duration) (uint32, error) {
	r, err := d.command(opcode, nil, 4, timeout)
	if err != nil {
		return 0, err
	}
	if r.Len() < 4 {
		return 0, fmt.Errorf("%w: reply 0x%02X too short for a counter", ErrProtocol, r.Opcode)
	}
	return binary.LittleEndian.Uint32(r.Payload[:4]), nil
}

func (d *Device) setCounter(opcode byte, n uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], n)
	_, err := d.command(opcode, buf[:], 0, replyTimeout)
	return err
}

// replyStatus extracts the single status byte most commands report.
func replyStatus(f Frame) (byte, error) {
	if f.Len() < 1 {
		return 0, fmt.Errorf("%w: reply 0x%02X carries no status byte", ErrProtocol, f.Opcode)
	}
	return f.Payload[0], nil
}

// reverse flips b in place. The module transmits EUIs and keys least
// significant byte first, the opposite of their display form.
func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
