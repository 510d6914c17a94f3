package mipot

// Command opcodes understood by the module. A successful reply echoes
// the request opcode with the reply bit (0x80) set.
const (
	CmdReset            = 0x30
	CmdFactoryReset     = 0x31
	CmdEepromWrite      = 0x32
	CmdEepromRead       = 0x33
	CmdGetFwVersion     = 0x34
	CmdGetSerialNo      = 0x35
	CmdGetDevEUI        = 0x36
	CmdJoin             = 0x40
	CmdGetActivation    = 0x42
	CmdSetAppKey        = 0x43
	CmdSetAppSKey       = 0x44
	CmdSetNwkSKey       = 0x45
	CmdTxMsg            = 0x46
	CmdGetSessionStatus = 0x4A
	CmdSetNextDR        = 0x4B
	CmdSetBattery       = 0x50
	CmdGetBattery       = 0x51
	CmdSetUplinkCnt     = 0x52
	CmdGetUplinkCnt     = 0x53
	CmdSetDownlinkCnt   = 0x54
	CmdGetDownlinkCnt   = 0x55
	CmdSetChParam       = 0x57
	CmdGetChParam       = 0x58
)

// Indication opcodes, sent by the module on its own initiative.
const (
	IndJoin    = 0x41
	IndTxCon   = 0x47
	IndTxUncon = 0x48
	IndRxMsg   = 0x49
)

const (
	syncByte = 0xAA
	replyBit = 0x80
)

// Join modes.
const (
	JoinABP  = 0x00
	JoinOTAA = 0x01
)

// Join command status codes.
const (
	JoinOK           = 0x00
	JoinBadParameter = 0x01
	JoinBusy         = 0x02
)

// Activation states (GetActivationStatus).
const (
	ActivationNotActivated = 0x00
	ActivationJoining      = 0x01
	ActivationJoined       = 0x02
	ActivationMACError     = 0x03
)

// Session states (GetSessionStatus).
const (
	SessionIdle         = 0x00
	SessionBusy         = 0x01
	SessionNotActivated = 0x02
	SessionDelayed      = 0x03
)

// Transmit status codes (TxMsg).
const (
	TxOK           = 0x00
	TxBusy         = 0x01
	TxNotActivated = 0x02
	TxDutyCycle    = 0x03
	TxBadPort      = 0x04
	TxBadLength    = 0x05
	TxSilent       = 0x06
	TxError        = 0x07
)

// Channel configuration status codes (SetChParameters).
const (
	ChOK           = 0x00
	ChBadChannel   = 0xF1
	ChBadDataRate  = 0xF2
	ChBadFrequency = 0xF3
	ChMACBusy      = 0xF4
)

// Battery levels. Values 1-254 report a measured level.
const (
	BatteryMains   = 0x00
	BatteryUnknown = 0xFF
)

// EEPROM locations used by the provisioning tools.
const (
	EepromJoinEUI             = 0x08
	EepromClass               = 0x20
	EepromADR                 = 0x23
	EepromUnconfirmedRepeat   = 0x25
	EepromPublicNetwork       = 0x2E
	EepromDataIndicateTimeout = 0x80
)

func isCommand(op byte) bool {
	switch op {
	case CmdReset, CmdFactoryReset, CmdEepromWrite, CmdEepromRead,
		CmdGetFwVersion, CmdGetSerialNo, CmdGetDevEUI,
		CmdJoin, CmdGetActivation,
		CmdSetAppKey, CmdSetAppSKey, CmdSetNwkSKey,
		CmdTxMsg, CmdGetSessionStatus, CmdSetNextDR,
		CmdSetBattery, CmdGetBattery,
		CmdSetUplinkCnt, CmdGetUplinkCnt, CmdSetDownlinkCnt, CmdGetDownlinkCnt,
		CmdSetChParam, CmdGetChParam:
		return true
	}
	return false
}

func isIndication(op byte) bool {
	switch op {
	case IndJoin, IndTxCon, IndTxUncon, IndRxMsg:
		return true
	}
	return false
}
