package avr

import "fmt"

// Wire framing constants
const (
	// Delimiter terminates every message in both directions.
	Delimiter = '\r'

	// CommandMarker starts every outgoing command and incoming attribute.
	CommandMarker = '#'
)

// Device error responses (group 11). The receiver sends these when it
// rejects a command; they carry no state and are logged only.
const (
	ErrGroupUnknown   = "#11,01" // command group not recognized
	ErrCommandUnknown = "#11,02" // command number within group not recognized
	ErrDataError      = "#11,03" // command data malformed
)

// Command identifies an outgoing instruction to the receiver.
type Command int

const (
	CmdSetPowerState Command = iota
	CmdVolumeUp
	CmdVolumeDown
	CmdBassUp
	CmdBassDown
	CmdTrebleUp
	CmdTrebleDown
	CmdSetLfeTrim
	CmdSetMuteState
	CmdSetDynamicRange
	CmdLipSyncUp
	CmdLipSyncDown
	CmdSelectInput
	CmdSetAudioSource
	CmdSwVersion
	CmdProtocolVersion
)

// commandWire maps each Command to its wire-format group/number pair.
var commandWire = map[Command]string{
	CmdSetPowerState:   "1,01",
	CmdVolumeUp:        "1,02",
	CmdVolumeDown:      "1,03",
	CmdBassUp:          "1,04",
	CmdBassDown:        "1,05",
	CmdTrebleUp:        "1,06",
	CmdTrebleDown:      "1,07",
	CmdSetLfeTrim:      "1,10",
	CmdSetMuteState:    "1,11",
	CmdSetDynamicRange: "1,12",
	CmdLipSyncUp:       "1,20",
	CmdLipSyncDown:     "1,21",
	CmdSelectInput:     "2,01",
	CmdSetAudioSource:  "2,04",
	CmdSwVersion:       "5,01",
	CmdProtocolVersion: "5,02",
}

// Wire returns the group/number pair for the command, e.g. "1,01".
func (c Command) Wire() string {
	return commandWire[c]
}

// String returns a human-readable command name for logging.
func (c Command) String() string {
	switch c {
	case CmdSetPowerState:
		return "SetPowerState"
	case CmdVolumeUp:
		return "VolumeUp"
	case CmdVolumeDown:
		return "VolumeDown"
	case CmdBassUp:
		return "BassUp"
	case CmdBassDown:
		return "BassDown"
	case CmdTrebleUp:
		return "TrebleUp"
	case CmdTrebleDown:
		return "TrebleDown"
	case CmdSetLfeTrim:
		return "SetLfeTrim"
	case CmdSetMuteState:
		return "SetMuteState"
	case CmdSetDynamicRange:
		return "SetDynamicRange"
	case CmdLipSyncUp:
		return "LipSyncUp"
	case CmdLipSyncDown:
		return "LipSyncDown"
	case CmdSelectInput:
		return "SelectInput"
	case CmdSetAudioSource:
		return "SetAudioSource"
	case CmdSwVersion:
		return "SwVersion"
	case CmdProtocolVersion:
		return "ProtocolVersion"
	default:
		return fmt.Sprintf("Command(%d)", int(c))
	}
}

// Command data values
const (
	PowerStateOn  = "1"
	PowerStateOff = "0"

	MuteStateOff = "00"
	MuteStateOn  = "01"

	DynamicRangeAuto = "00"
	DynamicRangeOff  = "01"
	DynamicRangeOn   = "02"

	AudioSourceAnalog  = "00"
	AudioSourceDigital = "01"
	AudioSourceHDMI    = "02"
)

// Attribute identifies a device-reported state value. Each attribute is
// bound one-to-one to a fixed wire-format prefix.
type Attribute int

const (
	AttrPowerState Attribute = iota
	AttrVolumeUp
	AttrVolumeDown
	AttrMuteState
	AttrSelectedInput
	AttrAudioSource
	AttrMystery
	AttrSwVersion
	AttrProtocolVersion
)

// attributeScanOrder is the order the decoder tries prefixes in. The
// prefixes are fixed-width group/number pairs and never overlap, so
// first-match is equivalent to exact-match; catalog_test verifies the
// non-overlap invariant.
var attributeScanOrder = []Attribute{
	AttrPowerState,
	AttrVolumeUp,
	AttrVolumeDown,
	AttrMuteState,
	AttrSelectedInput,
	AttrAudioSource,
	AttrMystery,
	AttrSwVersion,
	AttrProtocolVersion,
}

// attributePrefix maps each Attribute to its incoming wire prefix.
var attributePrefix = map[Attribute]string{
	AttrPowerState:      "#6,01",
	AttrVolumeUp:        "#6,02",
	AttrVolumeDown:      "#6,03",
	AttrMuteState:       "#6,11",
	AttrSelectedInput:   "#7,01",
	AttrAudioSource:     "#7,04",
	AttrMystery:         "#7,05",
	AttrSwVersion:       "#10,01",
	AttrProtocolVersion: "#10,02",
}

// Prefix returns the attribute's wire-format prefix, e.g. "#6,01".
func (a Attribute) Prefix() string {
	return attributePrefix[a]
}

// String returns a human-readable attribute name for logging.
func (a Attribute) String() string {
	switch a {
	case AttrPowerState:
		return "PowerState"
	case AttrVolumeUp:
		return "VolumeUp"
	case AttrVolumeDown:
		return "VolumeDown"
	case AttrMuteState:
		return "MuteState"
	case AttrSelectedInput:
		return "SelectedInput"
	case AttrAudioSource:
		return "AudioSource"
	case AttrMystery:
		return "Mystery"
	case AttrSwVersion:
		return "SwVersion"
	case AttrProtocolVersion:
		return "ProtocolVersion"
	default:
		return fmt.Sprintf("Attribute(%d)", int(a))
	}
}

// Description returns the display name the receiver's manual uses for
// the attribute.
func (a Attribute) Description() string {
	switch a {
	case AttrPowerState:
		return "Power State"
	case AttrVolumeUp:
		return "Volume (Up)"
	case AttrVolumeDown:
		return "Volume (Down)"
	case AttrMuteState:
		return "Mute State"
	case AttrSelectedInput:
		return "Selected Input"
	case AttrAudioSource:
		return "Audio Source"
	case AttrMystery:
		return "N/A"
	case AttrSwVersion:
		return "Main Software Version"
	case AttrProtocolVersion:
		return "Protocol Version"
	default:
		return a.String()
	}
}

// valueLabels maps raw attribute values to human labels. Used for
// logging and presentation only; the raw string remains the value of
// record in the state store.
var valueLabels = map[Attribute]map[string]string{
	AttrPowerState: {
		"0": "Off",
		"1": "On",
	},
	AttrMuteState: {
		"00": "Off",
		"01": "On",
	},
	AttrSelectedInput: {
		"01": "BD/DVD",
		"02": "Video 1",
		"03": "Video 2",
		"04": "CD/AUX",
		"05": "Tape/MD/CDR",
		"06": "Tuner",
		"07": "Video 3",
		"08": "Direct In",
		"09": "TV ARC",
	},
	AttrAudioSource: {
		"00": "Analog",
		"01": "Digital",
		"02": "HDMI",
	},
}

// Label returns the human label for a raw attribute value, or the raw
// value itself when no label is defined.
func (a Attribute) Label(raw string) string {
	if labels, ok := valueLabels[a]; ok {
		if label, ok := labels[raw]; ok {
			return label
		}
	}
	return raw
}

// inputNames is the fixed catalog of the receiver's nine inputs.
var inputNames = map[int]string{
	1: "BD/DVD",
	2: "Video 1",
	3: "Video 2",
	4: "CD/AUX",
	5: "Tape/MD/CDR",
	6: "Tuner",
	7: "Video 3",
	8: "Direct In",
	9: "TV ARC",
}

// inputNumbers is the reverse of inputNames.
var inputNumbers = func() map[string]int {
	m := make(map[string]int, len(inputNames))
	for n, name := range inputNames {
		m[name] = n
	}
	return m
}()

// InputName returns the display name for an input number, or "Unknown"
// for numbers outside the catalog.
func InputName(number int) string {
	if name, ok := inputNames[number]; ok {
		return name
	}
	return "Unknown"
}

// InputNumber returns the input number for a display name, or 0 when
// the name is not in the catalog.
func InputNumber(name string) int {
	return inputNumbers[name]
}

// InputList returns the display names of all inputs in numeric order.
func InputList() []string {
	names := make([]string, 0, len(inputNames))
	for n := 1; n <= len(inputNames); n++ {
		names = append(names, inputNames[n])
	}
	return names
}
