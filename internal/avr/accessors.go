package avr

import (
	"fmt"
	"strconv"
)

// Typed read/write surface over the state store and command encoder.
//
// Reads are pure snapshots of the last-known device state and never
// touch the wire. Request methods enqueue a command (or no-op on
// invalid input) and return immediately; the protocol has no
// acknowledgment channel, so confirmation arrives, if at all, as a
// later attribute message.

// UnknownVersion is reported while the device has not yet announced a
// version string.
const UnknownVersion = "Unknown Version"

// getInt parses an attribute as an integer, defaulting to 0 when the
// value is missing or non-numeric.
func (h *Handler) getInt(attr Attribute) int {
	n, err := strconv.Atoi(h.getAttr(attr))
	if err != nil {
		return 0
	}
	return n
}

// getBool parses an attribute as a boolean ("1"/"01" true, "0"/"00"
// false), defaulting to false when missing or non-numeric.
func (h *Handler) getBool(attr Attribute) bool {
	n, err := strconv.Atoi(h.getAttr(attr))
	if err != nil {
		return false
	}
	return n != 0
}

// Power reports whether the receiver is powered on.
func (h *Handler) Power() bool {
	return h.getBool(AttrPowerState)
}

// RequestPower asks the receiver to power on or off.
func (h *Handler) RequestPower(on bool) {
	data := PowerStateOff
	if on {
		data = PowerStateOn
	}
	h.post(func() { h.sendCommand(CmdSetPowerState, data) })
}

// Mute reports whether the receiver is muted.
func (h *Handler) Mute() bool {
	return h.getBool(AttrMuteState)
}

// RequestMute asks the receiver to mute or unmute.
func (h *Handler) RequestMute(on bool) {
	data := MuteStateOff
	if on {
		data = MuteStateOn
	}
	h.post(func() { h.sendCommand(CmdSetMuteState, data) })
}

// Attenuation returns the last observed attenuation in dB, or -90 when
// no volume has been observed yet.
func (h *Handler) Attenuation() int {
	db, err := strconv.Atoi(h.getAttr(AttrVolumeUp))
	if err != nil {
		return -90
	}
	return db
}

// RequestAttenuation converges the receiver toward the given
// attenuation (-90..0) using relative volume steps. Out-of-range
// values and targets equal to the current level are ignored.
func (h *Handler) RequestAttenuation(db int) {
	if db < -90 || db > 0 {
		return
	}
	if db == h.getInt(AttrVolumeUp) {
		return
	}
	h.post(func() { h.setVolumeTarget(db) })
}

// Volume returns the last observed volume on the 0-100 scale.
func (h *Handler) Volume() int {
	return AttenuationToVolume(h.Attenuation())
}

// RequestVolume converges the receiver toward a 0-100 volume.
func (h *Handler) RequestVolume(volume int) {
	if volume < 0 || volume > 100 {
		return
	}
	h.RequestAttenuation(VolumeToAttenuation(volume))
}

// VolumeFraction returns the last observed volume as a 0.0-1.0
// fraction.
func (h *Handler) VolumeFraction() float64 {
	return VolumeToFraction(h.Volume())
}

// RequestVolumeFraction converges the receiver toward a 0.0-1.0
// volume fraction.
func (h *Handler) RequestVolumeFraction(fraction float64) {
	if fraction < 0 || fraction > 1 {
		return
	}
	h.RequestVolume(FractionToVolume(fraction))
}

// InputNumber returns the currently selected input number, or 0 when
// unknown.
func (h *Handler) InputNumber() int {
	return h.getInt(AttrSelectedInput)
}

// RequestInputNumber selects an input by number (1-99, zero-padded on
// the wire). Out-of-range numbers are ignored.
func (h *Handler) RequestInputNumber(number int) {
	if number < 1 || number > 99 {
		return
	}
	data := fmt.Sprintf("%02d", number)
	h.post(func() { h.sendCommand(CmdSelectInput, data) })
}

// InputName returns the display name of the currently selected input,
// or "Unknown" when the input is outside the catalog.
func (h *Handler) InputName() string {
	return InputName(h.InputNumber())
}

// RequestInputName selects an input by display name. Names outside the
// catalog are silently ignored.
func (h *Handler) RequestInputName(name string) {
	if number := InputNumber(name); number > 0 {
		h.RequestInputNumber(number)
	}
}

// AudioSourceName returns the label of the active audio source
// (Analog, Digital, HDMI), or "Unknown" before the first report.
func (h *Handler) AudioSourceName() string {
	raw := h.getAttr(AttrAudioSource)
	if raw == "" {
		return "Unknown"
	}
	return AttrAudioSource.Label(raw)
}

// RequestAudioSource selects the audio source. Use the AudioSource*
// constants.
func (h *Handler) RequestAudioSource(source string) {
	h.post(func() { h.sendCommand(CmdSetAudioSource, source) })
}

// RequestDynamicRange sets the dynamic range mode. Use the
// DynamicRange* constants.
func (h *Handler) RequestDynamicRange(mode string) {
	h.post(func() { h.sendCommand(CmdSetDynamicRange, mode) })
}

// RequestLfeTrim sets the LFE channel trim. The receiver expects the
// raw two-digit trim value.
func (h *Handler) RequestLfeTrim(data string) {
	h.post(func() { h.sendCommand(CmdSetLfeTrim, data) })
}

// Tone and lip-sync adjustments are relative single steps, like the
// volume commands.

// RequestBassUp raises the bass level one step.
func (h *Handler) RequestBassUp() { h.post(func() { h.sendCommand(CmdBassUp, "") }) }

// RequestBassDown lowers the bass level one step.
func (h *Handler) RequestBassDown() { h.post(func() { h.sendCommand(CmdBassDown, "") }) }

// RequestTrebleUp raises the treble level one step.
func (h *Handler) RequestTrebleUp() { h.post(func() { h.sendCommand(CmdTrebleUp, "") }) }

// RequestTrebleDown lowers the treble level one step.
func (h *Handler) RequestTrebleDown() { h.post(func() { h.sendCommand(CmdTrebleDown, "") }) }

// RequestLipSyncUp increases the lip-sync delay one step.
func (h *Handler) RequestLipSyncUp() { h.post(func() { h.sendCommand(CmdLipSyncUp, "") }) }

// RequestLipSyncDown decreases the lip-sync delay one step.
func (h *Handler) RequestLipSyncDown() { h.post(func() { h.sendCommand(CmdLipSyncDown, "") }) }

// SoftwareVersion returns the main software version, or
// "Unknown Version" before the device has reported it.
func (h *Handler) SoftwareVersion() string {
	if v := h.getAttr(AttrSwVersion); v != "" {
		return v
	}
	return UnknownVersion
}

// ProtocolVersion returns the control protocol version, or
// "Unknown Version" before the device has reported it.
func (h *Handler) ProtocolVersion() string {
	if v := h.getAttr(AttrProtocolVersion); v != "" {
		return v
	}
	return UnknownVersion
}

// RequestVersions asks the receiver to report its software and
// protocol versions.
func (h *Handler) RequestVersions() {
	h.post(func() {
		h.sendCommand(CmdSwVersion, "")
		h.sendCommand(CmdProtocolVersion, "")
	})
}

// State is a point-in-time snapshot of everything the handler knows
// about the receiver.
type State struct {
	Power           bool    `json:"power"`
	Mute            bool    `json:"mute"`
	Attenuation     int     `json:"attenuation"`
	Volume          int     `json:"volume"`
	VolumeFraction  float64 `json:"volume_fraction"`
	InputNumber     int     `json:"input_number"`
	InputName       string  `json:"input_name"`
	AudioSource     string  `json:"audio_source"`
	SoftwareVersion string  `json:"software_version"`
	ProtocolVersion string  `json:"protocol_version"`
}

// Snapshot returns the current device state as one consistent value.
func (h *Handler) Snapshot() State {
	return State{
		Power:           h.Power(),
		Mute:            h.Mute(),
		Attenuation:     h.Attenuation(),
		Volume:          h.Volume(),
		VolumeFraction:  h.VolumeFraction(),
		InputNumber:     h.InputNumber(),
		InputName:       h.InputName(),
		AudioSource:     h.AudioSourceName(),
		SoftwareVersion: h.SoftwareVersion(),
		ProtocolVersion: h.ProtocolVersion(),
	}
}
