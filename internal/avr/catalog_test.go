package avr

import (
	"strings"
	"testing"
)

func TestCommandWire(t *testing.T) {
	tests := []struct {
		cmd  Command
		want string
	}{
		{CmdSetPowerState, "1,01"},
		{CmdVolumeUp, "1,02"},
		{CmdVolumeDown, "1,03"},
		{CmdSetMuteState, "1,11"},
		{CmdSelectInput, "2,01"},
		{CmdSetAudioSource, "2,04"},
		{CmdSwVersion, "5,01"},
		{CmdProtocolVersion, "5,02"},
	}

	for _, tt := range tests {
		t.Run(tt.cmd.String(), func(t *testing.T) {
			if got := tt.cmd.Wire(); got != tt.want {
				t.Errorf("%v.Wire() = %q, want %q", tt.cmd, got, tt.want)
			}
		})
	}
}

// Every command must have a wire pair and a proper name; a zero-value
// map lookup or a Command(%d) fallback here means the catalog and the
// enum drifted apart.
func TestCommandCatalogComplete(t *testing.T) {
	for cmd := CmdSetPowerState; cmd <= CmdProtocolVersion; cmd++ {
		if cmd.Wire() == "" {
			t.Errorf("command %v has no wire pair", cmd)
		}
		if strings.HasPrefix(cmd.String(), "Command(") {
			t.Errorf("command %d has no name", int(cmd))
		}
	}
}

// The decoder takes the first matching prefix, which is only correct
// if no prefix is a prefix of another.
func TestAttributePrefixesDoNotOverlap(t *testing.T) {
	for _, a := range attributeScanOrder {
		for _, b := range attributeScanOrder {
			if a == b {
				continue
			}
			if strings.HasPrefix(b.Prefix(), a.Prefix()) {
				t.Errorf("prefix %q (%v) shadows %q (%v)", a.Prefix(), a, b.Prefix(), b)
			}
		}
	}
}

func TestAttributeScanOrderComplete(t *testing.T) {
	seen := make(map[Attribute]bool)
	for _, attr := range attributeScanOrder {
		if seen[attr] {
			t.Errorf("attribute %v listed twice in scan order", attr)
		}
		seen[attr] = true
		if attr.Prefix() == "" {
			t.Errorf("attribute %v has no prefix", attr)
		}
	}
	if len(seen) != len(attributePrefix) {
		t.Errorf("scan order covers %d attributes, prefix table has %d", len(seen), len(attributePrefix))
	}
}

func TestAttributeLabels(t *testing.T) {
	tests := []struct {
		attr Attribute
		raw  string
		want string
	}{
		{AttrPowerState, "1", "On"},
		{AttrPowerState, "0", "Off"},
		{AttrMuteState, "01", "On"},
		{AttrSelectedInput, "06", "Tuner"},
		{AttrSelectedInput, "07", "Video 3"},
		{AttrAudioSource, "02", "HDMI"},
		// Unlabeled values fall back to the raw string.
		{AttrSwVersion, "Version 1.0", "Version 1.0"},
		{AttrSelectedInput, "42", "42"},
	}

	for _, tt := range tests {
		if got := tt.attr.Label(tt.raw); got != tt.want {
			t.Errorf("%v.Label(%q) = %q, want %q", tt.attr, tt.raw, got, tt.want)
		}
	}
}

func TestInputCatalog(t *testing.T) {
	if got := InputName(6); got != "Tuner" {
		t.Errorf("InputName(6) = %q, want Tuner", got)
	}
	if got := InputName(10); got != "Unknown" {
		t.Errorf("InputName(10) = %q, want Unknown", got)
	}
	if got := InputNumber("Tuner"); got != 6 {
		t.Errorf("InputNumber(Tuner) = %d, want 6", got)
	}
	if got := InputNumber("Phono"); got != 0 {
		t.Errorf("InputNumber(Phono) = %d, want 0", got)
	}

	list := InputList()
	if len(list) != 9 {
		t.Fatalf("InputList() has %d entries, want 9", len(list))
	}
	for i, name := range list {
		if InputNumber(name) != i+1 {
			t.Errorf("InputList()[%d] = %q, does not map back to input %d", i, name, i+1)
		}
	}
}

// Every input the catalog names must decode from the two-digit value
// the receiver reports for it.
func TestInputLabelsMatchCatalog(t *testing.T) {
	labels := valueLabels[AttrSelectedInput]
	for n := 1; n <= 9; n++ {
		raw := "0" + string(rune('0'+n))
		label, ok := labels[raw]
		if !ok {
			t.Errorf("no selected-input label for raw value %q", raw)
			continue
		}
		if label != InputName(n) {
			t.Errorf("label for %q = %q, input catalog says %q", raw, label, InputName(n))
		}
	}
}
