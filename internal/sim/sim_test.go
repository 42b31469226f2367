package sim

import (
	"context"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/openavr/azurctl/internal/avr"
	"github.com/openavr/azurctl/internal/transport"
)

func TestHandleCommand(t *testing.T) {
	tests := []struct {
		name string
		cmds []string // applied in order; replies checked for the last
		want []string
	}{
		{"power on", []string{"#1,01,1"}, []string{"#6,01,1"}},
		{"power off", []string{"#1,01,1", "#1,01,0"}, []string{"#6,01,0"}},
		{"power bad data", []string{"#1,01,2"}, []string{"#11,03"}},
		{"volume up echoes new level", []string{"#1,01,1", "#1,02,"}, []string{"#6,02,-39"}},
		{"volume down echoes new level", []string{"#1,01,1", "#1,03,"}, []string{"#6,03,-41"}},
		{"volume ignored in standby", []string{"#1,02,"}, nil},
		{"mute on", []string{"#1,11,01"}, []string{"#6,11,01"}},
		{"mute bad data", []string{"#1,11,2"}, []string{"#11,03"}},
		{"select input", []string{"#2,01,06"}, []string{"#7,01,06"}},
		{"select input bad data", []string{"#2,01,6"}, []string{"#11,03"}},
		{"audio source", []string{"#2,04,02"}, []string{"#7,04,02"}},
		{"software version", []string{"#5,01,"}, []string{"#10,01,Version 1.0"}},
		{"protocol version", []string{"#5,02,"}, []string{"#10,02,2.0"}},
		{"unknown group", []string{"#9,01,"}, []string{"#11,01"}},
		{"unknown command in group", []string{"#1,99,"}, []string{"#11,02"}},
		{"missing marker", []string{"1,01,1"}, []string{"#11,01"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(Config{Logger: zap.NewNop()})
			var got []string
			for _, cmd := range tt.cmds {
				got = s.handleCommand(cmd)
			}
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("handleCommand(%q) = %v, want %v", tt.cmds[len(tt.cmds)-1], got, tt.want)
			}
		})
	}
}

func TestVolumeClampedAtScaleEnds(t *testing.T) {
	s := New(Config{Attenuation: 0, Logger: zap.NewNop()})
	s.handleCommand("#1,01,1")

	if got := s.handleCommand("#1,02,"); got[0] != "#6,02,0" {
		t.Errorf("volume up at 0 dB = %v, want clamped echo", got)
	}

	s = New(Config{Attenuation: -90, Logger: zap.NewNop()})
	s.handleCommand("#1,01,1")
	if got := s.handleCommand("#1,03,"); got[0] != "#6,03,-90" {
		t.Errorf("volume down at -90 dB = %v, want clamped echo", got)
	}
}

func eventually(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// End-to-end: a real handler over a real TCP connection against the
// simulator, exercising the power-on probe and target convergence.
func TestEndToEnd(t *testing.T) {
	s := New(Config{Attenuation: -40, Logger: zap.NewNop()})
	addr, err := s.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess, err := transport.Connect(ctx, addr, transport.SessionConfig{
		Logger:          zap.NewNop(),
		ProbeRetryDelay: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer sess.Close()
	h := sess.Handler

	// Power on. The echo triggers the volume probe, whose decrement and
	// compensating increment leave the level where it started.
	h.RequestPower(true)
	eventually(t, h.Power, "power on echo")
	eventually(t, func() bool { return h.Attenuation() == -40 }, "probed volume")
	eventually(t, func() bool { return s.Attenuation() == -40 }, "compensated simulator level")

	// Absolute volume set converges through single steps.
	h.RequestAttenuation(-35)
	eventually(t, func() bool { return h.Attenuation() == -35 }, "handler convergence")
	if got := s.Attenuation(); got != -35 {
		t.Errorf("simulator level = %d after convergence, want -35", got)
	}

	h.RequestMute(true)
	eventually(t, h.Mute, "mute echo")

	h.RequestInputName("Tuner")
	eventually(t, func() bool { return h.InputName() == "Tuner" }, "input echo")

	h.RequestVersions()
	eventually(t, func() bool { return h.SoftwareVersion() == "Version 1.0" }, "software version")
	eventually(t, func() bool { return h.ProtocolVersion() == "2.0" }, "protocol version")

	snap := h.Snapshot()
	if !snap.Power || !snap.Mute || snap.Attenuation != -35 || snap.InputName != "Tuner" {
		t.Errorf("snapshot = %+v, want powered, muted, -35 dB, Tuner", snap)
	}
	if snap.Volume != avr.AttenuationToVolume(-35) {
		t.Errorf("snapshot volume = %d, want %d", snap.Volume, avr.AttenuationToVolume(-35))
	}
}

func TestEndToEndDeviceErrors(t *testing.T) {
	s := New(Config{Logger: zap.NewNop()})
	addr, err := s.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess, err := transport.Connect(ctx, addr, transport.SessionConfig{Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer sess.Close()
	h := sess.Handler

	// A rejected command draws an error response, which the handler
	// logs without touching state.
	h.RequestAudioSource("99")
	h.RequestMute(true)
	eventually(t, h.Mute, "mute echo after device error")
	if h.AudioSourceName() != "Unknown" {
		t.Errorf("AudioSourceName() = %q, want Unknown", h.AudioSourceName())
	}
}
