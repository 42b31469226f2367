package avr

import (
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// fakeTransport records everything the handler writes.
type fakeTransport struct {
	mu       sync.Mutex
	writes   []string
	writeErr error
	pauses   int
	resumes  int
}

func (f *fakeTransport) Write(p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, string(p))
	return nil
}

func (f *fakeTransport) PauseReading() {
	f.mu.Lock()
	f.pauses++
	f.mu.Unlock()
}

func (f *fakeTransport) ResumeReading() {
	f.mu.Lock()
	f.resumes++
	f.mu.Unlock()
}

func (f *fakeTransport) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.writes))
	copy(out, f.writes)
	return out
}

// count returns how many times a given wire payload was written.
func (f *fakeTransport) count(wire string) int {
	n := 0
	for _, w := range f.sent() {
		if w == wire {
			n++
		}
	}
	return n
}

// updateRecorder collects OnUpdate invocations.
type updateRecorder struct {
	mu   sync.Mutex
	raws []string
}

func (u *updateRecorder) record(raw string) {
	u.mu.Lock()
	u.raws = append(u.raws, raw)
	u.mu.Unlock()
}

func (u *updateRecorder) all() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]string, len(u.raws))
	copy(out, u.raws)
	return out
}

func newTestHandler(t *testing.T, tr *fakeTransport, onUpdate func(string), probeDelay time.Duration) *Handler {
	t.Helper()
	h := NewHandler(Config{
		Transport:       tr,
		OnUpdate:        onUpdate,
		Logger:          zap.NewNop(),
		ProbeRetryDelay: probeDelay,
	})
	t.Cleanup(h.Close)
	return h
}

// settle waits until tasks queued so far, and tasks they queued in
// turn, have run. Three rounds cover the deepest chain a decode can
// produce (decode, posted effect, posted notification).
func settle(h *Handler) {
	for i := 0; i < 3; i++ {
		done := make(chan struct{})
		h.post(func() { close(done) })
		<-done
	}
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestHandlerInitialState(t *testing.T) {
	h := newTestHandler(t, &fakeTransport{}, nil, time.Hour)

	s := h.Snapshot()
	if s.Power || s.Mute {
		t.Errorf("fresh handler reports power=%v mute=%v, want both false", s.Power, s.Mute)
	}
	if s.Attenuation != -90 || s.Volume != 0 {
		t.Errorf("fresh handler reports %d dB / volume %d, want -90 / 0", s.Attenuation, s.Volume)
	}
	if s.InputName != "Unknown" {
		t.Errorf("fresh handler input name = %q, want Unknown", s.InputName)
	}
	if s.AudioSource != "Unknown" {
		t.Errorf("fresh handler audio source = %q, want Unknown", s.AudioSource)
	}
	if s.SoftwareVersion != UnknownVersion || s.ProtocolVersion != UnknownVersion {
		t.Errorf("fresh handler versions = %q / %q, want %q", s.SoftwareVersion, s.ProtocolVersion, UnknownVersion)
	}
}

func TestHandlerDecodesAttributes(t *testing.T) {
	tr := &fakeTransport{}
	h := newTestHandler(t, tr, nil, time.Hour)

	h.Feed([]byte("#6,11,01\r#7,01,06\r#7,04,02\r#10,01,Version 1.0\r#10,02,2.0\r"))
	settle(h)

	if !h.Mute() {
		t.Error("Mute() = false after mute-on message")
	}
	if got := h.InputNumber(); got != 6 {
		t.Errorf("InputNumber() = %d, want 6", got)
	}
	if got := h.InputName(); got != "Tuner" {
		t.Errorf("InputName() = %q, want Tuner", got)
	}
	if got := h.AudioSourceName(); got != "HDMI" {
		t.Errorf("AudioSourceName() = %q, want HDMI", got)
	}
	if got := h.SoftwareVersion(); got != "Version 1.0" {
		t.Errorf("SoftwareVersion() = %q, want Version 1.0", got)
	}
	if got := h.ProtocolVersion(); got != "2.0" {
		t.Errorf("ProtocolVersion() = %q, want 2.0", got)
	}
}

func TestHandlerMessageStraddlesFeeds(t *testing.T) {
	tr := &fakeTransport{}
	h := newTestHandler(t, tr, nil, time.Hour)

	h.Feed([]byte("#7,0"))
	settle(h)
	if got := h.InputNumber(); got != 0 {
		t.Fatalf("partial message decoded early: InputNumber() = %d", got)
	}

	h.Feed([]byte("1,03\r"))
	settle(h)
	if got := h.InputNumber(); got != 3 {
		t.Errorf("InputNumber() = %d after completing message, want 3", got)
	}
}

func TestHandlerVolumeEchoesShareOneLevel(t *testing.T) {
	tr := &fakeTransport{}
	h := newTestHandler(t, tr, nil, time.Hour)

	h.Feed([]byte("#6,02,-34\r"))
	settle(h)
	if got := h.Attenuation(); got != -34 {
		t.Fatalf("Attenuation() = %d after up echo, want -34", got)
	}

	// The down echo reports through a different prefix but is the same
	// underlying level.
	h.Feed([]byte("#6,03,-35\r"))
	settle(h)
	if got := h.Attenuation(); got != -35 {
		t.Errorf("Attenuation() = %d after down echo, want -35", got)
	}
	if got := h.Volume(); got != AttenuationToVolume(-35) {
		t.Errorf("Volume() = %d, want %d", got, AttenuationToVolume(-35))
	}
}

func TestHandlerIgnoresUnknownMessages(t *testing.T) {
	tr := &fakeTransport{}
	updates := &updateRecorder{}
	h := newTestHandler(t, tr, updates.record, time.Hour)

	h.Feed([]byte("#99,99,x\rgarbage\r"))
	settle(h)

	if got := updates.all(); len(got) != 0 {
		t.Errorf("unknown messages produced updates: %v", got)
	}
	if got := tr.sent(); len(got) != 0 {
		t.Errorf("unknown messages produced writes: %v", got)
	}
}

func TestHandlerDeviceErrorsAreSilent(t *testing.T) {
	tr := &fakeTransport{}
	updates := &updateRecorder{}
	h := newTestHandler(t, tr, updates.record, time.Hour)

	h.Feed([]byte("#11,01\r#11,02\r#11,03\r"))
	settle(h)

	if got := updates.all(); len(got) != 0 {
		t.Errorf("device errors produced updates: %v", got)
	}
	if got := tr.sent(); len(got) != 0 {
		t.Errorf("device errors produced writes: %v", got)
	}
}

func TestHandlerUpdateOnChangeOnly(t *testing.T) {
	tr := &fakeTransport{}
	updates := &updateRecorder{}
	h := newTestHandler(t, tr, updates.record, time.Hour)

	h.Feed([]byte("#7,01,06\r"))
	settle(h)
	if got := updates.all(); len(got) != 1 || got[0] != "#7,01,06" {
		t.Fatalf("updates after first input message = %v, want one", got)
	}

	// Same value again: no change, no update.
	h.Feed([]byte("#7,01,06\r"))
	settle(h)
	if got := updates.all(); len(got) != 1 {
		t.Errorf("repeated identical message produced an update: %v", got)
	}

	h.Feed([]byte("#7,01,04\r"))
	settle(h)
	if got := updates.all(); len(got) != 2 {
		t.Errorf("changed input did not produce an update: %v", got)
	}
}

func TestHandlerRequestsEncodeCommands(t *testing.T) {
	tests := []struct {
		name string
		do   func(h *Handler)
		want string
	}{
		{"power on", func(h *Handler) { h.RequestPower(true) }, "#1,01,1\r"},
		{"power off", func(h *Handler) { h.RequestPower(false) }, "#1,01,0\r"},
		{"mute on", func(h *Handler) { h.RequestMute(true) }, "#1,11,01\r"},
		{"mute off", func(h *Handler) { h.RequestMute(false) }, "#1,11,00\r"},
		{"input by number", func(h *Handler) { h.RequestInputNumber(6) }, "#2,01,06\r"},
		{"input by name", func(h *Handler) { h.RequestInputName("Video 3") }, "#2,01,07\r"},
		{"audio source", func(h *Handler) { h.RequestAudioSource(AudioSourceDigital) }, "#2,04,01\r"},
		{"dynamic range", func(h *Handler) { h.RequestDynamicRange(DynamicRangeAuto) }, "#1,12,00\r"},
		{"lfe trim", func(h *Handler) { h.RequestLfeTrim("05") }, "#1,10,05\r"},
		{"bass up", func(h *Handler) { h.RequestBassUp() }, "#1,04,\r"},
		{"treble down", func(h *Handler) { h.RequestTrebleDown() }, "#1,07,\r"},
		{"lip sync up", func(h *Handler) { h.RequestLipSyncUp() }, "#1,20,\r"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &fakeTransport{}
			h := newTestHandler(t, tr, nil, time.Hour)

			tt.do(h)
			settle(h)

			got := tr.sent()
			if len(got) != 1 || got[0] != tt.want {
				t.Errorf("writes = %v, want [%q]", got, tt.want)
			}
		})
	}
}

func TestHandlerRequestVersions(t *testing.T) {
	tr := &fakeTransport{}
	h := newTestHandler(t, tr, nil, time.Hour)

	h.RequestVersions()
	settle(h)

	got := tr.sent()
	if len(got) != 2 || got[0] != "#5,01,\r" || got[1] != "#5,02,\r" {
		t.Errorf("writes = %v, want version queries in order", got)
	}
}

func TestHandlerInvalidRequestsAreDropped(t *testing.T) {
	tr := &fakeTransport{}
	h := newTestHandler(t, tr, nil, time.Hour)

	h.RequestInputNumber(0)
	h.RequestInputNumber(100)
	h.RequestInputName("Phono")
	h.RequestVolume(101)
	h.RequestVolumeFraction(1.5)
	h.RequestAttenuation(1)
	h.RequestAttenuation(-91)
	settle(h)

	if got := tr.sent(); len(got) != 0 {
		t.Errorf("invalid requests produced writes: %v", got)
	}
}

func TestHandlerWriteFailureIsSwallowed(t *testing.T) {
	tr := &fakeTransport{writeErr: errors.New("broken pipe")}
	h := newTestHandler(t, tr, nil, time.Hour)

	// Must not panic or wedge the run loop.
	h.RequestPower(true)
	settle(h)

	h.Feed([]byte("#7,01,06\r"))
	settle(h)
	if got := h.InputNumber(); got != 6 {
		t.Errorf("run loop stalled after write failure: InputNumber() = %d", got)
	}
}

func TestHandlerPausesTransportPerChunk(t *testing.T) {
	tr := &fakeTransport{}
	h := newTestHandler(t, tr, nil, time.Hour)

	h.Feed([]byte("#6,11,01\r"))
	h.Feed([]byte("#6,11,00\r"))
	settle(h)

	tr.mu.Lock()
	pauses, resumes := tr.pauses, tr.resumes
	tr.mu.Unlock()
	if pauses != 2 || resumes != 2 {
		t.Errorf("pauses=%d resumes=%d, want 2 and 2", pauses, resumes)
	}
}

func TestHandlerFeedAfterCloseIsDropped(t *testing.T) {
	tr := &fakeTransport{}
	h := NewHandler(Config{Transport: tr, Logger: zap.NewNop()})
	h.Close()
	h.Close() // idempotent

	h.Feed([]byte("#6,11,01\r"))
	time.Sleep(20 * time.Millisecond)
	if h.Mute() {
		t.Error("message decoded after Close")
	}
}
