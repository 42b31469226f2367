package avr

import (
	"time"

	"go.uber.org/zap"
)

// The receiver never reports its volume spontaneously and the protocol
// has no "query volume" command, only relative increment/decrement. Two
// cooperating mechanisms compensate:
//
// Power-on probe: send a single volume-down; the receiver answers by
// echoing its (now slightly lower) level, which seeds the state table.
// The probe then sends one compensating volume-up, so the audible
// level is unchanged. Retried on a timer until an echo arrives or the
// attempt budget runs out.
//
// Target convergence: an absolute volume-set is emulated by recording a
// target attenuation and nudging one step in the right direction on
// every observed level until the echo matches the target.

// syncState is the probe's position in its lifecycle.
type syncState int

const (
	syncIdle syncState = iota
	syncProbeRequested
	syncProbeCompleted
)

// maxProbeAttempts bounds how many volume-down probes are sent before
// the probe is abandoned. The probe is best-effort: a timeout leaves
// the handler usable with possibly-stale volume knowledge.
const maxProbeAttempts = 10

// volumeSync is the shared record for both mechanisms. Target, when
// non-nil, is the attenuation in dB (-90..0) an absolute-set request
// is converging toward.
type volumeSync struct {
	state    syncState
	attempts int
	target   *int
}

func (vs *volumeSync) reset() {
	vs.state = syncIdle
	vs.attempts = 0
	vs.target = nil
}

// powerOnProbe starts the probe sequence. Posted (not called inline)
// from the decode that saw the power-on message. At most one probe is
// outstanding at a time.
func (h *Handler) powerOnProbe() {
	h.vsMu.Lock()
	busy := h.vs.state != syncIdle
	h.vsMu.Unlock()
	if busy {
		return
	}
	h.log.Debug("receiver powered on")
	h.probeStep(0)
}

// probeStep advances the probe: the first call transitions to
// ProbeRequested and sends the initial volume-down; timer fires resend
// until satisfied or out of attempts; once the echo has completed the
// probe, the next fire returns the machine to idle.
func (h *Handler) probeStep(tries int) {
	h.vsMu.Lock()
	defer h.vsMu.Unlock()

	if h.vs.state == syncIdle {
		if tries > 0 {
			// Probe was abandoned or reset while the timer was armed.
			return
		}
		h.log.Debug("starting volume probe")
		h.vs.state = syncProbeRequested
	}

	switch h.vs.state {
	case syncProbeRequested:
		if tries < maxProbeAttempts {
			h.log.Debug("volume probe attempt", zap.Int("attempt", tries+1))
			h.vs.attempts = tries + 1
			h.sendCommand(CmdVolumeDown, "")
			h.armProbeTimer(tries + 1)
		} else {
			h.log.Warn("volume probe timed out")
			h.vs.state = syncIdle
		}
	case syncProbeCompleted:
		h.log.Debug("volume probe successful")
		h.vs.state = syncIdle
	}
}

// armProbeTimer schedules the next probeStep on the run loop. Caller
// holds vsMu.
func (h *Handler) armProbeTimer(tries int) {
	h.probeTimer = time.AfterFunc(h.probeRetryDelay, func() {
		h.post(func() { h.probeStep(tries) })
	})
}

// onVolumeObserved handles a freshly decoded volume level. It drives
// target convergence and satisfies an outstanding probe. Runs on the
// decode path, so any command it sends follows directly from a device
// echo and the nudge loop is self-clocking.
func (h *Handler) onVolumeObserved(volume int) {
	h.vsMu.Lock()
	defer h.vsMu.Unlock()

	if h.vs.target != nil {
		if volume != *h.vs.target {
			cmd := CmdVolumeDown
			if *h.vs.target > volume {
				cmd = CmdVolumeUp
			}
			h.sendCommand(cmd, "")
		} else {
			h.log.Debug("volume target reached", zap.Int("attenuation", volume))
			h.vs.target = nil
		}
	}

	if h.vs.state == syncProbeRequested {
		// Compensate for the probing decrement. The armed timer will
		// move the machine back to idle on its next fire.
		h.sendCommand(CmdVolumeUp, "")
		h.vs.state = syncProbeCompleted
	}
}

// setVolumeTarget records a new convergence target and sends the first
// nudge. A target set while another is in flight simply overwrites it.
// Runs on the run loop via RequestAttenuation.
func (h *Handler) setVolumeTarget(target int) {
	current := h.getInt(AttrVolumeUp)
	if target == current {
		return
	}

	h.vsMu.Lock()
	defer h.vsMu.Unlock()

	h.log.Debug("setting attenuation",
		zap.Int("target", target),
		zap.Int("current", current),
	)
	t := target
	h.vs.target = &t

	cmd := CmdVolumeDown
	if target > current {
		cmd = CmdVolumeUp
	}
	h.sendCommand(cmd, "")
}
