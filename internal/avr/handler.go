package avr

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openavr/azurctl/internal/logging"
)

// Transport is what the Handler needs from the connection layer: an
// ordered, reliable byte stream with write and read-flow-control
// primitives. internal/transport provides the TCP implementation.
type Transport interface {
	// Write sends raw bytes to the receiver. Returns an error when the
	// connection is unavailable; the handler logs and drops the
	// command in that case (the protocol has no acknowledgment or
	// retry channel).
	Write(p []byte) error

	// PauseReading stops delivery of further inbound chunks until
	// ResumeReading is called. Used to bound buffering while a batch
	// of messages is decoded.
	PauseReading()
	ResumeReading()
}

// Config configures a Handler.
type Config struct {
	Transport Transport

	// OnUpdate, when set, is invoked with the raw message whenever a
	// decoded message changed device state. It runs on the handler
	// goroutine after the decode that produced it completes.
	OnUpdate func(raw string)

	// Logger defaults to the package-global logger.
	Logger *zap.Logger

	// ProbeRetryDelay is the wait between power-on probe attempts.
	// Defaults to 2 seconds; tests shorten it.
	ProbeRetryDelay time.Duration
}

// defaultProbeRetryDelay matches the receiver's observed response
// window: a volume echo normally arrives well within 2 seconds.
const defaultProbeRetryDelay = 2 * time.Second

// decodeResult reports what a single decode pass did.
type decodeResult struct {
	recognized bool
	changed    bool
	attr       Attribute
	matched    bool // attr is valid only when matched
}

// Handler decodes receiver messages into a typed state table and
// encodes typed intents back into wire commands. One Handler serves
// one connection; construct a fresh one after a reconnect.
//
// All decoding, state-machine work and command encoding runs on a
// single goroutine fed by an internal task queue, so those paths are
// never re-entered concurrently. Accessors reading the state table may
// be called from any goroutine.
type Handler struct {
	log      *zap.Logger
	tr       Transport
	onUpdate func(string)

	done      chan struct{}
	closeOnce sync.Once

	// taskMu guards taskQ; taskCh signals the run loop. The queue is
	// unbounded so tasks can be posted from within tasks without
	// blocking the loop.
	taskMu sync.Mutex
	taskQ  []func()
	taskCh chan struct{}

	// stateMu guards state for snapshot reads from other goroutines.
	// Mutation happens only on the run loop.
	stateMu sync.RWMutex
	state   map[Attribute]string

	asm assembler

	// powerOnRefreshed is loop-owned; it is set once per connection
	// when the power-on probe has been scheduled.
	powerOnRefreshed bool

	// vsMu guards the volume sync record and probe timer, which Close
	// touches from outside the run loop.
	vsMu            sync.Mutex
	vs              volumeSync
	probeRetryDelay time.Duration
	probeTimer      *time.Timer
}

// NewHandler creates a Handler and starts its run loop.
func NewHandler(cfg Config) *Handler {
	log := cfg.Logger
	if log == nil {
		log = logging.GetLogger()
	}
	delay := cfg.ProbeRetryDelay
	if delay <= 0 {
		delay = defaultProbeRetryDelay
	}

	state := make(map[Attribute]string, len(attributeScanOrder))
	for _, attr := range attributeScanOrder {
		// Empty string is the explicit "never received" sentinel.
		state[attr] = ""
	}

	h := &Handler{
		log:             log,
		tr:              cfg.Transport,
		onUpdate:        cfg.OnUpdate,
		done:            make(chan struct{}),
		taskCh:          make(chan struct{}, 1),
		state:           state,
		probeRetryDelay: delay,
	}
	go h.run()
	return h
}

// Close stops the run loop, cancels any pending probe retry and leaves
// the volume sync machine idle. Safe to call more than once.
func (h *Handler) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
		h.vsMu.Lock()
		if h.probeTimer != nil {
			h.probeTimer.Stop()
		}
		h.vs.reset()
		h.vsMu.Unlock()
	})
}

// Feed hands a chunk of raw transport bytes to the handler. The chunk
// is copied; the caller may reuse its buffer. Decoding happens
// asynchronously on the handler goroutine.
func (h *Handler) Feed(data []byte) {
	chunk := make([]byte, len(data))
	copy(chunk, data)
	h.post(func() { h.processChunk(chunk) })
}

// post enqueues fn for the run loop. Posts after Close are dropped.
func (h *Handler) post(fn func()) {
	select {
	case <-h.done:
		return
	default:
	}
	h.taskMu.Lock()
	h.taskQ = append(h.taskQ, fn)
	h.taskMu.Unlock()
	select {
	case h.taskCh <- struct{}{}:
	default:
	}
}

func (h *Handler) run() {
	for {
		select {
		case <-h.done:
			return
		case <-h.taskCh:
			for {
				h.taskMu.Lock()
				if len(h.taskQ) == 0 {
					h.taskMu.Unlock()
					break
				}
				fn := h.taskQ[0]
				h.taskQ = h.taskQ[1:]
				h.taskMu.Unlock()

				fn()

				select {
				case <-h.done:
					return
				default:
				}
			}
		}
	}
}

// processChunk assembles buffered bytes into complete messages and
// decodes them. The transport is paused for the duration of the batch
// so bursty inbound traffic cannot pile up behind a slow decode.
func (h *Handler) processChunk(chunk []byte) {
	h.tr.PauseReading()
	defer h.tr.ResumeReading()

	for _, msg := range h.asm.feed(chunk) {
		h.log.Debug("assembled message", zap.String("message", msg))
		h.decode(msg)
	}
}

// decode interprets one complete message: match it against the
// catalog, update the state table, and schedule any follow-up work.
// Effects triggered by a decode (the power-on probe and the update
// notification) are posted rather than run inline so they never send
// from within the decode that produced them.
func (h *Handler) decode(msg string) decodeResult {
	var res decodeResult

	switch {
	case strings.HasPrefix(msg, ErrGroupUnknown):
		h.log.Warn("device error: command group unknown")
		res.recognized = true
	case strings.HasPrefix(msg, ErrCommandUnknown):
		h.log.Warn("device error: command number in group unknown")
		res.recognized = true
	case strings.HasPrefix(msg, ErrDataError):
		h.log.Warn("device error: command data error")
		res.recognized = true
	default:
		res = h.decodeAttribute(msg)
	}

	newData := res.changed

	if res.matched && res.attr == AttrPowerState && h.getAttr(AttrPowerState) == PowerStateOn && !h.powerOnRefreshed {
		// Trigger the power-on volume probe exactly once per
		// connection, outside the decode path.
		h.powerOnRefreshed = true
		h.post(h.powerOnProbe)
	}

	if res.matched && (res.attr == AttrVolumeUp || res.attr == AttrVolumeDown) {
		h.onVolumeObserved(h.getInt(AttrVolumeUp))
		newData = true
	}

	if newData {
		if h.onUpdate != nil {
			raw := msg
			h.post(func() { h.onUpdate(raw) })
		}
	} else {
		h.log.Debug("no new data encountered")
	}

	if !res.recognized {
		h.log.Debug("unrecognized response", zap.String("message", msg))
	}
	return res
}

// decodeAttribute scans the catalog's prefixes in declared order and
// takes the first match. Prefixes are fixed-width group/number pairs
// that never overlap, so first-match cannot mis-attribute a message.
func (h *Handler) decodeAttribute(msg string) decodeResult {
	for _, attr := range attributeScanOrder {
		prefix := attr.Prefix()
		if !strings.HasPrefix(msg, prefix) {
			continue
		}

		// Value is everything after the prefix and its separator.
		value := ""
		if len(msg) > len(prefix)+1 {
			value = msg[len(prefix)+1:]
		}

		key := storageKey(attr)
		old := h.getAttr(key)
		changed := old != value
		if changed {
			h.log.Debug("attribute changed",
				zap.String("attribute", attr.Description()),
				zap.String("prefix", prefix),
				zap.String("value", value),
				zap.String("label", attr.Label(value)),
			)
			h.setAttr(key, value)
		} else {
			h.log.Debug("attribute unchanged",
				zap.String("attribute", attr.Description()),
				zap.String("value", value),
			)
		}

		return decodeResult{recognized: true, changed: changed, attr: attr, matched: true}
	}
	return decodeResult{}
}

// storageKey folds the two volume attributes onto one record: the
// receiver echoes the same level through either #6,02 or #6,03
// depending on which direction last moved it.
func storageKey(attr Attribute) Attribute {
	if attr == AttrVolumeDown {
		return AttrVolumeUp
	}
	return attr
}

// sendCommand encodes and writes one command. Failures are logged and
// swallowed: the wire protocol offers no acknowledgment, so there is
// nothing useful to surface to the caller.
func (h *Handler) sendCommand(cmd Command, data string) {
	payload := EncodeCommand(cmd, data)
	h.log.Debug("sending command",
		zap.String("command", cmd.String()),
		zap.String("data", data),
		zap.ByteString("wire", payload),
	)
	if err := h.tr.Write(payload); err != nil {
		h.log.Warn("unable to send command",
			zap.String("command", cmd.String()),
			zap.Error(err),
		)
	}
}

// getAttr returns the raw stored value for an attribute ("" = never
// received).
func (h *Handler) getAttr(attr Attribute) string {
	h.stateMu.RLock()
	defer h.stateMu.RUnlock()
	return h.state[storageKey(attr)]
}

func (h *Handler) setAttr(attr Attribute, value string) {
	h.stateMu.Lock()
	h.state[storageKey(attr)] = value
	h.stateMu.Unlock()
}
