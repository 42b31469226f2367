package sim

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/openavr/azurctl/internal/avr"
	"github.com/openavr/azurctl/internal/logging"
)

// Config sets the simulator's identity and starting state.
type Config struct {
	// SwVersion and ProtocolVersion are reported in response to the
	// version queries.
	SwVersion       string
	ProtocolVersion string

	// Attenuation is the starting level in dB (-90..0).
	Attenuation int

	// InputNumber is the starting input (1-9).
	InputNumber int

	Logger *zap.Logger
}

// Sim is a simulated receiver. One Sim serves any number of concurrent
// control connections against a single shared device state.
type Sim struct {
	log *zap.Logger
	ln  net.Listener

	mu          sync.Mutex
	power       bool
	muted       bool
	atten       int
	input       string
	audioSource string
	dynRange    string
	lfeTrim     string
	bass        int
	treble      int
	lipSync     int
	swVersion   string
	protoVer    string

	closeOnce sync.Once
	done      chan struct{}
}

// New creates a simulator in standby with the given identity.
func New(cfg Config) *Sim {
	log := cfg.Logger
	if log == nil {
		log = logging.GetLogger()
	}
	if cfg.SwVersion == "" {
		cfg.SwVersion = "Version 1.0"
	}
	if cfg.ProtocolVersion == "" {
		cfg.ProtocolVersion = "2.0"
	}
	if cfg.Attenuation < -90 || cfg.Attenuation > 0 {
		cfg.Attenuation = -40
	}
	if cfg.InputNumber < 1 || cfg.InputNumber > 9 {
		cfg.InputNumber = 1
	}

	return &Sim{
		log:         log,
		atten:       cfg.Attenuation,
		input:       fmt.Sprintf("%02d", cfg.InputNumber),
		audioSource: avr.AudioSourceAnalog,
		dynRange:    avr.DynamicRangeAuto,
		lfeTrim:     "00",
		swVersion:   cfg.SwVersion,
		protoVer:    cfg.ProtocolVersion,
		done:        make(chan struct{}),
	}
}

// Listen binds the control port and starts accepting connections. It
// returns the bound address, which matters when addr requested an
// ephemeral port.
func (s *Sim) Listen(addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.ln = ln
	s.log.Info("simulated receiver listening", zap.String("addr", ln.Addr().String()))
	go s.acceptLoop()
	return ln.Addr().String(), nil
}

// Addr returns the bound control address.
func (s *Sim) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Close stops accepting and shuts the simulator down. Established
// connections are closed by their handlers when their next read fails.
func (s *Sim) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		if s.ln != nil {
			err = s.ln.Close()
		}
	})
	return err
}

func (s *Sim) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.done:
			default:
				s.log.Warn("accept failed", zap.Error(err))
			}
			return
		}
		s.log.Debug("control connection opened",
			zap.String("remote_addr", conn.RemoteAddr().String()),
		)
		go s.handleConn(conn)
	}
}

func (s *Sim) handleConn(conn net.Conn) {
	defer conn.Close()

	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString(avr.Delimiter)
		if err != nil {
			s.log.Debug("control connection closed",
				zap.String("remote_addr", conn.RemoteAddr().String()),
			)
			return
		}
		line = strings.TrimSuffix(line, string(avr.Delimiter))
		if line == "" {
			continue
		}

		for _, reply := range s.handleCommand(line) {
			if _, err := conn.Write([]byte(reply + string(avr.Delimiter))); err != nil {
				return
			}
		}
	}
}

// handleCommand interprets one command line and returns the replies to
// send, in order. Invalid commands draw the documented group 11 error
// responses.
func (s *Sim) handleCommand(line string) []string {
	s.log.Debug("command received", zap.String("command", line))

	if !strings.HasPrefix(line, string(avr.CommandMarker)) {
		return []string{avr.ErrGroupUnknown}
	}
	parts := strings.SplitN(line[1:], ",", 3)
	if len(parts) < 2 {
		return []string{avr.ErrGroupUnknown}
	}
	group, number := parts[0], parts[1]
	data := ""
	if len(parts) == 3 {
		data = parts[2]
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch group {
	case "1":
		return s.handleAmplifierCommand(number, data)
	case "2":
		return s.handleSourceCommand(number, data)
	case "5":
		return s.handleVersionQuery(number)
	default:
		return []string{avr.ErrGroupUnknown}
	}
}

// handleAmplifierCommand covers group 1: power, volume, tone, mute.
// Caller holds mu.
func (s *Sim) handleAmplifierCommand(number, data string) []string {
	switch number {
	case "01": // set power state
		switch data {
		case avr.PowerStateOn:
			s.power = true
			return []string{"#6,01,1"}
		case avr.PowerStateOff:
			s.power = false
			return []string{"#6,01,0"}
		default:
			return []string{avr.ErrDataError}
		}
	case "02": // volume up
		if !s.power {
			return nil
		}
		if s.atten < 0 {
			s.atten++
		}
		return []string{fmt.Sprintf("#6,02,%d", s.atten)}
	case "03": // volume down
		if !s.power {
			return nil
		}
		if s.atten > -90 {
			s.atten--
		}
		return []string{fmt.Sprintf("#6,03,%d", s.atten)}
	case "04":
		s.bass++
		return nil
	case "05":
		s.bass--
		return nil
	case "06":
		s.treble++
		return nil
	case "07":
		s.treble--
		return nil
	case "10": // lfe trim
		s.lfeTrim = data
		return nil
	case "11": // set mute state
		switch data {
		case avr.MuteStateOn:
			s.muted = true
		case avr.MuteStateOff:
			s.muted = false
		default:
			return []string{avr.ErrDataError}
		}
		return []string{"#6,11," + data}
	case "12": // dynamic range
		switch data {
		case avr.DynamicRangeAuto, avr.DynamicRangeOff, avr.DynamicRangeOn:
			s.dynRange = data
			return nil
		default:
			return []string{avr.ErrDataError}
		}
	case "20":
		s.lipSync++
		return nil
	case "21":
		s.lipSync--
		return nil
	default:
		return []string{avr.ErrCommandUnknown}
	}
}

// handleSourceCommand covers group 2: input selection and audio
// source. Caller holds mu.
func (s *Sim) handleSourceCommand(number, data string) []string {
	switch number {
	case "01": // select input
		if len(data) != 2 {
			return []string{avr.ErrDataError}
		}
		s.input = data
		return []string{"#7,01," + data}
	case "04": // audio source
		switch data {
		case avr.AudioSourceAnalog, avr.AudioSourceDigital, avr.AudioSourceHDMI:
			s.audioSource = data
			return []string{"#7,04," + data}
		default:
			return []string{avr.ErrDataError}
		}
	default:
		return []string{avr.ErrCommandUnknown}
	}
}

// handleVersionQuery covers group 5. Caller holds mu.
func (s *Sim) handleVersionQuery(number string) []string {
	switch number {
	case "01":
		return []string{"#10,01," + s.swVersion}
	case "02":
		return []string{"#10,02," + s.protoVer}
	default:
		return []string{avr.ErrCommandUnknown}
	}
}

// Attenuation reports the simulator's current level. Test hook.
func (s *Sim) Attenuation() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.atten
}

// Power reports the simulator's power state. Test hook.
func (s *Sim) Power() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.power
}
