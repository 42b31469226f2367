package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/openavr/azurctl/internal/avr"
	"github.com/openavr/azurctl/internal/logging"
)

// commandRequest is the body of POST /api/command. Value carries the
// string argument for actions that take one; Number carries numeric
// arguments (volume level, input number).
type commandRequest struct {
	Action string `json:"action"`
	Value  string `json:"value,omitempty"`
	Number *int   `json:"number,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("Failed to write JSON response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// handleState serves GET /api/state.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	h := s.handler()
	if h == nil {
		writeError(w, http.StatusServiceUnavailable, "receiver not connected")
		return
	}
	writeJSON(w, http.StatusOK, h.Snapshot())
}

// handleInputs serves GET /api/inputs.
func (s *Server) handleInputs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	type input struct {
		Number int    `json:"number"`
		Name   string `json:"name"`
	}
	list := avr.InputList()
	inputs := make([]input, 0, len(list))
	for i, name := range list {
		inputs = append(inputs, input{Number: i + 1, Name: name})
	}
	writeJSON(w, http.StatusOK, inputs)
}

// handleCommand serves POST /api/command.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	h := s.handler()
	if h == nil {
		writeError(w, http.StatusServiceUnavailable, "receiver not connected")
		return
	}

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	logging.Info("Command received",
		zap.String("remote_addr", r.RemoteAddr),
		zap.String("action", req.Action),
		zap.String("value", req.Value),
	)

	if err := dispatchCommand(h, req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The protocol has no acknowledgment; accepted means enqueued.
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// dispatchCommand maps an API action onto a handler request.
func dispatchCommand(h *avr.Handler, req commandRequest) error {
	onOff := func() (bool, error) {
		switch strings.ToLower(req.Value) {
		case "on", "true", "1":
			return true, nil
		case "off", "false", "0":
			return false, nil
		default:
			return false, fmt.Errorf("action %q needs value on or off", req.Action)
		}
	}

	needNumber := func() (int, error) {
		if req.Number == nil {
			return 0, fmt.Errorf("action %q needs a number", req.Action)
		}
		return *req.Number, nil
	}

	switch strings.ToLower(req.Action) {
	case "power":
		on, err := onOff()
		if err != nil {
			return err
		}
		h.RequestPower(on)
	case "mute":
		on, err := onOff()
		if err != nil {
			return err
		}
		h.RequestMute(on)
	case "volume":
		n, err := needNumber()
		if err != nil {
			return err
		}
		if n < 0 || n > 100 {
			return fmt.Errorf("volume %d out of range 0-100", n)
		}
		h.RequestVolume(n)
	case "attenuation":
		n, err := needNumber()
		if err != nil {
			return err
		}
		if n < -90 || n > 0 {
			return fmt.Errorf("attenuation %d out of range -90..0", n)
		}
		h.RequestAttenuation(n)
	case "input":
		if req.Number != nil {
			n := *req.Number
			if n < 1 || n > 99 {
				return fmt.Errorf("input number %d out of range 1-99", n)
			}
			h.RequestInputNumber(n)
			return nil
		}
		if avr.InputNumber(req.Value) == 0 {
			return fmt.Errorf("unknown input %q", req.Value)
		}
		h.RequestInputName(req.Value)
	case "audio_source":
		switch strings.ToLower(req.Value) {
		case "analog":
			h.RequestAudioSource(avr.AudioSourceAnalog)
		case "digital":
			h.RequestAudioSource(avr.AudioSourceDigital)
		case "hdmi":
			h.RequestAudioSource(avr.AudioSourceHDMI)
		default:
			return fmt.Errorf("unknown audio source %q", req.Value)
		}
	case "dynamic_range":
		switch strings.ToLower(req.Value) {
		case "auto":
			h.RequestDynamicRange(avr.DynamicRangeAuto)
		case "off":
			h.RequestDynamicRange(avr.DynamicRangeOff)
		case "on":
			h.RequestDynamicRange(avr.DynamicRangeOn)
		default:
			return fmt.Errorf("unknown dynamic range mode %q", req.Value)
		}
	case "lfe_trim":
		if req.Value == "" {
			return fmt.Errorf("action lfe_trim needs a value")
		}
		h.RequestLfeTrim(req.Value)
	case "bass_up":
		h.RequestBassUp()
	case "bass_down":
		h.RequestBassDown()
	case "treble_up":
		h.RequestTrebleUp()
	case "treble_down":
		h.RequestTrebleDown()
	case "lipsync_up":
		h.RequestLipSyncUp()
	case "lipsync_down":
		h.RequestLipSyncDown()
	case "versions":
		h.RequestVersions()
	default:
		return fmt.Errorf("unknown action %q", req.Action)
	}
	return nil
}
