package tui

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/openavr/azurctl/internal/avr"
	"github.com/openavr/azurctl/internal/transport"
)

// reconnectDelay is the wait before redialing after a lost connection.
const reconnectDelay = 2 * time.Second

// Messages for async events
type connectedMsg struct {
	sess *transport.Session

	// Channels scoped to this session; see connectCmd.
	updates  chan struct{}
	closed   chan error
	sessDone chan struct{}
}
type connectFailedMsg struct{ err error }
type disconnectedMsg struct{ err error }
type stateChangedMsg struct{}
type reconnectTickMsg struct{}

// watchKeyMap defines key bindings for the watch dashboard
type watchKeyMap struct {
	Power    key.Binding
	Mute     key.Binding
	VolUp    key.Binding
	VolDown  key.Binding
	Input    key.Binding
	Versions key.Binding
	Quit     key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k watchKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Power, k.Mute, k.VolUp, k.VolDown, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k watchKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Power, k.Mute, k.VolUp, k.VolDown},
		{k.Input, k.Versions, k.Quit},
	}
}

// WatchModel is the live receiver dashboard.
type WatchModel struct {
	Addr string

	// Connection state
	sess      *transport.Session
	connected bool
	lastError error

	// updates is signaled by the handler's OnUpdate callback; closed
	// carries the teardown error once when the connection drops;
	// sessDone closes with the session so pending waiters retire
	// instead of lingering on a dead channel. All three are created
	// fresh for each connection attempt.
	updates  chan struct{}
	closed   chan error
	sessDone chan struct{}

	// UI state
	Width   int
	Height  int
	Spinner spinner.Model
	Volume  progress.Model
	Help    help.Model
	Keys    watchKeyMap

	quitting bool
}

// NewWatchModel creates a dashboard for the receiver at addr.
func NewWatchModel(addr string) WatchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	volumeBar := progress.New(progress.WithDefaultGradient())
	volumeBar.Width = 40

	keys := watchKeyMap{
		Power: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "power"),
		),
		Mute: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "mute"),
		),
		VolUp: key.NewBinding(
			key.WithKeys("+", "=", "up"),
			key.WithHelp("+/↑", "volume up"),
		),
		VolDown: key.NewBinding(
			key.WithKeys("-", "down"),
			key.WithHelp("-/↓", "volume down"),
		),
		Input: key.NewBinding(
			key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8", "9"),
			key.WithHelp("1-9", "select input"),
		),
		Versions: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "query versions"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}

	return WatchModel{
		Addr:    addr,
		Width:   GetTerminalWidth(),
		Spinner: s,
		Volume:  volumeBar,
		Help:    help.New(),
		Keys:    keys,
	}
}

// Init starts the spinner and the first connection attempt.
func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(m.Spinner.Tick, m.connectCmd())
}

// connectCmd dials the receiver off the UI goroutine. Each attempt
// gets its own channel set so waiters armed for an earlier session can
// never latch onto the new one.
func (m WatchModel) connectCmd() tea.Cmd {
	addr := m.Addr
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		updates := make(chan struct{}, 1)
		closed := make(chan error, 1)
		sessDone := make(chan struct{})

		sess, err := transport.Connect(ctx, addr, transport.SessionConfig{
			OnUpdate: func(string) {
				select {
				case updates <- struct{}{}:
				default:
				}
			},
			OnClosed: func(err error) {
				closed <- err
				close(sessDone)
			},
		})
		if err != nil {
			return connectFailedMsg{err: err}
		}
		return connectedMsg{sess: sess, updates: updates, closed: closed, sessDone: sessDone}
	}
}

// waitForUpdate blocks until the handler reports a state change, or
// retires once the session is over.
func (m WatchModel) waitForUpdate() tea.Cmd {
	ch := m.updates
	done := m.sessDone
	return func() tea.Msg {
		select {
		case <-ch:
			return stateChangedMsg{}
		case <-done:
			// The close waiter delivers the disconnect; nothing to do.
			return nil
		}
	}
}

// waitForClose blocks until the connection drops.
func (m WatchModel) waitForClose() tea.Cmd {
	ch := m.closed
	return func() tea.Msg {
		return disconnectedMsg{err: <-ch}
	}
}

func (m WatchModel) handler() *avr.Handler {
	if m.sess == nil {
		return nil
	}
	return m.sess.Handler
}

// Update handles messages and updates the model
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case connectedMsg:
		m.sess = msg.sess
		m.updates = msg.updates
		m.closed = msg.closed
		m.sessDone = msg.sessDone
		m.connected = true
		m.lastError = nil
		// Versions never change on their own; ask once per connection.
		m.sess.Handler.RequestVersions()
		return m, tea.Batch(m.waitForUpdate(), m.waitForClose())

	case connectFailedMsg:
		m.lastError = msg.err
		return m, tea.Tick(reconnectDelay, func(time.Time) tea.Msg {
			return reconnectTickMsg{}
		})

	case disconnectedMsg:
		m.sess = nil
		m.connected = false
		m.lastError = msg.err
		if m.quitting {
			return m, tea.Quit
		}
		return m, tea.Tick(reconnectDelay, func(time.Time) tea.Msg {
			return reconnectTickMsg{}
		})

	case reconnectTickMsg:
		if m.quitting {
			return m, tea.Quit
		}
		return m, m.connectCmd()

	case stateChangedMsg:
		if !m.connected {
			return m, nil
		}
		return m, m.waitForUpdate()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m WatchModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.Keys.Quit) {
		m.quitting = true
		if m.sess != nil {
			m.sess.Close()
			// Quit arrives through disconnectedMsg once teardown ran.
			return m, nil
		}
		return m, tea.Quit
	}

	h := m.handler()
	if h == nil {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.Keys.Power):
		h.RequestPower(!h.Power())

	case key.Matches(msg, m.Keys.Mute):
		h.RequestMute(!h.Mute())

	case key.Matches(msg, m.Keys.VolUp):
		if db := h.Attenuation(); db < 0 {
			h.RequestAttenuation(db + 1)
		}

	case key.Matches(msg, m.Keys.VolDown):
		if db := h.Attenuation(); db > -90 {
			h.RequestAttenuation(db - 1)
		}

	case key.Matches(msg, m.Keys.Input):
		if n, err := strconv.Atoi(msg.String()); err == nil {
			h.RequestInputNumber(n)
		}

	case key.Matches(msg, m.Keys.Versions):
		h.RequestVersions()
	}

	return m, nil
}

// View renders the dashboard
func (m WatchModel) View() string {
	if m.quitting {
		return "Disconnecting...\n"
	}

	var content string
	if !m.connected {
		content = m.renderConnecting()
	} else {
		content = m.renderState()
	}

	helpText := m.Help.View(m.Keys)
	return lipgloss.JoinVertical(lipgloss.Left, content, HelpStyle.Render(helpText))
}

func (m WatchModel) renderConnecting() string {
	line := fmt.Sprintf("%s Connecting to %s...", m.Spinner.View(), m.Addr)
	if m.lastError != nil {
		line += "\n" + ErrorStyle.Render(fmt.Sprintf("✗ %v", m.lastError)) +
			"\n" + SubtitleStyle.Render("retrying...")
	}
	return PanelStyle.Render(line)
}

func (m WatchModel) renderState() string {
	h := m.handler()
	if h == nil {
		return m.renderConnecting()
	}
	state := h.Snapshot()

	title := TitleStyle.Render(AppName) + " " +
		SubtitleStyle.Render(m.Addr)

	rows := []string{
		title,
		"",
		m.renderRow("Power", RenderOnOff(state.Power)),
		m.renderRow("Mute", RenderOnOff(state.Mute)),
		m.renderVolumeRow(state),
		m.renderRow("Input", fmt.Sprintf("%s (%d)", state.InputName, state.InputNumber)),
		m.renderRow("Audio Source", state.AudioSource),
		"",
		m.renderRow("Software", state.SoftwareVersion),
		m.renderRow("Protocol", state.ProtocolVersion),
	}

	return PanelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m WatchModel) renderRow(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Left,
		LabelStyle.Render(label),
		ValueStyle.Render(value),
	)
}

func (m WatchModel) renderVolumeRow(state avr.State) string {
	bar := m.Volume.ViewAs(state.VolumeFraction)
	value := fmt.Sprintf("%s  %d%% (%d dB)", bar, state.Volume, state.Attenuation)
	return lipgloss.JoinHorizontal(lipgloss.Left,
		LabelStyle.Render("Volume"),
		value,
	)
}

// Run starts the dashboard and blocks until the user quits.
func Run(addr string) error {
	p := tea.NewProgram(NewWatchModel(addr), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
