package ui

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/muurk/lifxlab/internal/discovery"
	"github.com/muurk/lifxlab/internal/events"
)

// Messages for the discovery display
type deviceFoundMsg discovery.DiscoveredDevice
type otherEventMsg struct{}
type discoveryDoneMsg struct {
	result *discovery.Result
	err    error
}

// discoveryKeyMap defines key bindings while a cycle runs
type discoveryKeyMap struct {
	Stop key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k discoveryKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Stop}
}

// FullHelp returns keybindings for the expanded help view
func (k discoveryKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Stop}}
}

// DiscoveryProgress describes one discovery cycle to display
type DiscoveryProgress struct {
	Events  <-chan events.Event               // hub subscription feeding the live list
	Run     func() (*discovery.Result, error) // blocks until the cycle ends
	Cancel  func()                            // ends the cycle early; may be nil
	Timeout time.Duration
	Names   Namer
}

// DiscoveryModel is a Bubble Tea model that shows a spinner and the devices
// found so far while a discovery cycle runs. It quits when the cycle ends.
type DiscoveryModel struct {
	spinner  spinner.Model
	progress progress.Model
	help     help.Model
	keys     discoveryKeyMap

	cfg     DiscoveryProgress
	started time.Time
	now     func() time.Time

	devices  []discovery.DiscoveredDevice
	stopping bool
	done     bool
	result   *discovery.Result
	err      error
}

// NewDiscoveryModel creates the display for one cycle
func NewDiscoveryModel(cfg DiscoveryProgress) DiscoveryModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 40

	return DiscoveryModel{
		spinner:  s,
		progress: bar,
		help:     help.New(),
		keys: discoveryKeyMap{
			Stop: key.NewBinding(
				key.WithKeys("q", "esc", "ctrl+c"),
				key.WithHelp("q", "stop listening"),
			),
		},
		cfg:     cfg,
		started: time.Now(),
		now:     time.Now,
	}
}

// Init implements tea.Model
func (m DiscoveryModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.cfg.Events), runCycle(m.cfg.Run))
}

// Update implements tea.Model
func (m DiscoveryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Keep running until the cycle reports back with its partial result
		if key.Matches(msg, m.keys.Stop) && !m.stopping {
			m.stopping = true
			if m.cfg.Cancel != nil {
				m.cfg.Cancel()
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.progress.Width = min(40, max(10, msg.Width-10))
		return m, nil

	case deviceFoundMsg:
		m.addDevice(discovery.DiscoveredDevice(msg))
		return m, waitForEvent(m.cfg.Events)

	case otherEventMsg:
		return m, waitForEvent(m.cfg.Events)

	case discoveryDoneMsg:
		m.done = true
		m.result = msg.result
		m.err = msg.err
		return m, tea.Quit

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model. The final frame is empty so the summary
// printed afterwards replaces the live display.
func (m DiscoveryModel) View() string {
	if m.done {
		return ""
	}

	var b strings.Builder

	status := "Listening for replies"
	if m.stopping {
		status = "Stopping"
	}
	fmt.Fprintf(&b, "  %s %s  %s\n\n", m.spinner.View(), status,
		MutedTextStyle.Render(fmt.Sprintf("%d found", len(m.devices))))
	b.WriteString("  " + m.progress.ViewAs(m.elapsedFraction()) + "\n\n")

	for _, d := range m.devices {
		marker := PendingMarker
		if d.New {
			marker = NewMarker
		}
		line := fmt.Sprintf("%s %s  %s", marker, d.Identity, d.AddrPort())
		if name := m.cfg.Names.name(d.Identity); name != "" {
			line += "  " + name
		}
		b.WriteString("  " + TableCellStyle.Render(line) + "\n")
	}
	if len(m.devices) > 0 {
		b.WriteString("\n")
	}

	b.WriteString("  " + m.help.View(m.keys) + "\n")
	return b.String()
}

// addDevice merges a notification into the list, keeping first-seen order.
// A device stays marked new once any notification in the cycle said so.
func (m *DiscoveryModel) addDevice(d discovery.DiscoveredDevice) {
	for i := range m.devices {
		if m.devices[i].Identity == d.Identity {
			d.New = d.New || m.devices[i].New
			m.devices[i] = d
			return
		}
	}
	m.devices = append(m.devices, d)
}

func (m DiscoveryModel) elapsedFraction() float64 {
	if m.cfg.Timeout <= 0 {
		return 0
	}
	f := float64(m.now().Sub(m.started)) / float64(m.cfg.Timeout)
	return min(1, max(0, f))
}

// waitForEvent reads the next hub event. A closed stream ends the wait.
func waitForEvent(stream <-chan events.Event) tea.Cmd {
	if stream == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-stream
		if !ok {
			return nil
		}
		if d, ok := ev.Payload.(discovery.DiscoveredDevice); ok && ev.Name == events.DeviceDiscovered {
			return deviceFoundMsg(d)
		}
		return otherEventMsg{}
	}
}

func runCycle(run func() (*discovery.Result, error)) tea.Cmd {
	return func() tea.Msg {
		res, err := run()
		return discoveryDoneMsg{result: res, err: err}
	}
}

// RunDiscoveryProgress runs cfg.Run behind a live display and returns what
// it returned. Output goes to stdout unless opts say otherwise.
func RunDiscoveryProgress(cfg DiscoveryProgress, opts ...tea.ProgramOption) (*discovery.Result, error) {
	opts = append([]tea.ProgramOption{tea.WithOutput(os.Stdout)}, opts...)

	final, err := tea.NewProgram(NewDiscoveryModel(cfg), opts...).Run()
	m, ok := final.(DiscoveryModel)
	if err == nil && ok && m.done {
		return m.result, m.err
	}

	// The cycle may still be running behind a failed display
	if cfg.Cancel != nil {
		cfg.Cancel()
	}
	if err != nil {
		return nil, fmt.Errorf("discovery display failed: %w", err)
	}
	return nil, fmt.Errorf("discovery display exited before the cycle ended")
}
