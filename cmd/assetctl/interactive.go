package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/asset-runtime/asset"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	readyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	pendingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const (
	pumpInterval = 50 * time.Millisecond
	eventLogSize = 8
)

type modelState int

const (
	stateBrowse modelState = iota
	stateInputID
)

type interactiveModel struct {
	err      error
	ctx      context.Context
	s        *session
	events   []string
	handles  []*asset.Handle
	input    textinput.Model
	selected int
	state    modelState
}

type tickMsg time.Time

func newInteractiveModel(ctx context.Context, s *session) *interactiveModel {
	ti := textinput.New()
	ti.Placeholder = "{GUID}:subid"
	ti.Prompt = "asset id: "
	ti.Width = 48
	return &interactiveModel{ctx: ctx, s: s, input: ti, state: stateBrowse}
}

// OnAssetEvent runs inside DispatchEvents, which the model only calls from
// Update.
func (m *interactiveModel) OnAssetEvent(e asset.Event) {
	if e.Type == asset.EventDispatchBegin || e.Type == asset.EventDispatchEnd {
		return
	}
	line := fmt.Sprintf("%s %s %s", time.Now().Format("15:04:05.000"), e.Type, e.ID)
	if e.Err != nil {
		line += ": " + e.Err.Error()
	}
	m.events = append(m.events, line)
	if len(m.events) > eventLogSize {
		m.events = m.events[len(m.events)-eventLogSize:]
	}
}

func tick() tea.Cmd {
	return tea.Tick(pumpInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *interactiveModel) Init() tea.Cmd {
	return tick()
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.s.manager.DispatchEvents()
		return m, tick()

	case tea.KeyMsg:
		if m.state == stateInputID {
			return m.updateInput(msg)
		}
		switch msg.String() {
		case "ctrl+c", "q":
			for _, h := range m.handles {
				h.Release()
			}
			m.handles = nil
			return m, tea.Quit

		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.selected < len(m.handles)-1 {
				m.selected++
			}

		case "g", "enter":
			m.state = stateInputID
			m.input.SetValue("")
			m.input.Focus()
			return m, textinput.Blink

		case "r":
			if h := m.current(); h != nil {
				m.err = m.s.manager.ReloadAsset(h.ID())
			}

		case "x":
			if h := m.current(); h != nil {
				h.Release()
				m.handles = append(m.handles[:m.selected], m.handles[m.selected+1:]...)
				if m.selected >= len(m.handles) && m.selected > 0 {
					m.selected--
				}
			}

		case "s":
			m.s.manager.SuspendRelease()

		case "u":
			m.s.manager.ResumeRelease()
		}
	}
	return m, nil
}

func (m *interactiveModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.state = stateBrowse
		m.input.Blur()
		return m, nil
	case "enter":
		m.state = stateBrowse
		m.input.Blur()
		m.err = m.get(m.input.Value())
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *interactiveModel) get(raw string) error {
	id, err := asset.ParseAssetID(raw)
	if err != nil {
		return err
	}
	info, err := m.s.catalog.AssetInfo(m.ctx, id)
	if err != nil {
		return err
	}
	h, err := m.s.manager.GetAsset(id, info.Type, asset.QueueLoad)
	if err != nil {
		return err
	}
	m.handles = append(m.handles, h)
	m.selected = len(m.handles) - 1
	return nil
}

func (m *interactiveModel) current() *asset.Handle {
	if m.selected < 0 || m.selected >= len(m.handles) {
		return nil
	}
	return m.handles[m.selected]
}

func (m *interactiveModel) View() string {
	var b strings.Builder
	mgr := m.s.manager

	b.WriteString(titleStyle.Render("Asset Runtime"))
	b.WriteString(" ")
	b.WriteString(m.s.cfg.EngineRootFolder)
	b.WriteString("\n\n")

	if len(m.handles) == 0 {
		b.WriteString(helpStyle.Render("No assets held. Press g to get one."))
		b.WriteString("\n")
	}
	for i, h := range m.handles {
		line := fmt.Sprintf("%-44s %-10s %s", h.ID(), mgr.TypeName(h.Type()), statusText(h))
		if i == m.selected {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	st := mgr.Stats()
	fmt.Fprintf(&b, "\nrecords %d  pending events %d  active jobs %d\n", st.Records, st.Pending, st.Active)

	if m.state == stateInputID {
		b.WriteString("\n")
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
	}

	if len(m.events) > 0 {
		b.WriteString("\n")
		for _, e := range m.events {
			b.WriteString(helpStyle.Render(e))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	if m.state == stateInputID {
		b.WriteString(helpStyle.Render("enter get • esc back"))
	} else {
		b.WriteString(helpStyle.Render("↑/↓ select • g get • r reload • x release • s/u suspend/resume release • q quit"))
	}
	return b.String()
}

func statusText(h *asset.Handle) string {
	status := h.Status()
	switch status {
	case asset.StatusReady:
		return readyStyle.Render(status.String())
	case asset.StatusError:
		return errorStyle.Render(status.String())
	default:
		return pendingStyle.Render(status.String())
	}
}

func runInteractive(ctx context.Context, s *session, o options) error {
	model := newInteractiveModel(ctx, s)
	s.manager.Subscribe(model)
	defer s.manager.Unsubscribe(model)

	if o.ids != "" {
		for _, raw := range strings.Split(o.ids, ",") {
			if err := model.get(raw); err != nil {
				return err
			}
		}
	}

	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
