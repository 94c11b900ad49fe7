// Package tui provides the terminal user interface implementation
// using the Bubbletea framework.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/xvierd/thirdtime/internal/adapters/notification"
	"github.com/xvierd/thirdtime/internal/config"
	"github.com/xvierd/thirdtime/internal/domain"
	"github.com/xvierd/thirdtime/internal/ports"
)

const commandTimeout = 5 * time.Second

// tickMsg is sent on every timer tick.
type tickMsg time.Time

// stateMsg carries the state returned by a controller call.
type stateMsg struct {
	state *domain.CurrentState
	err   error
}

// EventMsg delivers a cycle event to the running program.
type EventMsg domain.Event

// inputMode tracks which prompt, if any, is open.
type inputMode int

const (
	inputNone inputMode = iota
	inputPreset
	inputLabel
	inputEndIn
	inputEndAt
)

// Options configures the model.
type Options struct {
	Presets             []config.Preset
	DefaultEndInMinutes float64
	// Inline renders a single line instead of the full screen layout.
	Inline bool
}

// Model represents the TUI state.
type Model struct {
	controller ports.CycleController
	state      *domain.CurrentState
	progress   progress.Model
	input      textinput.Model
	opts       Options
	width      int
	height     int

	mode         inputMode
	presetCursor int
	preset       string
	confirmKill  bool

	flash   string
	lastErr error
}

// NewModel creates a new TUI model.
func NewModel(controller ports.CycleController, initial *domain.CurrentState, opts Options) Model {
	if initial == nil {
		initial = &domain.CurrentState{Cycle: domain.Snapshot{State: domain.StateIdle}}
	}
	w := terminalWidth()
	bar := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	bar.Width = w - 20

	ti := textinput.New()
	ti.CharLimit = 80
	ti.Width = 30

	return Model{
		controller: controller,
		state:      initial,
		progress:   bar,
		input:      ti,
		opts:       opts,
		width:      w,
	}
}

// Init initializes the TUI.
func (m Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), m.call(func(ctx context.Context) (*domain.CurrentState, error) {
		return m.controller.State(ctx)
	}))
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// call runs a controller operation off the event loop.
func (m Model) call(fn func(ctx context.Context) (*domain.CurrentState, error)) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		state, err := fn(ctx)
		return stateMsg{state: state, err: err}
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.mode != inputNone {
			return m.updateInput(msg)
		}
		return m.updateKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = max(msg.Width-20, 10)
		return m, nil

	case tickMsg:
		return m, tea.Batch(tickCmd(), m.call(func(ctx context.Context) (*domain.CurrentState, error) {
			return m.controller.State(ctx)
		}))

	case stateMsg:
		if msg.err != nil {
			m.lastErr = msg.err
			return m, nil
		}
		if msg.state != nil {
			m.state = msg.state
		}
		return m, nil

	case EventMsg:
		if title, body, ok := notification.Message(domain.Event(msg)); ok {
			m.flash = title + ": " + body
		}
		return m, nil
	}

	var cmd tea.Cmd
	newProgress, cmd := m.progress.Update(msg)
	if p, ok := newProgress.(progress.Model); ok {
		m.progress = p
	}
	return m, cmd
}

func (m Model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key != "k" {
		m.confirmKill = false
	}
	m.lastErr = nil
	active := m.state.Cycle.IsActive()

	switch key {
	case "q":
		return m, tea.Quit
	case "s":
		if active {
			return m, nil
		}
		m.preset = ""
		if len(m.opts.Presets) > 0 {
			m.mode = inputPreset
			m.presetCursor = 0
			return m, nil
		}
		return m.openInput(inputLabel, "Label: ", "enter to skip")
	case "e":
		return m, m.call(func(ctx context.Context) (*domain.CurrentState, error) {
			return m.controller.EndNow(ctx)
		})
	case "i":
		return m.openInput(inputEndIn, "End in (minutes): ", strconv.FormatFloat(m.opts.DefaultEndInMinutes, 'f', -1, 64))
	case "a":
		return m.openInput(inputEndAt, "End at (HH:MM): ", "17:30")
	case "+":
		minutes := m.opts.DefaultEndInMinutes
		return m, m.call(func(ctx context.Context) (*domain.CurrentState, error) {
			return m.controller.EndIn(ctx, minutes)
		})
	case "l":
		return m, m.call(func(ctx context.Context) (*domain.CurrentState, error) {
			return m.controller.StartLongBreak(ctx, 0)
		})
	case "k":
		if !active {
			return m, nil
		}
		if !m.confirmKill {
			m.confirmKill = true
			return m, nil
		}
		m.confirmKill = false
		return m, m.call(func(ctx context.Context) (*domain.CurrentState, error) {
			return m.controller.Kill(ctx)
		})
	}
	return m, nil
}

func (m Model) openInput(mode inputMode, prompt, placeholder string) (tea.Model, tea.Cmd) {
	m.mode = mode
	m.input.Reset()
	m.input.Prompt = prompt
	m.input.Placeholder = placeholder
	return m, m.input.Focus()
}

func (m Model) closeInput() Model {
	m.mode = inputNone
	m.input.Blur()
	m.input.Reset()
	return m
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.mode == inputPreset {
		return m.updatePresetPicker(msg)
	}

	switch msg.String() {
	case "esc":
		return m.closeInput(), nil
	case "enter":
		value := strings.TrimSpace(m.input.Value())
		mode := m.mode
		m = m.closeInput()
		return m.submit(mode, value)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// updatePresetPicker moves through the presets; the last row keeps the
// configured work length.
func (m Model) updatePresetPicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = inputNone
		return m, nil
	case "up", "k":
		if m.presetCursor > 0 {
			m.presetCursor--
		}
	case "down", "j":
		if m.presetCursor < len(m.opts.Presets) {
			m.presetCursor++
		}
	case "enter":
		if m.presetCursor < len(m.opts.Presets) {
			m.preset = m.opts.Presets[m.presetCursor].Name
		}
		return m.openInput(inputLabel, "Label: ", "enter to skip")
	}
	return m, nil
}

func (m Model) submit(mode inputMode, value string) (tea.Model, tea.Cmd) {
	switch mode {
	case inputLabel:
		req := ports.StartWorkRequest{Label: value, Preset: m.preset}
		return m, m.call(func(ctx context.Context) (*domain.CurrentState, error) {
			return m.controller.StartWork(ctx, req)
		})
	case inputEndIn:
		minutes := m.opts.DefaultEndInMinutes
		if value != "" {
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				m.lastErr = fmt.Errorf("not a number: %q", value)
				return m, nil
			}
			minutes = f
		}
		return m, m.call(func(ctx context.Context) (*domain.CurrentState, error) {
			return m.controller.EndIn(ctx, minutes)
		})
	case inputEndAt:
		at, err := config.ParseEndAt(value, m.state.Cycle.At)
		if err != nil {
			m.lastErr = err
			return m, nil
		}
		return m, m.call(func(ctx context.Context) (*domain.CurrentState, error) {
			return m.controller.EndAt(ctx, at)
		})
	}
	return m, nil
}

// View renders the TUI.
func (m Model) View() string {
	if m.opts.Inline {
		return m.viewInline()
	}
	if m.width == 0 {
		return "Loading..."
	}

	snap := m.state.Cycle
	color := stateColor(snap.State)
	helpStyle := lipgloss.NewStyle().Foreground(colorHelp)

	var sections []string
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(colorTitle).MarginBottom(1)
	sections = append(sections, titleStyle.Render("Third Time"))

	stateLine := lipgloss.NewStyle().Bold(true).Foreground(color).Render(snap.State.Label())
	if snap.Interval != nil && snap.Interval.Label != "" {
		stateLine += helpStyle.Render("  " + snap.Interval.Label)
	}
	sections = append(sections, stateLine, "")

	if snap.IsActive() {
		sections = append(sections, renderBigClock(m.clockText(), color), "")
		sections = append(sections, m.progress.ViewAs(snap.Progress()))
	} else {
		sections = append(sections, helpStyle.Render("No interval running"))
	}

	sections = append(sections, "")
	sections = append(sections, fmt.Sprintf("Bank %s   Cycle %d", formatBank(snap.Bank), snap.WorkCount))
	stats := m.state.TodayStats
	sections = append(sections, helpStyle.Render(fmt.Sprintf("Today: %d work, %d breaks, %s worked",
		stats.WorkIntervals, stats.BreaksTaken, formatDuration(stats.TotalWorkTime))))

	if m.flash != "" {
		sections = append(sections, "", lipgloss.NewStyle().Foreground(color).Render(m.flash))
	}
	if m.lastErr != nil {
		sections = append(sections, "", lipgloss.NewStyle().Foreground(colorError).Render(m.lastErr.Error()))
	}

	sections = append(sections, "")
	sections = append(sections, m.viewPrompt(helpStyle)...)

	content := lipgloss.JoinVertical(lipgloss.Center, sections...)
	if m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m Model) viewPrompt(helpStyle lipgloss.Style) []string {
	switch m.mode {
	case inputPreset:
		lines := []string{"Work length:"}
		for i := 0; i <= len(m.opts.Presets); i++ {
			label := "default"
			if i < len(m.opts.Presets) {
				p := m.opts.Presets[i]
				label = fmt.Sprintf("%-8s %s", p.Name, formatDuration(p.Duration))
			}
			cursor := "  "
			if i == m.presetCursor {
				cursor = "▸ "
			}
			lines = append(lines, cursor+label)
		}
		return append(lines, helpStyle.Render("↑/↓ select · enter confirm · esc cancel"))
	case inputNone:
		return []string{helpStyle.Render(m.helpText())}
	default:
		return []string{m.input.View(), helpStyle.Render("enter confirm · esc cancel")}
	}
}

func (m Model) helpText() string {
	if m.confirmKill {
		return "press k again to stop the cycle"
	}
	if !m.state.Cycle.IsActive() {
		return "[s]tart  [i] end in  [l]ong break  [q]uit"
	}
	return "[e]nd now  [i] end in  [a]t  [+] extend  [l]ong break  [k]ill  [q]uit"
}

// clockText is the remaining time, or the overdue time in overtime.
func (m Model) clockText() string {
	snap := m.state.Cycle
	if snap.State == domain.StateOvertime {
		return "+" + formatClock(snap.Overdue())
	}
	return formatClock(snap.Remaining())
}

func (m Model) viewInline() string {
	snap := m.state.Cycle
	color := stateColor(snap.State)
	accent := lipgloss.NewStyle().Bold(true).Foreground(color)
	dim := lipgloss.NewStyle().Foreground(colorHelp)

	var b strings.Builder
	b.WriteString(accent.Render("● " + snap.State.Label()))
	if snap.IsActive() {
		b.WriteString("  " + accent.Render(m.clockText()))
		b.WriteString("  " + m.progress.ViewAs(snap.Progress()))
	}
	b.WriteString(dim.Render("  bank " + formatBank(snap.Bank)))
	b.WriteString("\n")

	switch {
	case m.mode == inputPreset:
		name := "default"
		if m.presetCursor < len(m.opts.Presets) {
			name = m.opts.Presets[m.presetCursor].Name
		}
		b.WriteString(dim.Render("length: " + name + "  ↑/↓ select · enter confirm"))
	case m.mode != inputNone:
		b.WriteString(m.input.View())
	case m.lastErr != nil:
		b.WriteString(lipgloss.NewStyle().Foreground(colorError).Render(m.lastErr.Error()))
	case m.flash != "":
		b.WriteString(dim.Render(m.flash))
	default:
		b.WriteString(dim.Render(m.helpText()))
	}
	return b.String()
}

// State returns the last state the model rendered.
func (m Model) State() *domain.CurrentState {
	return m.state
}
