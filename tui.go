package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"murmur/clipboard"
	"murmur/history"
	"murmur/model"
	"murmur/orchestrator"
)

const tuiHistoryRows = 5

// TUI message types
type updateMsg orchestrator.Update
type modelMsg model.State
type tickMsg time.Time

// tuiControls are the actions the view may trigger on the running app.
type tuiControls interface {
	AutoPaste() bool
	SetAutoPaste(on bool)
}

type tuiModel struct {
	controls tuiControls
	binding  string
	device   string

	mode      orchestrator.Mode
	recStart  time.Time
	level     float64
	peak      float64
	notice    string
	noticeErr bool
	partial   string
	entries   []history.Entry

	modelState model.State
	progress   progress.Model

	now           func() time.Time
	width, height int
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	recStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	lockStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true)
	busyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	idleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	textStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	partialStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
	meterOn      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	meterHot     = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	meterOff     = lipgloss.NewStyle().Foreground(lipgloss.Color("236"))
	panelStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("238")).Padding(0, 1)
)

func newTUIModel(controls tuiControls, binding, device string) tuiModel {
	return tuiModel{
		controls: controls,
		binding:  binding,
		device:   device,
		mode:     orchestrator.ModeIdle,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		now:      time.Now,
	}
}

func NewTUIProgram(m tuiModel) *tea.Program {
	return tea.NewProgram(m, tea.WithAltScreen())
}

func tuiTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = max(10, min(40, msg.Width-20))

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "a":
			if m.controls != nil {
				m.controls.SetAutoPaste(!m.controls.AutoPaste())
			}
		case "c":
			if len(m.entries) > 0 {
				if err := clipboard.Copy(m.entries[0].Text); err != nil {
					m.notice, m.noticeErr = "copy failed: "+err.Error(), true
				} else {
					m.notice, m.noticeErr = "copied last transcript", false
				}
			}
		}

	case tickMsg:
		return m, tuiTick()

	case modelMsg:
		m.modelState = model.State(msg)
		return m, m.progress.SetPercent(msg.Progress)

	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		m.progress = pm.(progress.Model)
		return m, cmd

	case updateMsg:
		m.apply(orchestrator.Update(msg))
	}
	return m, nil
}

func (m *tuiModel) apply(u orchestrator.Update) {
	switch u.Kind {
	case orchestrator.ModeChanged:
		if u.Mode == orchestrator.ModeRecordingHold {
			m.recStart = m.now()
			m.peak = 0
			m.partial = ""
		}
		if !u.Mode.Recording() {
			m.level = 0
		}
		m.mode = u.Mode
		if u.Message != "" {
			m.notice, m.noticeErr = u.Message, u.Err != nil
		}
	case orchestrator.LevelChanged:
		// smooth the meter so it does not flicker per block
		m.level = m.level*0.5 + u.Level*0.5
		m.peak = max(m.peak, u.Level)
	case orchestrator.Notice:
		m.notice, m.noticeErr = u.Message, u.Err != nil
	case orchestrator.Partial:
		m.partial = u.Message
	case orchestrator.Transcribed:
		m.partial = ""
		m.entries = append([]history.Entry{u.Entry}, m.entries...)
		if len(m.entries) > tuiHistoryRows {
			m.entries = m.entries[:tuiHistoryRows]
		}
	}
}

func (m tuiModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("murmur "+version) + "\n\n")
	b.WriteString(m.statusLine() + "\n")
	b.WriteString(renderMeter(m.level, 30) + "\n")
	if m.notice != "" {
		style := dimStyle
		if m.noticeErr {
			style = errStyle
		}
		b.WriteString(style.Render(m.notice) + "\n")
	}

	if m.modelState.Phase != model.Ready {
		b.WriteString("\n" + dimStyle.Render("model: "+m.modelState.Phase.String()) + "\n")
		b.WriteString(m.progress.View() + "\n")
		if m.modelState.Err != nil {
			b.WriteString(errStyle.Render(m.modelState.Err.Error()) + "\n")
		}
	}

	if m.partial != "" {
		b.WriteString("\n" + partialStyle.Render(m.partial) + "\n")
	}

	b.WriteString("\n" + dimStyle.Render("Recent") + "\n")
	if len(m.entries) == 0 {
		b.WriteString(idleStyle.Render("No transcriptions yet") + "\n")
	}
	for i, e := range m.entries {
		line := e.CreatedAt.Format("15:04:05") + "  " + e.Preview()
		if i == 0 {
			b.WriteString(textStyle.Render(line) + "\n")
		} else {
			b.WriteString(dimStyle.Render(line) + "\n")
		}
	}

	paste := "off"
	if m.controls != nil && m.controls.AutoPaste() {
		paste = "on"
	}
	b.WriteString("\n" + dimStyle.Render("mic: "+m.device) + "\n")
	b.WriteString(helpStyle.Render(fmt.Sprintf("%s hold to talk, tap to lock | a autopaste (%s) | c copy | q quit", m.binding, paste)))

	return panelStyle.Render(b.String())
}

func (m tuiModel) statusLine() string {
	switch m.mode {
	case orchestrator.ModeRecordingHold:
		return recStyle.Render(fmt.Sprintf("● REC %.1fs", m.now().Sub(m.recStart).Seconds()))
	case orchestrator.ModeRecordingLocked:
		return lockStyle.Render(fmt.Sprintf("● REC (locked) %.1fs", m.now().Sub(m.recStart).Seconds()))
	case orchestrator.ModeTranscribing:
		return busyStyle.Render("◌ TRANSCRIBING")
	default:
		return idleStyle.Render("○ STANDBY")
	}
}

// renderMeter draws level in [0,1] as a bar of width cells; the top fifth
// is highlighted as near clipping.
func renderMeter(level float64, width int) string {
	level = max(0, min(1, level))
	filled := int(level*float64(width) + 0.5)
	hot := width * 4 / 5
	var b strings.Builder
	for i := 0; i < width; i++ {
		switch {
		case i >= filled:
			b.WriteString(meterOff.Render("▁"))
		case i >= hot:
			b.WriteString(meterHot.Render("█"))
		default:
			b.WriteString(meterOn.Render("█"))
		}
	}
	return b.String()
}
