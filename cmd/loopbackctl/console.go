package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const tickRate = 100 * time.Millisecond

type mode int

const (
	modeNormal mode = iota
	modeGainInput
)

type statusMsg struct {
	status *statusResponse
	err    error
}

type tickMsg time.Time

// model is the bubbletea console's application state, mirroring the
// original ratatui console's AppState.
type model struct {
	client     *statusClient
	status     *statusResponse
	table      table.Model
	mode       mode
	gainInput  textinput.Model
	message    string
	lastUpdate time.Time
	width      int
}

func newModel(client *statusClient) model {
	ti := textinput.New()
	ti.Prompt = "dB: "
	ti.CharLimit = 8

	t := table.New(
		table.WithColumns(sourceColumns()),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.BorderStyle(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("240")).BorderBottom(true).Bold(true)
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	t.SetStyles(styles)

	return model{client: client, table: t, gainInput: ti}
}

func sourceColumns() []table.Column {
	return []table.Column{
		{Title: "Name", Width: 20},
		{Title: "Gain(dB)", Width: 10},
		{Title: "Muted", Width: 7},
		{Title: "RMS", Width: 6},
		{Title: "Latency(fr)", Width: 12},
		{Title: "Buffer%", Width: 9},
		{Title: "Drift ppm", Width: 10},
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(pollStatus(m.client), tick())
}

func tick() tea.Cmd {
	return tea.Tick(tickRate, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func pollStatus(client *statusClient) tea.Cmd {
	return func() tea.Msg {
		status, err := client.fetchStatus()
		return statusMsg{status: status, err: err}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tickMsg:
		return m, tea.Batch(pollStatus(m.client), tick())

	case statusMsg:
		if msg.err == nil {
			m.status = msg.status
			m.lastUpdate = time.Now()
			m.table.SetRows(sourceRows(m.status.Sources))
			if cursor := m.table.Cursor(); len(m.status.Sources) > 0 && cursor >= len(m.status.Sources) {
				m.table.SetCursor(len(m.status.Sources) - 1)
			}
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func sourceRows(sources []sourceStatus) []table.Row {
	rows := make([]table.Row, 0, len(sources))
	for _, src := range sources {
		muted := "No"
		if src.Muted {
			muted = "Yes"
		}
		rows = append(rows, table.Row{
			src.Name,
			fmt.Sprintf("%.1f", src.GainDB),
			muted,
			fmt.Sprintf("%.2f", src.RMS),
			fmt.Sprintf("%d", src.LatencyFrames),
			fmt.Sprintf("%.1f", src.BufferFill*100),
			fmt.Sprintf("%.1f", src.DriftPPM),
		})
	}
	return rows
}

func (m model) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modeNormal:
		switch key.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "m":
			if src, ok := m.currentSource(); ok {
				newState := !src.Muted
				if err := m.client.setMute(src.ID, newState); err == nil {
					state := "unmuted"
					if newState {
						state = "muted"
					}
					m.message = fmt.Sprintf("Source %s %s", src.Name, state)
				}
			}
			return m, nil
		case "g":
			if src, ok := m.currentSource(); ok {
				m.gainInput.SetValue(fmt.Sprintf("%.1f", src.GainDB))
				m.gainInput.CursorEnd()
				m.gainInput.Focus()
				m.mode = modeGainInput
			}
			return m, nil
		default:
			var cmd tea.Cmd
			m.table, cmd = m.table.Update(key)
			return m, cmd
		}

	case modeGainInput:
		switch key.String() {
		case "esc":
			m.gainInput.Blur()
			m.gainInput.SetValue("")
			m.mode = modeNormal
		case "enter":
			if src, ok := m.currentSource(); ok {
				if value, err := strconv.ParseFloat(strings.TrimSpace(m.gainInput.Value()), 32); err == nil {
					linear := dbToLinear(float32(value))
					if err := m.client.setGain(src.ID, linear); err == nil {
						m.message = fmt.Sprintf("Set %s gain to %.1f dB", src.Name, value)
					}
				}
			}
			m.gainInput.Blur()
			m.gainInput.SetValue("")
			m.mode = modeNormal
		default:
			var cmd tea.Cmd
			m.gainInput, cmd = m.gainInput.Update(key)
			return m, cmd
		}
	}
	return m, nil
}

func (m model) currentSource() (sourceStatus, bool) {
	if m.status == nil {
		return sourceStatus{}, false
	}
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.status.Sources) {
		return sourceStatus{}, false
	}
	return m.status.Sources[idx], true
}

var (
	headerStyle  = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(0, 1)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	messageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func (m model) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(m.renderHeader()))
	b.WriteString("\n")
	b.WriteString(headerStyle.Render(m.table.View()))
	b.WriteString("\n")
	b.WriteString(headerStyle.Render(m.renderFooter()))

	if m.mode == modeGainInput {
		b.WriteString("\n")
		b.WriteString(headerStyle.Render("Set Gain (dB) - Enter to apply, Esc to cancel\n" + m.gainInput.View()))
	}

	return b.String()
}

func (m model) renderHeader() string {
	if m.status == nil {
		return errorStyle.Render("No active mixer")
	}
	s := m.status
	return fmt.Sprintf(
		"Sample Rate: %d Hz    Buffer: %d frames    Latency: %.2f ms    Fill: %.1f%%    Drift: %.1f ppm",
		s.SampleRate, s.BufferFrames, s.LatencyMS, s.BufferFill*100, s.DriftPPM,
	)
}

func (m model) renderFooter() string {
	lines := []string{"Up/Down: Select  •  g: Set gain  •  m: Toggle mute  •  q: Quit"}
	if m.message != "" {
		lines = append(lines, messageStyle.Render(m.message))
	}
	if !m.lastUpdate.IsZero() {
		lines = append(lines, dimStyle.Render(fmt.Sprintf("Last update %.1fs ago", time.Since(m.lastUpdate).Seconds())))
	}
	return strings.Join(lines, "\n")
}

func dbToLinear(db float32) float32 {
	if db <= -120 {
		return 0
	}
	return float32(math.Pow(10, float64(db)/20))
}
