// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/lidarscope/pkg/rplidar"
)

// Event log entry
type logEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// monitorModel is the bubbletea model of the monitor command
type monitorModel struct {
	session  *rplidar.Session
	handler  rplidar.RotationHandler
	connInfo string

	sectors  int
	maxRange float64

	motorSpeed int
	motorInput textinput.Model
	editing    bool

	spinner  spinner.Model
	scanning bool
	paused   bool
	busy     bool // a session command is in flight

	snapshot     rplidar.StatisticsSnapshot
	lastRotation *rplidar.Rotation
	lastMinima   []float64

	errorLog      []logEntry
	maxLogEntries int
	width         int
	height        int
	quitting      bool
}

// Messages
type monitorTickMsg time.Time

type rotationMsg struct {
	rotation  rplidar.Rotation
	anomalies []rplidar.ValidationError
}

type motorSetMsg struct {
	speed int
	err   error
}

type scanStateMsg struct {
	scanning bool
	err      error
}

type scanEndedMsg struct {
	err error
}

func initialMonitorModel(session *rplidar.Session, handler rplidar.RotationHandler, connInfo string, sectors int, maxRange float64, speed int) monitorModel {
	ti := textinput.New()
	ti.Placeholder = strconv.Itoa(speed)
	ti.CharLimit = 4
	ti.Width = 6

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))

	return monitorModel{
		session:       session,
		handler:       handler,
		connInfo:      connInfo,
		sectors:       sectors,
		maxRange:      maxRange,
		motorSpeed:    speed,
		motorInput:    ti,
		spinner:       sp,
		scanning:      true,
		errorLog:      make([]logEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(
		monitorTickCmd(),
		m.spinner.Tick,
		waitScanDone(m.session),
	)
}

func monitorTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

// waitScanDone reports when the continuous scan loop exits
func waitScanDone(session *rplidar.Session) tea.Cmd {
	done := session.ScanDone()
	return func() tea.Msg {
		<-done
		return scanEndedMsg{err: session.ScanErr()}
	}
}

func setMotorCmd(session *rplidar.Session, speed int) tea.Cmd {
	return func() tea.Msg {
		return motorSetMsg{speed: speed, err: session.SetMotorSpeed(speed)}
	}
}

func pauseCmd(session *rplidar.Session) tea.Cmd {
	return func() tea.Msg {
		return scanStateMsg{scanning: false, err: session.Stop()}
	}
}

func resumeCmd(session *rplidar.Session, handler rplidar.RotationHandler) tea.Cmd {
	return func() tea.Msg {
		err := session.StartContinuousScan(handler)
		return scanStateMsg{scanning: err == nil, err: err}
	}
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case monitorTickMsg:
		m.snapshot = m.session.Statistics().Snapshot()
		return m, monitorTickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case rotationMsg:
		m.applyRotation(msg)

	case motorSetMsg:
		m.busy = false
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Motor speed %d rejected: %v", msg.speed, msg.err), true)
		} else {
			m.motorSpeed = msg.speed
			m.addLogEntry(fmt.Sprintf("Motor speed set to %d", msg.speed), false)
		}

	case scanStateMsg:
		m.busy = false
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Scan command failed: %v", msg.err), true)
			return m, nil
		}
		m.scanning = msg.scanning
		m.paused = !msg.scanning
		if msg.scanning {
			m.addLogEntry("Scan resumed", false)
			return m, waitScanDone(m.session)
		}
		m.addLogEntry("Scan paused", false)

	case scanEndedMsg:
		if msg.err != nil {
			m.scanning = false
			m.addLogEntry(fmt.Sprintf("Scan stopped: %v", msg.err), true)
		}
	}

	return m, nil
}

func (m monitorModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.editing {
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "esc":
			m.stopEditing()
			return m, nil

		case "enter":
			value := strings.TrimSpace(m.motorInput.Value())
			m.stopEditing()
			speed, err := strconv.Atoi(value)
			if err != nil || speed < 0 || speed > rplidar.MaxMotorSpeed {
				m.addLogEntry(fmt.Sprintf("Invalid motor speed %q (0-%d)", value, rplidar.MaxMotorSpeed), true)
				return m, nil
			}
			m.busy = true
			return m, setMotorCmd(m.session, speed)
		}

		var cmd tea.Cmd
		m.motorInput, cmd = m.motorInput.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "m":
		if m.busy {
			return m, nil
		}
		m.editing = true
		m.motorInput.SetValue("")
		return m, m.motorInput.Focus()

	case "p":
		if m.busy {
			return m, nil
		}
		m.busy = true
		if m.paused {
			return m, resumeCmd(m.session, m.handler)
		}
		return m, pauseCmd(m.session)

	case "r":
		m.session.Statistics().Reset()
		m.snapshot = m.session.Statistics().Snapshot()
		m.addLogEntry("Statistics reset", false)
	}

	return m, nil
}

func (m *monitorModel) stopEditing() {
	m.editing = false
	m.motorInput.Blur()
	m.motorInput.SetValue("")
}

func (m *monitorModel) applyRotation(msg rotationMsg) {
	r := msg.rotation
	m.lastRotation = &r
	m.lastMinima = rplidar.SectorMinima(r, m.sectors)

	for _, a := range msg.anomalies {
		m.addLogEntry(fmt.Sprintf("#%d %s: %s", r.Sequence, a.Type, a.Message), true)
	}
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	entry := logEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.errorLog = append(m.errorLog, entry)

	// Keep only last N entries
	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("LIDARSCOPE MONITOR"))
	s.WriteString(" ")
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | m: motor  p: pause  r: reset  q: quit", m.connInfo)))
	s.WriteString("\n\n")

	// Scan state
	switch {
	case m.paused:
		s.WriteString(warningStyle.Render("Paused"))
	case !m.scanning:
		s.WriteString(errorStyle.Render("Stopped"))
	case m.lastRotation == nil:
		s.WriteString(m.spinner.View() + warningStyle.Render(" Waiting for first rotation..."))
	default:
		s.WriteString(m.spinner.View() + statsValueStyle.Render(" Scanning"))
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("   motor PWM %d", m.motorSpeed)))
	if m.editing {
		s.WriteString("   ")
		s.WriteString(statsLabelStyle.Render("New PWM: "))
		s.WriteString(m.motorInput.View())
	}
	s.WriteString("\n\n")

	s.WriteString(m.renderStatistics(statsLabelStyle, statsValueStyle, errorStyle, warningStyle, boxStyle))
	s.WriteString("\n\n")

	if m.lastRotation != nil {
		s.WriteString(statsLabelStyle.Render("Latest Rotation:"))
		s.WriteString("\n")
		s.WriteString(rplidar.FormatRotation(*m.lastRotation))
		s.WriteString("\n\n")
		s.WriteString(m.renderSectors(statsLabelStyle, statsValueStyle, headerStyle, boxStyle))
		s.WriteString("\n\n")
	}

	s.WriteString(m.renderEventLog(statsLabelStyle, warningStyle, boxStyle))
	return s.String()
}

func (m monitorModel) renderStatistics(statsLabelStyle, statsValueStyle, errorStyle, warningStyle, boxStyle lipgloss.Style) string {
	snap := m.snapshot

	var content strings.Builder
	content.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Rotations:"), statsValueStyle.Render(fmt.Sprintf("%d", snap.RotationsCompleted)),
		statsLabelStyle.Render("Scan:"), statsValueStyle.Render(fmt.Sprintf("%.2f Hz", snap.RotationRate)),
		statsLabelStyle.Render("Samples:"), statsValueStyle.Render(fmt.Sprintf("%.0f/s", snap.SampleRate)),
	))

	discardStyle := statsValueStyle
	if snap.FramingDiscards > 0 {
		discardStyle = errorStyle
	}
	anomalyStyle := statsValueStyle
	if snap.Anomalies > 0 {
		anomalyStyle = warningStyle
	}
	content.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s",
		statsLabelStyle.Render("Discards:"), discardStyle.Render(fmt.Sprintf("%d (%.2f%%)", snap.FramingDiscards, snap.DiscardPercent())),
		statsLabelStyle.Render("Anomalies:"), anomalyStyle.Render(fmt.Sprintf("%d", snap.Anomalies)),
		statsLabelStyle.Render("Empty Reads:"), statsValueStyle.Render(fmt.Sprintf("%d", snap.EmptyReads)),
	))

	return boxStyle.Render(content.String())
}

// renderSectors draws one bar per sector; shorter bars are nearer obstacles
func (m monitorModel) renderSectors(statsLabelStyle, statsValueStyle, headerStyle, boxStyle lipgloss.Style) string {
	const barWidth = 40

	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("NEAREST PER SECTOR"))
	s.WriteString("\n")

	width := 360.0 / float64(m.sectors)
	for i, d := range m.lastMinima {
		label := fmt.Sprintf("%5.1f°-%5.1f°", float64(i)*width, float64(i+1)*width)
		if d == 0 {
			s.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(label), headerStyle.Render("no return")))
			continue
		}
		s.WriteString(fmt.Sprintf("%s %s %s\n",
			headerStyle.Render(label),
			statsValueStyle.Render(sectorBar(d, m.maxRange, barWidth)),
			fmt.Sprintf("%.0fmm", d)))
	}

	return boxStyle.Render(strings.TrimSuffix(s.String(), "\n"))
}

// sectorBar scales a distance to a bar of at most width cells
func sectorBar(distance, maxRange float64, width int) string {
	if maxRange <= 0 {
		return ""
	}
	n := int(distance / maxRange * float64(width))
	if n < 1 {
		n = 1
	}
	if n > width {
		n = width
	}
	return strings.Repeat("█", n) + strings.Repeat(" ", width-n)
}

func (m monitorModel) renderEventLog(statsLabelStyle, warningStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("EVENTS"))
	s.WriteString("\n")

	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyleLocal := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

	logHeight := 8
	if len(m.errorLog) < logHeight {
		logHeight = len(m.errorLog)
	}
	startIdx := len(m.errorLog) - logHeight

	if len(m.errorLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.errorLog); i++ {
			entry := m.errorLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			icon := "i"
			style := warningStyle
			if entry.isError {
				icon = "x"
				style = errorStyleLocal
			}
			s.WriteString(fmt.Sprintf("%s %s %s\n",
				headerStyle.Render(timestamp),
				style.Render(icon),
				entry.message))
		}
	}

	width := m.width - 4
	if width < 20 {
		width = 20
	}
	return boxStyle.Width(width).Render(s.String())
}
