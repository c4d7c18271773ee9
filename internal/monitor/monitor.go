// Package monitor implements the live UPS monitoring TUI using BubbleTea
// with real-time sparkline charts and limit color coding.
package monitor

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/luki/upsmon/internal/chart"
	"github.com/luki/upsmon/internal/history"
	"github.com/luki/upsmon/internal/store"
	"github.com/luki/upsmon/internal/ups"
)

// historySize is the plot window: the last 50 samples of each series.
const historySize = 50

// ── Messages ─────────────────────────────────────────────────────────

type tickMsg time.Time

type readingMsg ups.Reading

type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

// ── Model ────────────────────────────────────────────────────────────

// Model is the BubbleTea model for the live monitor.
type Model struct {
	sampler  *ups.Sampler
	log      *store.Log
	logPath  string
	limits   ups.Limits
	interval time.Duration

	voltage *history.Buffer
	current *history.Buffer
	power   *history.Buffer

	last       ups.Reading
	haveSample bool
	violations ups.Violations

	err       error
	width     int
	height    int
	scroll    int
	lastPoll  time.Time
	startTime time.Time
	paused    bool
}

// New creates the initial model. The log may be nil when recording is
// disabled; quitting closes it on the way out.
func New(sampler *ups.Sampler, log *store.Log, logPath string, limits ups.Limits, interval time.Duration) Model {
	return Model{
		sampler:   sampler,
		log:       log,
		logPath:   logPath,
		limits:    limits,
		interval:  interval,
		voltage:   history.NewBuffer(historySize),
		current:   history.NewBuffer(historySize),
		power:     history.NewBuffer(historySize),
		startTime: time.Now(),
	}
}

// Run blocks until the monitor exits.
func Run(m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// ── Commands ─────────────────────────────────────────────────────────

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) sampleCmd() tea.Cmd {
	sampler := m.sampler
	return func() tea.Msg {
		r, err := sampler.Sample()
		if err != nil {
			return errMsg{err}
		}
		return readingMsg(r)
	}
}

// ── Init / Update ────────────────────────────────────────────────────

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.sampleCmd(), m.tickCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.log != nil {
				m.log.Close()
			}
			return m, tea.Quit
		case "up", "k":
			if m.scroll > 0 {
				m.scroll--
			}
		case "down", "j":
			m.scroll++
		case "home":
			m.scroll = 0
		case " ", "p":
			m.paused = !m.paused
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		if m.paused {
			return m, m.tickCmd()
		}
		return m, tea.Batch(m.sampleCmd(), m.tickCmd())

	case readingMsg:
		r := ups.Reading(msg)
		m.last = r
		m.haveSample = true
		m.err = nil
		m.lastPoll = r.Time
		m.violations = m.limits.Check(r)

		m.voltage.Push(r.BusVolts, r.Time)
		m.current.Push(r.CurrentAmps, r.Time)
		m.power.Push(r.PowerWatts, r.Time)

		if m.log != nil {
			if err := m.log.Append(r); err != nil {
				m.err = fmt.Errorf("write log: %w", err)
			}
		}

	case errMsg:
		// Failed poll: show the error, log nothing for this cycle.
		m.err = msg.err
	}

	return m, nil
}

// ── Color palette ────────────────────────────────────────────────────

var (
	colorTitleBg  = lipgloss.Color("17")
	colorTitleFg  = lipgloss.Color("51")
	colorBorder   = lipgloss.Color("62")
	colorName     = lipgloss.Color("147")
	colorLabel    = lipgloss.Color("252")
	colorDim      = lipgloss.Color("240")
	colorFooterBg = lipgloss.Color("235")
	colorOk       = lipgloss.Color("78")
	colorWarn     = lipgloss.Color("220")
	colorCrit     = lipgloss.Color("196")
	colorPaused   = lipgloss.Color("196")
)

// ── View ─────────────────────────────────────────────────────────────

func (m Model) View() string {
	if m.width == 0 {
		return "  Initializing..."
	}

	contentWidth := m.width - 2
	if contentWidth < 40 {
		contentWidth = 40
	}

	var sections []string

	sections = append(sections, m.renderTitleBar(contentWidth))

	if m.err != nil {
		errBox := lipgloss.NewStyle().
			Foreground(colorCrit).
			Bold(true).
			Width(contentWidth).
			Padding(0, 1).
			Render(fmt.Sprintf(" ERROR: %v", m.err))
		sections = append(sections, errBox)
	}

	if !m.haveSample {
		waiting := lipgloss.NewStyle().
			Foreground(colorDim).
			Width(contentWidth).
			Align(lipgloss.Center).
			Padding(2, 0).
			Render("Waiting for sensor data...")
		sections = append(sections, waiting)
	} else {
		if m.violations.Any() {
			sections = append(sections, m.renderViolations(contentWidth))
		}
		sections = append(sections, m.renderSeriesPanel(contentWidth))
		sections = append(sections, m.renderBatteryPanel(contentWidth))
	}

	sections = append(sections, m.renderFooter(contentWidth))

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)

	lines := strings.Split(content, "\n")
	visibleLines := m.height
	if visibleLines < 5 {
		visibleLines = 5
	}
	maxScroll := len(lines) - visibleLines
	if maxScroll < 0 {
		maxScroll = 0
	}
	if m.scroll > maxScroll {
		m.scroll = maxScroll
	}

	start := m.scroll
	end := start + visibleLines
	if end > len(lines) {
		end = len(lines)
	}

	return strings.Join(lines[start:end], "\n")
}

func (m Model) renderTitleBar(width int) string {
	logo := lipgloss.NewStyle().
		Bold(true).
		Foreground(colorTitleFg).
		Render("UPS MONITOR")

	var statusParts []string

	uptime := lipgloss.NewStyle().
		Foreground(colorDim).
		Render(fmt.Sprintf("up %s", fmtDuration(time.Since(m.startTime))))
	statusParts = append(statusParts, uptime)

	if !m.lastPoll.IsZero() {
		ts := lipgloss.NewStyle().
			Foreground(colorDim).
			Render(m.lastPoll.Format("15:04:05"))
		statusParts = append(statusParts, ts)
	}

	if m.paused {
		p := lipgloss.NewStyle().
			Foreground(colorPaused).
			Bold(true).
			Render("PAUSED")
		statusParts = append(statusParts, p)
	}

	if m.log != nil {
		rec := lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Render("REC") +
			lipgloss.NewStyle().
				Foreground(colorDim).
				Render(" "+m.logPath)
		statusParts = append(statusParts, rec)
	}

	sep := lipgloss.NewStyle().Foreground(colorDim).Render(" │ ")
	right := strings.Join(statusParts, sep)

	gap := width - lipgloss.Width(logo) - lipgloss.Width(right) - 4
	if gap < 1 {
		gap = 1
	}
	filler := strings.Repeat(" ", gap)

	return lipgloss.NewStyle().
		Background(colorTitleBg).
		Width(width).
		Padding(0, 1).
		Render(logo + filler + right)
}

func (m Model) renderViolations(width int) string {
	var parts []string
	if m.violations.Voltage {
		parts = append(parts, fmt.Sprintf("voltage %.2f V exceeds %.1f V", m.last.BusVolts, m.limits.MaxVolts))
	}
	if m.violations.Current {
		parts = append(parts, fmt.Sprintf("current %.2f A exceeds %.1f A", m.last.CurrentAmps, m.limits.MaxAmps))
	}
	if m.violations.Power {
		parts = append(parts, fmt.Sprintf("power %.2f W exceeds %.1f W", m.last.PowerWatts, m.limits.MaxWatts))
	}

	return lipgloss.NewStyle().
		Foreground(colorCrit).
		Bold(true).
		Width(width).
		Padding(0, 1).
		Render(" WARNING: " + strings.Join(parts, "; "))
}

// seriesRow describes one plotted series.
type seriesRow struct {
	label  string
	format string
	buf    *history.Buffer
	limit  float64
	pad    float64 // chart headroom above/below the observed range
}

func (m Model) renderSeriesPanel(totalWidth int) string {
	innerWidth := totalWidth - 4
	if innerWidth < 30 {
		innerWidth = 30
	}

	chartWidth := innerWidth - 56
	if chartWidth < 15 {
		chartWidth = 15
	}
	if chartWidth > historySize {
		chartWidth = historySize
	}

	labelW := 9
	valueW := 10

	dimS := lipgloss.NewStyle().Foreground(colorDim)
	valS := lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	frameL := lipgloss.NewStyle().Foreground(colorBorder).Render("▕")
	frameR := lipgloss.NewStyle().Foreground(colorBorder).Render("▏")

	rows := []string{
		lipgloss.NewStyle().Bold(true).Foreground(colorName).Render("INA219") +
			"  " + dimS.Render(fmt.Sprintf("shunt %.1f mV", m.last.ShuntMillivolts)),
	}

	series := []seriesRow{
		{"voltage", "%7.3f V", m.voltage, m.limits.MaxVolts, 0.5},
		{"current", "%7.3f A", m.current, m.limits.MaxAmps, 0.2},
		{"power", "%7.3f W", m.power, m.limits.MaxWatts, 0.5},
	}

	var lastPts []history.Point

	for _, s := range series {
		rangeMin := math.Max(0, s.buf.Min-s.pad)
		rangeMax := s.buf.Peak + s.pad
		if s.limit > rangeMax {
			rangeMax = s.limit + s.pad
		}

		label := lipgloss.NewStyle().
			Foreground(colorLabel).
			Width(labelW).
			Render(s.label)

		value := lipgloss.NewStyle().
			Width(valueW).
			Align(lipgloss.Right).
			Render(chart.RenderValue(s.buf.Last(), s.format, s.limit, true))

		pts := s.buf.LastNPoints(chartWidth)
		lastPts = pts
		spark := chart.RenderSparklinePoints(pts, chartWidth, rangeMin, rangeMax, s.limit, true)
		framedSpark := frameL + spark + frameR

		stats := dimS.Render(" avg") + valS.Render(fmt.Sprintf("%7.3f", s.buf.Avg())) +
			dimS.Render(" lo") + valS.Render(fmt.Sprintf("%7.3f", s.buf.Min)) +
			dimS.Render(" pk") + valS.Render(fmt.Sprintf("%7.3f", s.buf.Peak))

		limitTag := dimS.Render(" max") + lipgloss.NewStyle().Foreground(colorWarn).Render(fmt.Sprintf("%.1f", s.limit))

		rows = append(rows, label+" "+value+" "+framedSpark+stats+limitTag)
	}

	if lastPts != nil {
		timeline := chart.RenderTimeline(lastPts, chartWidth)
		if strings.TrimSpace(timeline) != "" {
			pad := strings.Repeat(" ", labelW+valueW+2)
			rows = append(rows, pad+" "+timeline)
		}
	}

	panelContent := lipgloss.JoinVertical(lipgloss.Left, rows...)
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1).
		Width(totalWidth).
		Render(panelContent)
}

func (m Model) renderBatteryPanel(totalWidth int) string {
	innerWidth := totalWidth - 4
	if innerWidth < 30 {
		innerWidth = 30
	}

	gaugeWidth := innerWidth - 50
	if gaugeWidth < 10 {
		gaugeWidth = 10
	}
	if gaugeWidth > 40 {
		gaugeWidth = 40
	}

	dimS := lipgloss.NewStyle().Foreground(colorDim)
	valS := lipgloss.NewStyle().Foreground(lipgloss.Color("250"))

	pctColor := colorOk
	switch {
	case m.last.Percent < 20:
		pctColor = colorCrit
	case m.last.Percent < 50:
		pctColor = colorWarn
	}
	percentText := lipgloss.NewStyle().
		Bold(true).
		Foreground(pctColor).
		Render(fmt.Sprintf("%5.1f%%", m.last.Percent))

	remaining := dimS.Render("  remaining ")
	if m.last.HasRemaining {
		remaining += valS.Render(fmt.Sprintf("%.0f min", m.last.RemainingMinutes))
	} else {
		remaining += dimS.Render("—")
	}

	battery := lipgloss.NewStyle().Foreground(colorLabel).Width(9).Render("battery") +
		" " + chart.RenderGauge(m.last.Percent, gaugeWidth) +
		" " + percentText + remaining

	cpuTemp := dimS.Render("n/a")
	if m.last.HasCPUTemp {
		cpuTemp = valS.Render(fmt.Sprintf("%.1f°C", m.last.CPUTemp))
	}
	host := lipgloss.NewStyle().Foreground(colorLabel).Width(9).Render("host") +
		" " + dimS.Render("cpu ") + valS.Render(fmt.Sprintf("%4.1f%%", m.last.CPUPercent)) +
		dimS.Render("  mem ") + valS.Render(fmt.Sprintf("%4.1f%%", m.last.MemPercent)) +
		dimS.Render("  temp ") + cpuTemp

	panelContent := lipgloss.JoinVertical(lipgloss.Left, battery, host)
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1).
		Width(totalWidth).
		Render(panelContent)
}

func (m Model) renderFooter(width int) string {
	okS := lipgloss.NewStyle().Foreground(colorOk).Render("██")
	warnS := lipgloss.NewStyle().Foreground(colorWarn).Render("██")
	critS := lipgloss.NewStyle().Foreground(colorCrit).Render("██")
	tickS := lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Render("│")

	dimS := lipgloss.NewStyle().Foreground(colorDim)
	legend := okS + dimS.Render(" ok ") +
		warnS + dimS.Render(" near limit ") +
		critS + dimS.Render(" over limit ") +
		tickS + dimS.Render(" 1min")

	keys := dimS.Render("q") + lipgloss.NewStyle().Foreground(colorLabel).Render(":quit") +
		dimS.Render("  j/k") + lipgloss.NewStyle().Foreground(colorLabel).Render(":scroll") +
		dimS.Render("  p") + lipgloss.NewStyle().Foreground(colorLabel).Render(":pause")

	gap := width - lipgloss.Width(legend) - lipgloss.Width(keys) - 4
	if gap < 1 {
		gap = 1
	}
	filler := strings.Repeat(" ", gap)

	return lipgloss.NewStyle().
		Background(colorFooterBg).
		Width(width).
		Padding(0, 1).
		Render(legend + filler + keys)
}

func fmtDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	min := d / time.Minute
	d -= min * time.Minute
	s := d / time.Second
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, min, s)
	}
	return fmt.Sprintf("%dm%02ds", min, s)
}
