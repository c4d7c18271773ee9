// Package viewer implements the historical UPS data browser TUI with time
// scrubbing and sparkline windows over the CSV log.
package viewer

import (
	"fmt"
	"math"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/luki/upsmon/internal/chart"
	"github.com/luki/upsmon/internal/history"
	"github.com/luki/upsmon/internal/store"
	"github.com/luki/upsmon/internal/ups"
)

// Run launches the historical data viewer over the log at path.
func Run(path string, limits ups.Limits) {
	rows, err := store.LoadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot load %s: %v\n", path, err)
		os.Exit(1)
	}
	if len(rows) == 0 {
		fmt.Fprintf(os.Stderr, "No history data in %s\n", path)
		os.Exit(1)
	}

	p := tea.NewProgram(
		initModel(path, rows, limits),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
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
	colorWarn     = lipgloss.Color("220")
)

// ── Model ────────────────────────────────────────────────────────────

type model struct {
	path   string
	rows   []ups.Reading
	limits ups.Limits
	cursor int // index into rows
	scroll int
	width  int
	height int
}

func initModel(path string, rows []ups.Reading, limits ups.Limits) model {
	return model{
		path:   path,
		rows:   rows,
		limits: limits,
		cursor: len(rows) - 1,
	}
}

// ── Init / Update ────────────────────────────────────────────────────

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit

		case "left", "h":
			if m.cursor > 0 {
				m.cursor--
			}
		case "right", "l":
			if m.cursor < len(m.rows)-1 {
				m.cursor++
			}
		case "shift+left", "H":
			m.cursor -= 60
			if m.cursor < 0 {
				m.cursor = 0
			}
		case "shift+right", "L":
			m.cursor += 60
			if m.cursor >= len(m.rows) {
				m.cursor = len(m.rows) - 1
			}
		case "home":
			m.cursor = 0
		case "end":
			m.cursor = len(m.rows) - 1

		case "up", "k":
			if m.scroll > 0 {
				m.scroll--
			}
		case "down", "j":
			m.scroll++
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}

	return m, nil
}

// ── View ─────────────────────────────────────────────────────────────

func (m model) View() string {
	if m.width == 0 {
		return "  Loading..."
	}

	contentWidth := m.width - 2
	if contentWidth < 40 {
		contentWidth = 40
	}

	var sections []string

	sections = append(sections, m.renderTitle(contentWidth))
	sections = append(sections, m.renderCursorInfo(contentWidth))
	sections = append(sections, m.renderPanel(contentWidth))
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

func (m model) renderTitle(width int) string {
	logo := lipgloss.NewStyle().
		Bold(true).
		Foreground(colorTitleFg).
		Render("UPS HISTORY")

	first := m.rows[0].Time.Format("2006-01-02 15:04:05")
	last := m.rows[len(m.rows)-1].Time.Format("15:04:05")
	info := lipgloss.NewStyle().
		Foreground(colorDim).
		Render(fmt.Sprintf("%s  %s - %s  (%d readings)", m.path, first, last, len(m.rows)))

	gap := width - lipgloss.Width(logo) - lipgloss.Width(info) - 4
	if gap < 1 {
		gap = 1
	}
	filler := strings.Repeat(" ", gap)

	return lipgloss.NewStyle().
		Background(colorTitleBg).
		Width(width).
		Padding(0, 1).
		Render(logo + filler + info)
}

func (m model) renderCursorInfo(width int) string {
	r := m.rows[m.cursor]
	ts := lipgloss.NewStyle().
		Foreground(lipgloss.Color("214")).
		Bold(true).
		Render(r.Time.Format("2006-01-02 15:04:05"))

	pos := lipgloss.NewStyle().
		Foreground(colorDim).
		Render(fmt.Sprintf("  %d/%d", m.cursor+1, len(m.rows)))

	barWidth := width - 36
	if barWidth < 10 {
		barWidth = 10
	}
	scrubber := m.renderScrubber(barWidth)

	return lipgloss.NewStyle().
		Padding(0, 1).
		Render("  " + ts + pos + "  " + scrubber)
}

func (m model) renderScrubber(width int) string {
	if width <= 0 {
		return ""
	}

	pos := 0
	if len(m.rows) > 1 {
		pos = m.cursor * (width - 1) / (len(m.rows) - 1)
	}
	if pos >= width {
		pos = width - 1
	}

	var sb strings.Builder
	dimS := lipgloss.NewStyle().Foreground(lipgloss.Color("237"))
	curS := lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	tickS := lipgloss.NewStyle().Foreground(lipgloss.Color("239"))

	for i := 0; i < width; i++ {
		if i == pos {
			sb.WriteString(curS.Render("◆"))
		} else {
			rowIdx := 0
			if len(m.rows) > 1 && width > 1 {
				rowIdx = i * (len(m.rows) - 1) / (width - 1)
			}
			if rowIdx > 0 && rowIdx < len(m.rows) {
				t := m.rows[rowIdx].Time
				tPrev := m.rows[rowIdx-1].Time
				if t.Hour() != tPrev.Hour() {
					sb.WriteString(tickS.Render("│"))
					continue
				}
			}
			sb.WriteString(dimS.Render("─"))
		}
	}

	return sb.String()
}

type seriesSpec struct {
	label  string
	format string
	value  func(ups.Reading) float64
	limit  float64
	pad    float64
}

func (m model) renderPanel(totalWidth int) string {
	innerWidth := totalWidth - 4
	if innerWidth < 30 {
		innerWidth = 30
	}

	chartWidth := innerWidth - 58
	if chartWidth < 15 {
		chartWidth = 15
	}
	if chartWidth > 140 {
		chartWidth = 140
	}

	labelW := 9
	valueW := 10

	dimS := lipgloss.NewStyle().Foreground(colorDim)
	valS := lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	frameL := lipgloss.NewStyle().Foreground(colorBorder).Render("▕")
	frameR := lipgloss.NewStyle().Foreground(colorBorder).Render("▏")

	rows := []string{
		lipgloss.NewStyle().Bold(true).Foreground(colorName).Render("INA219 UPS"),
	}

	series := []seriesSpec{
		{"voltage", "%7.3f V", func(r ups.Reading) float64 { return r.BusVolts }, m.limits.MaxVolts, 0.5},
		{"current", "%7.3f A", func(r ups.Reading) float64 { return r.CurrentAmps }, m.limits.MaxAmps, 0.2},
		{"power", "%7.3f W", func(r ups.Reading) float64 { return r.PowerWatts }, m.limits.MaxWatts, 0.5},
		{"percent", "%6.1f %%", func(r ups.Reading) float64 { return r.Percent }, 0, 5},
	}

	var lastPts []history.Point

	for _, s := range series {
		hasLimit := s.limit > 0

		minV, maxV := math.MaxFloat64, -math.MaxFloat64
		for _, r := range m.rows {
			v := s.value(r)
			if v < minV {
				minV = v
			}
			if v > maxV {
				maxV = v
			}
		}
		rangeMin := math.Max(0, minV-s.pad)
		rangeMax := maxV + s.pad
		if hasLimit && s.limit > rangeMax {
			rangeMax = s.limit + s.pad
		}

		pts := m.sparkWindow(s.value, chartWidth)
		lastPts = pts

		label := lipgloss.NewStyle().
			Foreground(colorLabel).
			Bold(true).
			Width(labelW).
			Render(s.label)

		value := lipgloss.NewStyle().
			Width(valueW).
			Align(lipgloss.Right).
			Render(chart.RenderValue(s.value(m.rows[m.cursor]), s.format, s.limit, hasLimit))

		spark := chart.RenderSparklinePoints(pts, chartWidth, rangeMin, rangeMax, s.limit, hasLimit)
		framedSpark := frameL + spark + frameR

		avg := 0.0
		for _, r := range m.rows {
			avg += s.value(r)
		}
		avg /= float64(len(m.rows))

		stats := dimS.Render(" avg") + valS.Render(fmt.Sprintf("%7.3f", avg)) +
			dimS.Render(" lo") + valS.Render(fmt.Sprintf("%7.3f", minV)) +
			dimS.Render(" pk") + valS.Render(fmt.Sprintf("%7.3f", maxV))

		var limitTag string
		if hasLimit {
			limitTag = dimS.Render(" max") + lipgloss.NewStyle().Foreground(colorWarn).Render(fmt.Sprintf("%.1f", s.limit))
		}

		rows = append(rows, label+" "+value+" "+framedSpark+stats+limitTag)
	}

	if lastPts != nil {
		timeline := chart.RenderTimeline(lastPts, chartWidth)
		if strings.TrimSpace(timeline) != "" {
			pad := strings.Repeat(" ", labelW+valueW+2)
			rows = append(rows, pad+" "+timeline)
		}
	}

	rows = append(rows, m.renderCursorDetails())

	panelContent := lipgloss.JoinVertical(lipgloss.Left, rows...)
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1).
		Width(totalWidth).
		Render(panelContent)
}

// sparkWindow extracts up to width points ending at the cursor.
func (m model) sparkWindow(value func(ups.Reading) float64, width int) []history.Point {
	start := m.cursor - width + 1
	if start < 0 {
		start = 0
	}
	pts := make([]history.Point, 0, m.cursor-start+1)
	for _, r := range m.rows[start : m.cursor+1] {
		pts = append(pts, history.Point{Value: value(r), Time: r.Time})
	}
	return pts
}

func (m model) renderCursorDetails() string {
	r := m.rows[m.cursor]

	dimS := lipgloss.NewStyle().Foreground(colorDim)
	valS := lipgloss.NewStyle().Foreground(lipgloss.Color("250"))

	remaining := dimS.Render("—")
	if r.HasRemaining {
		remaining = valS.Render(fmt.Sprintf("%.0f min", r.RemainingMinutes))
	}
	cpuTemp := dimS.Render("n/a")
	if r.HasCPUTemp {
		cpuTemp = valS.Render(fmt.Sprintf("%.1f°C", r.CPUTemp))
	}

	return dimS.Render("remaining ") + remaining +
		dimS.Render("  cpu ") + valS.Render(fmt.Sprintf("%4.1f%%", r.CPUPercent)) +
		dimS.Render("  mem ") + valS.Render(fmt.Sprintf("%4.1f%%", r.MemPercent)) +
		dimS.Render("  temp ") + cpuTemp
}

func (m model) renderFooter(width int) string {
	dimS := lipgloss.NewStyle().Foreground(colorDim)
	keyS := lipgloss.NewStyle().Foreground(colorLabel)

	keys := dimS.Render("q") + keyS.Render(":quit") +
		dimS.Render("  h/l") + keyS.Render(":scrub") +
		dimS.Render("  H/L") + keyS.Render(":skip 60") +
		dimS.Render("  home/end") + keyS.Render(":jump") +
		dimS.Render("  j/k") + keyS.Render(":scroll")

	return lipgloss.NewStyle().
		Background(colorFooterBg).
		Width(width).
		Padding(0, 1).
		Render(keys)
}
