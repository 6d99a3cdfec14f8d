package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/gwillem/urmotion/pkg/robot"
	"github.com/gwillem/urmotion/pkg/urscript"
)

type WatchCommand struct {
	Interval time.Duration `long:"interval" default:"500ms" description:"Refresh interval"`
}

// poseStats tracks the current, smallest and largest value of each axis.
type poseStats struct {
	cur, min, max [6]float64
	samples       int
	misses        int
	source        string
}

func (s *poseStats) add(p urscript.CartesianPose, source string) {
	v := p.Values()
	if s.samples == 0 {
		s.min, s.max = v, v
	}
	for i := range v {
		s.min[i] = min(s.min[i], v[i])
		s.max[i] = max(s.max[i], v[i])
	}
	s.cur = v
	s.samples++
	s.source = source
}

type watchModel struct {
	arm      *robot.Arm
	interval time.Duration
	stats    poseStats
	quitting bool
}

type tickMsg time.Time

type poseMsg struct {
	reading robot.PoseReading
	ok      bool
}

func (m watchModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m watchModel) query() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		reading, ok := m.arm.QueryPose(ctx)
		return poseMsg{reading: reading, ok: ok}
	}
}

func (m watchModel) Init() tea.Cmd {
	return m.query()
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter", "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		return m, m.query()

	case poseMsg:
		if msg.ok {
			m.stats.add(msg.reading.Pose, msg.reading.Source)
		} else {
			m.stats.misses++
		}
		return m, m.tick()
	}

	return m, nil
}

func (m watchModel) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("TCP pose"))
	sb.WriteString(statusStyle.Render(fmt.Sprintf("  %s  samples %d  unknown %d", m.arm.Host(), m.stats.samples, m.stats.misses)))
	if m.stats.source != "" {
		sb.WriteString(statusStyle.Render("  via " + m.stats.source))
	}
	sb.WriteString("\n\n")

	tableHeaderStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tableAxisStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	tableCellStyle := lipgloss.NewStyle().Padding(0, 1)
	tableCurrentStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Padding(0, 1)

	rows := make([][]string, 0, 6)
	for i, axis := range robot.AllAxes() {
		row := []string{string(axis), "-", "-", "-"}
		if m.stats.samples > 0 {
			row[1] = fmt.Sprintf("%.4f", m.stats.cur[i])
			row[2] = fmt.Sprintf("%.4f", m.stats.min[i])
			row[3] = fmt.Sprintf("%.4f", m.stats.max[i])
		}
		rows = append(rows, row)
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Axis", "Current", "Min", "Max").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			switch col {
			case 0:
				return tableAxisStyle
			case 1:
				return tableCurrentStyle
			default:
				return tableCellStyle
			}
		})

	sb.WriteString(t.Render())
	sb.WriteString("\n\n")
	sb.WriteString(dimStyle.Render("Press Enter to quit"))
	return sb.String()
}

func (c *WatchCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, flush, err := newLogger(cfg.Logging, true)
	if err != nil {
		return err
	}
	defer flush()

	arm, err := robot.NewArm(cfg.Arm, robot.WithLogger(logger.Named("arm")))
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()
	if err := arm.Connect(ctx); err != nil {
		return err
	}
	defer arm.Disconnect()

	interval := c.Interval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	p := tea.NewProgram(watchModel{arm: arm, interval: interval})
	_, err = p.Run()
	return err
}
