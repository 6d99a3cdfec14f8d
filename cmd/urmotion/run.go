package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/gwillem/urmotion/pkg/gripper"
	"github.com/gwillem/urmotion/pkg/robot"
	"github.com/gwillem/urmotion/pkg/sequencer"
)

type RunCommand struct {
	NoTUI  bool `long:"no-tui" description:"Print progress lines instead of the live view"`
	Yes    bool `short:"y" long:"yes" description:"Do not ask for confirmation"`
	Repeat int  `long:"repeat" default:"-1" description:"Run the list this many times, 0 until interrupted (default: from config)"`
}

const (
	headerHeight = 2 // title + blank line
	legendHeight = 2 // legend row + blank
	footerHeight = 7 // log box height
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border
)

// Axis colors for the position chart
var axisColors = map[robot.PoseAxis]string{
	robot.AxisX: "196", // red
	robot.AxisY: "46",  // green
	robot.AxisZ: "51",  // cyan
}

var chartAxes = []robot.PoseAxis{robot.AxisX, robot.AxisY, robot.AxisZ}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type runModel struct {
	ctrl     *sequencer.Controller
	cancel   context.CancelFunc
	chart    *streamlinechart.Model
	spinner  spinner.Model
	width    int
	height   int
	logs     []string
	last     sequencer.State
	stopping bool
	done     bool
	quitting bool
}

func (m *runModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// Messages from the controller
type stateMsg sequencer.State
type logMsg string

func waitForState(ctrl *sequencer.Controller) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-ctrl.States())
	}
}

func waitForLog(ctrl *sequencer.Controller) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-ctrl.Logs())
	}
}

// chartSize calculates the size of the chart based on terminal dimensions
func (m *runModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20
	}
	width = max(m.width-borderSize-2, 40)
	height = max(m.height-headerHeight-legendHeight-footerHeight-borderSize, 10)
	return width, height
}

func initialRunModel(ctrl *sequencer.Controller, cancel context.CancelFunc) runModel {
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(-1, 1),
	)
	for _, axis := range chartAxes {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(axisColors[axis]))
		chart.SetDataSetStyles(string(axis), runes.ThinLineStyle, style)
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return runModel{ctrl: ctrl, cancel: cancel, chart: &chart, spinner: sp}
}

func (m runModel) Init() tea.Cmd {
	return tea.Batch(
		waitForState(m.ctrl),
		waitForLog(m.ctrl),
		m.spinner.Tick,
	)
}

func (m runModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		w, h := m.chartSize()
		m.chart.Resize(w, h)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.done {
				m.quitting = true
				return m, tea.Quit
			}
			// Stop and disconnect before leaving
			m.stopping = true
			m.cancel()
		}

	case stateMsg:
		state := sequencer.State(msg)
		m.last = state
		if state.Pose != nil {
			v := state.Pose.Values()
			for i, axis := range chartAxes {
				m.chart.PushDataSet(string(axis), v[i])
			}
			m.chart.DrawAll()
		}
		if state.Done {
			m.done = true
			if m.stopping {
				m.quitting = true
				return m, tea.Quit
			}
			return m, nil
		}
		return m, waitForState(m.ctrl)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.ctrl)

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

func (m runModel) View() string {
	if m.quitting {
		return "Sequence stopped.\n"
	}

	var sb strings.Builder

	if !m.done {
		sb.WriteString(m.spinner.View() + " ")
	}
	sb.WriteString(titleStyle.Render("urmotion run"))
	switch {
	case m.done && m.last.Error != nil:
		sb.WriteString(errorStyle.Render(" - " + m.last.Error.Error()))
	case m.done:
		sb.WriteString(successStyle.Render(" - complete"))
	case m.stopping:
		sb.WriteString(statusStyle.Render(" - stopping"))
	case m.last.Name != "":
		sb.WriteString(fmt.Sprintf(" - %d/%d %s", m.last.Index+1, len(m.ctrl.Waypoints()), m.last.Name))
	}
	if m.width > 0 {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("  [%dx%d]", m.width, m.height)))
	}
	sb.WriteString("\n\n")

	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")
	sb.WriteString(renderLegend())
	sb.WriteString("\n")

	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(max(m.width-4, 20))

	var logLines string
	if len(m.logs) == 0 {
		logLines = statusStyle.Render("Press 'q' to stop")
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")
	if m.done {
		sb.WriteString(statusStyle.Render("Press 'q' to exit"))
	}

	return sb.String()
}

func renderLegend() string {
	var items []string
	for _, axis := range chartAxes {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(axisColors[axis])).Bold(true)
		items = append(items, colorStyle.Render("━━")+" "+string(axis)+" (m)")
	}
	return strings.Join(items, "  ")
}

func (c *RunCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	waypoints, err := sequencer.FromConfig(cfg.Waypoints)
	if err != nil {
		return err
	}
	if len(waypoints) == 0 {
		return errors.Errorf("no [[waypoint]] entries in %s", opts.Config)
	}

	logger, flush, err := newLogger(cfg.Logging, !c.NoTUI)
	if err != nil {
		return err
	}
	defer flush()

	seqCfg := sequencer.ConfigFrom(cfg.Sequence)
	if c.Repeat >= 0 {
		seqCfg.Repeat = c.Repeat
	}

	arm, err := robot.NewArm(cfg.Arm, robot.WithLogger(logger.Named("arm")))
	if err != nil {
		return err
	}
	ctrlOpts := []sequencer.Option{sequencer.WithLogger(logger.Named("sequencer"))}
	if cfg.Gripper.Host != "" {
		g, err := gripper.New(cfg.Gripper, gripper.WithLogger(logger.Named("gripper")))
		if err != nil {
			return err
		}
		ctrlOpts = append(ctrlOpts, sequencer.WithGripper(g))
	}
	ctrl, err := sequencer.NewController(arm, waypoints, seqCfg, ctrlOpts...)
	if err != nil {
		return err
	}

	preflight(arm, logger)

	if !c.Yes {
		confirmed := false
		form := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Move the arm at %s through %d waypoints?", arm.Host(), len(waypoints))).
				Description(fmt.Sprintf("Each move is followed by a fixed %s wait.", time.Duration(cfg.Sequence.Settle))).
				Affirmative("Run").
				Negative("Cancel").
				Value(&confirmed),
		))
		if err := form.Run(); err != nil || !confirmed {
			return nil
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	if c.NoTUI {
		return runPlain(ctx, ctrl)
	}

	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx) }()

	p := tea.NewProgram(initialRunModel(ctrl, cancel), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		cancel()
		<-done
		return errors.Wrap(err, "run terminal UI")
	}
	cancel()
	return ignoreCanceled(<-done)
}

// preflight warns when the controller will ignore network commands.
func preflight(arm *robot.Arm, logger *zap.SugaredLogger) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	remote, err := arm.Dashboard().IsInRemoteControl(ctx)
	switch {
	case err != nil:
		logger.Warnw("could not read remote control mode", "error", err)
	case !remote:
		fmt.Println(errorStyle.Render("Warning: controller is in local mode; script commands will be ignored"))
	}
}

// runPlain prints progress lines until the sequence ends.
func runPlain(ctx context.Context, ctrl *sequencer.Controller) error {
	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx) }()

	for {
		select {
		case line := <-ctrl.Logs():
			fmt.Println(line)
		case err := <-done:
			for {
				select {
				case line := <-ctrl.Logs():
					fmt.Println(line)
				default:
					return ignoreCanceled(err)
				}
			}
		}
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
