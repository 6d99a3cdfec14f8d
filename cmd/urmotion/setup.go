package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/pkg/errors"

	"github.com/gwillem/urmotion/pkg/robot"
	"github.com/gwillem/urmotion/pkg/sequencer"
	"github.com/gwillem/urmotion/pkg/transport"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type SetupCommand struct {
	NoProbe bool `long:"no-probe" description:"Skip the port reachability check"`
}

func (c *SetupCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("urmotion Setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━"))
	fmt.Println()

	cfg := robot.DefaultConfig()
	if robot.ConfigExists(opts.Config) {
		existing, err := robot.LoadConfigFrom(opts.Config)
		if err != nil {
			return errors.Wrap(err, "existing config")
		}
		cfg = *existing
		fmt.Printf("Editing %s\n\n", opts.Config)
	}

	if err := askAddresses(&cfg); err != nil {
		return err
	}

	if !c.NoProbe {
		fmt.Println()
		fmt.Println(subHeaderStyle.Render("━━━ Probing controller ━━━"))
		fmt.Println()
		fmt.Println(probeTable(probe(cfg)))
	}

	if len(cfg.Waypoints) == 0 {
		home := sequencer.Home
		cfg.Waypoints = []robot.WaypointConfig{{Name: "home", Kind: "joint", Joints: home[:]}}
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.SaveTo(opts.Config); err != nil {
		return errors.Wrap(err, "save config")
	}

	fmt.Println()
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Configuration saved to %s\n", opts.Config)
	fmt.Println()
	fmt.Println("Add [[waypoint]] entries, then start with: " + headerStyle.Render("urmotion run"))
	return nil
}

func askAddresses(cfg *robot.Config) error {
	firmware := cfg.Arm.Firmware
	if firmware == "" {
		firmware = "e-series"
	}
	gripperID := strconv.Itoa(cfg.Gripper.ID)
	settle := time.Duration(cfg.Sequence.Settle).String()

	var options []huh.Option[string]
	for _, name := range robot.FirmwareNames() {
		options = append(options, huh.NewOption(name, name))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Arm controller address").
				Description("Host name or IP of the UR controller").
				Value(&cfg.Arm.Host).
				Validate(notEmpty),
			huh.NewSelect[string]().
				Title("Controller firmware").
				Description("Selects the real-time frame layout").
				Options(options...).
				Value(&firmware),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Gripper controller address").
				Description("Leave empty when no gripper is fitted").
				Value(&cfg.Gripper.Host),
			huh.NewInput().
				Title("Gripper id").
				Value(&gripperID).
				Validate(func(s string) error {
					_, err := strconv.Atoi(s)
					return err
				}),
			huh.NewInput().
				Title("Settle time after each move").
				Description("A fixed wait; the controller does not report motion completion").
				Value(&settle).
				Validate(func(s string) error {
					_, err := time.ParseDuration(s)
					return err
				}),
		),
	)
	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}

	cfg.Arm.Firmware = firmware
	cfg.Gripper.ID, _ = strconv.Atoi(gripperID)
	d, _ := time.ParseDuration(settle)
	cfg.Sequence.Settle = robot.Duration(d)
	return nil
}

func notEmpty(s string) error {
	if s == "" {
		return errors.New("required")
	}
	return nil
}

type probeResult struct {
	name string
	addr string
	err  error
}

// probe opens and closes a connection to every configured port.
func probe(cfg robot.Config) []probeResult {
	type target struct {
		name string
		host string
		port int
	}
	targets := []target{
		{"script", cfg.Arm.Host, cfg.Arm.ScriptPort},
		{"realtime", cfg.Arm.Host, cfg.Arm.RealtimePort},
		{"dashboard", cfg.Arm.Host, cfg.Arm.DashboardPort},
	}
	if cfg.Gripper.Host != "" {
		targets = append(targets, target{"gripper", cfg.Gripper.Host, cfg.Gripper.Port})
	}

	dialer := transport.Dialer{Timeout: time.Duration(cfg.Arm.DialTimeout)}
	results := make([]probeResult, 0, len(targets))
	for _, t := range targets {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		conn, err := dialer.Open(ctx, t.host, t.port)
		cancel()
		if err == nil {
			err = conn.Close()
		}
		results = append(results, probeResult{name: t.name, addr: fmt.Sprintf("%s:%d", t.host, t.port), err: err})
	}
	return results
}

func probeTable(results []probeResult) string {
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	tableHeaderStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		status := "ok"
		if r.err != nil {
			status = r.err.Error()
		}
		rows = append(rows, []string{r.name, r.addr, status})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Port", "Address", "Status").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			if col == 2 && row >= 0 && row < len(results) {
				if results[row].err != nil {
					return errorStyle.Padding(0, 1)
				}
				return successStyle.Padding(0, 1)
			}
			return cellStyle
		}).
		Render()
}
