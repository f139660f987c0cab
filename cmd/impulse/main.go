package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/akmonengine/impulse"
	"github.com/akmonengine/impulse/config"
	"github.com/akmonengine/impulse/internal/scene"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	steps      int
	dt         float64
	configFile string
	preset     string
	workers    int
	plot       bool
	verbose    bool
)

var (
	title   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ffff"))
	label   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888899"))
	value   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ccff"))
	asleep  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffaa00"))
	awake   = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff88"))
	failure = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ff4444"))
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "impulse",
		Short: "rigid body constraint solver demo",
	}

	runCmd := &cobra.Command{
		Use:       "run [scenario]",
		Short:     "run a scenario",
		Args:      cobra.ExactArgs(1),
		ValidArgs: scene.Names(),
		RunE:      runScenario,
	}
	runCmd.Flags().IntVar(&steps, "steps", 300, "number of steps")
	runCmd.Flags().Float64Var(&dt, "dt", 1.0/60.0, "timestep")
	runCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	runCmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	runCmd.Flags().IntVar(&workers, "workers", 0, "island solver goroutines (overrides config)")
	runCmd.Flags().BoolVar(&plot, "plot", true, "plot the tracked body height")
	runCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print sleep and wake events")

	configCmd := &cobra.Command{
		Use:   "config [path]",
		Short: "print the default configuration, or write it to path",
		Args:  cobra.MaximumNArgs(1),
		RunE:  writeConfig,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list scenarios and presets",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(title.Render("scenarios"))
			for _, name := range scene.Names() {
				fmt.Println("  " + name)
			}
			fmt.Println(title.Render("presets"))
			for _, name := range config.ListPresets() {
				fmt.Println("  " + name)
			}
		},
	}

	rootCmd.AddCommand(runCmd, configCmd, listCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, failure.Render("error: ")+err.Error())
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset %q (available: %v)", preset, config.ListPresets())
		}
	}

	if configFile != "" {
		// The file overlays the preset, or the defaults without one
		loaded, err := config.LoadOnto(configFile, cfg)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", configFile, err)
		}
		cfg = loaded
	}

	if workers > 0 {
		cfg.Workers = workers
	}

	return cfg, cfg.Validate()
}

func runScenario(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := scene.New(args[0], cfg)
	if err != nil {
		return err
	}

	if verbose {
		s.World.Events.Subscribe(impulse.ON_SLEEP, func(event impulse.Event) {
			fmt.Println(asleep.Render(fmt.Sprintf("  sleep  body %d", event.(impulse.SleepEvent).Body.ID)))
		})
		s.World.Events.Subscribe(impulse.ON_WAKE, func(event impulse.Event) {
			fmt.Println(awake.Render(fmt.Sprintf("  wake   body %d", event.(impulse.WakeEvent).Body.ID)))
		})
	}

	fmt.Println(title.Render(fmt.Sprintf("scenario %s", s.Name)))

	heights := make([]float64, 0, steps)
	start := time.Now()
	for i := range steps {
		if err := s.Step(dt); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		heights = append(heights, s.Tracked.Transform.Position.Y())
	}
	elapsed := time.Since(start)

	if plot && len(heights) > 0 {
		graph := asciigraph.Plot(heights,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(fmt.Sprintf("tracked body %d height (m)", s.Tracked.ID)),
		)
		fmt.Println(graph)
		fmt.Println()
	}

	stats := s.World.Stats()
	fmt.Printf("%s %s   %s %s   %s %s\n",
		label.Render("steps"), value.Render(fmt.Sprint(steps)),
		label.Render("elapsed"), value.Render(elapsed.Round(time.Microsecond).String()),
		label.Render("per step"), value.Render((elapsed / time.Duration(max(steps, 1))).String()),
	)
	fmt.Printf("%s %s   %s %s   %s %s   %s %s\n",
		label.Render("islands"), value.Render(fmt.Sprintf("%d (%d sleeping)", stats.Islands, stats.SleepingIslands)),
		label.Render("contacts"), value.Render(fmt.Sprintf("%d (%d points)", stats.Contacts, stats.ContactPoints)),
		label.Render("warm started"), value.Render(fmt.Sprint(stats.WarmStarted)),
		label.Render("joints"), value.Render(fmt.Sprint(stats.Joints)),
	)
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tPOSITION\tSPEED\tSTATE")
	for _, body := range s.World.Bodies {
		state := "awake"
		if body.IsSleeping {
			state = "sleeping"
		}
		if !body.IsDynamic() {
			state = "-"
		}
		p := body.Transform.Position
		fmt.Fprintf(w, "%d\t%s\t(%.3f, %.3f, %.3f)\t%.4f\t%s\n",
			body.ID, body.BodyType, p.X(), p.Y(), p.Z(), body.Velocity.Len(), state)
	}
	return w.Flush()
}

func writeConfig(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig()

	if len(args) == 1 {
		if err := config.Save(args[0], cfg); err != nil {
			return err
		}
		fmt.Println(label.Render("written ") + value.Render(args[0]))
		return nil
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	fmt.Print(string(data))
	return nil
}
