// upsmon polls an INA219-based UPS HAT over I2C and reports load voltage,
// current, power, battery percent and host telemetry to the console and an
// append-only CSV log, with an optional live terminal plot, a history
// browser, a Prometheus exporter and a CPU soak test.
//
// Usage:
//
//	upsmon [--config file] [--show-plot] [--log-interval n] [--log-file path]
//	upsmon history [--config file] [--log-file path]
//	upsmon export [--config file] [--listen addr]
//	upsmon stress [--config file] [--workers n] [--duration d]
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/luki/upsmon/internal/chart"
	"github.com/luki/upsmon/internal/config"
	"github.com/luki/upsmon/internal/exporter"
	"github.com/luki/upsmon/internal/ina219"
	"github.com/luki/upsmon/internal/monitor"
	"github.com/luki/upsmon/internal/store"
	"github.com/luki/upsmon/internal/ups"
	"github.com/luki/upsmon/internal/viewer"
)

func main() {
	log.SetFlags(0)

	var err error
	args := os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		switch args[0] {
		case "history":
			err = runHistory(args[1:])
		case "export":
			err = runExport(args[1:])
		case "stress":
			err = runStress(args[1:])
		case "help":
			printUsage()
		default:
			fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
			printUsage()
			os.Exit(2)
		}
	} else {
		err = runMonitor(args)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func printUsage() {
	fmt.Println("Usage: upsmon [command] [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  (none)    poll the UPS and log to console + CSV")
	fmt.Println("  history   browse a recorded CSV log")
	fmt.Println("  export    serve readings as Prometheus metrics")
	fmt.Println("  stress    soak the CPU and compare idle vs loaded draw")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  --config <file>       YAML configuration file")
	fmt.Println("  --show-plot           live terminal plot (default command only)")
	fmt.Println("  --log-interval <n>    poll/log cadence in seconds")
	fmt.Println("  --log-file <path>     CSV log location")
}

func runMonitor(args []string) error {
	fs := flag.NewFlagSet("upsmon", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML config file")
	showPlot := fs.Bool("show-plot", false, "live terminal plot of the last 50 samples")
	logInterval := fs.Int("log-interval", 0, "poll/log cadence in seconds (overrides config)")
	logFile := fs.String("log-file", "", "CSV log path (overrides config)")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *logInterval > 0 {
		cfg.IntervalSeconds = *logInterval
	}
	if *logFile != "" {
		cfg.LogPath = *logFile
	}

	dev, closer, err := ina219.Open(cfg.Sensor())
	if err != nil {
		return err
	}
	defer closer.Close()

	sampler := ups.NewSampler(dev, cfg.CapacityWh, nil)

	logf, err := store.Open(cfg.LogPath)
	if err != nil {
		return err
	}
	defer logf.Close()

	limits := cfg.Limits.UPS()

	if *showPlot {
		return monitor.Run(monitor.New(sampler, logf, cfg.LogPath, limits, cfg.Interval()))
	}
	return consoleLoop(sampler, logf, limits, cfg.Interval())
}

// consoleLoop is the default mode: one synchronous read-decode-report cycle
// per interval, until interrupted. A transport failure ends the run; retry
// policy belongs to whatever supervises the process.
func consoleLoop(sampler *ups.Sampler, logf *store.Log, limits ups.Limits, interval time.Duration) error {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	for {
		r, err := sampler.Sample()
		if err != nil {
			return fmt.Errorf("poll: %w", err)
		}

		fmt.Println(consoleLine(r, limits))
		for _, w := range limitWarnings(limits.Check(r), r, limits) {
			fmt.Println(warnStyle.Render("  WARNING: " + w))
		}

		if err := logf.Append(r); err != nil {
			return fmt.Errorf("write log: %w", err)
		}

		select {
		case <-sig:
			fmt.Println("\nInterrupted, shutting down.")
			return nil
		case <-time.After(interval):
		}
	}
}

var (
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	valStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

func consoleLine(r ups.Reading, limits ups.Limits) string {
	remaining := dimStyle.Render("Calculating...")
	if r.HasRemaining {
		remaining = valStyle.Render(fmt.Sprintf("%.2f min", r.RemainingMinutes))
	}
	cpuTemp := dimStyle.Render("n/a")
	if r.HasCPUTemp {
		cpuTemp = valStyle.Render(fmt.Sprintf("%.1f°C", r.CPUTemp))
	}

	return dimStyle.Render(r.Time.Format("2006-01-02 15:04:05")) + "  " +
		chart.RenderValue(r.BusVolts, "%.3f V", limits.MaxVolts, true) + "  " +
		chart.RenderValue(r.CurrentAmps, "%.6f A", limits.MaxAmps, true) + "  " +
		chart.RenderValue(r.PowerWatts, "%.3f W", limits.MaxWatts, true) + "  " +
		valStyle.Render(fmt.Sprintf("%.1f%%", r.Percent)) + "  " +
		dimStyle.Render("cpu ") + valStyle.Render(fmt.Sprintf("%.1f%%", r.CPUPercent)) + "  " +
		dimStyle.Render("mem ") + valStyle.Render(fmt.Sprintf("%.1f%%", r.MemPercent)) + "  " +
		dimStyle.Render("temp ") + cpuTemp + "  " +
		dimStyle.Render("remaining ") + remaining
}

func limitWarnings(v ups.Violations, r ups.Reading, limits ups.Limits) []string {
	var out []string
	if v.Voltage {
		out = append(out, fmt.Sprintf("voltage %.2f V exceeds limit %.1f V", r.BusVolts, limits.MaxVolts))
	}
	if v.Current {
		out = append(out, fmt.Sprintf("current %.2f A exceeds limit %.1f A", r.CurrentAmps, limits.MaxAmps))
	}
	if v.Power {
		out = append(out, fmt.Sprintf("power %.2f W exceeds limit %.1f W", r.PowerWatts, limits.MaxWatts))
	}
	return out
}

func runHistory(args []string) error {
	fs := flag.NewFlagSet("upsmon history", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML config file")
	logFile := fs.String("log-file", "", "CSV log path (overrides config)")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *logFile != "" {
		cfg.LogPath = *logFile
	}

	viewer.Run(cfg.LogPath, cfg.Limits.UPS())
	return nil
}

func runExport(args []string) error {
	fs := flag.NewFlagSet("upsmon export", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML config file")
	listen := fs.String("listen", "", "HTTP listen address (overrides config)")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *listen != "" {
		cfg.Listen = *listen
	}

	dev, closer, err := ina219.Open(cfg.Sensor())
	if err != nil {
		return err
	}
	defer closer.Close()

	sampler := ups.NewSampler(dev, cfg.CapacityWh, nil)
	return exporter.Serve(cfg.Listen, sampler)
}
