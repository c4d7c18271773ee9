package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/luki/upsmon/internal/config"
	"github.com/luki/upsmon/internal/ina219"
	"github.com/luki/upsmon/internal/ups"
)

// idleSamples is how many one-second readings establish the baseline draw.
const idleSamples = 5

// runStress soaks the CPU while polling the UPS once a second, then reports
// idle versus loaded power draw and what the load does to the runtime
// estimate. Useful for sizing battery capacity against a real workload.
func runStress(args []string) error {
	fs := flag.NewFlagSet("upsmon stress", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML config file")
	workers := fs.Int("workers", runtime.NumCPU(), "CPU burn goroutines")
	duration := fs.Duration("duration", time.Minute, "soak duration")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	dev, closer, err := ina219.Open(cfg.Sensor())
	if err != nil {
		return err
	}
	defer closer.Close()

	sampler := ups.NewSampler(dev, cfg.CapacityWh, nil)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	fmt.Printf("Measuring idle draw (%d samples)...\n", idleSamples)
	idle, err := baseline(sampler, sig)
	if err != nil {
		return err
	}
	fmt.Printf("  idle: %.2f W\n\n", idle.avg())

	fmt.Printf("Soaking %d cores for %s (Ctrl+C stops early)\n", *workers, *duration)
	loaded, err := soak(sampler, *workers, *duration, sig)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("Idle draw:       %6.2f W\n", idle.avg())
	fmt.Printf("Loaded draw:     %6.2f W  (peak %.2f W)\n", loaded.avg(), loaded.peak)
	fmt.Printf("Load delta:      %+6.2f W\n", loaded.avg()-idle.avg())
	if min, ok := ups.RemainingMinutes(cfg.CapacityWh, loaded.avg()); ok {
		fmt.Printf("Runtime at load: %6.0f min on a %.0f Wh battery\n", min, cfg.CapacityWh)
	}
	if min, ok := ups.RemainingMinutes(cfg.CapacityWh, idle.avg()); ok {
		fmt.Printf("Runtime idle:    %6.0f min\n", min)
	}
	return nil
}

type drawStats struct {
	sum  float64
	n    int
	peak float64
}

func (s *drawStats) add(w float64) {
	s.sum += w
	s.n++
	if w > s.peak {
		s.peak = w
	}
}

func (s *drawStats) avg() float64 {
	if s.n == 0 {
		return 0
	}
	return s.sum / float64(s.n)
}

func baseline(sampler *ups.Sampler, sig <-chan os.Signal) (drawStats, error) {
	var st drawStats
	for i := 0; i < idleSamples; i++ {
		r, err := sampler.Sample()
		if err != nil {
			return st, fmt.Errorf("poll: %w", err)
		}
		st.add(r.PowerWatts)

		select {
		case <-sig:
			return st, fmt.Errorf("interrupted during baseline")
		case <-time.After(time.Second):
		}
	}
	return st, nil
}

func soak(sampler *ups.Sampler, workers int, duration time.Duration, sig <-chan os.Signal) (drawStats, error) {
	done := make(chan struct{})
	go func() {
		select {
		case <-sig:
			fmt.Println("\nInterrupted, stopping early.")
		case <-time.After(duration):
		}
		close(done)
	}()

	for i := 0; i < workers; i++ {
		go burn(done)
	}

	var st drawStats
	for {
		r, err := sampler.Sample()
		if err != nil {
			return st, fmt.Errorf("poll: %w", err)
		}
		st.add(r.PowerWatts)
		fmt.Printf("  %s  %6.3f V  %6.3f A  %6.3f W\n",
			r.Time.Format("15:04:05"), r.BusVolts, r.CurrentAmps, r.PowerWatts)

		select {
		case <-done:
			return st, nil
		case <-time.After(time.Second):
		}
	}
}

// burn spins one core until done closes.
func burn(done <-chan struct{}) {
	x := 0.0
	for {
		select {
		case <-done:
			return
		default:
			x += 1.1
			x *= 0.9
		}
	}
}
