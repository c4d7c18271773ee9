// Package exporter serves UPS readings as Prometheus metrics. Each scrape
// triggers one fresh poll cycle through the sampler, which serializes
// device access, so concurrent scrapes never overlap a bus transaction.
package exporter

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/luki/upsmon/internal/ups"
)

// Collector implements prometheus.Collector over a Sampler.
type Collector struct {
	sampler *ups.Sampler

	busVolts         *prometheus.Desc
	shuntMillivolts  *prometheus.Desc
	currentAmps      *prometheus.Desc
	powerWatts       *prometheus.Desc
	batteryPercent   *prometheus.Desc
	remainingMinutes *prometheus.Desc
	cpuTemp          *prometheus.Desc
	cpuPercent       *prometheus.Desc
	memPercent       *prometheus.Desc
	scrapeSuccess    *prometheus.Desc
}

// NewCollector creates a UPS collector for the given sampler.
func NewCollector(s *ups.Sampler) *Collector {
	return &Collector{
		sampler: s,
		busVolts: prometheus.NewDesc(
			"ups_bus_volts",
			"Load (bus side) voltage in volts",
			nil, nil,
		),
		shuntMillivolts: prometheus.NewDesc(
			"ups_shunt_millivolts",
			"Voltage drop across the shunt resistor in millivolts",
			nil, nil,
		),
		currentAmps: prometheus.NewDesc(
			"ups_current_amps",
			"Current through the shunt in amps (negative=charging)",
			nil, nil,
		),
		powerWatts: prometheus.NewDesc(
			"ups_power_watts",
			"Power draw in watts",
			nil, nil,
		),
		batteryPercent: prometheus.NewDesc(
			"ups_battery_percent",
			"Battery state of charge estimated from bus voltage",
			nil, nil,
		),
		remainingMinutes: prometheus.NewDesc(
			"ups_remaining_minutes",
			"Estimated runtime at the present draw in minutes (absent when idle)",
			nil, nil,
		),
		cpuTemp: prometheus.NewDesc(
			"ups_cpu_temp_celsius",
			"Host CPU temperature in degrees Celsius (absent without a thermal sensor)",
			nil, nil,
		),
		cpuPercent: prometheus.NewDesc(
			"ups_cpu_percent",
			"Host CPU utilization in percent",
			nil, nil,
		),
		memPercent: prometheus.NewDesc(
			"ups_memory_percent",
			"Host memory utilization in percent",
			nil, nil,
		),
		scrapeSuccess: prometheus.NewDesc(
			"ups_scrape_success",
			"Whether the sensor poll succeeded",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.busVolts
	ch <- c.shuntMillivolts
	ch <- c.currentAmps
	ch <- c.powerWatts
	ch <- c.batteryPercent
	ch <- c.remainingMinutes
	ch <- c.cpuTemp
	ch <- c.cpuPercent
	ch <- c.memPercent
	ch <- c.scrapeSuccess
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	r, err := c.sampler.Sample()
	if err != nil {
		log.Printf("sample: %v", err)
		ch <- prometheus.MustNewConstMetric(c.scrapeSuccess, prometheus.GaugeValue, 0)
		return
	}

	ch <- prometheus.MustNewConstMetric(c.scrapeSuccess, prometheus.GaugeValue, 1)
	ch <- prometheus.MustNewConstMetric(c.busVolts, prometheus.GaugeValue, r.BusVolts)
	ch <- prometheus.MustNewConstMetric(c.shuntMillivolts, prometheus.GaugeValue, r.ShuntMillivolts)
	ch <- prometheus.MustNewConstMetric(c.currentAmps, prometheus.GaugeValue, r.CurrentAmps)
	ch <- prometheus.MustNewConstMetric(c.powerWatts, prometheus.GaugeValue, r.PowerWatts)
	ch <- prometheus.MustNewConstMetric(c.batteryPercent, prometheus.GaugeValue, r.Percent)
	ch <- prometheus.MustNewConstMetric(c.cpuPercent, prometheus.GaugeValue, r.CPUPercent)
	ch <- prometheus.MustNewConstMetric(c.memPercent, prometheus.GaugeValue, r.MemPercent)

	if r.HasRemaining {
		ch <- prometheus.MustNewConstMetric(c.remainingMinutes, prometheus.GaugeValue, r.RemainingMinutes)
	}
	if r.HasCPUTemp {
		ch <- prometheus.MustNewConstMetric(c.cpuTemp, prometheus.GaugeValue, r.CPUTemp)
	}
}

// Handler returns an HTTP handler serving /metrics and /health for the
// sampler, on a registry private to this collector.
func Handler(s *ups.Sampler) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewCollector(s))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

// Serve blocks serving metrics on addr.
func Serve(addr string, s *ups.Sampler) error {
	log.Printf("Serving metrics on %s/metrics", addr)
	return http.ListenAndServe(addr, Handler(s))
}
