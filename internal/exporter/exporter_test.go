package exporter

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/luki/upsmon/internal/hostinfo"
	"github.com/luki/upsmon/internal/ina219"
	"github.com/luki/upsmon/internal/ups"
)

type fakeDevice struct {
	m   ina219.Measurement
	err error
}

func (f *fakeDevice) Read() (ina219.Measurement, error) {
	return f.m, f.err
}

func testSampler(dev *fakeDevice) *ups.Sampler {
	telemetry := func() hostinfo.Stats {
		return hostinfo.Stats{CPUTemp: 45.0, HasCPUTemp: true, CPUPercent: 10.0, MemPercent: 35.0}
	}
	return ups.NewSampler(dev, 100, telemetry)
}

func scrape(t *testing.T, s *ups.Sampler) string {
	t.Helper()
	srv := httptest.NewServer(Handler(s))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func TestMetrics(t *testing.T) {
	dev := &fakeDevice{m: ina219.Measurement{
		ShuntMillivolts:  5,
		BusVolts:         12.2,
		CurrentMilliamps: 450,
		PowerWatts:       5.5,
	}}

	body := scrape(t, testSampler(dev))

	for _, want := range []string{
		"ups_scrape_success 1",
		"ups_bus_volts 12.2",
		"ups_current_amps 0.45",
		"ups_power_watts 5.5",
		"ups_cpu_temp_celsius 45",
		"ups_remaining_minutes",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestMetricsOmitAbsentValues(t *testing.T) {
	// Zero draw: no runtime estimate, so the gauge must not appear.
	dev := &fakeDevice{m: ina219.Measurement{BusVolts: 12.2}}
	s := ups.NewSampler(dev, 100, func() hostinfo.Stats { return hostinfo.Stats{} })

	body := scrape(t, s)

	if strings.Contains(body, "ups_remaining_minutes ") {
		t.Error("remaining minutes should be absent at zero draw")
	}
	if strings.Contains(body, "ups_cpu_temp_celsius ") {
		t.Error("cpu temp should be absent without a thermal sensor")
	}
	if !strings.Contains(body, "ups_scrape_success 1") {
		t.Error("scrape should still succeed")
	}
}

func TestMetricsScrapeFailure(t *testing.T) {
	dev := &fakeDevice{err: errors.New("i2c: remote I/O error")}

	body := scrape(t, testSampler(dev))

	if !strings.Contains(body, "ups_scrape_success 0") {
		t.Error("expected ups_scrape_success 0")
	}
	if strings.Contains(body, "ups_bus_volts") {
		t.Error("no measurement gauges should be emitted on a failed poll")
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(Handler(testSampler(&fakeDevice{})))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
}
