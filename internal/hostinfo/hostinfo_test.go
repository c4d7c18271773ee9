package hostinfo

import (
	"testing"

	"github.com/shirou/gopsutil/v3/host"
)

func TestCPUTemp(t *testing.T) {
	tests := []struct {
		name   string
		temps  []host.TemperatureStat
		want   float64
		wantOK bool
	}{
		{
			name: "raspberry pi key",
			temps: []host.TemperatureStat{
				{SensorKey: "cpu_thermal", Temperature: 47.2},
			},
			want:   47.2,
			wantOK: true,
		},
		{
			name: "hyphenated key",
			temps: []host.TemperatureStat{
				{SensorKey: "soc cpu-thermal", Temperature: 51.0},
			},
			want:   51.0,
			wantOK: true,
		},
		{
			name: "preferred key wins over coretemp",
			temps: []host.TemperatureStat{
				{SensorKey: "coretemp_core0", Temperature: 60.0},
				{SensorKey: "cpu_thermal", Temperature: 42.0},
			},
			want:   42.0,
			wantOK: true,
		},
		{
			name: "no cpu sensor present",
			temps: []host.TemperatureStat{
				{SensorKey: "nvme_composite", Temperature: 38.0},
			},
			wantOK: false,
		},
		{
			name:   "empty list",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := cpuTemp(tt.temps)
			if ok != tt.wantOK {
				t.Fatalf("ok: got %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("temp: got %g, want %g", got, tt.want)
			}
		})
	}
}
