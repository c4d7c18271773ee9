// Package hostinfo samples host CPU and memory telemetry via gopsutil.
// A host without the expected thermal sensor is a state, not a fault:
// readings degrade to absent/zero and never fail a poll cycle.
package hostinfo

import (
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// Stats is one snapshot of host telemetry.
type Stats struct {
	CPUTemp    float64
	HasCPUTemp bool
	CPUPercent float64
	MemPercent float64
}

// cpuTempKeys in preference order. Raspberry Pi kernels expose cpu_thermal,
// some device trees spell it cpu-thermal, x86 boxes report coretemp.
var cpuTempKeys = []string{"cpu_thermal", "cpu-thermal", "coretemp"}

// Read samples the host. Every field degrades independently.
func Read() Stats {
	var s Stats
	if temps, err := host.SensorsTemperatures(); err == nil {
		s.CPUTemp, s.HasCPUTemp = cpuTemp(temps)
	}
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		s.CPUPercent = pct[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		s.MemPercent = vm.UsedPercent
	}
	return s
}

func cpuTemp(temps []host.TemperatureStat) (float64, bool) {
	for _, key := range cpuTempKeys {
		for _, t := range temps {
			if strings.Contains(t.SensorKey, key) {
				return t.Temperature, true
			}
		}
	}
	return 0, false
}
