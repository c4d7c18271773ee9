package store

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/luki/upsmon/internal/ups"
)

func TestLogRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.csv")

	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	base := time.Date(2026, 8, 21, 14, 30, 0, 0, time.Local)
	readings := []ups.Reading{
		{
			Time: base, BusVolts: 12.345, CurrentAmps: 0.5, PowerWatts: 6.2,
			Percent: 92.9, CPUTemp: 48.2, HasCPUTemp: true,
			CPUPercent: 12.0, MemPercent: 41.5,
			RemainingMinutes: 967.74, HasRemaining: true,
		},
		{
			Time: base.Add(2 * time.Second), BusVolts: 11.8, CurrentAmps: 0.4,
			PowerWatts: 0, Percent: 77.8, CPUPercent: 8.5, MemPercent: 40.0,
		},
		{
			Time: base.Add(4 * time.Second), BusVolts: 12.0, CurrentAmps: 0.45,
			PowerWatts: 5.4, Percent: 83.3, CPUTemp: 50.1, HasCPUTemp: true,
			CPUPercent: 15.0, MemPercent: 42.0,
			RemainingMinutes: 1111.11, HasRemaining: true,
		},
	}

	for _, r := range readings {
		if err := l.Append(r); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open raw: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read raw: %v", err)
	}

	if len(rows) != 1+len(readings) {
		t.Fatalf("rows: got %d, want 1 header + %d data", len(rows), len(readings))
	}
	if rows[0][0] != "Timestamp" || len(rows[0]) != 9 {
		t.Errorf("header: got %v", rows[0])
	}
	for i, row := range rows[1:] {
		if len(row) != 9 {
			t.Errorf("data row %d: got %d fields, want 9", i, len(row))
		}
	}

	// Absent temp and remaining time are empty fields, not sentinels.
	if rows[2][5] != "" || rows[2][8] != "" {
		t.Errorf("absent fields should be empty: temp=%q remaining=%q", rows[2][5], rows[2][8])
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(loaded) != len(readings) {
		t.Fatalf("loaded: got %d, want %d", len(loaded), len(readings))
	}
	if loaded[0].BusVolts != 12.345 || !loaded[0].HasCPUTemp || !loaded[0].HasRemaining {
		t.Errorf("first reading: got %+v", loaded[0])
	}
	if loaded[1].HasCPUTemp || loaded[1].HasRemaining {
		t.Errorf("second reading should have absent optionals: %+v", loaded[1])
	}
	if !loaded[2].Time.Equal(base.Add(4 * time.Second)) {
		t.Errorf("third reading time: got %v", loaded[2].Time)
	}
}

func TestReopenDoesNotDuplicateHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.csv")

	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	r := ups.Reading{Time: time.Now(), BusVolts: 12.0}
	if err := l.Append(r); err != nil {
		t.Fatalf("Append: %v", err)
	}
	l.Close()

	l, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if err := l.Append(r); err != nil {
		t.Fatalf("Append after reopen: %v", err)
	}
	l.Close()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open raw: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read raw: %v", err)
	}

	if len(rows) != 3 {
		t.Fatalf("rows: got %d, want 3 (one header, two data)", len(rows))
	}
	headers := 0
	for _, row := range rows {
		if row[0] == "Timestamp" {
			headers++
		}
	}
	if headers != 1 {
		t.Errorf("header rows: got %d, want 1", headers)
	}
}

func TestLoadFileAcceptsEightFieldRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.csv")
	data := "Timestamp,Load Voltage (V),Current (A),Power (W),Percent (%),CPU Temp (°C),CPU Usage (%),Memory Usage (%),Remaining Time (min)\n" +
		"2026-08-21 14:30:00,12.000,0.500000,6.000,83.3,48.2,12.0,41.5\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("loaded: got %d, want 1", len(loaded))
	}
	if loaded[0].HasRemaining {
		t.Error("eight-field row should have no remaining time")
	}
	if loaded[0].PowerWatts != 6.0 {
		t.Errorf("power: got %g, want 6.0", loaded[0].PowerWatts)
	}
}
