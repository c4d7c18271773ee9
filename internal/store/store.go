// Package store handles the append-only CSV log of UPS readings: one row
// per poll cycle, flushed immediately, header written only for a new file.
package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/luki/upsmon/internal/ups"
)

const timeLayout = "2006-01-02 15:04:05"

// DefaultPath is where the log lands unless configured otherwise.
const DefaultPath = "ina219_data_log.csv"

var header = []string{
	"Timestamp",
	"Load Voltage (V)",
	"Current (A)",
	"Power (W)",
	"Percent (%)",
	"CPU Temp (°C)",
	"CPU Usage (%)",
	"Memory Usage (%)",
	"Remaining Time (min)",
}

// Log is an open append-only CSV log. One writer, written sequentially.
type Log struct {
	f *os.File
	w *csv.Writer
}

// Open opens or creates the log at path. The header row is written only
// when the file is new or empty, so restarts keep appending to one log.
func Open(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat log: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		w.Write(header)
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("write header: %w", err)
		}
	}
	return &Log{f: f, w: w}, nil
}

// Append writes one reading and flushes it through to the file. Absent
// CPU temperature or runtime estimate become empty fields, never sentinels.
func (l *Log) Append(r ups.Reading) error {
	cpuTemp := ""
	if r.HasCPUTemp {
		cpuTemp = strconv.FormatFloat(r.CPUTemp, 'f', 1, 64)
	}
	remaining := ""
	if r.HasRemaining {
		remaining = strconv.FormatFloat(r.RemainingMinutes, 'f', 2, 64)
	}

	l.w.Write([]string{
		r.Time.Format(timeLayout),
		strconv.FormatFloat(r.BusVolts, 'f', 3, 64),
		strconv.FormatFloat(r.CurrentAmps, 'f', 6, 64),
		strconv.FormatFloat(r.PowerWatts, 'f', 3, 64),
		strconv.FormatFloat(r.Percent, 'f', 1, 64),
		cpuTemp,
		strconv.FormatFloat(r.CPUPercent, 'f', 1, 64),
		strconv.FormatFloat(r.MemPercent, 'f', 1, 64),
		remaining,
	})
	l.w.Flush()
	return l.w.Error()
}

// Close flushes and closes the log file.
func (l *Log) Close() error {
	l.w.Flush()
	werr := l.w.Error()
	cerr := l.f.Close()
	if werr != nil {
		return werr
	}
	return cerr
}

// LoadFile reads all readings back from a CSV log, for the history browser
// and for tests. Rows with 8 fields (older loggers dropped the remaining
// time column) are accepted; unparseable rows are skipped.
func LoadFile(path string) ([]ups.Reading, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	var readings []ups.Reading
	for i, row := range records {
		if i == 0 && len(row) > 0 && row[0] == "Timestamp" {
			continue
		}
		if len(row) < 8 {
			continue
		}

		ts, err := time.ParseInLocation(timeLayout, row[0], time.Local)
		if err != nil {
			continue
		}

		var r ups.Reading
		r.Time = ts
		r.BusVolts, _ = strconv.ParseFloat(row[1], 64)
		r.CurrentAmps, _ = strconv.ParseFloat(row[2], 64)
		r.PowerWatts, _ = strconv.ParseFloat(row[3], 64)
		r.Percent, _ = strconv.ParseFloat(row[4], 64)
		if row[5] != "" {
			r.CPUTemp, err = strconv.ParseFloat(row[5], 64)
			r.HasCPUTemp = err == nil
		}
		r.CPUPercent, _ = strconv.ParseFloat(row[6], 64)
		r.MemPercent, _ = strconv.ParseFloat(row[7], 64)
		if len(row) > 8 && row[8] != "" {
			r.RemainingMinutes, err = strconv.ParseFloat(row[8], 64)
			r.HasRemaining = err == nil
		}

		readings = append(readings, r)
	}

	return readings, nil
}
