// Package readinglog persists every live sensor reading the core sees to an
// append-only JSON-lines file under the data directory. The in-memory stores
// stay authoritative; the log exists for audits and offline analysis after
// the mock data (or a flaky backend) has moved on.
package readinglog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"fog-control/internal/model"
)

type Entry struct {
	Timestamp       time.Time `json:"ts"`
	DeviceID        string    `json:"device_id"`
	Source          string    `json:"source"` // mqtt / http / bus
	WaterVolumeL    float64   `json:"water_volume_l"`
	HumidityPercent float64   `json:"humidity_percent"`
	TemperatureC    float64   `json:"temperature_c"`
}

func FromUpdate(u model.SensorUpdate, source string) Entry {
	return Entry{
		Timestamp:       u.Timestamp,
		DeviceID:        u.DeviceID,
		Source:          source,
		WaterVolumeL:    u.WaterVolumeL,
		HumidityPercent: u.HumidityPercent,
		TemperatureC:    u.TemperatureC,
	}
}

type Log struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

func Open(dir string) (*Log, error) {
	if dir == "" {
		dir = "data"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "readings.jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &Log{path: path, f: f}, nil
}

func (l *Log) Append(e Entry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	b = append(b, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, err = l.f.Write(b)
	return err
}

// Tail returns up to n most recent entries, newest last. Lines that fail to
// decode (partial writes, hand edits) are skipped.
func (l *Log) Tail(n int) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var entries []Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var e Entry
		if json.Unmarshal(sc.Bytes(), &e) != nil {
			continue
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if n > 0 && len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	return entries, nil
}

func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}
