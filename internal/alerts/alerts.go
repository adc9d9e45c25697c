// Package alerts evaluates incoming measurements against configurable
// environmental bounds so the watch loop can flag readings that need an
// operator's attention.
package alerts

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mkurniadi/biliwatch/internal/models"
)

// Range is an inclusive acceptable band for one metric.
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

func (r Range) contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Thresholds are the acceptable environmental bands inside the unit.
type Thresholds struct {
	Temperature Range `yaml:"temperature"`
	Humidity    Range `yaml:"humidity"`
}

// Default returns the standard bands for a neonatal phototherapy unit.
func Default() Thresholds {
	return Thresholds{
		Temperature: Range{Min: 36.0, Max: 37.5},
		Humidity:    Range{Min: 40, Max: 70},
	}
}

// LoadFile reads thresholds from a YAML file. A missing file is not an
// error; the defaults stand.
func LoadFile(path string) (Thresholds, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return Thresholds{}, fmt.Errorf("read thresholds: %w", err)
	}

	t := Default()
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Thresholds{}, fmt.Errorf("parse thresholds %s: %w", path, err)
	}
	if t.Temperature.Min > t.Temperature.Max {
		return Thresholds{}, fmt.Errorf("thresholds %s: temperature min above max", path)
	}
	if t.Humidity.Min > t.Humidity.Max {
		return Thresholds{}, fmt.Errorf("thresholds %s: humidity min above max", path)
	}
	return t, nil
}

// Alert is one out-of-range reading.
type Alert struct {
	SessionID string
	Metric    string
	Value     float64
	Band      Range
}

func (a Alert) String() string {
	return fmt.Sprintf("session %s: %s %.1f outside %.1f-%.1f",
		a.SessionID, a.Metric, a.Value, a.Band.Min, a.Band.Max)
}

// Check returns an alert for each metric of the measurement outside its
// band.
func (t Thresholds) Check(m models.Measurement) []Alert {
	var out []Alert
	if !t.Temperature.contains(m.Temperature) {
		out = append(out, Alert{
			SessionID: m.SessionID, Metric: "temperature",
			Value: m.Temperature, Band: t.Temperature,
		})
	}
	if !t.Humidity.contains(m.Humidity) {
		out = append(out, Alert{
			SessionID: m.SessionID, Metric: "humidity",
			Value: m.Humidity, Band: t.Humidity,
		})
	}
	return out
}
