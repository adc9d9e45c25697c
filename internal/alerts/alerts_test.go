package alerts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkurniadi/biliwatch/internal/models"
)

func TestCheck(t *testing.T) {
	th := Default()

	tests := []struct {
		name    string
		temp    float64
		hum     float64
		metrics []string
	}{
		{"all in range", 36.8, 55, nil},
		{"too hot", 38.2, 55, []string{"temperature"}},
		{"too cold", 35.1, 55, []string{"temperature"}},
		{"too dry", 36.8, 30, []string{"humidity"}},
		{"both out", 39.0, 80, []string{"temperature", "humidity"}},
		{"boundary inclusive", 36.0, 70, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alerts := th.Check(models.Measurement{
				SessionID:   "s1",
				Temperature: tt.temp,
				Humidity:    tt.hum,
			})
			var got []string
			for _, a := range alerts {
				got = append(got, a.Metric)
			}
			assert.Equal(t, tt.metrics, got)
		})
	}
}

func TestLoadFile_MissingUsesDefaults(t *testing.T) {
	th, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), th)
}

func TestLoadFile_PartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.yaml")
	require.NoError(t, os.WriteFile(path, []byte("temperature:\n  min: 35.0\n  max: 39.0\n"), 0644))

	th, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, Range{Min: 35.0, Max: 39.0}, th.Temperature)
	assert.Equal(t, Default().Humidity, th.Humidity, "unspecified metric keeps defaults")
}

func TestLoadFile_InvalidBand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.yaml")
	require.NoError(t, os.WriteFile(path, []byte("humidity:\n  min: 80\n  max: 20\n"), 0644))

	_, err := LoadFile(path)
	assert.ErrorContains(t, err, "min above max")
}

func TestAlertString(t *testing.T) {
	a := Alert{SessionID: "s1", Metric: "temperature", Value: 38.6, Band: Range{Min: 36, Max: 37.5}}
	assert.Equal(t, "session s1: temperature 38.6 outside 36.0-37.5", a.String())
}
