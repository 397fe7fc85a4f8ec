package yamlfile

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	metering "fuelsite-cloud/internal/metering/domain"
)

type document struct {
	Snapshots []struct {
		NozzleID       string    `yaml:"nozzle_id"`
		TakenAt        time.Time `yaml:"taken_at"`
		InitialReading float64   `yaml:"initial_reading"`
		FinalReading   float64   `yaml:"final_reading"`
	} `yaml:"snapshots"`
}

// Load reads a snapshot export file.
func Load(path string) ([]metering.Snapshot, error) {
	if path == "" {
		return nil, errors.New("snapshot file: empty path")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes snapshots and validates each one. Timestamps are RFC 3339
// and are returned in UTC.
func Parse(data []byte) ([]metering.Snapshot, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("snapshot file: %w", err)
	}
	out := make([]metering.Snapshot, 0, len(doc.Snapshots))
	for i, s := range doc.Snapshots {
		snapshot := metering.Snapshot{
			NozzleID:       s.NozzleID,
			Timestamp:      s.TakenAt.UTC(),
			InitialReading: s.InitialReading,
			FinalReading:   s.FinalReading,
		}
		if err := snapshot.Validate(); err != nil {
			return nil, fmt.Errorf("snapshot file: entry %d: %w", i, err)
		}
		out = append(out, snapshot)
	}
	return out, nil
}
