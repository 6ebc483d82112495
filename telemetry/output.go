package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/amoebot/config"
)

// Output handles structured run output with CSV logging. A nil Output
// discards everything.
type Output struct {
	dir         string
	roundsFile  *os.File
	windowsFile *os.File

	// Track if headers have been written.
	roundsHeaderWritten  bool
	windowsHeaderWritten bool
}

// NewOutput creates an output manager rooted at dir. Returns nil if dir
// is empty (output disabled).
func NewOutput(dir string) (*Output, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	out := &Output{dir: dir}

	f, err := os.Create(filepath.Join(dir, "rounds.csv"))
	if err != nil {
		return nil, fmt.Errorf("creating rounds.csv: %w", err)
	}
	out.roundsFile = f

	f, err = os.Create(filepath.Join(dir, "windows.csv"))
	if err != nil {
		out.roundsFile.Close()
		return nil, fmt.Errorf("creating windows.csv: %w", err)
	}
	out.windowsFile = f

	return out, nil
}

// WriteConfig saves the run's configuration as YAML next to the CSVs.
func (out *Output) WriteConfig(cfg *config.Config) error {
	if out == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(out.dir, "config.yaml"))
}

// WriteRound appends one round record to rounds.csv.
func (out *Output) WriteRound(rs RoundStats) error {
	if out == nil {
		return nil
	}
	records := []RoundStats{rs}
	if !out.roundsHeaderWritten {
		if err := gocsv.Marshal(records, out.roundsFile); err != nil {
			return fmt.Errorf("writing rounds: %w", err)
		}
		out.roundsHeaderWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, out.roundsFile); err != nil {
		return fmt.Errorf("writing rounds: %w", err)
	}
	return nil
}

// WriteWindow appends one window record to windows.csv.
func (out *Output) WriteWindow(ws WindowStats) error {
	if out == nil {
		return nil
	}
	records := []WindowStats{ws}
	if !out.windowsHeaderWritten {
		if err := gocsv.Marshal(records, out.windowsFile); err != nil {
			return fmt.Errorf("writing windows: %w", err)
		}
		out.windowsHeaderWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, out.windowsFile); err != nil {
		return fmt.Errorf("writing windows: %w", err)
	}
	return nil
}

// Close flushes and closes the CSV files.
func (out *Output) Close() error {
	if out == nil {
		return nil
	}
	var first error
	if err := out.roundsFile.Close(); err != nil {
		first = err
	}
	if err := out.windowsFile.Close(); err != nil && first == nil {
		first = err
	}
	return first
}
