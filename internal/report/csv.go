// Package report renders run telemetry for offline inspection: CSV exports,
// top-down scan snapshots and an interactive wheel telemetry chart.
package report

import (
	"fmt"
	"io"
	"os"

	"github.com/gocarina/gocsv"

	"github.com/banshee-data/rover-sim/internal/telemetry"
)

// WriteDriveCSV writes drive samples with a header row.
func WriteDriveCSV(w io.Writer, samples []telemetry.DriveSample) error {
	if err := gocsv.Marshal(&samples, w); err != nil {
		return fmt.Errorf("writing drive telemetry: %w", err)
	}
	return nil
}

// WriteScanCSV writes scan samples with a header row.
func WriteScanCSV(w io.Writer, samples []telemetry.ScanSample) error {
	if err := gocsv.Marshal(&samples, w); err != nil {
		return fmt.Errorf("writing scan telemetry: %w", err)
	}
	return nil
}

// ReadDriveCSV parses a file produced by WriteDriveCSV.
func ReadDriveCSV(r io.Reader) ([]telemetry.DriveSample, error) {
	var samples []telemetry.DriveSample
	if err := gocsv.Unmarshal(r, &samples); err != nil {
		return nil, fmt.Errorf("reading drive telemetry: %w", err)
	}
	return samples, nil
}

// SaveDriveCSV writes drive samples to path.
func SaveDriveCSV(path string, samples []telemetry.DriveSample) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := WriteDriveCSV(f, samples); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
