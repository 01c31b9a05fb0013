// Package report is the JSON summary a batch run writes next to its
// outputs: per-file sizes and timings plus aggregate stats.
package report

import (
	"encoding/json"
	"os"
	"time"
)

// SupportedReportVersion is the current schema version.
const SupportedReportVersion = 1

// Report is the top-level output of one batch run.
type Report struct {
	Version     int              `json:"version"`
	GeneratedAt string           `json:"generated_at"`
	RunID       string           `json:"run_id"`
	Mode        string           `json:"mode"`
	Engine      string           `json:"engine"`
	ScaleRatio  float64          `json:"scale_ratio"`
	NoiseLevel  int              `json:"noise_level"`
	Entries     map[string]Entry `json:"entries"`
	Stats       Stats            `json:"stats"`
}

// Entry records the outcome for one source image.
type Entry struct {
	Input     string `json:"input"`
	Output    string `json:"output,omitempty"`
	InWidth   int    `json:"in_width"`
	InHeight  int    `json:"in_height"`
	OutWidth  int    `json:"out_width,omitempty"`
	OutHeight int    `json:"out_height,omitempty"`
	InBytes   int64  `json:"in_bytes"`
	OutBytes  int64  `json:"out_bytes,omitempty"`
	ElapsedMS int64  `json:"elapsed_ms"`
	Error     string `json:"error,omitempty"`
}

// Stats aggregates a run.
type Stats struct {
	TotalFiles       int   `json:"total_files"`
	Failed           int   `json:"failed"`
	TotalInputBytes  int64 `json:"total_input_bytes"`
	TotalOutputBytes int64 `json:"total_output_bytes"`
}

// New creates an empty report stamped with the run parameters.
func New(runID, mode, engine string, ratio float64, noiseLevel int) *Report {
	return &Report{
		Version:     SupportedReportVersion,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		RunID:       runID,
		Mode:        mode,
		Engine:      engine,
		ScaleRatio:  ratio,
		NoiseLevel:  noiseLevel,
		Entries:     make(map[string]Entry),
	}
}

// ComputeStats recalculates aggregates from the entries.
func (r *Report) ComputeStats() {
	var s Stats
	s.TotalFiles = len(r.Entries)
	for _, e := range r.Entries {
		if e.Error != "" {
			s.Failed++
			continue
		}
		s.TotalInputBytes += e.InBytes
		s.TotalOutputBytes += e.OutBytes
	}
	r.Stats = s
}

// WriteJSON serializes the report to a JSON file.
func WriteJSON(r *Report, path string) error {
	r.ComputeStats()

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}
