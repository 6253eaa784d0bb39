// Package config defines the explicit, validated run configuration.
//
// Every recognized option is a named field with a default; there is no
// open-ended option map threaded through the engine. Validation happens
// once at the boundary, before any remote work starts.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Granularity selects how the target year is partitioned into periods.
type Granularity string

const (
	// Biweekly partitions the year into fixed 15-day periods, two per month.
	Biweekly Granularity = "biweekly"
	// Monthly partitions the requested month range into calendar months.
	Monthly Granularity = "monthly"
)

// ErrInvalid is the sentinel for configuration validation failures.
var ErrInvalid = errors.New("invalid configuration")

// ValidationError reports a single out-of-range or inconsistent option.
type ValidationError struct {
	Option string
	Msg    string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("invalid configuration: %s: %s", e.Option, e.Msg)
}

func (e *ValidationError) Unwrap() error { return ErrInvalid }

func invalidf(option, format string, args ...any) error {
	return &ValidationError{Option: option, Msg: fmt.Sprintf(format, args...)}
}

// Run is the complete configuration for one processing run.
type Run struct {
	Granularity Granularity

	// Temporal range.
	Year       int
	Months     int // biweekly: number of months from January
	StartMonth int // monthly: first month, inclusive
	EndMonth   int // monthly: last month, inclusive

	// Compositing parameters.
	CoverThreshold        float64 // index value at or above which a pixel counts as covered
	CloudCoverMax         int     // per-scene cloud percentage ceiling
	AcquisitionWindowDays int     // biweekly: source-imagery search window per period

	// Execution.
	Workers     int
	ExportIndex bool          // also produce the continuous-index artifact
	ExportPause time.Duration // pause between consecutive export calls

	// Output.
	OutputDir string

	// Backend session.
	Endpoint    string
	KeyFile     string // opaque credential material, passed through to the session
	RegionAsset string // geometry the backend clips and composites against
	AOIAsset    string // geometry used for coverage statistics (monthly)

	// Export parameters.
	CRS      string
	Scale    int
	DataType string
}

// Default returns the baseline configuration for a granularity.
// Values mirror the operational defaults the pipeline has always used.
func Default(g Granularity) Run {
	r := Run{
		Granularity:           g,
		Year:                  2025,
		Months:                12,
		StartMonth:            1,
		EndMonth:              12,
		CoverThreshold:        0.15,
		CloudCoverMax:         15,
		AcquisitionWindowDays: 21,
		Workers:               4,
		ExportIndex:           false,
		ExportPause:           time.Second,
		OutputDir:             "output",
		CRS:                   "EPSG:32638",
		Scale:                 10,
		DataType:              "float32",
	}
	if g == Biweekly {
		// Bi-weekly windows are short; a looser scene filter keeps them populated.
		r.CloudCoverMax = 40
	}
	return r
}

// Validate checks every option once. The first violation is returned as a
// *ValidationError wrapping ErrInvalid.
func (r Run) Validate() error {
	switch r.Granularity {
	case Biweekly, Monthly:
	default:
		return invalidf("granularity", "must be %q or %q (got %q)", Biweekly, Monthly, r.Granularity)
	}
	if r.Year < 1 {
		return invalidf("year", "must be positive (got %d)", r.Year)
	}
	if r.Granularity == Biweekly {
		if r.Months < 1 || r.Months > 12 {
			return invalidf("months", "must be between 1 and 12 (got %d)", r.Months)
		}
		if r.AcquisitionWindowDays < 1 {
			return invalidf("acquisition-window", "must be at least 1 day (got %d)", r.AcquisitionWindowDays)
		}
	} else {
		if r.StartMonth < 1 || r.StartMonth > 12 {
			return invalidf("start-month", "must be between 1 and 12 (got %d)", r.StartMonth)
		}
		if r.EndMonth < 1 || r.EndMonth > 12 {
			return invalidf("end-month", "must be between 1 and 12 (got %d)", r.EndMonth)
		}
		if r.StartMonth > r.EndMonth {
			return invalidf("start-month", "must not exceed end-month (%d > %d)", r.StartMonth, r.EndMonth)
		}
	}
	if r.CoverThreshold < 0 || r.CoverThreshold > 1 {
		return invalidf("threshold", "must be between 0 and 1 (got %g)", r.CoverThreshold)
	}
	if r.CloudCoverMax < 0 || r.CloudCoverMax > 100 {
		return invalidf("cloud-cover-max", "must be between 0 and 100 (got %d)", r.CloudCoverMax)
	}
	if r.Workers < 1 {
		return invalidf("workers", "must be at least 1 (got %d)", r.Workers)
	}
	if r.ExportPause < 0 {
		return invalidf("export-pause", "must not be negative (got %s)", r.ExportPause)
	}
	if r.OutputDir == "" {
		return invalidf("output", "must not be empty")
	}
	if r.Scale < 1 {
		return invalidf("scale", "must be a positive pixel size (got %d)", r.Scale)
	}
	return nil
}

// file is the YAML representation of the overridable subset of Run.
// Pointer fields distinguish "absent" from zero values.
type file struct {
	Year                  *int     `yaml:"year"`
	Months                *int     `yaml:"months"`
	StartMonth            *int     `yaml:"start_month"`
	EndMonth              *int     `yaml:"end_month"`
	CoverThreshold        *float64 `yaml:"cover_threshold"`
	CloudCoverMax         *int     `yaml:"cloud_cover_max"`
	AcquisitionWindowDays *int     `yaml:"acquisition_window_days"`
	Workers               *int     `yaml:"workers"`
	ExportIndex           *bool    `yaml:"export_index"`
	OutputDir             *string  `yaml:"output_dir"`
	Endpoint              *string  `yaml:"endpoint"`
	KeyFile               *string  `yaml:"key_file"`
	RegionAsset           *string  `yaml:"region_asset"`
	AOIAsset              *string  `yaml:"aoi_asset"`
	CRS                   *string  `yaml:"crs"`
	Scale                 *int     `yaml:"scale"`
	DataType              *string  `yaml:"dtype"`
}

// ApplyFile overlays a YAML config file onto r. Flag values are applied by
// the CLI after the overlay, so precedence is defaults < file < flags.
func (r *Run) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("decoding config file %s: %w", path, err)
	}
	overlay(&r.Year, f.Year)
	overlay(&r.Months, f.Months)
	overlay(&r.StartMonth, f.StartMonth)
	overlay(&r.EndMonth, f.EndMonth)
	overlay(&r.CoverThreshold, f.CoverThreshold)
	overlay(&r.CloudCoverMax, f.CloudCoverMax)
	overlay(&r.AcquisitionWindowDays, f.AcquisitionWindowDays)
	overlay(&r.Workers, f.Workers)
	overlay(&r.ExportIndex, f.ExportIndex)
	overlay(&r.OutputDir, f.OutputDir)
	overlay(&r.Endpoint, f.Endpoint)
	overlay(&r.KeyFile, f.KeyFile)
	overlay(&r.RegionAsset, f.RegionAsset)
	overlay(&r.AOIAsset, f.AOIAsset)
	overlay(&r.CRS, f.CRS)
	overlay(&r.Scale, f.Scale)
	overlay(&r.DataType, f.DataType)
	return nil
}

func overlay[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
