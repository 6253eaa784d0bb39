// Package pipeline runs the period-computation fan-out and reassembles
// the ordered per-period outputs into composites.
package pipeline

import (
	"strings"

	"vegcover/internal/metadata"
	"vegcover/internal/period"
	"vegcover/internal/remote"
)

// Result is the outcome of one period's computation.
//
// Invariant: Rasters always contains a handle for every artifact the run
// requested, even when the period failed or matched zero scenes — those
// cases carry synthetic constant rasters so downstream aggregation never
// special-cases a missing band. Results are immutable once produced.
type Result struct {
	Period     period.Period
	ImageCount int

	// SourceIDs is the full (query-capped) list of source scene
	// identifiers; display strings truncate it, the count does not.
	SourceIDs []string

	// Rasters maps artifact kind to the period's mosaic handle.
	Rasters map[remote.Artifact]remote.Handle

	// Records are the metadata rows derived from this period, one per
	// artifact kind.
	Records []*metadata.Record

	// CoveragePercent is the regional cover mean (monthly runs only).
	CoveragePercent float64

	// Succeeded is false only when the computation itself failed.
	// A period with zero matched scenes is a successful empty result.
	Succeeded bool
}

// QAFlag reports whether the period produced data-backed rasters.
func (r Result) QAFlag() bool { return r.ImageCount > 0 }

const sourceDisplayLimit = 10

// sourceDisplay joins the first few source identifiers for metadata
// rows, marking truncation. The full count is preserved elsewhere.
func sourceDisplay(ids []string) string {
	if len(ids) <= sourceDisplayLimit {
		return strings.Join(ids, ", ")
	}
	return strings.Join(ids[:sourceDisplayLimit], ", ") + "..."
}

// CollectRecords flattens the per-period metadata rows in period order.
func CollectRecords(results []Result) []*metadata.Record {
	var out []*metadata.Record
	for _, r := range results {
		out = append(out, r.Records...)
	}
	return out
}
